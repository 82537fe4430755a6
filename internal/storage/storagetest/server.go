// Package storagetest provides an in-process S3-compatible HTTP server for
// exercising the real storage clients in tests.
package storagetest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Put is one object write as seen on the wire.
type Put struct {
	Path          string
	ContentType   string
	ContentLength int64
	Body          []byte
}

// Server answers the subset of the S3 API used by the storage backends:
// bucket location, head/create bucket, bucket policy and single-request PutObject.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	buckets  map[string]bool
	policies map[string]string
	puts     []Put
	failPuts bool
}

// NewServer starts a Server that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{buckets: make(map[string]bool), policies: make(map[string]string)}
	s.Server = httptest.NewServer(s)
	t.Cleanup(s.Close)
	return s
}

// Host returns the server address without scheme, as MinIO expects it.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// FailPuts makes every object write answer 403 AccessDenied.
func (s *Server) FailPuts(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPuts = fail
}

// Puts returns the successful object writes in arrival order.
func (s *Server) Puts() []Put {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Put(nil), s.puts...)
}

// HasBucket reports whether bucket was created.
func (s *Server) HasBucket(bucket string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets[bucket]
}

// Policy returns the policy document last set on bucket.
func (s *Server) Policy(bucket string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policies[bucket]
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	q := r.URL.Query()

	switch {
	case q.Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
			`<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></LocationConstraint>`)

	case q.Has("policy") && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		s.policies[bucket] = string(body)
		w.WriteHeader(http.StatusNoContent)

	case key == "" && r.Method == http.MethodHead:
		if !s.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case key == "" && r.Method == http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		s.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut:
		if s.failPuts {
			_, _ = io.Copy(io.Discard, r.Body)
			writeError(w, http.StatusForbidden, "AccessDenied", "Access Denied")
			return
		}
		body, length, err := readPayload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
			return
		}
		s.puts = append(s.puts, Put{
			Path:          r.URL.Path,
			ContentType:   r.Header.Get("Content-Type"),
			ContentLength: length,
			Body:          body,
		})
		w.Header().Set("ETag", `"9b2cf535f27731c974343645a3985328"`)
		w.WriteHeader(http.StatusOK)

	default:
		writeError(w, http.StatusNotImplemented, "NotImplemented", r.Method+" "+r.URL.String())
	}
}

// readPayload returns the object bytes and the declared length, decoding
// aws-chunked bodies (streaming signatures and checksum trailers).
func readPayload(r *http.Request) ([]byte, int64, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, 0, err
	}

	decoded := r.Header.Get("X-Amz-Decoded-Content-Length")
	if decoded == "" {
		return raw, r.ContentLength, nil
	}
	length, err := strconv.ParseInt(decoded, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("decoded content length %q: %w", decoded, err)
	}

	var body []byte
	for len(raw) > 0 {
		line, rest, ok := bytes.Cut(raw, []byte("\r\n"))
		if !ok {
			break
		}
		sizeField, _, _ := strings.Cut(string(line), ";")
		n, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("chunk header %q: %w", line, err)
		}
		if n == 0 {
			break
		}
		if int64(len(rest)) < n+2 {
			return nil, 0, fmt.Errorf("short chunk: want %d bytes, have %d", n, len(rest))
		}
		body = append(body, rest[:n]...)
		raw = rest[n+2:]
	}
	return body, length, nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
		`<Error><Code>%s</Code><Message>%s</Message><RequestId>storagetest</RequestId><HostId>storagetest</HostId></Error>`,
		code, message)
}
