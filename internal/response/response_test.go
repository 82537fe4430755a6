package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstar/backend/internal/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestFailDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, fmt.Errorf("save avatar: %w", apperr.ErrS3Upload))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "S3_UPLOAD_EXCEPTION", env.Code)
	assert.Equal(t, apperr.ErrS3Upload.Message, env.Error)
}

func TestFailUnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "internal server error", env.Error)
	assert.Empty(t, env.Code)
}

func TestCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]string{"url": "http://x/y"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]interface{}{"url": "http://x/y"}, env.Data)
}
