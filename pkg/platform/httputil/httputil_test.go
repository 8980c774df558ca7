package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pollboard/pkg/domain-errors"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(dErrors.CodeValidation))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(dErrors.CodeUnauthorized))
	assert.Equal(t, http.StatusForbidden, StatusOf(dErrors.CodeForbidden))
	assert.Equal(t, http.StatusNotFound, StatusOf(dErrors.CodeNotFound))
	assert.Equal(t, http.StatusConflict, StatusOf(dErrors.CodeConflict))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(dErrors.CodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(dErrors.Code("unknown")))
}

func TestWriteSuccess(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteSuccess(rr, http.StatusCreated, "poll created successfully", map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var envelope struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "poll created successfully", envelope.Message)
	assert.Equal(t, "123", envelope.Data["id"])
}

func TestWriteErrorDomain(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, dErrors.New(dErrors.CodeConflict, "you have already voted"))

	assert.Equal(t, http.StatusConflict, rr.Code)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "you have already voted", envelope.Message)
}

func TestWriteErrorOpaqueForNonDomainErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.Equal(t, "internal server error", envelope.Message)
	assert.NotContains(t, rr.Body.String(), "pq:")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	t.Run("valid body decodes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"Lunch"}`))
		rr := httptest.NewRecorder()

		decoded, ok := DecodeJSON[payload](rr, req)
		require.True(t, ok)
		assert.Equal(t, "Lunch", decoded.Title)
	})

	t.Run("malformed body writes a validation error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
		rr := httptest.NewRecorder()

		_, ok := DecodeJSON[payload](rr, req)
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
