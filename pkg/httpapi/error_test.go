package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusNotFound, StatusFor(serrors.CodeNotFound))
	require.Equal(t, http.StatusBadRequest, StatusFor(serrors.CodeBadRequest))
	require.Equal(t, http.StatusConflict, StatusFor(serrors.CodeDependencyConflict))
	require.Equal(t, http.StatusUnauthorized, StatusFor(serrors.CodeNoActor))
	require.Equal(t, http.StatusInternalServerError, StatusFor("SOMETHING_ELSE"))
}

func TestWriteServiceError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	err := serrors.NewDependencyConflict("keyword", 7, map[string]string{"manuscript": "10,20"})
	require.NoError(t, WriteServiceError(rec, err))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, serrors.CodeDependencyConflict, envelope.Code)
	require.Equal(t, "10,20", envelope.Meta["manuscript"])
}

func TestWriteServiceError_OpaqueErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteServiceError(rec, errors.New("boom")))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
