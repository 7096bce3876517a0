package controllers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

func TestPathID(t *testing.T) {
	r := httptest.NewRequest("GET", "/keywords/42", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "42"})
	id, err := pathID(r, "id")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	r = mux.SetURLVars(httptest.NewRequest("GET", "/keywords/x", nil), map[string]string{"id": "x"})
	_, err = pathID(r, "id")
	require.Error(t, err)
	require.True(t, serrors.IsBadRequest(err))
}

func TestDecodeBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/keywords", strings.NewReader(`{"name":"astronomy"}`))
	var dto struct {
		Name string `json:"name"`
	}
	require.NoError(t, decodeBody(r, &dto))
	require.Equal(t, "astronomy", dto.Name)

	r = httptest.NewRequest("POST", "/keywords", strings.NewReader(`{not json`))
	err := decodeBody(r, &dto)
	require.Error(t, err)
	require.True(t, serrors.IsBadRequest(err))
}
