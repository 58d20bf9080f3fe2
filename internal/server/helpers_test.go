package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathParam(t *testing.T) {
	cases := []struct {
		path   string
		prefix string
		suffix string
		want   string
	}{
		{"/api/ledgers/abc/close", "/api/ledgers/", "/close", "abc"},
		{"/api/ledgers/abc/metrics", "/api/ledgers/", "/metrics", "abc"},
		{"/api/ledgers/abc", "/api/ledgers/", "", "abc"},
		{"/api/transactions/tx-1", "/api/transactions/", "", "tx-1"},
		{"/api/other/abc", "/api/ledgers/", "", ""},
		{"/api/ledgers/", "/api/ledgers/", "", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		assert.Equal(t, tc.want, PathParam(req, tc.prefix, tc.suffix), tc.path)
	}
}
