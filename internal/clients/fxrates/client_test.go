package fxrates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchLatestInvertsRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/INR", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// 1 INR buys 0.0118343195... USD, i.e. 1 USD = 84.50 INR.
		w.Write([]byte(`{"result":"success","base_code":"INR","rates":{"INR":1,"USD":0.011834319526627219,"EUR":0.011}}`))
	}))
	defer server.Close()

	client := NewClient("", WithBaseURL(server.URL))

	table, err := client.FetchLatest(context.Background(), "inr")
	require.NoError(t, err)
	assert.Equal(t, "INR", table.Base)

	usd, ok := table.Rate("USD")
	require.True(t, ok)
	assert.True(t, usd.Round(2).Equal(decimal.RequireFromString("84.50")), "got %s", usd)

	// The base currency always maps to exactly 1.
	inr, ok := table.Rate("INR")
	require.True(t, ok)
	assert.True(t, inr.Equal(decimal.NewFromInt(1)))
}

func TestFetchLatestProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
	}))
	defer server.Close()

	client := NewClient("", WithBaseURL(server.URL))

	_, err := client.FetchLatest(context.Background(), "XXX")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestFetchLatestHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("", WithBaseURL(server.URL))

	_, err := client.FetchLatest(context.Background(), "INR")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
