package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

func TestClientGet_DecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"asset_id":"tok-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	var out struct {
		AssetID string `json:"asset_id"`
	}
	err := c.get(context.Background(), c.booksLimiter, "GET /book", srv.URL+"/book", &out)

	require.NoError(t, err)
	assert.Equal(t, "tok-1", out.AssetID)
}

func TestClientGet_ClassifiesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid token id"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	var out map[string]any
	err := c.get(context.Background(), c.booksLimiter, "GET /book", srv.URL+"/book", &out)

	require.Error(t, err)
	assert.True(t, domain.IsRejectedOrder(err))
	assert.False(t, domain.IsTransientExchangeErr(err))

	var ee *domain.ExchangeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "GET /book", ee.Op)
}

func TestClientPost_BalanceRejectionSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("not enough balance / allowance"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	var out map[string]any
	err := c.post(context.Background(), c.booksLimiter, "POST /books", srv.URL+"/books", nil, &out)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, domain.IsRejectedOrder(err))
}
