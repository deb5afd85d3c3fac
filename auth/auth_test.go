package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, expiresIn int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"token%d","token_type":"bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTokenIsCached(t *testing.T) {
	srv, calls := tokenServer(t, 3600)
	c := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token1", tok)
	tok, err = c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token1", tok)
	assert.EqualValues(t, 1, calls.Load())

	tok, err = c.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token2", tok)
}

func TestTokenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()
	_, err := NewClientCred(Conf{ClientID: "id", TokenURL: srv.URL}).Token(context.Background())
	assert.Error(t, err)
}

func TestConfEnabled(t *testing.T) {
	assert.False(t, Conf{}.Enabled())
	assert.True(t, Conf{TokenURL: "https://idp/token"}.Enabled())
}
