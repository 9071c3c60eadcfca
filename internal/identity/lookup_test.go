package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupClient_Fetch(t *testing.T) {
	t.Run("success returns both fields", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "XYZ", r.URL.Query().Get(TokenParam))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"contactId":"C1","email":"u@x.com"}`))
		}))
		defer srv.Close()

		id, err := NewLookupClient(srv.URL).Fetch(context.Background(), "XYZ")
		require.NoError(t, err)
		assert.Equal(t, Identity{VisitorID: "C1", Email: "u@x.com"}, id)
	})

	t.Run("non-2xx status fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewLookupClient(srv.URL).Fetch(context.Background(), "XYZ")
		assert.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("missing email fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"contactId":"C1"}`))
		}))
		defer srv.Close()

		_, err := NewLookupClient(srv.URL).Fetch(context.Background(), "XYZ")
		assert.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("malformed body fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		_, err := NewLookupClient(srv.URL).Fetch(context.Background(), "XYZ")
		assert.ErrorIs(t, err, ErrLookupFailed)
	})
}
