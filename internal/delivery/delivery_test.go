package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crashfeed/reporter/internal/service/models/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_Success(t *testing.T) {
	var gotBody string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(body)
		gotKey = r.Header.Get("X-ApiKey")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient()
	ok := c.Send(context.Background(), `{"error":"boom"}`, report.Destination{
		Endpoint: srv.URL,
		APIKey:   "key-1",
	})

	assert.True(t, ok)
	assert.Equal(t, `{"error":"boom"}`, gotBody)
	assert.Equal(t, "key-1", gotKey)
}

func TestSend_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{name: "ok", status: http.StatusOK, want: true},
		{name: "bad request", status: http.StatusBadRequest, want: false},
		{name: "unauthorized", status: http.StatusUnauthorized, want: false},
		{name: "server error", status: http.StatusInternalServerError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient()
			ok := c.Send(context.Background(), "{}", report.Destination{Endpoint: srv.URL})
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestSend_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	c := NewClient()
	ok := c.Send(context.Background(), "{}", report.Destination{Endpoint: srv.URL})
	assert.False(t, ok)
}

func TestSend_InvalidEndpoint(t *testing.T) {
	c := NewClient()
	ok := c.Send(context.Background(), "{}", report.Destination{Endpoint: "://not-a-url"})
	assert.False(t, ok)
}
