package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGeoIPResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/203.0.113.9", r.URL.Path)
		fmt.Fprint(w, `{"status":"success","country":"Germany","city":"Berlin","regionName":"Berlin","zip":"10115","lat":52.52,"lon":13.405,"isp":"Example ISP","timezone":"Europe/Berlin","proxy":false,"hosting":false}`)
	}))
	defer srv.Close()

	client := NewGeoIPClient(srv.URL, time.Second, testLogger())
	loc := client.Resolve(context.Background(), "203.0.113.9")

	require.NotNil(t, loc)
	assert.Equal(t, "Germany", loc.Country)
	assert.Equal(t, "Berlin", loc.City)
	assert.InDelta(t, 52.52, loc.Latitude, 1e-9)
	assert.False(t, loc.IsVPN)
}

func TestGeoIPMarksProxyAsVPN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","country":"Germany","proxy":true}`)
	}))
	defer srv.Close()

	client := NewGeoIPClient(srv.URL, time.Second, testLogger())
	loc := client.Resolve(context.Background(), "203.0.113.9")

	require.NotNil(t, loc)
	assert.True(t, loc.IsVPN)
}

func TestGeoIPFailuresReturnNil(t *testing.T) {
	t.Run("lookup fails upstream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"fail"}`)
		}))
		defer srv.Close()

		client := NewGeoIPClient(srv.URL, time.Second, testLogger())
		assert.Nil(t, client.Resolve(context.Background(), "203.0.113.9"))
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := NewGeoIPClient(srv.URL, time.Second, testLogger())
		assert.Nil(t, client.Resolve(context.Background(), "203.0.113.9"))
	})

	t.Run("server unreachable", func(t *testing.T) {
		client := NewGeoIPClient("http://127.0.0.1:1", 100*time.Millisecond, testLogger())
		assert.Nil(t, client.Resolve(context.Background(), "203.0.113.9"))
	})
}
