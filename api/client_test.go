package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			assert.Equal(t, "arweave", r.URL.Query().Get("currency"))
			assert.Equal(t, "test", r.Header.Get("X-Client"))
			fmt.Fprint(w, `{"version":"0.2.0"}`)
		case "/account/withdraw":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "arweave", body["currency"])
			w.WriteHeader(http.StatusAccepted)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithHeader("X-Client", "test"))
	ctx := context.Background()

	resp, err := c.Get(ctx, "info", map[string][]string{"currency": {"arweave"}})
	require.NoError(t, err)
	require.NoError(t, CheckAndThrow(resp, "getting info"))

	var info struct{ Version string }
	require.NoError(t, resp.JSON(&info))
	assert.Equal(t, "0.2.0", info.Version)

	resp, err = c.Post(ctx, "/account/withdraw", map[string]string{"currency": "arweave"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NoError(t, CheckAndThrow(resp, "withdrawing", http.StatusAccepted))
	assert.Error(t, CheckAndThrow(resp, "withdrawing"))
}

func TestCheckAndThrowMessage(t *testing.T) {
	err := CheckAndThrow(&Response{StatusCode: 400, Body: []byte("Invalid signature\n")}, "Withdrawing")
	require.Error(t, err)
	assert.Equal(t, "HTTP Error: Withdrawing: 400 Invalid signature", err.Error())
	assert.Equal(t, 400, StatusOf(fmt.Errorf("wrapped: %w", err)))

	err = CheckAndThrow(&Response{StatusCode: 503}, "Getting balance")
	assert.Equal(t, "HTTP Error: Getting balance: 503 Service Unavailable", err.Error())

	assert.Equal(t, 0, StatusOf(io.EOF))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryWait(time.Millisecond, 2*time.Millisecond))
	resp, err := c.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetriesPassesLastResponseThrough(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetries(0))
	resp, err := c.PostBytes(context.Background(), "/tx", "application/json", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAbsoluteURLBypassesBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Path)
	}))
	defer srv.Close()

	c := NewClient("http://127.0.0.1:1")
	resp, err := c.Get(context.Background(), srv.URL+"/price/0", nil)
	require.NoError(t, err)
	assert.Equal(t, "/price/0", resp.Text())
}
