package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artasov/speechd"
)

func TestAPIClientDefaults(t *testing.T) {
	c := NewAPIClient("", 0)
	assert.Equal(t, "http://127.0.0.1:8787", c.baseURL)
	assert.Equal(t, 10*time.Second, c.client.Timeout)
}

func TestAPIClientIsReachable(t *testing.T) {
	c := NewAPIClient("http://127.0.0.1:1", time.Second)
	assert.False(t, c.IsReachable())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"phase":"idle"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c = NewAPIClient(srv.URL, time.Second)
	assert.True(t, c.IsReachable())
}

func TestAPIClientOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/start":
			_, _ = w.Write([]byte(`{"phase":"running","running":true,"message":"Server started."}`))
		case "/reinstall":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"fetching repository failed","status":{"phase":"error","error":"fetching repository failed"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)

	st, err := c.Op("start")
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, "Server started.", st.Message)

	st, err = c.Op("reinstall")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching repository failed")
	assert.Equal(t, speechd.Phase("error"), st.Phase)
}

func TestAPIClientStatusAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			_, _ = w.Write([]byte(`{"phase":"idle","installed":true}`))
		case "/health":
			_, _ = w.Write([]byte(`{"phase":"running","running":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)

	st, err := c.Status()
	require.NoError(t, err)
	assert.True(t, st.Installed)

	st, err = c.Health()
	require.NoError(t, err)
	assert.True(t, st.Running)
}

func TestAPIClientModelDownloaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/downloaded", r.URL.Path)
		name := r.URL.Query().Get("name")
		require.Equal(t, "Systran/faster-whisper-large-v3", name)
		_, _ = w.Write([]byte(`{"name":"Systran/faster-whisper-large-v3","downloaded":true}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, time.Second)
	downloaded, err := c.ModelDownloaded("Systran/faster-whisper-large-v3")
	require.NoError(t, err)
	assert.True(t, downloaded)
}
