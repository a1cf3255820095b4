package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostURLSetsJOSEHeaders(t *testing.T) {
	var gotContentType, gotUserAgent string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotUserAgent = r.Header.Get("User-Agent")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New("")
	require.NoError(t, err)

	resp, err := client.PostURL(context.Background(), srv.URL, []byte(`{"protected":""}`))
	require.NoError(t, err)

	assert.Equal(t, "application/jose+json", gotContentType)
	assert.Contains(t, gotUserAgent, "certflow")
	assert.Equal(t, `{"protected":""}`, string(gotBody))
	assert.Equal(t, http.StatusOK, resp.Response.StatusCode)
}

func TestGetURLReadsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"newNonce":"x"}`))
	}))
	defer srv.Close()

	client, err := New("")
	require.NoError(t, err)

	resp, err := client.GetURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"newNonce":"x"}`, string(resp.RespBody))
	assert.NotEmpty(t, resp.ReqDump)
}

func TestHeadURLHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.HeadURL(ctx, srv.URL)
	assert.Error(t, err)
}

func TestNewWithMissingCABundle(t *testing.T) {
	_, err := New("/does/not/exist.pem")
	assert.Error(t, err)
}
