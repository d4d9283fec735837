package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "exports"})
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	payload := "1\thttps://tr.wikipedia.org/wiki/kedi\tKedi\tkedi bir hayvandır\n"
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/exports/o")
		assert.Equal(t, "run/export.tsv", r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), payload)
		assert.Contains(t, string(body), "text/tab-separated-values")
		fmt.Fprintln(w, `{"name":"run/export.tsv","bucket":"exports"}`)
	})
	store := newTestStore(t, handler)

	uri, err := store.PutObject(context.Background(), "run/export.tsv", "text/tab-separated-values", strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "gs://exports/run/export.tsv", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintln(w, `{"error":{"code":403,"message":"denied"}}`)
	})
	store := newTestStore(t, handler)

	_, err := store.PutObject(context.Background(), "x", "", bytes.NewReader([]byte("x")))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.ErrorContains(t, err, "path is required")
}

func TestCheckBucket(t *testing.T) {
	t.Parallel()

	ok := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		assert.Contains(t, r.URL.Path, "/storage/v1/b/exports")
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"name":"exports"}`)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication(), option.WithHTTPClient(&http.Client{Transport: ok}))
	require.NoError(t, err)
	store, err := New(client, Config{Bucket: "exports"})
	require.NoError(t, err)
	require.NoError(t, store.Check(context.Background()))

	missing := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"error":{"code":404,"message":"not found"}}`)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})
	client2, err := storage.NewClient(context.Background(), option.WithoutAuthentication(), option.WithHTTPClient(&http.Client{Transport: missing}))
	require.NoError(t, err)
	store2, err := New(client2, Config{Bucket: "exports"})
	require.NoError(t, err)
	err = store2.Check(context.Background())
	require.ErrorContains(t, err, "attributes")
	require.NoError(t, store.Close())
	require.NoError(t, store2.Close())
}
