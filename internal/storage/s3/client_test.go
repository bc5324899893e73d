package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"drive-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deleteResultOK = `<?xml version="1.0" encoding="UTF-8"?>
<DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></DeleteResult>`

const deleteResultPartial = `<?xml version="1.0" encoding="UTF-8"?>
<DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Error><Key>owner/b</Key><Code>AccessDenied</Code><Message>Access Denied</Message></Error>
</DeleteResult>`

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()

	client, err := NewClient(&config.BlobConfig{
		Backend:         config.BlobBackendS3,
		Bucket:          "drive",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		ForcePathStyle:  true,
	})
	require.NoError(t, err)
	return client
}

func TestSignedDownloadURL(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:9000")

	url, err := client.SignedDownloadURL(context.Background(), "owner/abc", 10*time.Minute)

	require.NoError(t, err)
	assert.Contains(t, url, "/drive/owner/abc")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=600")
}

func TestRemoveMany_SplitsIntoBatches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if r.Method == http.MethodPost && r.URL.Query().Has("delete") {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(deleteResultOK))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = fmt.Sprintf("owner/%d", i)
	}

	require.NoError(t, client.RemoveMany(context.Background(), keys))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoveMany_EmptyIsNoop(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	require.NoError(t, client.RemoveMany(context.Background(), nil))
	assert.Zero(t, calls.Load())
}

func TestRemoveMany_PerKeyErrorFailsCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(deleteResultPartial))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.RemoveMany(context.Background(), []string{"owner/a", "owner/b"})

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "owner/b"))
}
