package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inventory-sync/core/staged"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateStagedUpload(t *testing.T) {
	srv, seen := graphQLServer(t, func(r recordedRequest) (int, string) {
		return http.StatusOK, `{"data":{"stagedUploadsCreate":{"stagedTargets":[{
			"url":"https://uploads.example.com/",
			"resourceUrl":null,
			"parameters":[{"name":"Content-Type","value":"text/jsonl"},{"name":"key","value":"tmp/21/bulk/abc/inventory.jsonl"},{"name":"policy","value":"xyz"}]
		}],"userErrors":[]}}}`
	})

	target, err := newTestClient(srv).CreateStagedUpload(context.Background(), staged.Request{
		Filename:   "inventory.jsonl",
		MimeType:   "text/jsonl",
		HTTPMethod: "POST",
		Resource:   "BULK_MUTATION_VARIABLES",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://uploads.example.com/", target.URL)
	assert.Equal(t, "tmp/21/bulk/abc/inventory.jsonl", target.ResourceKey)
	assert.Len(t, target.Parameters, 3)

	input := seen.all()[0].Variables["input"].([]any)[0].(map[string]any)
	assert.Equal(t, "BULK_MUTATION_VARIABLES", input["resource"])
	assert.Equal(t, "inventory.jsonl", input["filename"])
}

func TestClient_CreateStagedUploadErrors(t *testing.T) {
	t.Run("UserErrors", func(t *testing.T) {
		srv, _ := graphQLServer(t, func(r recordedRequest) (int, string) {
			return http.StatusOK, `{"data":{"stagedUploadsCreate":{"stagedTargets":[],"userErrors":[{"field":["input"],"message":"invalid mime type"}]}}}`
		})
		_, err := newTestClient(srv).CreateStagedUpload(context.Background(), staged.Request{})
		var ue *UserErrors
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, []string{"invalid mime type"}, ue.Messages)
	})

	t.Run("NoTarget", func(t *testing.T) {
		srv, _ := graphQLServer(t, func(r recordedRequest) (int, string) {
			return http.StatusOK, `{"data":{"stagedUploadsCreate":{"stagedTargets":[],"userErrors":[]}}}`
		})
		_, err := newTestClient(srv).CreateStagedUpload(context.Background(), staged.Request{})
		assert.ErrorIs(t, err, errNoTarget)
	})
}

type capturedUpload struct {
	fields   map[string]string
	filename string
	content  []byte
}

func TestClient_Upload(t *testing.T) {
	captured := make(chan capturedUpload, 1)
	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		got := capturedUpload{fields: map[string]string{}}
		for k, v := range r.MultipartForm.Value {
			got.fields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		got.filename = hdr.Filename
		got.content, _ = io.ReadAll(f)
		captured <- got
		w.WriteHeader(http.StatusCreated)
	}))
	defer upload.Close()

	c := NewClient(Config{Endpoint: upload.URL})
	target := &staged.Target{
		URL:         upload.URL,
		ResourceKey: "tmp/1/file.jsonl",
		Parameters:  []staged.Parameter{{Name: "key", Value: "tmp/1/file.jsonl"}, {Name: "policy", Value: "p"}},
	}

	err := c.Upload(context.Background(), target, "file.jsonl", []byte("{\"input\":{}}\n"))
	require.NoError(t, err)

	got := <-captured
	assert.Equal(t, map[string]string{"key": "tmp/1/file.jsonl", "policy": "p"}, got.fields)
	assert.Equal(t, "file.jsonl", got.filename)
	assert.Equal(t, "{\"input\":{}}\n", string(got.content))
}

func TestClient_UploadRejected(t *testing.T) {
	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<Error><Code>AccessDenied</Code></Error>", http.StatusForbidden)
	}))
	defer upload.Close()

	err := NewClient(Config{}).Upload(context.Background(), &staged.Target{URL: upload.URL}, "f.jsonl", []byte("x"))
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.Contains(t, httpErr.Message, "AccessDenied")
}

func TestClient_UploadBoundedByTransferTimeout(t *testing.T) {
	release := make(chan struct{})
	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer upload.Close()
	defer close(release)

	c := NewClient(Config{Endpoint: upload.URL, TransferTimeoutSeconds: 1})

	done := make(chan error, 1)
	go func() {
		done <- c.Upload(context.Background(), &staged.Target{URL: upload.URL}, "f.jsonl", []byte("x"))
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upload payload")
	case <-time.After(5 * time.Second):
		t.Fatal("upload not bounded by the transfer timeout")
	}
}
