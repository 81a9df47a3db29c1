package graph

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/pagepost/internal/pagepost"
)

var dest = pagepost.Destination{ID: "p1", Name: "Page One", Credential: "tok1"}

func writeImage(t *testing.T, name string, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Endpoint: srv.URL, Timeout: 2 * time.Second, UserAgent: "pagepost-test/1"})
}

func TestUploadPhoto_Success(t *testing.T) {
	imgPath := writeImage(t, "cat.png", "PNGDATA")

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/p1/photos", r.URL.Path)
		assert.Equal(t, "pagepost-test/1", r.Header.Get("User-Agent"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "false", r.FormValue("published"))
		assert.Equal(t, "tok1", r.FormValue("access_token"))

		file, header, err := r.FormFile("source")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cat.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		assert.Equal(t, "PNGDATA", string(data))

		w.Write([]byte(`{"id":"m1"}`))
	})

	res := c.UploadPhoto(context.Background(), dest, pagepost.ImageAsset{URI: imgPath})
	require.Equal(t, pagepost.CallOK, res.Kind, "err: %v", res.Err)
	assert.Equal(t, "m1", res.ID)
	assert.JSONEq(t, `{"id":"m1"}`, string(res.Raw))
}

func TestUploadPhoto_ProvidedNameAndType(t *testing.T) {
	imgPath := writeImage(t, "blob", "X")

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("source")
		require.NoError(t, err)
		assert.Equal(t, "holiday.webp", header.Filename)
		assert.Equal(t, "image/webp", header.Header.Get("Content-Type"))
		w.Write([]byte(`{"id":12345}`))
	})

	res := c.UploadPhoto(context.Background(), dest, pagepost.ImageAsset{
		URI:      "file://" + imgPath,
		FileName: "holiday.webp",
		MIMEType: "image/webp",
	})
	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, "12345", res.ID)
}

func TestUploadPhoto_DataFailure(t *testing.T) {
	imgPath := writeImage(t, "a.jpg", "J")

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	})

	res := c.UploadPhoto(context.Background(), dest, pagepost.ImageAsset{URI: imgPath})
	assert.Equal(t, pagepost.CallFailed, res.Kind)
	assert.NoError(t, res.Err)
	assert.Contains(t, string(res.Raw), "Invalid OAuth access token")
}

func TestUploadPhoto_TransportFailures(t *testing.T) {
	imgPath := writeImage(t, "a.jpg", "J")

	t.Run("missing file", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		res := c.UploadPhoto(context.Background(), dest, pagepost.ImageAsset{URI: filepath.Join(t.TempDir(), "nope.jpg")})
		assert.Equal(t, pagepost.CallTransportError, res.Kind)
		assert.Error(t, res.Err)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := New(Config{Endpoint: srv.URL, Timeout: time.Second})
		res := c.UploadPhoto(context.Background(), dest, pagepost.ImageAsset{URI: imgPath})
		assert.Equal(t, pagepost.CallTransportError, res.Kind)
	})

	t.Run("non json body", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>bad gateway</html>"))
		})
		res := c.UploadPhoto(context.Background(), dest, pagepost.ImageAsset{URI: imgPath})
		assert.Equal(t, pagepost.CallTransportError, res.Kind)
		assert.Contains(t, res.Err.Error(), "invalid JSON")
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(srv.Close)
		c := New(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
		res := c.UploadPhoto(context.Background(), dest, pagepost.ImageAsset{URI: imgPath})
		assert.Equal(t, pagepost.CallTransportError, res.Kind)
		assert.Contains(t, res.Err.Error(), "timed out")
	})
}

func TestPublishFeed_AttachedMediaInOrder(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/p1/feed", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Hello", r.FormValue("message"))
		assert.Equal(t, "tok1", r.FormValue("access_token"))
		assert.JSONEq(t, `{"media_fbid":"mA"}`, r.FormValue("attached_media[0]"))
		assert.JSONEq(t, `{"media_fbid":"mC"}`, r.FormValue("attached_media[1]"))
		_, present := r.MultipartForm.Value["attached_media[2]"]
		assert.False(t, present)

		w.Write([]byte(`{"id":"p1_42"}`))
	})

	res := c.PublishFeed(context.Background(), dest, "Hello", []string{"mA", "mC"})
	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, "p1_42", res.ID)
}

func TestPublishFeed_NoMediaAndEmptyCaption(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		values := r.MultipartForm.Value
		assert.Contains(t, values, "message")
		assert.Equal(t, "", r.FormValue("message"))
		for key := range values {
			assert.NotContains(t, key, "attached_media")
		}
		w.Write([]byte(`{"error":"bad token"}`))
	})

	res := c.PublishFeed(context.Background(), dest, "", nil)
	assert.Equal(t, pagepost.CallFailed, res.Kind)
	assert.JSONEq(t, `{"error":"bad token"}`, string(res.Raw))
}

func TestResponseID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"id":"abc"}`, "abc"},
		{`{"id":""}`, ""},
		{`{"id":0}`, ""},
		{`{"id":17841405793187218}`, "17841405793187218"},
		{`{"post_id":"x"}`, ""},
		{`[1,2]`, ""},
		{`"id"`, ""},
		{`null`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, responseID([]byte(tt.raw)), tt.raw)
	}
}
