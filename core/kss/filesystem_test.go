package kss

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilesystem(t *testing.T) (*LocalFilesystem, *mux.Router) {
	router := mux.NewRouter()
	publicURL, err := url.Parse("http://localhost:3000/")
	require.NoError(t, err)
	fs, err := NewLocalFilesystem(router, t.TempDir(), *publicURL, nil)
	require.NoError(t, err)
	return fs, router
}

func serve(router *mux.Router, method, rawURL string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, rawURL, bytes.NewReader(body)))
	return rec
}

func TestUploadAndDownload(t *testing.T) {
	fs, router := newTestFilesystem(t)
	ctx := context.Background()

	putURL, err := fs.GetPreSignedURL(ctx, Put, "user/123/image", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, putURL, "http://localhost:3000"+FilesystemRoute)

	rec := serve(router, http.MethodPut, putURL, []byte("picture"))
	require.Equal(t, http.StatusOK, rec.Code)

	getURL, err := fs.GetPreSignedURL(ctx, Get, "user/123/image", time.Minute)
	require.NoError(t, err)
	rec = serve(router, http.MethodGet, getURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "picture", string(data))
}

func TestSignatureIsBoundToMethod(t *testing.T) {
	fs, router := newTestFilesystem(t)

	getURL, err := fs.GetPreSignedURL(context.Background(), Get, "a", time.Minute)
	require.NoError(t, err)
	rec := serve(router, http.MethodPut, getURL, []byte("x"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTamperedAndExpiredURLs(t *testing.T) {
	fs, router := newTestFilesystem(t)
	ctx := context.Background()

	getURL, err := fs.GetPreSignedURL(ctx, Get, "a", time.Minute)
	require.NoError(t, err)
	u, _ := url.Parse(getURL)
	q := u.Query()
	q.Set("key", "b")
	u.RawQuery = q.Encode()
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, u.String(), nil).Code)

	fs.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredURL, err := fs.GetPreSignedURL(ctx, Get, "a", time.Minute)
	require.NoError(t, err)
	fs.now = time.Now
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, expiredURL, nil).Code)
}

func TestInvalidKeys(t *testing.T) {
	fs, _ := newTestFilesystem(t)
	ctx := context.Background()
	_, err := fs.GetPreSignedURL(ctx, Get, "../etc/passwd", time.Minute)
	assert.Error(t, err)
	_, err = fs.GetPreSignedURL(ctx, Get, "", time.Minute)
	assert.Error(t, err)
	_, err = fs.GetPreSignedURL(ctx, Method("DELETE"), "a", time.Minute)
	assert.Error(t, err)
	assert.Error(t, fs.Delete(ctx, "../a"))
}

func TestDelete(t *testing.T) {
	fs, router := newTestFilesystem(t)
	ctx := context.Background()
	for _, key := range []string{"user/1/image", "user/2/image"} {
		putURL, err := fs.GetPreSignedURL(ctx, Put, key, time.Minute)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, serve(router, http.MethodPut, putURL, []byte(key)).Code)
	}

	require.NoError(t, fs.Delete(ctx, "user/1/image"))
	require.NoError(t, fs.Delete(ctx, "user/1/image"))

	_, err := os.Stat(filepath.Join(fs.baseFolder, "user", "1", "image"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fs.filePath("user/2/image"))
	assert.NoError(t, err)

	getURL, err := fs.GetPreSignedURL(ctx, Get, "user/1/image", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, getURL, nil).Code)
}

func TestNewSelectsDriver(t *testing.T) {
	d, err := New(Configuration{DriverType: None}, mux.NewRouter())
	assert.NoError(t, err)
	assert.Nil(t, d)

	_, err = New(Configuration{DriverType: DriverTypeLocal}, mux.NewRouter())
	assert.Error(t, err)

	d, err = New(Configuration{
		DriverType:         DriverTypeLocal,
		LocalConfiguration: &LocalConfiguration{BasePath: t.TempDir(), PublicURL: "http://localhost:3000"},
	}, mux.NewRouter())
	assert.NoError(t, err)
	assert.IsType(t, &LocalFilesystem{}, d)

	_, err = New(Configuration{DriverType: "FTP"}, mux.NewRouter())
	assert.Error(t, err)
}
