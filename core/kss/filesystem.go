package kss

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core/logger"
)

// FilesystemRoute is the route which serves pre-signed requests of the local filesystem driver
const FilesystemRoute = "/kss/filesystem"

// maxUploadSize limits uploads through pre-signed URLs
const maxUploadSize = 20 * 1024 * 1024

// LocalFilesystem is a driver which stores files in a local folder
type LocalFilesystem struct {
	baseFolder string
	publicURL  url.URL
	privateKey *rsa.PrivateKey
	now        func() time.Time
}

// NewLocalFilesystem returns a new LocalFilesystem and adds its route to the router
func NewLocalFilesystem(router *mux.Router, baseFolder string, publicURL url.URL, privateKey *rsa.PrivateKey) (*LocalFilesystem, error) {
	if privateKey == nil {
		logger.Default().Warn("No private key provided to sign URLs, a random one will be generated")
		logger.Default().Warn("This can only work when running in a single instance configuration")
		var err error
		privateKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(baseFolder, 0700); err != nil {
		return nil, fmt.Errorf("cannot create base folder: %w", err)
	}
	f := &LocalFilesystem{baseFolder: baseFolder, publicURL: publicURL, privateKey: privateKey, now: time.Now}
	logger.Default().Debugln("  handle filesystem route:", FilesystemRoute, "GET,PUT")
	router.HandleFunc(FilesystemRoute, f.handler).Methods(http.MethodOptions, http.MethodGet, http.MethodPut)
	return f, nil
}

func (f *LocalFilesystem) filePath(key string) string {
	return filepath.Join(f.baseFolder, filepath.FromSlash(key), "file")
}

func (f *LocalFilesystem) handler(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	v := r.URL.Query()
	key := v.Get("key")
	if !f.isValid(v) {
		rlog.Errorf("invalid signature for key '%s'", key)
		http.Error(w, "not authorized", http.StatusForbidden)
		return
	}
	if r.Method != v.Get("method") {
		rlog.Errorf("Signature valid for %s, but was used for %s", v.Get("method"), r.Method)
		http.Error(w, "not authorized", http.StatusForbidden)
		return
	}

	filePath := f.filePath(key)
	rlog.Infof("Filesystem: [%s] key: '%s'", r.Method, key)
	switch r.Method {
	case http.MethodGet:
		if _, err := os.Stat(filePath); err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, filePath)
	case http.MethodPut:
		if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
			rlog.WithError(err).Errorf("Error 1202: Could not create folder for key: '%s'", key)
			http.Error(w, "Error 1202", http.StatusInternalServerError)
			return
		}
		dstFile, err := os.Create(filePath)
		if err != nil {
			rlog.WithError(err).Errorf("Error 1203: Could not create file for key: '%s'", key)
			http.Error(w, "Error 1203", http.StatusInternalServerError)
			return
		}
		defer dstFile.Close()
		if _, err = io.Copy(dstFile, http.MaxBytesReader(w, r.Body, maxUploadSize)); err != nil {
			rlog.WithError(err).Errorf("Error 1204: Could not write file for key: '%s'", key)
			http.Error(w, "Error 1204", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Delete deletes the key file
func (f *LocalFilesystem) Delete(ctx context.Context, key string) error {
	if strings.Contains(key, "..") {
		return fmt.Errorf("'..' is not allowed in a key")
	}
	return os.RemoveAll(filepath.Join(f.baseFolder, filepath.FromSlash(key)))
}

func signingPayload(method, key, expiry string) []byte {
	hashed := sha256.Sum256([]byte(method + "\n" + key + "\n" + expiry))
	return hashed[:]
}

// GetPreSignedURL returns a pre-signed URL that can be used with the given method until expiry time is passed
// key must be a valid file name
func (f *LocalFilesystem) GetPreSignedURL(ctx context.Context, method Method, key string, expireIn time.Duration) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key '%s'", key)
	}
	if method != Get && method != Put {
		return "", fmt.Errorf("%s unsupported method to presign '%s'", method, key)
	}
	expiry := f.now().Add(expireIn).UTC().Format(time.RFC3339Nano)
	signature, err := rsa.SignPKCS1v15(rand.Reader, f.privateKey, crypto.SHA256, signingPayload(string(method), key, expiry))
	if err != nil {
		return "", err
	}

	v := url.Values{}
	v.Set("key", key)
	v.Set("expiry", expiry)
	v.Set("method", string(method))
	v.Set("signature", base64.RawURLEncoding.EncodeToString(signature))
	u := url.URL{
		Scheme:   f.publicURL.Scheme,
		Host:     f.publicURL.Host,
		Path:     strings.TrimSuffix(f.publicURL.Path, "/") + FilesystemRoute,
		RawQuery: v.Encode(),
	}
	return u.String(), nil
}

// isValid tells whether or not the signed query is valid and not expired
func (f *LocalFilesystem) isValid(v url.Values) bool {
	key := v.Get("key")
	if key == "" || strings.Contains(key, "..") {
		return false
	}
	expiry := v.Get("expiry")
	t, err := time.Parse(time.RFC3339Nano, expiry)
	if err != nil || t.Before(f.now()) {
		return false
	}
	signature, err := base64.RawURLEncoding.DecodeString(v.Get("signature"))
	if err != nil {
		return false
	}
	err = rsa.VerifyPKCS1v15(&f.privateKey.PublicKey, crypto.SHA256, signingPayload(v.Get("method"), key, expiry), signature)
	return err == nil
}
