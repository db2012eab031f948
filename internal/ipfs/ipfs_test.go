package ipfs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadImageMockPrefix(t *testing.T) {
	c := NewClient("key", "secret")

	cid, err := c.UploadImage(context.Background(), "test:whatever")
	require.NoError(t, err)
	assert.Equal(t, "mock_cid", cid)
}

func TestUploadImageRejectsBadBase64(t *testing.T) {
	c := NewClient("key", "secret")

	_, err := c.UploadImage(context.Background(), "%%%not-base64%%%")
	assert.Error(t, err)
}

func TestUploadImagePinsToPinata(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff, 0xe0}
	encoded := base64.StdEncoding.EncodeToString(raw)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
		assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		got, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, raw, got)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.FormValue("pinataMetadata"))

		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "QmTestHash"})
	}))
	defer srv.Close()

	c := NewClient("key", "secret")
	c.baseURL = srv.URL

	cid, err := c.UploadImage(context.Background(), "data:image/jpeg;base64,"+encoded)
	require.NoError(t, err)
	assert.Equal(t, "QmTestHash", cid)
}

func TestUploadImageSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("key", "secret")
	c.baseURL = srv.URL

	encoded := base64.StdEncoding.EncodeToString([]byte("img"))
	_, err := c.UploadImage(context.Background(), encoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinata API error")
}
