package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"time"
)

// RemoteProvider uploads objects to an HTTP endpoint accepting a multipart
// "file" field and answering {"url": "..."}
type RemoteProvider struct {
	endpoint string
	client   *http.Client
}

// NewRemoteProvider creates a provider posting to endpoint. A nil client gets
// a 30s timeout.
func NewRemoteProvider(endpoint string, client *http.Client) *RemoteProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteProvider{endpoint: endpoint, client: client}
}

func (p *RemoteProvider) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(key)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}
	if err := mw.WriteField("key", key); err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("uploading %s: remote returned %d: %s", key, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("uploading %s: remote returned no url", key)
	}
	return out.URL, nil
}
