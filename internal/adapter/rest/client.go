package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"townsq/internal/domain/service"
	"townsq/pkg/errors"
	"townsq/pkg/logger"
)

// Client talks to the directory backend over HTTP. It is the source of truth
// for initial loads and the fallback path while the socket is down.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     service.TokenProvider
}

func NewClient(baseURL string, httpClient *http.Client, tokens service.TokenProvider) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Internal("failed to encode request body", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Internal("failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return errors.Unauthorized("failed to resolve session credential", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Unavailable(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Unavailable("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromBody(resp.StatusCode, method, path, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		logger.Warn("REST: malformed payload from %s %s: %v", method, path, err)
		return errors.Internal("malformed response payload", err)
	}
	return nil
}

// unwrapData tolerates both bare payloads and the {success, data} envelope
// some deployments wrap responses in.
func unwrapData(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return raw
}

func (c *Client) errorFromBody(status int, method, path string, raw []byte) error {
	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return errors.New(envelope.Error.Code, envelope.Error.Message, status, nil)
	}
	return errors.FromStatus(status, fmt.Sprintf("%s %s returned %d", method, path, status))
}
