package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteConfig describes how to reach the retrieval service.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RemoteClient queries an external retrieval service for answers the local
// cache doesn't cover.
type RemoteClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRemoteClient validates the configuration and returns a ready-to-use
// client.
func NewRemoteClient(cfg RemoteConfig) (*RemoteClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("knowledge: base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer   string   `json:"answer"`
	Contexts []string `json:"contexts,omitempty"`
}

// Query asks the retrieval service one question and returns its answer text.
func (c *RemoteClient) Query(ctx context.Context, question string) (string, error) {
	payload, err := json.Marshal(queryRequest{Question: question})
	if err != nil {
		return "", fmt.Errorf("knowledge: failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("knowledge: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("knowledge: query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("knowledge: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("knowledge: query returned status %d", resp.StatusCode)
	}

	var decoded queryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("knowledge: failed to decode response: %w", err)
	}
	return decoded.Answer, nil
}
