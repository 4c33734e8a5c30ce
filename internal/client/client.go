// Package client talks to the pixeldrain API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marianozunino/keeper/internal/model"
)

// maxPageSize caps how much of the viewer page is read
const maxPageSize = 8 << 20

// Client is a pixeldrain API client bound to one API key
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	apiKey     string
}

// NewClient creates a client for baseURL authenticating with apiKey
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		apiKey: apiKey,
	}
}

// ListFiles fetches the account file listing
func (c *Client) ListFiles(ctx context.Context) ([]model.FileRecord, error) {
	const op = "list files"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/user/files", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &HostUnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, &HostUnavailableError{Op: op, StatusCode: resp.StatusCode}
	}

	var list model.FileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}

	records, err := list.Records()
	if err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}

	return records, nil
}

// ViewerPage fetches the public viewer page of a file
func (c *Client) ViewerPage(ctx context.Context, fileID string) (string, error) {
	const op = "get viewer page"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/u/"+url.PathEscape(fileID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &HostUnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HostUnavailableError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", &HostUnavailableError{Op: op, Err: err}
	}

	return string(body), nil
}

// SubmitView posts a view token for a file
func (c *Client) SubmitView(ctx context.Context, fileID, token string) error {
	const op = "submit view"

	form := url.Values{"token": {token}}
	endpoint := c.BaseURL + "/api/file/" + url.PathEscape(fileID) + "/view"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &HostUnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HostUnavailableError{Op: op, StatusCode: resp.StatusCode}
	}

	var result model.ViewResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &ParseError{Op: op, Err: err}
	}

	if !result.Succeeded() {
		if result.Value != "" {
			return fmt.Errorf("%w: %s", ErrViewRejected, result.Value)
		}
		return ErrViewRejected
	}

	return nil
}
