// Package api is the HTTP boundary to the remote server: authentication,
// form downloads, and datapoint push/pull. Transient GET failures are
// retried with backoff; authentication failures never are.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/akvo/dws-datapro-sub000/internal/common"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
)

const (
	defaultTimeout    = 30 * time.Second
	retryBase         = 500 * time.Millisecond
	retryMaxAttempts  = 3
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
)

type Client struct {
	baseURL string
	http    *http.Client
	token   string
	logger  logging.Logger
}

func NewClient(baseURL string, logger logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// SetToken installs the sync credential sent on authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

// AuthResponse is the enrollment payload issued for a valid passcode.
type AuthResponse struct {
	Name    string `json:"name"`
	Token   string `json:"syncToken"`
	Formats []struct {
		ID      int64  `json:"id"`
		Version string `json:"version"`
		URL     string `json:"url"`
	} `json:"formsUrl"`
}

// Authenticate exchanges the enrollment passcode for a sync token and the
// list of forms assigned to the device. Rejected codes surface as
// ErrorUnauthorized and are never retried.
func (c *Client) Authenticate(ctx context.Context, code string) (*AuthResponse, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set(contentTypeHeader, contentTypeJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorOffline, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("authentication rejected (%d): %w", resp.StatusCode, common.ErrorUnauthorized)
	default:
		return nil, fmt.Errorf("auth endpoint returned %d: %w", resp.StatusCode, common.ErrorInternal)
	}

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	return &auth, nil
}

// FetchForm downloads a form definition. formURL may be absolute (as served
// in the auth response) or a path relative to the base URL.
func (c *Client) FetchForm(ctx context.Context, formURL string) (string, error) {
	data, err := c.getWithRetry(ctx, c.resolve(formURL))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DatapointPage is one page of the server's monitoring datapoint listing.
type DatapointPage struct {
	Data []DatapointRef `json:"data"`
	// TotalPage and Current drive pagination.
	TotalPage int `json:"total_page"`
	Current   int `json:"current"`
}

// DatapointRef points at one downloadable monitoring datapoint.
type DatapointRef struct {
	FormID int64  `json:"form_id"`
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// DatapointList fetches one page of the datapoint listing.
func (c *Client) DatapointList(ctx context.Context, page int) (*DatapointPage, error) {
	u := c.baseURL + "/datapoint-list?page=" + strconv.Itoa(page)
	data, err := c.getWithRetry(ctx, u)
	if err != nil {
		return nil, err
	}
	var result DatapointPage
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode datapoint list: %w", err)
	}
	return &result, nil
}

// RemoteDatapoint is a downloaded monitoring datapoint body.
type RemoteDatapoint struct {
	UUID        string         `json:"uuid"`
	Name        string         `json:"datapoint_name"`
	Geolocation string         `json:"geolocation"`
	Answers     map[string]any `json:"answers"`
}

// DownloadDatapoint fetches one monitoring datapoint from its listing URL.
func (c *Client) DownloadDatapoint(ctx context.Context, dpURL string) (*RemoteDatapoint, error) {
	data, err := c.getWithRetry(ctx, c.resolve(dpURL))
	if err != nil {
		return nil, err
	}
	var result RemoteDatapoint
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode datapoint: %w", err)
	}
	return &result, nil
}

// Submission is a completed datapoint payload pushed to the server.
type Submission struct {
	FormID    int64          `json:"formId"`
	Name      string         `json:"name"`
	Geo       string         `json:"geo,omitempty"`
	Duration  float64        `json:"duration"`
	Submitter string         `json:"submitter,omitempty"`
	UUID      string         `json:"uuid"`
	Answers   map[string]any `json:"answers"`
}

// UploadSubmission pushes one submission. The uuid inside the payload is
// the idempotency key, so a retried upload of an already-accepted record is
// safe.
func (c *Client) UploadSubmission(ctx context.Context, s *Submission) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(contentTypeHeader, contentTypeJSON)
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorOffline, err)
	}
	defer resp.Body.Close()
	return c.checkStatus(resp)
}

// DownloadFile streams an auxiliary file (cascade lookup databases) to w.
func (c *Client) DownloadFile(ctx context.Context, fileURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(fileURL), nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorOffline, err)
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	return nil
}

// getWithRetry performs a GET, retrying transient failures (connectivity
// loss, 5xx) with exponential backoff. Auth failures abort immediately.
func (c *Client) getWithRetry(ctx context.Context, u string) ([]byte, error) {
	var data []byte
	backoff := retry.WithMaxRetries(retryMaxAttempts, retry.NewExponential(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		c.authorize(req)
		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrorOffline, err))
		}
		defer resp.Body.Close()
		if err := c.checkStatus(resp); err != nil {
			if resp.StatusCode >= http.StatusInternalServerError {
				return retry.RetryableError(err)
			}
			return err
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set(common.SyncTokenHeaderName, "Bearer "+c.token)
	}
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("request rejected (%d): %w", resp.StatusCode, common.ErrorUnauthorized)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("server error (%d): %w", resp.StatusCode, common.ErrorInternal)
	default:
		return fmt.Errorf("unexpected status %d: %w", resp.StatusCode, common.ErrorInternal)
	}
}

func (c *Client) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err == nil && u.IsAbs() {
		return ref
	}
	if len(ref) > 0 && ref[0] != '/' {
		ref = "/" + ref
	}
	return c.baseURL + ref
}
