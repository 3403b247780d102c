package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Headers sent with every coordinator call.
const (
	HeaderMachineID   = "X-Machine-ID"
	HeaderSDKVersion  = "X-Machine-SDK-Version"
	HeaderSDKLanguage = "X-Machine-SDK-Language"
)

const maxErrorBody = 4 << 10

// StatusError is returned when the coordinator answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("coordinator %s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("coordinator %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsStatus reports whether err is or wraps a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// HTTPClient implements API over HTTP with JSON bodies against a single endpoint.
type HTTPClient struct {
	endpoint   string
	secret     string
	machineID  string
	sdkVersion string
	httpClient *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client. Its timeout must exceed the long-poll wait time.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithSDKVersion sets the value of the X-Machine-SDK-Version header.
func WithSDKVersion(v string) HTTPOption {
	return func(h *HTTPClient) {
		h.sdkVersion = v
	}
}

// NewHTTPClient creates a client addressing endpoint with the given credential and machine identity.
func NewHTTPClient(endpoint, secret, machineID string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		secret:     secret,
		machineID:  machineID,
		sdkVersion: "dev",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMachine registers this machine's tools and returns its cluster.
func (c *HTTPClient) CreateMachine(ctx context.Context, req CreateMachineRequest) (CreateMachineResponse, error) {
	var out CreateMachineResponse
	err := c.do(ctx, http.MethodPost, "/machines", nil, req, &out)
	return out, err
}

// ListJobs long-polls for jobs addressed to req.Tools.
func (c *HTTPClient) ListJobs(ctx context.Context, req ListJobsRequest) ([]Job, error) {
	q := url.Values{}
	q.Set("tools", strings.Join(req.Tools, ","))
	if req.Status != "" {
		q.Set("status", string(req.Status))
	}
	q.Set("acknowledge", strconv.FormatBool(req.Acknowledge))
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	q.Set("waitTime", seconds(req.WaitTime))
	var out []Job
	err := c.do(ctx, http.MethodGet, "/clusters/"+url.PathEscape(req.ClusterID)+"/jobs", q, nil, &out)
	return out, err
}

// CreateJobResult posts the terminal result of a claimed job.
func (c *HTTPClient) CreateJobResult(ctx context.Context, req CreateJobResultRequest) error {
	path := "/clusters/" + url.PathEscape(req.ClusterID) + "/jobs/" + url.PathEscape(req.JobID) + "/result"
	return c.do(ctx, http.MethodPost, path, nil, req, nil)
}

// CreateJob creates a job for req.Tool. The coordinator may wait up to req.WaitTime for it to settle.
func (c *HTTPClient) CreateJob(ctx context.Context, req CreateJobRequest) (JobState, error) {
	q := url.Values{}
	q.Set("waitTime", seconds(req.WaitTime))
	var out JobState
	err := c.do(ctx, http.MethodPost, "/clusters/"+url.PathEscape(req.ClusterID)+"/jobs", q, req, &out)
	return out, err
}

// GetJob returns the current state of a job.
func (c *HTTPClient) GetJob(ctx context.Context, req GetJobRequest) (JobState, error) {
	q := url.Values{}
	q.Set("waitTime", seconds(req.WaitTime))
	var out JobState
	path := "/clusters/" + url.PathEscape(req.ClusterID) + "/jobs/" + url.PathEscape(req.JobID)
	err := c.do(ctx, http.MethodGet, path, q, nil, &out)
	if err == nil && out.ID == "" {
		out.ID = req.JobID
	}
	return out, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set(HeaderMachineID, c.machineID)
	req.Header.Set(HeaderSDKVersion, c.sdkVersion)
	req.Header.Set(HeaderSDKLanguage, "go")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func seconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatInt(int64(d/time.Second), 10)
}
