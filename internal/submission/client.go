package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"checkscan/internal/check"
	"checkscan/internal/signing"
	"checkscan/internal/station"
	dErrors "checkscan/pkg/domain-errors"
)

const (
	checkPart = "check"
	filesPart = "files"

	// maxResponseBytes bounds how much of a response body is kept.
	maxResponseBytes = 1 << 20
)

// Client speaks the registration service protocol. It is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	saveURL    string
	revertURL  string
	pageSize   int
	identity   station.Identity
	logger     *slog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithIdentity sets the appId and ip sent with every check.
func WithIdentity(id station.Identity) ClientOption {
	return func(cl *Client) {
		cl.identity = id
	}
}

func WithPageSize(n int) ClientOption {
	return func(cl *Client) {
		if n > 0 {
			cl.pageSize = n
		}
	}
}

// NewClient returns a Client posting checks to saveURL and reverts to
// revertURL.
func NewClient(saveURL, revertURL string, opts ...ClientOption) (*Client, error) {
	if saveURL == "" || revertURL == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "scanned items and revert urls are required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		saveURL:    saveURL,
		revertURL:  revertURL,
		pageSize:   20,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SaveCheck uploads one record as multipart form data. Every failure,
// including signing and transport errors, is reported in the Outcome.
func (c *Client) SaveCheck(ctx context.Context, signer *signing.Signer, record check.Record) Outcome {
	body, contentType, err := c.multipartBody(record)
	if err != nil {
		return failed(record.Name, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.saveURL, body)
	if err != nil {
		return failed(record.Name, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	// The digest of an upload covers method, uri and timestamp only.
	if err := signer.Apply(req, ""); err != nil {
		return failed(record.Name, fmt.Sprintf("sign request: %v", err))
	}

	status, respBody, err := c.do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "check upload failed", "group", record.Name, "error", err)
		return failed(record.Name, err.Error())
	}
	if isSuccess(status, respBody) {
		return succeeded(record.Name, strings.TrimSpace(string(respBody)))
	}

	apiErr := parseAPIError(status, respBody)
	c.logger.ErrorContext(ctx, "check rejected",
		"group", record.Name,
		"status", status,
		"error", apiErr.Error,
		"message", apiErr.Message,
	)
	return failed(record.Name, errorDetail(apiErr, respBody))
}

// Revert asks the service to roll back the named records. Success is 204.
func (c *Client) Revert(ctx context.Context, signer *signing.Signer, names []string) RevertResult {
	result := RevertResult{Names: append([]string{}, names...)}

	payload, err := json.Marshal(result.Names)
	if err != nil {
		return result.failed(err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.revertURL, bytes.NewReader(payload))
	if err != nil {
		return result.failed(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if err := signer.Apply(req, string(payload)); err != nil {
		return result.failed(fmt.Sprintf("sign request: %v", err))
	}

	status, respBody, err := c.do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "revert failed", "error", err)
		return result.failed(err.Error())
	}
	if status == http.StatusNoContent {
		return result
	}
	apiErr := parseAPIError(status, respBody)
	c.logger.ErrorContext(ctx, "revert rejected", "status", status, "error", apiErr.Error, "message", apiErr.Message)
	return result.failed(errorDetail(apiErr, respBody))
}

func (r RevertResult) failed(detail string) RevertResult {
	if strings.TrimSpace(detail) == "" {
		detail = DefaultErrorMessage
	}
	r.HasError = true
	r.ErrorDetail = detail
	return r
}

// ListScanned fetches one page of the checks registered by this station.
func (c *Client) ListScanned(ctx context.Context, signer *signing.Signer, page int) (Page, error) {
	if page < 0 {
		return Page{}, dErrors.New(dErrors.CodeInvalidInput, "page must not be negative")
	}
	uri := fmt.Sprintf("%s?pageNumber=%d&pageSize=%d", c.saveURL, page, c.pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build list request: %w", err)
	}
	if err := signer.Apply(req, ""); err != nil {
		return Page{}, fmt.Errorf("sign list request: %w", err)
	}

	status, respBody, err := c.do(req)
	if err != nil {
		return Page{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "registration service unreachable")
	}
	if status != http.StatusOK {
		apiErr := parseAPIError(status, respBody)
		c.logger.ErrorContext(ctx, "list scanned items failed", "status", status, "message", apiErr.Message)
		return Page{}, dErrors.New(dErrors.CodeUnavailable, errorDetail(apiErr, respBody))
	}

	var p Page
	if err := json.Unmarshal(respBody, &p); err != nil {
		return Page{}, fmt.Errorf("decode scanned items: %w", err)
	}
	if p.Items == nil {
		p.Items = []ScannedItem{}
	}
	return p, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) multipartBody(record check.Record) (io.Reader, string, error) {
	meta := checkMetadata{
		Name:      record.Name,
		ScanDate:  record.ScanTimestamp.Format(signing.TimestampLayout),
		Code:      record.MachineCode,
		Recipient: record.Recipient,
		Amount:    record.Amount,
		AppID:     c.identity.AppID,
		IP:        c.identity.IP,
	}
	if record.CaptureDate != nil {
		meta.Date = record.CaptureDate.Format(time.DateOnly)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("encode check metadata: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField(checkPart, string(metaJSON)); err != nil {
		return nil, "", fmt.Errorf("write check part: %w", err)
	}
	for _, path := range record.Group.Files() {
		if err := addFile(w, path); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func addFile(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open scan file: %w", err)
	}
	defer f.Close()
	part, err := w.CreateFormFile(filesPart, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy scan file: %w", err)
	}
	return nil
}

// isSuccess is a 2xx status whose body carries no error field.
func isSuccess(status int, body []byte) bool {
	if status < 200 || status > 299 {
		return false
	}
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return true
	}
	switch strings.TrimSpace(string(probe.Error)) {
	case "", "null", `""`, "false":
		return true
	}
	return false
}
