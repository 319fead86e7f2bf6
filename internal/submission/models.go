package submission

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultErrorMessage is reported when the remote side gives no usable
// error text.
const DefaultErrorMessage = "An error occurred while contacting the registration service. Please try again."

// Outcome is the result of submitting one record.
type Outcome struct {
	Name        string `json:"name"`
	HasError    bool   `json:"hasError"`
	ErrorDetail string `json:"errorDetail,omitempty"`
	Message     string `json:"message,omitempty"`
}

func succeeded(name, message string) Outcome {
	return Outcome{Name: name, Message: message}
}

func failed(name, detail string) Outcome {
	if strings.TrimSpace(detail) == "" {
		detail = DefaultErrorMessage
	}
	return Outcome{Name: name, HasError: true, ErrorDetail: detail}
}

// RevertResult is the result of the compensating revert call.
type RevertResult struct {
	Names       []string `json:"names"`
	HasError    bool     `json:"hasError"`
	ErrorDetail string   `json:"errorDetail,omitempty"`
}

// BatchResult summarises one SubmitBatch call. Failed is true when any
// outcome failed or the batch was interrupted; Revert is set only when a
// revert was issued.
type BatchResult struct {
	BatchID   string        `json:"batchId"`
	Outcomes  []Outcome     `json:"outcomes"`
	Attempted []string      `json:"attempted"`
	Skipped   []string      `json:"skipped,omitempty"`
	Failed    bool          `json:"failed"`
	Revert    *RevertResult `json:"revert,omitempty"`
}

// Committed returns the names the remote side keeps: every attempted record
// of a clean batch, none otherwise.
func (b BatchResult) Committed() []string {
	if b.Failed {
		return nil
	}
	return append([]string(nil), b.Attempted...)
}

// FailedNames returns the records whose own submission failed.
func (b BatchResult) FailedNames() []string {
	var names []string
	for _, o := range b.Outcomes {
		if o.HasError {
			names = append(names, o.Name)
		}
	}
	return names
}

// checkMetadata is the "check" part of the multipart upload.
type checkMetadata struct {
	Name      string `json:"name"`
	ScanDate  string `json:"scanDate"`
	Code      string `json:"code"`
	Date      string `json:"date"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	AppID     string `json:"appId"`
	IP        string `json:"ip"`
}

// APIError is the error payload of the registration service.
type APIError struct {
	Status         int             `json:"status"`
	Error          string          `json:"error"`
	Message        string          `json:"message"`
	MessageDetails string          `json:"messageDetails"`
	Errors         json.RawMessage `json:"errors,omitempty"`
}

// parseAPIError decodes body leniently; an unparseable body yields a bare
// APIError carrying only the status.
func parseAPIError(status int, body []byte) APIError {
	apiErr := APIError{}
	if len(strings.TrimSpace(string(body))) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	apiErr.Status = status
	return apiErr
}

// errorDetail picks the parsed message, then the raw body, then the default.
func errorDetail(apiErr APIError, body []byte) string {
	if msg := strings.TrimSpace(apiErr.Message); msg != "" {
		return msg
	}
	if raw := strings.TrimSpace(string(body)); raw != "" {
		return raw
	}
	return DefaultErrorMessage
}

// ScannedItem is a check already registered remotely.
type ScannedItem struct {
	Code      string      `json:"cmc"`
	Recipient string      `json:"recipient"`
	Amount    json.Number `json:"amount"`
	// Date and CreatedAt are epoch milliseconds.
	Date      int64 `json:"date"`
	CreatedAt int64 `json:"createdAt"`
	Validated bool  `json:"validated"`
	Rejected  bool  `json:"rejected"`
}

// Status is the review state of the item.
func (i ScannedItem) Status() string {
	switch {
	case i.Validated:
		return "validated"
	case i.Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

func (i ScannedItem) DateTime() time.Time {
	return time.UnixMilli(i.Date).UTC()
}

func (i ScannedItem) CreatedTime() time.Time {
	return time.UnixMilli(i.CreatedAt).UTC()
}

// Page is one page of ListScanned.
type Page struct {
	TotalPages    int           `json:"totalPages"`
	TotalElements int64         `json:"totalElements"`
	Items         []ScannedItem `json:"operations"`
}
