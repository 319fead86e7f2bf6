package httptransport

import (
	"strings"
	"time"

	"checkscan/internal/audit"
	"checkscan/internal/check"
	"checkscan/internal/pipeline"
	"checkscan/internal/signing"
	dErrors "checkscan/pkg/domain-errors"
)

// SessionRequest carries the credentials issued by the external auth flow.
type SessionRequest struct {
	Token     string     `json:"token"`
	Secret    string     `json:"secret"`
	Algorithm string     `json:"algorithm"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (r SessionRequest) toContext() signing.Context {
	sc := signing.Context{Token: r.Token, Secret: r.Secret, Algorithm: r.Algorithm}
	if r.ExpiresAt != nil {
		sc.Expiry = *r.ExpiresAt
	}
	return sc
}

type SessionResponse struct {
	Active bool `json:"active"`
}

// EditRequest updates the operator fields of a record. A null or absent
// field is left alone; an empty captureDate clears it.
type EditRequest struct {
	CaptureDate *string `json:"captureDate"`
	Recipient   *string `json:"recipient"`
	Amount      *string `json:"amount"`
	MachineCode *string `json:"machineCode"`
}

func (r EditRequest) toEdit(loc *time.Location) (check.Edit, error) {
	edit := check.Edit{
		Recipient:   r.Recipient,
		Amount:      r.Amount,
		MachineCode: r.MachineCode,
	}
	if r.CaptureDate != nil {
		v := strings.TrimSpace(*r.CaptureDate)
		if v == "" {
			edit.ClearCaptureDate = true
			return edit, nil
		}
		d, err := time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			return check.Edit{}, dErrors.New(dErrors.CodeInvalidInput, "captureDate must be YYYY-MM-DD")
		}
		edit.CaptureDate = &d
	}
	return edit, nil
}

// NamesRequest selects records by name.
type NamesRequest struct {
	Names []string `json:"names"`
}

type FilesResponse struct {
	Disposition string `json:"disposition"`
	Recto       string `json:"recto"`
	Verso       string `json:"verso"`
}

type RecordResponse struct {
	Name          string        `json:"name"`
	ScanTimestamp time.Time     `json:"scanTimestamp"`
	MachineCode   string        `json:"machineCode"`
	CaptureDate   *string       `json:"captureDate"`
	Recipient     string        `json:"recipient"`
	Amount        string        `json:"amount"`
	Valid         bool          `json:"valid"`
	Files         FilesResponse `json:"files"`
}

func toRecordResponse(v pipeline.RecordView) RecordResponse {
	resp := RecordResponse{
		Name:          v.Name,
		ScanTimestamp: v.ScanTimestamp,
		MachineCode:   v.MachineCode,
		Recipient:     v.Recipient,
		Amount:        v.Amount,
		Valid:         v.Valid,
		Files: FilesResponse{
			Disposition: v.Group.Disposition,
			Recto:       v.Group.Recto,
			Verso:       v.Group.Verso,
		},
	}
	if v.CaptureDate != nil {
		d := v.CaptureDate.Format(time.DateOnly)
		resp.CaptureDate = &d
	}
	return resp
}

type RecordsResponse struct {
	Records []RecordResponse `json:"records"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Session bool   `json:"session"`
}

type AuditResponse struct {
	Events []audit.Event `json:"events"`
}
