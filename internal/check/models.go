package check

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"checkscan/internal/scan"
)

// ErrIncompleteRecord is returned when a record that does not satisfy
// IsComplete is offered for submission.
var ErrIncompleteRecord = errors.New("check record is incomplete")

// ErrRecordInFlight is returned for a record that belongs to a batch still
// being submitted.
var ErrRecordInFlight = errors.New("check record is being submitted")

// Record is a check reconstructed from one scan triplet. It is owned by the
// session that discovered it and edited in place until submitted.
type Record struct {
	Name          string
	Group         scan.Group
	ScanTimestamp time.Time
	MachineCode   string
	// CaptureDate is the date written on the check; nil until supplied.
	CaptureDate *time.Time
	Recipient   string
	// Amount holds digits only, as typed by the operator.
	Amount string
}

// SetCaptureDate stores the calendar date of t, dropping the clock part.
func (r *Record) SetCaptureDate(t time.Time) {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	r.CaptureDate = &d
}

func (r *Record) ClearCaptureDate() {
	r.CaptureDate = nil
}

// SetRecipient stores the recipient trimmed of surrounding whitespace.
func (r *Record) SetRecipient(recipient string) {
	r.Recipient = strings.TrimSpace(recipient)
}

// SetAmount keeps only the digits of amount.
func (r *Record) SetAmount(amount string) {
	r.Amount = strings.Map(func(c rune) rune {
		if c >= '0' && c <= '9' {
			return c
		}
		return -1
	}, amount)
}

// SetMachineCode keeps digits and spaces, the characters a code line holds.
func (r *Record) SetMachineCode(code string) {
	r.MachineCode = strings.Map(func(c rune) rune {
		if (c >= '0' && c <= '9') || c == ' ' {
			return c
		}
		return -1
	}, code)
}

// Valid is shorthand for IsComplete(r).
func (r *Record) Valid() bool {
	return IsComplete(r)
}

// Edit is a partial update of the operator-supplied fields. Nil fields are
// left untouched.
type Edit struct {
	CaptureDate      *time.Time
	ClearCaptureDate bool
	Recipient        *string
	Amount           *string
	MachineCode      *string
}

// Apply mutates r with the non-nil fields of e.
func (e Edit) Apply(r *Record) {
	if e.ClearCaptureDate {
		r.ClearCaptureDate()
	} else if e.CaptureDate != nil {
		r.SetCaptureDate(*e.CaptureDate)
	}
	if e.Recipient != nil {
		r.SetRecipient(*e.Recipient)
	}
	if e.Amount != nil {
		r.SetAmount(*e.Amount)
	}
	if e.MachineCode != nil {
		r.SetMachineCode(*e.MachineCode)
	}
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
