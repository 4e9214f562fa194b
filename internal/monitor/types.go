package monitor

import (
	"errors"
	"time"
)

// ErrUnavailable marks a fetch that produced no usable content.
var ErrUnavailable = errors.New("site unavailable")

// State is the monitor's position in its two-state lifecycle.
type State string

// Monitor states.
const (
	StateAwaitingFirstContent State = "AWAITING_FIRST_CONTENT"
	StateMonitoring           State = "MONITORING"
)

// Snapshot is the normalized state of the watched page at one poll.
type Snapshot struct {
	// HTML is the pretty-printed structural projection.
	HTML string
	// CSS is the concatenation of every inline style block.
	CSS string
}

// ChangeRecord is one spreadsheet row.
type ChangeRecord struct {
	Timestamp time.Time
	URL       string
	HTMLDiff  string
	CSSDiff   string
}

// Empty reports whether neither projection changed.
func (r ChangeRecord) Empty() bool {
	return r.HTMLDiff == "" && r.CSSDiff == ""
}

// FetchResult is either page content or an unavailability reason.
type FetchResult struct {
	URL        string
	Body       string
	StatusCode int
	Duration   time.Duration
	// Unavailable is non-nil when the page could not be retrieved. It wraps
	// ErrUnavailable.
	Unavailable error
}

// Available reports whether the result carries content.
func (r FetchResult) Available() bool {
	return r.Unavailable == nil
}

// Unavailable builds a FetchResult that carries only a failure reason.
func Unavailable(url string, reason error) FetchResult {
	if reason == nil {
		reason = ErrUnavailable
	} else if !errors.Is(reason, ErrUnavailable) {
		reason = errors.Join(ErrUnavailable, reason)
	}
	return FetchResult{URL: url, Unavailable: reason}
}

// Message is an outbound notification.
type Message struct {
	Subject string
	Body    string
	To      string
	// AttachmentPath is optional; a path that does not exist is skipped.
	AttachmentPath string
}

// Status is a point-in-time view of the monitor for status endpoints.
type Status struct {
	URL                 string    `json:"url"`
	State               State     `json:"state"`
	FirstAvailableAt    time.Time `json:"first_available_at,omitzero"`
	LastCheckAt         time.Time `json:"last_check_at,omitzero"`
	LastChangeAt        time.Time `json:"last_change_at,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	BaselineDigest      string    `json:"baseline_digest,omitempty"`
	Polls               int64     `json:"polls"`
	Changes             int64     `json:"changes"`
}
