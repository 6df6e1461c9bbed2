package confirm

import (
	"time"

	"github.com/melpes/mailcal/pkg/api"
)

// Status is the lifecycle state of a confirmation request. A request is
// pending until it reaches exactly one of the terminal states; there is no
// transition out of a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// ResolveFunc is invoked when a pending request is confirmed or rejected,
// typically to create the calendar event. Its error (or panic, which is
// recovered) is embedded in the ResponseResult and never propagated.
type ResolveFunc func(requestID string, confirmed bool, modifiedFields map[string]any) (any, error)

// ResponseData records the user's decision. Once stamped it is never
// overwritten.
type ResponseData struct {
	Confirmed      bool           `json:"confirmed"`
	ModifiedFields map[string]any `json:"modified_fields,omitempty"`
	UserComment    string         `json:"user_comment,omitempty"`
	RespondedAt    time.Time      `json:"responded_at"`
}

// Request tracks one human-in-the-loop approval cycle. The candidate and
// confidence breakdown are snapshots taken at creation time; they are not
// re-derived even if the underlying candidate is rescored later.
type Request struct {
	ID                  string             `json:"id"`
	SourceDocumentID    string             `json:"source_document_id"`
	SourceSubject       string             `json:"source_subject,omitempty"`
	Candidate           api.CandidateEvent `json:"candidate"`
	ConfidenceScore     float64            `json:"confidence_score"`
	ConfidenceBreakdown map[string]float64 `json:"confidence_breakdown,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	ExpiresAt           time.Time          `json:"expires_at"`
	Status              Status             `json:"status"`
	Response            *ResponseData      `json:"response,omitempty"`

	callback ResolveFunc
}

// expiredAt reports whether the request's deadline has passed at the given
// instant. This is the pull-based expiry check composed into every public
// operation; no timer is ever scheduled.
func (r *Request) expiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// snapshot returns a deep copy safe to hand to callers.
func (r *Request) snapshot() *Request {
	copied := *r
	copied.Candidate = r.Candidate.Clone()
	if r.ConfidenceBreakdown != nil {
		copied.ConfidenceBreakdown = make(map[string]float64, len(r.ConfidenceBreakdown))
		for field, score := range r.ConfidenceBreakdown {
			copied.ConfidenceBreakdown[field] = score
		}
	}
	if r.Response != nil {
		response := *r.Response
		copied.Response = &response
	}
	copied.callback = nil
	return &copied
}

// StatusView is the summary returned by Service.GetStatus.
type StatusView struct {
	Found            bool          `json:"found"`
	RequestID        string        `json:"request_id,omitempty"`
	Status           Status        `json:"status,omitempty"`
	SourceDocumentID string        `json:"source_document_id,omitempty"`
	SourceSubject    string        `json:"source_subject,omitempty"`
	ConfidenceScore  float64       `json:"confidence_score,omitempty"`
	CreatedAt        time.Time     `json:"created_at,omitzero"`
	ExpiresAt        time.Time     `json:"expires_at,omitzero"`
	Expired          bool          `json:"expired"`
	Response         *ResponseData `json:"response,omitempty"`
}

// ResponseResult reports the outcome of Service.Respond. Expiry and
// callback failures surface here as data, not as errors, so a failing
// callback can never abort the request's own state transition.
type ResponseResult struct {
	RequestID      string         `json:"request_id"`
	Status         Status         `json:"status"`
	Confirmed      bool           `json:"confirmed"`
	Expired        bool           `json:"expired"`
	ModifiedFields map[string]any `json:"modified_fields,omitempty"`
	UserComment    string         `json:"user_comment,omitempty"`
	CallbackResult any            `json:"callback_result,omitempty"`
	CallbackErr    error          `json:"-"`
}
