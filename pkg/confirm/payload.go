package confirm

import (
	"strings"
	"time"
)

// PayloadTypeConfirmationRequest identifies the payload dispatched when a
// new confirmation request is created.
const PayloadTypeConfirmationRequest = "confirmation_request"

// Display layouts for payload event details.
const (
	payloadTimeLayout = "2006-01-02 15:04"
	detailUnset       = "unscheduled"
	detailNone        = "none"
)

// NotificationPayload is the structured message handed to every registered
// handler when a confirmation request is created.
type NotificationPayload struct {
	Type                string             `json:"type"`
	RequestID           string             `json:"request_id"`
	SourceDocumentID    string             `json:"source_document_id"`
	SourceSubject       string             `json:"source_subject,omitempty"`
	EventSummary        string             `json:"event_summary"`
	EventDetails        map[string]string  `json:"event_details"`
	ConfidenceScore     float64            `json:"confidence_score"`
	ConfidenceBreakdown map[string]float64 `json:"confidence_breakdown,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	ExpiresAt           time.Time          `json:"expires_at"`
}

// buildPayload formats a request for notification dispatch. The request must
// already be a snapshot; the payload shares no mutable state with the
// workflow maps.
func buildPayload(req *Request) NotificationPayload {
	return NotificationPayload{
		Type:                PayloadTypeConfirmationRequest,
		RequestID:           req.ID,
		SourceDocumentID:    req.SourceDocumentID,
		SourceSubject:       req.SourceSubject,
		EventSummary:        req.Candidate.Summary,
		EventDetails:        formatEventDetails(req),
		ConfidenceScore:     req.ConfidenceScore,
		ConfidenceBreakdown: req.ConfidenceBreakdown,
		CreatedAt:           req.CreatedAt,
		ExpiresAt:           req.ExpiresAt,
	}
}

func formatEventDetails(req *Request) map[string]string {
	candidate := req.Candidate

	details := map[string]string{
		"title":    candidate.Summary,
		"starts":   detailUnset,
		"ends":     detailUnset,
		"all_day":  "no",
		"location": detailUnset,
		"participants": func() string {
			if len(candidate.Participants) == 0 {
				return detailNone
			}
			return strings.Join(candidate.Participants, ", ")
		}(),
	}

	if candidate.StartTime != nil {
		details["starts"] = candidate.StartTime.Format(payloadTimeLayout)
	}
	if candidate.EndTime != nil {
		details["ends"] = candidate.EndTime.Format(payloadTimeLayout)
	}
	if candidate.AllDay {
		details["all_day"] = "yes"
	}
	if candidate.Location != "" {
		details["location"] = candidate.Location
	}
	if candidate.Description != "" {
		details["description"] = candidate.Description
	}

	return details
}
