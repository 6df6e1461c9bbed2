// Package api defines the core data structures shared across mailcal.
package api

import "time"

// Field names used as keys in CandidateEvent.FieldConfidence.
const (
	FieldSummary      = "summary"
	FieldDatetime     = "datetime"
	FieldLocation     = "location"
	FieldParticipants = "participants"
)

// Fields lists all scorable field names in display order.
var Fields = []string{FieldSummary, FieldDatetime, FieldLocation, FieldParticipants}

// CandidateEvent holds one calendar-event candidate extracted from a source
// document, together with the per-field confidence assigned to it.
// Candidates are owned by the caller; the evaluator only returns updated
// copies and never retains or persists them.
type CandidateEvent struct {
	Summary     string     `json:"summary"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	AllDay      bool       `json:"all_day"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	// Participants preserves extraction order; duplicates are possible
	// before evaluation.
	Participants []string `json:"participants,omitempty"`
	// FieldConfidence maps a field name to a score in [0,1].
	// An absent key means the field has not been scored yet.
	FieldConfidence   map[string]float64 `json:"field_confidence,omitempty"`
	OverallConfidence float64            `json:"overall_confidence"`
}

// Clone returns a deep copy of the candidate. Slices and maps are copied so
// mutating the clone never affects the original.
func (c CandidateEvent) Clone() CandidateEvent {
	clone := c
	if c.StartTime != nil {
		t := *c.StartTime
		clone.StartTime = &t
	}
	if c.EndTime != nil {
		t := *c.EndTime
		clone.EndTime = &t
	}
	if c.Participants != nil {
		clone.Participants = make([]string, len(c.Participants))
		copy(clone.Participants, c.Participants)
	}
	if c.FieldConfidence != nil {
		clone.FieldConfidence = make(map[string]float64, len(c.FieldConfidence))
		for field, score := range c.FieldConfidence {
			clone.FieldConfidence[field] = score
		}
	}
	return clone
}

// SourceContext carries metadata about the document a candidate was
// extracted from. It is a read-only input to confidence scoring.
type SourceContext struct {
	Subject    string     `json:"subject"`
	Sender     string     `json:"sender"`
	Recipients []string   `json:"recipients,omitempty"`
	CC         []string   `json:"cc,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}

// AddressBook returns the union of sender, recipients and CC addresses.
func (s *SourceContext) AddressBook() []string {
	if s == nil {
		return nil
	}
	addresses := make([]string, 0, 1+len(s.Recipients)+len(s.CC))
	if s.Sender != "" {
		addresses = append(addresses, s.Sender)
	}
	addresses = append(addresses, s.Recipients...)
	addresses = append(addresses, s.CC...)
	return addresses
}
