package confidence

import (
	"fmt"
	"strings"

	"github.com/melpes/mailcal/pkg/api"
)

// Timestamp layouts used in user-facing confirmation text.
const (
	dateTimeLayout = "2006-01-02 15:04"
	dateLayout     = "2006-01-02"
)

// maxListedParticipants caps how many participants the confirmation message
// spells out before collapsing the rest into "and N more".
const maxListedParticipants = 5

// needsReview marks a field whose value could not be extracted.
const needsReview = "(needs review)"

// fieldDisplayNames maps internal field names to the names shown to users.
var fieldDisplayNames = map[string]string{
	api.FieldSummary:      "Title",
	api.FieldDatetime:     "Date/time",
	api.FieldLocation:     "Location",
	api.FieldParticipants: "Participants",
}

// BuildConfirmationMessage renders the human-readable confirmation prompt
// for a candidate. The output is deterministic: section order, participant
// truncation and percentage formatting are part of the user-facing contract.
func (e *Evaluator) BuildConfirmationMessage(candidate api.CandidateEvent, lowConfidenceFields []string) string {
	parts := []string{"Please review the following event details:\n"}

	title := candidate.Summary
	if title == "" {
		title = needsReview
	}
	parts = append(parts, "Title: "+title)

	switch {
	case candidate.StartTime == nil:
		parts = append(parts, "Date/time: "+needsReview)
	case candidate.AllDay:
		parts = append(parts, "Date: "+candidate.StartTime.Format(dateLayout)+" (all day)")
	default:
		parts = append(parts, "Starts: "+candidate.StartTime.Format(dateTimeLayout))
		if candidate.EndTime != nil {
			parts = append(parts, "Ends: "+candidate.EndTime.Format(dateTimeLayout))
		}
	}

	if candidate.Location != "" {
		parts = append(parts, "Location: "+candidate.Location)
	}

	if len(candidate.Participants) > 0 {
		listed := candidate.Participants
		suffix := ""
		if len(listed) > maxListedParticipants {
			suffix = fmt.Sprintf(" and %d more", len(listed)-maxListedParticipants)
			listed = listed[:maxListedParticipants]
		}
		parts = append(parts, "Participants: "+strings.Join(listed, ", ")+suffix)
	}

	if len(lowConfidenceFields) > 0 {
		names := make([]string, 0, len(lowConfidenceFields))
		for _, field := range lowConfidenceFields {
			name, ok := fieldDisplayNames[field]
			if !ok {
				name = field
			}
			names = append(names, name)
		}
		parts = append(parts, "\nPlease double-check the following fields: "+strings.Join(names, ", "))
	}

	parts = append(parts, fmt.Sprintf("\nOverall confidence: %.1f%%", candidate.OverallConfidence*100))
	parts = append(parts, "\nIs this information correct? (yes/no)")

	return strings.Join(parts, "\n")
}
