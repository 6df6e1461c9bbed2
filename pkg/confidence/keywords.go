package confidence

import "regexp"

// Keyword tiers for summary and location scoring. A high-tier hit is worth
// more than a medium-tier hit; the tiers are disjoint and matched
// case-insensitively as substrings.
var (
	summaryHighKeywords = []string{
		"meeting", "sync", "interview", "appointment", "seminar",
		"workshop", "conference", "presentation", "standup",
	}
	summaryMediumKeywords = []string{
		"schedule", "plan", "agenda", "event", "session",
	}

	locationHighKeywords = []string{
		"room", "office", "cafe", "restaurant", "building", "hall",
		"floor", "station", "center",
	}
	locationMediumKeywords = []string{
		"venue", "place", "address", "lobby", "campus",
	}

	// participantTitleKeywords mark a participant string as carrying a
	// title or honorific.
	participantTitleKeywords = []string{
		"mr.", "ms.", "mrs.", "dr.", "prof", "manager", "director",
		"lead", "chief", "president",
	}

	// subjectMeetingKeywords raise the overall confidence when the source
	// subject clearly announces an appointment.
	subjectMeetingKeywords = []string{
		"meeting", "sync", "appointment", "schedule", "event",
		"invite", "invitation",
	}
)

const monthNames = `(?:january|february|march|april|may|june|july|august|september|october|november|december)`

// Date/time pattern tiers, scanned high to low against the raw source text.
// Scanning stops at the first tier that yields any match.
var (
	datetimeHighPatterns = []*regexp.Regexp{
		// 2024-01-15 14:00 / 2024-01-15T14:00
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{1,2}:\d{2}`),
		// January 15, 2024 at 2:00 pm
		regexp.MustCompile(`(?i)` + monthNames + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\s+(?:at\s+)?\d{1,2}(?::\d{2})?\s*(?:am|pm)`),
		// 1/15/2024 14:00
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}`),
	}
	datetimeMediumPatterns = []*regexp.Regexp{
		// 2024-01-15
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		// January 15(th)
		regexp.MustCompile(`(?i)` + monthNames + `\s+\d{1,2}(?:st|nd|rd|th)?`),
		// 2:30 pm
		regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(?:am|pm)`),
		// at 2 pm
		regexp.MustCompile(`(?i)\bat\s+\d{1,2}\s*(?:am|pm)`),
	}
	datetimeLowPatterns = []*regexp.Regexp{
		// 1/15
		regexp.MustCompile(`\d{1,2}/\d{1,2}`),
		regexp.MustCompile(`(?i)\b(?:today|tonight|tomorrow|next week|next month)\b`),
	}
)

// addressShapePatterns recognize street-address fragments inside a location
// string (floor, unit, street, district, station).
var addressShapePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+(?:st|nd|rd|th)?\s+floor`),
	regexp.MustCompile(`(?i)(?:suite|unit|rm\.?|room)\s*#?\d+`),
	regexp.MustCompile(`(?i)\d+\s+\w+\s+(?:street|st\.?|avenue|ave\.?|road|rd\.?|boulevard|blvd\.?|lane|drive|dr\.?)`),
	regexp.MustCompile(`(?i)\w+\s+district`),
	regexp.MustCompile(`(?i)\w+\s+station`),
}

// shortNamePattern matches a bare given name ("Alice"), the shape most
// participant strings take when extracted from informal text.
var shortNamePattern = regexp.MustCompile(`^[A-Z][a-z]{1,11}$`)
