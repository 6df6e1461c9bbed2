package confidence

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/melpes/mailcal/pkg/api"
)

func TestBuildConfirmationMessage(t *testing.T) {
	e := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	candidate := api.CandidateEvent{
		Summary:           "Team sync",
		StartTime:         &start,
		EndTime:           &end,
		Location:          "Conference Room 2",
		Participants:      []string{"Alice", "Bob"},
		OverallConfidence: 0.62,
	}

	got := e.BuildConfirmationMessage(candidate, []string{api.FieldDatetime, api.FieldLocation})

	want := strings.Join([]string{
		"Please review the following event details:\n",
		"Title: Team sync",
		"Starts: 2024-06-03 14:00",
		"Ends: 2024-06-03 15:00",
		"Location: Conference Room 2",
		"Participants: Alice, Bob",
		"\nPlease double-check the following fields: Date/time, Location",
		"\nOverall confidence: 62.0%",
		"\nIs this information correct? (yes/no)",
	}, "\n")

	if got != want {
		t.Errorf("message mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildConfirmationMessageMissingFields(t *testing.T) {
	e := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got := e.BuildConfirmationMessage(api.CandidateEvent{}, nil)

	if !strings.Contains(got, "Title: (needs review)") {
		t.Errorf("missing title placeholder in:\n%s", got)
	}
	if !strings.Contains(got, "Date/time: (needs review)") {
		t.Errorf("missing date placeholder in:\n%s", got)
	}
	if strings.Contains(got, "Location:") {
		t.Errorf("unexpected location line in:\n%s", got)
	}
	if strings.Contains(got, "Participants:") {
		t.Errorf("unexpected participants line in:\n%s", got)
	}
	if !strings.Contains(got, "Overall confidence: 0.0%") {
		t.Errorf("missing confidence line in:\n%s", got)
	}
}

func TestBuildConfirmationMessageAllDay(t *testing.T) {
	e := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	candidate := api.CandidateEvent{
		Summary:   "Company offsite",
		StartTime: &start,
		AllDay:    true,
	}

	got := e.BuildConfirmationMessage(candidate, nil)

	if !strings.Contains(got, "Date: 2024-06-03 (all day)") {
		t.Errorf("missing all-day line in:\n%s", got)
	}
	if strings.Contains(got, "Starts:") {
		t.Errorf("unexpected start line for all-day event in:\n%s", got)
	}
}

func TestBuildConfirmationMessageTruncatesParticipants(t *testing.T) {
	e := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	candidate := api.CandidateEvent{
		Summary:   "All hands",
		StartTime: &start,
		Participants: []string{
			"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace",
		},
	}

	got := e.BuildConfirmationMessage(candidate, nil)

	if !strings.Contains(got, "Participants: Alice, Bob, Carol, Dave, Erin and 2 more") {
		t.Errorf("participant truncation missing in:\n%s", got)
	}
	if strings.Contains(got, "Frank") {
		t.Errorf("truncated participant leaked in:\n%s", got)
	}
}

func TestBuildConfirmationMessageUnknownLowField(t *testing.T) {
	e := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got := e.BuildConfirmationMessage(api.CandidateEvent{Summary: "Team sync"}, []string{"custom"})

	if !strings.Contains(got, "Please double-check the following fields: custom") {
		t.Errorf("unknown field not passed through in:\n%s", got)
	}
}
