package console

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/melpes/mailcal/pkg/confirm"
)

func TestNotifyPrintsRequest(t *testing.T) {
	var out strings.Builder
	handler := New(&out, slog.New(slog.NewTextHandler(io.Discard, nil)))

	payload := confirm.NotificationPayload{
		Type:             confirm.PayloadTypeConfirmationRequest,
		RequestID:        "req-1",
		SourceDocumentID: "email-1",
		SourceSubject:    "Team sync",
		EventSummary:     "Team sync",
		EventDetails: map[string]string{
			"title":  "Team sync",
			"starts": "2024-06-03 14:00",
		},
		ConfidenceScore: 0.65,
		ExpiresAt:       time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC),
	}

	if err := handler.Notify(payload); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"=== Confirmation requested [req-1] ===",
		"Source: Team sync (email-1)",
		"starts:",
		"2024-06-03 14:00",
		"Confidence: 65.0%",
		"Respond before 2024-06-02 12:00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestNotifyWithoutSubject(t *testing.T) {
	var out strings.Builder
	handler := New(&out, slog.New(slog.NewTextHandler(io.Discard, nil)))

	payload := confirm.NotificationPayload{
		RequestID:        "req-2",
		SourceDocumentID: "email-2",
	}

	if err := handler.Notify(payload); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if !strings.Contains(out.String(), "Source: email-2\n") {
		t.Errorf("output missing bare source line:\n%s", out.String())
	}
}
