package confirm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/melpes/mailcal/pkg/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(handlers ...Handler) (*Service, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Config{}, discardLogger(), handlers...)
	svc.now = clock.Now
	return svc, clock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingHandler captures every payload it is notified with.
type recordingHandler struct {
	name     string
	mu       sync.Mutex
	payloads []NotificationPayload
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Notify(payload NotificationPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, payload)
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.payloads)
}

func (h *recordingHandler) last() NotificationPayload {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payloads[len(h.payloads)-1]
}

func sampleCandidate() api.CandidateEvent {
	start := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	return api.CandidateEvent{
		Summary:      "Team sync",
		StartTime:    &start,
		EndTime:      &end,
		Location:     "Conference Room 2",
		Participants: []string{"Alice", "Bob"},
		FieldConfidence: map[string]float64{
			api.FieldSummary:  0.9,
			api.FieldDatetime: 0.6,
		},
		OverallConfidence: 0.65,
	}
}

func TestRequestLifecycle(t *testing.T) {
	svc, _ := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1", WithSubject("Team sync"))
	if id == "" {
		t.Fatal("expected a request id")
	}

	status := svc.GetStatus(id)
	if !status.Found {
		t.Fatal("request not found after creation")
	}
	if status.Status != StatusPending {
		t.Errorf("status: got %v, want %v", status.Status, StatusPending)
	}
	if status.SourceSubject != "Team sync" {
		t.Errorf("subject: got %q", status.SourceSubject)
	}

	result, err := svc.Respond(id, true, map[string]any{"location": "Room 3"}, "fixed the room")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.Status != StatusConfirmed {
		t.Errorf("result status: got %v, want %v", result.Status, StatusConfirmed)
	}
	if !result.Confirmed {
		t.Error("result not marked confirmed")
	}

	status = svc.GetStatus(id)
	if status.Status != StatusConfirmed {
		t.Errorf("status after respond: got %v, want %v", status.Status, StatusConfirmed)
	}
	if status.Response == nil {
		t.Fatal("response data missing")
	}
	if status.Response.UserComment != "fixed the room" {
		t.Errorf("user comment: got %q", status.Response.UserComment)
	}
	if status.Response.ModifiedFields["location"] != "Room 3" {
		t.Errorf("modified fields: got %v", status.Response.ModifiedFields)
	}
}

func TestRespondTwiceFails(t *testing.T) {
	svc, _ := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1")
	if _, err := svc.Respond(id, false, nil, ""); err != nil {
		t.Fatalf("first Respond: %v", err)
	}

	_, err := svc.Respond(id, true, nil, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second Respond: got %v, want ErrNotFound", err)
	}
}

func TestRespondUnknownRequest(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Respond("no-such-id", true, nil, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRejectedRequest(t *testing.T) {
	svc, _ := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1")
	result, err := svc.Respond(id, false, nil, "wrong date")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.Status != StatusRejected {
		t.Errorf("status: got %v, want %v", result.Status, StatusRejected)
	}
	if result.Confirmed {
		t.Error("rejected result marked confirmed")
	}
}

func TestLazyExpiryOnStatus(t *testing.T) {
	svc, clock := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1", WithExpiry(time.Hour))
	clock.Advance(2 * time.Hour)

	status := svc.GetStatus(id)
	if status.Status != StatusExpired {
		t.Errorf("status: got %v, want %v", status.Status, StatusExpired)
	}
	if !status.Expired {
		t.Error("expired flag not set")
	}

	// Once expired the request is completed and can no longer be answered.
	_, err := svc.Respond(id, true, nil, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Respond after expiry: got %v, want ErrNotFound", err)
	}
}

func TestRespondOnExpiredRequest(t *testing.T) {
	svc, clock := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1", WithExpiry(time.Hour))
	clock.Advance(2 * time.Hour)

	// No sweep has run; Respond itself discovers the expiry.
	result, err := svc.Respond(id, true, nil, "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.Status != StatusExpired {
		t.Errorf("status: got %v, want %v", result.Status, StatusExpired)
	}
	if !result.Expired {
		t.Error("expired flag not set on result")
	}
	if result.Confirmed {
		t.Error("expired result marked confirmed")
	}
}

func TestZeroExpiry(t *testing.T) {
	svc, clock := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1", WithExpiry(0))

	req, ok := svc.GetRequest(id)
	if !ok {
		t.Fatal("request not found")
	}
	if !req.ExpiresAt.Equal(req.CreatedAt) {
		t.Errorf("expires at: got %v, want %v", req.ExpiresAt, req.CreatedAt)
	}

	clock.Advance(time.Nanosecond)
	if status := svc.GetStatus(id); status.Status != StatusExpired {
		t.Errorf("status: got %v, want %v", status.Status, StatusExpired)
	}
}

func TestDefaultExpiryApplied(t *testing.T) {
	svc, clock := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1")
	req, ok := svc.GetRequest(id)
	if !ok {
		t.Fatal("request not found")
	}
	want := clock.Now().Add(DefaultExpiry)
	if !req.ExpiresAt.Equal(want) {
		t.Errorf("expires at: got %v, want %v", req.ExpiresAt, want)
	}
}

func TestCallbackInvoked(t *testing.T) {
	svc, _ := newTestService()

	var gotID string
	var gotConfirmed bool
	var gotModified map[string]any

	id := svc.RequestConfirmation(sampleCandidate(), "email-1",
		WithCallback(func(requestID string, confirmed bool, modified map[string]any) (any, error) {
			gotID = requestID
			gotConfirmed = confirmed
			gotModified = modified
			return "event created", nil
		}),
	)

	result, err := svc.Respond(id, true, map[string]any{"summary": "Weekly sync"}, "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if gotID != id {
		t.Errorf("callback request id: got %q, want %q", gotID, id)
	}
	if !gotConfirmed {
		t.Error("callback confirmed flag not set")
	}
	if gotModified["summary"] != "Weekly sync" {
		t.Errorf("callback modified fields: got %v", gotModified)
	}
	if result.CallbackResult != "event created" {
		t.Errorf("callback result: got %v", result.CallbackResult)
	}
	if result.CallbackErr != nil {
		t.Errorf("callback error: got %v", result.CallbackErr)
	}
}

func TestCallbackErrorIsEmbedded(t *testing.T) {
	svc, _ := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1",
		WithCallback(func(string, bool, map[string]any) (any, error) {
			return nil, fmt.Errorf("calendar unavailable")
		}),
	)

	result, err := svc.Respond(id, true, nil, "")
	if err != nil {
		t.Fatalf("Respond must not fail on callback errors: %v", err)
	}
	if result.CallbackErr == nil {
		t.Fatal("callback error not embedded")
	}
	if result.Status != StatusConfirmed {
		t.Errorf("status: got %v, want %v", result.Status, StatusConfirmed)
	}
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	svc, _ := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1",
		WithCallback(func(string, bool, map[string]any) (any, error) {
			panic("boom")
		}),
	)

	result, err := svc.Respond(id, true, nil, "")
	if err != nil {
		t.Fatalf("Respond must not fail on callback panics: %v", err)
	}
	if result.CallbackErr == nil {
		t.Fatal("panic not converted into a callback error")
	}

	// The state transition completed despite the panic.
	if status := svc.GetStatus(id); status.Status != StatusConfirmed {
		t.Errorf("status: got %v, want %v", status.Status, StatusConfirmed)
	}
}

func TestHandlersReceiveNotification(t *testing.T) {
	first := &recordingHandler{name: "first"}
	second := &recordingHandler{name: "second"}
	svc, clock := newTestService(first, second)

	id := svc.RequestConfirmation(sampleCandidate(), "email-1", WithSubject("Team sync"))

	if first.count() != 1 || second.count() != 1 {
		t.Fatalf("notification counts: got %d and %d, want 1 and 1", first.count(), second.count())
	}

	payload := first.last()
	if payload.Type != PayloadTypeConfirmationRequest {
		t.Errorf("payload type: got %q", payload.Type)
	}
	if payload.RequestID != id {
		t.Errorf("payload request id: got %q, want %q", payload.RequestID, id)
	}
	if payload.EventSummary != "Team sync" {
		t.Errorf("payload summary: got %q", payload.EventSummary)
	}
	if payload.EventDetails["starts"] != "2024-06-03 14:00" {
		t.Errorf("payload starts: got %q", payload.EventDetails["starts"])
	}
	if payload.EventDetails["participants"] != "Alice, Bob" {
		t.Errorf("payload participants: got %q", payload.EventDetails["participants"])
	}
	if payload.ConfidenceScore != 0.65 {
		t.Errorf("payload confidence: got %v", payload.ConfidenceScore)
	}
	if !payload.ExpiresAt.Equal(clock.Now().Add(DefaultExpiry)) {
		t.Errorf("payload expiry: got %v", payload.ExpiresAt)
	}
}

func TestFailingHandlerDoesNotBlockOthers(t *testing.T) {
	failing := HandlerFromFunc("failing", func(NotificationPayload) error {
		return fmt.Errorf("endpoint down")
	})
	panicking := HandlerFromFunc("panicking", func(NotificationPayload) error {
		panic("boom")
	})
	recording := &recordingHandler{name: "recording"}
	svc, _ := newTestService(failing, panicking, recording)

	id := svc.RequestConfirmation(sampleCandidate(), "email-1")

	if recording.count() != 1 {
		t.Errorf("recording handler notifications: got %d, want 1", recording.count())
	}
	if status := svc.GetStatus(id); !status.Found {
		t.Error("request was not created despite handler failures")
	}
}

func TestHandlerRegistrationIsIdempotent(t *testing.T) {
	recording := &recordingHandler{name: "console"}
	duplicate := &recordingHandler{name: "console"}
	svc, _ := newTestService()

	svc.AddHandler(recording)
	svc.AddHandler(duplicate)

	svc.RequestConfirmation(sampleCandidate(), "email-1")
	if recording.count() != 1 {
		t.Errorf("first registration notifications: got %d, want 1", recording.count())
	}
	if duplicate.count() != 0 {
		t.Errorf("duplicate registration notifications: got %d, want 0", duplicate.count())
	}

	svc.RemoveHandler("console")
	svc.RemoveHandler("console") // absent, no-op

	svc.RequestConfirmation(sampleCandidate(), "email-2")
	if recording.count() != 1 {
		t.Errorf("notifications after removal: got %d, want 1", recording.count())
	}
}

func TestCancel(t *testing.T) {
	svc, _ := newTestService()

	id := svc.RequestConfirmation(sampleCandidate(), "email-1")
	if !svc.Cancel(id) {
		t.Fatal("Cancel returned false for a pending request")
	}
	if svc.Cancel(id) {
		t.Error("Cancel returned true for a completed request")
	}

	if status := svc.GetStatus(id); status.Status != StatusCancelled {
		t.Errorf("status: got %v, want %v", status.Status, StatusCancelled)
	}

	_, err := svc.Respond(id, true, nil, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Respond after cancel: got %v, want ErrNotFound", err)
	}
}

func TestListPending(t *testing.T) {
	svc, clock := newTestService()

	first := svc.RequestConfirmation(sampleCandidate(), "email-a")
	svc.RequestConfirmation(sampleCandidate(), "email-a")
	svc.RequestConfirmation(sampleCandidate(), "email-b", WithExpiry(time.Hour))

	if got := len(svc.ListPending("")); got != 3 {
		t.Errorf("all pending: got %d, want 3", got)
	}
	if got := len(svc.ListPending("email-a")); got != 2 {
		t.Errorf("pending for email-a: got %d, want 2", got)
	}
	if got := len(svc.ListPending("email-c")); got != 0 {
		t.Errorf("pending for unknown source: got %d, want 0", got)
	}

	// The short-lived request is swept before listing.
	clock.Advance(2 * time.Hour)
	if got := len(svc.ListPending("")); got != 2 {
		t.Errorf("pending after expiry sweep: got %d, want 2", got)
	}

	// Listed requests are snapshots.
	listed := svc.ListPending("email-a")
	listed[0].Candidate.Participants[0] = "Mallory"
	req, _ := svc.GetRequest(first)
	if req.Candidate.Participants[0] != "Alice" {
		t.Error("listing leaked internal state")
	}
}

func TestStats(t *testing.T) {
	svc, clock := newTestService()

	confirmedID := svc.RequestConfirmation(sampleCandidate(), "email-1")
	svc.RequestConfirmation(sampleCandidate(), "email-2")
	expiringID := svc.RequestConfirmation(sampleCandidate(), "email-3", WithExpiry(time.Hour))

	if _, err := svc.Respond(confirmedID, true, nil, ""); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	clock.Advance(2 * time.Hour)

	stats := svc.Stats()
	if stats.PendingCount != 1 {
		t.Errorf("pending count: got %d, want 1", stats.PendingCount)
	}
	if stats.CompletedCount != 2 {
		t.Errorf("completed count: got %d, want 2", stats.CompletedCount)
	}
	if stats.TotalCount != 3 {
		t.Errorf("total count: got %d, want 3", stats.TotalCount)
	}
	if stats.CompletedByStatus[StatusConfirmed] != 1 {
		t.Errorf("confirmed count: got %d, want 1", stats.CompletedByStatus[StatusConfirmed])
	}
	if stats.CompletedByStatus[StatusExpired] != 1 {
		t.Errorf("expired count: got %d, want 1", stats.CompletedByStatus[StatusExpired])
	}

	if status := svc.GetStatus(expiringID); status.Status != StatusExpired {
		t.Errorf("swept request status: got %v, want %v", status.Status, StatusExpired)
	}
}

func TestRequestSnapshotIsolation(t *testing.T) {
	svc, _ := newTestService()

	candidate := sampleCandidate()
	id := svc.RequestConfirmation(candidate, "email-1")

	// Mutating the caller's candidate after creation has no effect.
	candidate.Participants[0] = "Mallory"
	candidate.FieldConfidence[api.FieldSummary] = 0

	req, ok := svc.GetRequest(id)
	if !ok {
		t.Fatal("request not found")
	}
	if req.Candidate.Participants[0] != "Alice" {
		t.Errorf("participants: got %v", req.Candidate.Participants)
	}
	if req.ConfidenceBreakdown[api.FieldSummary] != 0.9 {
		t.Errorf("breakdown: got %v", req.ConfidenceBreakdown)
	}

	// Mutating the returned snapshot has no effect either.
	req.Candidate.Participants[0] = "Eve"
	again, _ := svc.GetRequest(id)
	if again.Candidate.Participants[0] != "Alice" {
		t.Error("snapshot mutation leaked into the service")
	}
}

func TestGetStatusUnknownRequest(t *testing.T) {
	svc, _ := newTestService()

	status := svc.GetStatus("no-such-id")
	if status.Found {
		t.Error("expected Found to be false")
	}
}

func TestTerminalStatuses(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusConfirmed, true},
		{StatusRejected, true},
		{StatusExpired, true},
		{StatusCancelled, true},
	}

	for _, tc := range tests {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal(): got %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	svc, _ := newTestService(&recordingHandler{name: "recording"})

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = svc.RequestConfirmation(sampleCandidate(), fmt.Sprintf("email-%d", i))
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Respond(id, true, nil, ""); err != nil {
				t.Errorf("Respond(%s): %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	stats := svc.Stats()
	if stats.CompletedByStatus[StatusConfirmed] != len(ids) {
		t.Errorf("confirmed count: got %d, want %d", stats.CompletedByStatus[StatusConfirmed], len(ids))
	}
}
