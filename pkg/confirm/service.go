// Package confirm implements the confirmation workflow for low-confidence
// calendar-event candidates: request creation, notification dispatch,
// response handling, lazy expiry, cancellation and statistics.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/melpes/mailcal/pkg/api"
)

// ErrNotFound is returned by Respond when the request id is not pending.
// It is the only hard failure the workflow surfaces; every other failure
// mode degrades to result data.
var ErrNotFound = errors.New("confirmation request not found")

// DefaultExpiry is how long a request stays pending unless overridden per
// request.
const DefaultExpiry = 24 * time.Hour

// Config holds the workflow configuration.
type Config struct {
	// DefaultExpiry overrides the 24h default request lifetime.
	DefaultExpiry time.Duration
}

// Service owns the confirmation request lifecycle. All public operations
// are synchronous, non-blocking calls over in-memory maps; a request past
// its deadline is expired lazily when an operation touches it. Safe for
// concurrent use.
type Service struct {
	mu        sync.Mutex
	pending   map[string]*Request
	completed map[string]*Request
	handlers  handlerRegistry

	defaultExpiry time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewService creates a workflow service with the given handlers registered.
func NewService(cfg Config, logger *slog.Logger, handlers ...Handler) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultExpiry <= 0 {
		cfg.DefaultExpiry = DefaultExpiry
	}

	s := &Service{
		pending:       make(map[string]*Request),
		completed:     make(map[string]*Request),
		handlers:      newHandlerRegistry(),
		defaultExpiry: cfg.DefaultExpiry,
		logger:        logger,
		now:           time.Now,
	}
	for _, handler := range handlers {
		s.handlers.add(handler)
	}
	return s
}

// RequestOption customizes a single confirmation request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	subject   string
	callback  ResolveFunc
	expiry    time.Duration
	expirySet bool
}

// WithSubject attaches the source document's subject line.
func WithSubject(subject string) RequestOption {
	return func(o *requestOptions) { o.subject = subject }
}

// WithCallback registers the function invoked once the request is
// confirmed or rejected.
func WithCallback(callback ResolveFunc) RequestOption {
	return func(o *requestOptions) { o.callback = callback }
}

// WithExpiry overrides the request lifetime. A zero duration creates a
// request that is already past its deadline on the next clock tick.
func WithExpiry(expiry time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.expiry = expiry
		o.expirySet = true
	}
}

// RequestConfirmation creates a pending confirmation request for the
// candidate, snapshots its confidence breakdown, dispatches a notification
// to every registered handler, and returns the request id.
func (s *Service) RequestConfirmation(candidate api.CandidateEvent, sourceDocumentID string, opts ...RequestOption) string {
	options := requestOptions{expiry: s.defaultExpiry}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.expirySet && options.expiry <= 0 {
		options.expiry = s.defaultExpiry
	}

	now := s.now()
	snapshot := candidate.Clone()
	breakdown := make(map[string]float64, len(snapshot.FieldConfidence))
	for field, score := range snapshot.FieldConfidence {
		breakdown[field] = score
	}

	req := &Request{
		ID:                  uuid.NewString(),
		SourceDocumentID:    sourceDocumentID,
		SourceSubject:       options.subject,
		Candidate:           snapshot,
		ConfidenceScore:     snapshot.OverallConfidence,
		ConfidenceBreakdown: breakdown,
		CreatedAt:           now,
		ExpiresAt:           now.Add(options.expiry),
		Status:              StatusPending,
		callback:            options.callback,
	}

	s.mu.Lock()
	s.pending[req.ID] = req
	payload := buildPayload(req.snapshot())
	handlers := s.handlers.list()
	s.mu.Unlock()

	s.logger.Info("confirmation request created",
		"request_id", req.ID,
		"source_document_id", sourceDocumentID,
		"confidence", req.ConfidenceScore,
		"expires_at", req.ExpiresAt,
	)

	s.dispatch(handlers, payload)
	return req.ID
}

// Respond records the user's decision for a pending request. It fails with
// ErrNotFound when the id is not pending. A request past its deadline is
// transitioned to expired and reported as such in the result, not as an
// error. Callback failures are embedded in the result.
func (s *Service) Respond(requestID string, confirmed bool, modifiedFields map[string]any, userComment string) (*ResponseResult, error) {
	s.mu.Lock()
	req, ok := s.pending[requestID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}

	now := s.now()
	if req.expiredAt(now) {
		req.Status = StatusExpired
		s.completeLocked(requestID)
		s.mu.Unlock()
		s.logger.Warn("response received for expired request", "request_id", requestID)
		return &ResponseResult{RequestID: requestID, Status: StatusExpired, Expired: true}, nil
	}

	req.Response = &ResponseData{
		Confirmed:      confirmed,
		ModifiedFields: modifiedFields,
		UserComment:    userComment,
		RespondedAt:    now,
	}
	if confirmed {
		req.Status = StatusConfirmed
	} else {
		req.Status = StatusRejected
	}
	callback := req.callback
	status := req.Status
	s.completeLocked(requestID)
	s.mu.Unlock()

	result := &ResponseResult{
		RequestID:      requestID,
		Status:         status,
		Confirmed:      confirmed,
		ModifiedFields: modifiedFields,
		UserComment:    userComment,
	}

	// The callback runs outside the lock, after the state transition, so a
	// slow or re-entrant callback cannot corrupt or deadlock the workflow.
	if callback != nil {
		result.CallbackResult, result.CallbackErr = s.invokeCallback(callback, requestID, confirmed, modifiedFields)
	}

	s.logger.Info("confirmation response processed",
		"request_id", requestID,
		"status", status,
		"callback_error", result.CallbackErr,
	)
	return result, nil
}

func (s *Service) invokeCallback(callback ResolveFunc, requestID string, confirmed bool, modifiedFields map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
			s.logger.Error("resolve callback panicked", "request_id", requestID, "panic", r)
		}
	}()
	return callback(requestID, confirmed, modifiedFields)
}

// GetRequest returns a copy of the request, looking in the pending set
// first, then the completed set.
func (s *Service) GetRequest(requestID string) (*Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req, ok := s.pending[requestID]; ok {
		return req.snapshot(), true
	}
	if req, ok := s.completed[requestID]; ok {
		return req.snapshot(), true
	}
	return nil, false
}

// GetStatus returns a status summary for the request, lazily expiring it
// first when its deadline has passed.
func (s *Service) GetStatus(requestID string) StatusView {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	req, pending := s.pending[requestID]
	if !pending {
		if req = s.completed[requestID]; req == nil {
			return StatusView{}
		}
	}

	if pending && req.expiredAt(now) {
		req.Status = StatusExpired
		s.completeLocked(requestID)
	}

	view := StatusView{
		Found:            true,
		RequestID:        req.ID,
		Status:           req.Status,
		SourceDocumentID: req.SourceDocumentID,
		SourceSubject:    req.SourceSubject,
		ConfidenceScore:  req.ConfidenceScore,
		CreatedAt:        req.CreatedAt,
		ExpiresAt:        req.ExpiresAt,
		Expired:          req.Status == StatusExpired,
	}
	if req.Response != nil {
		response := *req.Response
		view.Response = &response
	}
	return view
}

// ListPending sweeps expired requests, then returns copies of the remaining
// pending requests, optionally filtered by source document id.
func (s *Service) ListPending(sourceDocumentID string) []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())

	requests := make([]*Request, 0, len(s.pending))
	for _, req := range s.pending {
		if sourceDocumentID != "" && req.SourceDocumentID != sourceDocumentID {
			continue
		}
		requests = append(requests, req.snapshot())
	}
	return requests
}

// Cancel transitions a pending request to cancelled. It returns false when
// the request is unknown or already completed.
func (s *Service) Cancel(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pending[requestID]
	if !ok {
		return false
	}
	req.Status = StatusCancelled
	s.completeLocked(requestID)
	s.logger.Info("confirmation request cancelled", "request_id", requestID)
	return true
}

// AddHandler registers a notification handler. Adding a handler whose name
// is already registered is a no-op.
func (s *Service) AddHandler(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers.add(handler) {
		s.logger.Debug("notification handler registered", "handler", handler.Name())
	}
}

// RemoveHandler unregisters a handler by name. Removing an absent handler
// is a no-op.
func (s *Service) RemoveHandler(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers.remove(name) {
		s.logger.Debug("notification handler removed", "handler", name)
	}
}

// Statistics describes the request population at a point in time.
type Statistics struct {
	PendingCount      int            `json:"pending_count"`
	CompletedCount    int            `json:"completed_count"`
	TotalCount        int            `json:"total_count"`
	CompletedByStatus map[Status]int `json:"completed_by_status"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// Stats sweeps expired requests, then aggregates counts by status.
func (s *Service) Stats() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	byStatus := make(map[Status]int)
	for _, req := range s.completed {
		byStatus[req.Status]++
	}

	return Statistics{
		PendingCount:      len(s.pending),
		CompletedCount:    len(s.completed),
		TotalCount:        len(s.pending) + len(s.completed),
		CompletedByStatus: byStatus,
		GeneratedAt:       now,
	}
}

// StartSweeper runs a periodic expiry sweep until the context is canceled.
// The sweep is an optional supplement to the lazy expiry path and does not
// change its observable semantics.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				s.sweepLocked(s.now())
				s.mu.Unlock()
			}
		}
	}()
}

// completeLocked moves a request from the pending set to the completed set.
// Callers must hold s.mu and have already assigned the terminal status.
func (s *Service) completeLocked(requestID string) {
	req, ok := s.pending[requestID]
	if !ok {
		return
	}
	delete(s.pending, requestID)
	s.completed[requestID] = req
}

// sweepLocked expires every pending request past its deadline. Callers must
// hold s.mu.
func (s *Service) sweepLocked(now time.Time) {
	var expired []string
	for id, req := range s.pending {
		if req.expiredAt(now) {
			req.Status = StatusExpired
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.completeLocked(id)
	}
	if len(expired) > 0 {
		s.logger.Info("expired stale confirmation requests", "count", len(expired))
	}
}

// dispatch delivers the payload to each handler in registration order. A
// failing or panicking handler is logged and skipped; dispatch never fails
// the surrounding call.
func (s *Service) dispatch(handlers []Handler, payload NotificationPayload) {
	for _, handler := range handlers {
		if err := s.notifyOne(handler, payload); err != nil {
			s.logger.Error("notification handler failed",
				"handler", handler.Name(),
				"request_id", payload.RequestID,
				"error", err,
			)
		}
	}
}

func (s *Service) notifyOne(handler Handler, payload NotificationPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Notify(payload)
}
