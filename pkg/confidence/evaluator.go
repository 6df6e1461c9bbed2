// Package confidence scores how trustworthy each extracted field of a
// calendar-event candidate is and decides whether a human must confirm the
// candidate before it is acted on.
package confidence

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/melpes/mailcal/pkg/api"
)

// DefaultThreshold is the overall-confidence level below which a candidate
// requires human confirmation.
const DefaultThreshold = 0.7

// Default per-field confirmation thresholds.
var defaultFieldThresholds = map[string]float64{
	api.FieldSummary:      0.6,
	api.FieldDatetime:     0.8,
	api.FieldLocation:     0.5,
	api.FieldParticipants: 0.4,
}

// Aggregate weights per field. Fields outside this table weigh 0.1.
var fieldWeights = map[string]float64{
	api.FieldSummary:      0.35,
	api.FieldDatetime:     0.40,
	api.FieldLocation:     0.15,
	api.FieldParticipants: 0.10,
}

const unknownFieldWeight = 0.1

// Config holds the evaluator thresholds. The zero value yields the defaults.
type Config struct {
	// DefaultThreshold is the overall-confidence confirmation threshold.
	DefaultThreshold float64
	// FieldThresholds overrides per-field thresholds; missing fields keep
	// their defaults.
	FieldThresholds map[string]float64
}

// DefaultConfig returns the default evaluator configuration.
func DefaultConfig() Config {
	thresholds := make(map[string]float64, len(defaultFieldThresholds))
	for field, threshold := range defaultFieldThresholds {
		thresholds[field] = threshold
	}
	return Config{
		DefaultThreshold: DefaultThreshold,
		FieldThresholds:  thresholds,
	}
}

// Evaluator recomputes per-field and overall confidence for candidates.
// All methods are pure with respect to their inputs; the evaluator holds
// only configuration.
type Evaluator struct {
	defaultThreshold float64
	fieldThresholds  map[string]float64
	logger           *slog.Logger
	now              func() time.Time
}

// New creates an evaluator. Zero/missing config values fall back to the
// defaults of DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = DefaultThreshold
	}
	thresholds := make(map[string]float64, len(defaultFieldThresholds))
	for field, threshold := range defaultFieldThresholds {
		thresholds[field] = threshold
	}
	for field, threshold := range cfg.FieldThresholds {
		thresholds[field] = threshold
	}
	return &Evaluator{
		defaultThreshold: cfg.DefaultThreshold,
		fieldThresholds:  thresholds,
		logger:           logger,
		now:              time.Now,
	}
}

// Evaluate recomputes the candidate's field confidences, derives the
// weighted overall confidence, and applies context adjustments. It never
// fails: an internal error degrades to OverallConfidence = 0 with the
// candidate otherwise unchanged.
func (e *Evaluator) Evaluate(candidate api.CandidateEvent, sourceText string, srcCtx *api.SourceContext) (result api.CandidateEvent) {
	result = candidate.Clone()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("confidence evaluation failed", "panic", r)
			result = candidate.Clone()
			result.OverallConfidence = 0
		}
	}()

	scores := map[string]float64{
		api.FieldSummary:      e.scoreSummary(result.Summary, srcCtx),
		api.FieldDatetime:     e.scoreDatetime(result.StartTime, result.EndTime, result.AllDay, sourceText),
		api.FieldLocation:     scoreLocation(result.Location),
		api.FieldParticipants: scoreParticipants(result.Participants, srcCtx),
	}
	result.FieldConfidence = scores

	overall := weightedAggregate(scores)
	overall = adjustForContext(overall, result, sourceText, srcCtx)
	result.OverallConfidence = overall

	e.logger.Debug("candidate evaluated",
		"overall", result.OverallConfidence,
		"summary", scores[api.FieldSummary],
		"datetime", scores[api.FieldDatetime],
	)
	return result
}

// ShouldConfirm reports whether a human must confirm the candidate, and
// which fields fall below their thresholds. Missing essential fields
// (summary, start time) always require confirmation.
func (e *Evaluator) ShouldConfirm(candidate api.CandidateEvent) (bool, []string) {
	needsConfirmation := false
	low := make(map[string]bool)

	if candidate.OverallConfidence < e.defaultThreshold {
		needsConfirmation = true
	}

	for field, score := range candidate.FieldConfidence {
		threshold, ok := e.fieldThresholds[field]
		if !ok {
			threshold = e.defaultThreshold
		}
		if score < threshold {
			low[field] = true
			needsConfirmation = true
		}
	}

	if candidate.Summary == "" || candidate.StartTime == nil {
		needsConfirmation = true
		if candidate.Summary == "" {
			low[api.FieldSummary] = true
		}
		if candidate.StartTime == nil {
			low[api.FieldDatetime] = true
		}
	}

	return needsConfirmation, sortFields(low)
}

// sortFields orders the low-confidence set by the canonical field order,
// with unknown fields alphabetically at the end.
func sortFields(set map[string]bool) []string {
	fields := make([]string, 0, len(set))
	for _, field := range api.Fields {
		if set[field] {
			fields = append(fields, field)
			delete(set, field)
		}
	}
	rest := make([]string, 0, len(set))
	for field := range set {
		rest = append(rest, field)
	}
	sort.Strings(rest)
	return append(fields, rest...)
}

func (e *Evaluator) scoreSummary(summary string, srcCtx *api.SourceContext) float64 {
	if summary == "" {
		return 0
	}

	score := 0.5
	lowered := strings.ToLower(summary)
	if containsAny(lowered, summaryHighKeywords) {
		score += 0.2
	}
	if containsAny(lowered, summaryMediumKeywords) {
		score += 0.1
	}

	if srcCtx != nil && srcCtx.Subject != "" {
		subject := strings.ToLower(srcCtx.Subject)
		if strings.Contains(subject, lowered) || strings.Contains(lowered, subject) {
			score += 0.2
		}
	}

	switch {
	case len(summary) < 5:
		score -= 0.2
	case len(summary) > 50:
		score -= 0.1
	}

	return clamp(score)
}

func (e *Evaluator) scoreDatetime(start, end *time.Time, allDay bool, sourceText string) float64 {
	if start == nil {
		return 0
	}

	score := 0.3
	// One tier bonus at most; stop at the first tier that matches.
	switch {
	case matchesAny(sourceText, datetimeHighPatterns):
		score += 0.5
	case matchesAny(sourceText, datetimeMediumPatterns):
		score += 0.3
	case matchesAny(sourceText, datetimeLowPatterns):
		score += 0.1
	}

	if !allDay {
		score += 0.2
	}
	if end != nil {
		score += 0.1
		if end.After(*start) {
			score += 0.1
		}
	}

	now := e.now()
	if start.After(now) {
		score += 0.1
	} else if start.Before(now.Add(-24 * time.Hour)) {
		score -= 0.2
	}

	return clamp(score)
}

func scoreLocation(location string) float64 {
	if location == "" {
		return 0
	}

	score := 0.4
	lowered := strings.ToLower(location)
	// Keyword bonuses are independent checks and may stack.
	if containsAny(lowered, locationHighKeywords) {
		score += 0.3
	}
	if containsAny(lowered, locationMediumKeywords) {
		score += 0.2
	}
	if matchesAny(location, addressShapePatterns) {
		score += 0.2
	}

	switch {
	case len(location) < 3:
		score -= 0.2
	case len(location) > 100:
		score -= 0.1
	}

	return clamp(score)
}

func scoreParticipants(participants []string, srcCtx *api.SourceContext) float64 {
	if len(participants) == 0 {
		return 0
	}

	score := 0.3
	switch count := len(participants); {
	case count == 1:
		score += 0.1
	case count <= 5:
		score += 0.3
	case count <= 10:
		score += 0.2
	default:
		score += 0.1
	}

	total := float64(len(participants))
	if addresses := srcCtx.AddressBook(); len(addresses) > 0 {
		matched := 0
		for _, participant := range participants {
			lowered := strings.ToLower(participant)
			for _, address := range addresses {
				addr := strings.ToLower(address)
				if strings.Contains(addr, lowered) || strings.Contains(lowered, addr) {
					matched++
					break
				}
			}
		}
		if matched > 0 {
			score += 0.2 * (float64(matched) / total)
		}
	}

	named := 0
	for _, participant := range participants {
		if shortNamePattern.MatchString(participant) {
			named++
		}
	}
	if named > 0 {
		score += 0.1 * (float64(named) / total)
	}

	// Additive per matching participant; only the final clamp bounds it.
	for _, participant := range participants {
		if containsAny(strings.ToLower(participant), participantTitleKeywords) {
			score += 0.1
		}
	}

	return clamp(score)
}

func weightedAggregate(scores map[string]float64) float64 {
	weightedSum := 0.0
	totalWeight := 0.0
	for field, score := range scores {
		weight, ok := fieldWeights[field]
		if !ok {
			weight = unknownFieldWeight
		}
		weightedSum += score * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

func adjustForContext(base float64, candidate api.CandidateEvent, sourceText string, srcCtx *api.SourceContext) float64 {
	adjusted := base

	if srcCtx != nil && containsAny(strings.ToLower(srcCtx.Subject), subjectMeetingKeywords) {
		adjusted += 0.1
	}

	switch length := len(sourceText); {
	case length < 50:
		adjusted -= 0.1
	case length > 2000:
		adjusted -= 0.05
	}

	if candidate.Summary == "" {
		adjusted -= 0.2
	}
	if candidate.StartTime == nil {
		adjusted -= 0.2
	}

	if candidate.StartTime != nil && candidate.EndTime != nil && !candidate.EndTime.After(*candidate.StartTime) {
		adjusted -= 0.2
	}

	return clamp(adjusted)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
