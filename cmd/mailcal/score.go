package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/melpes/mailcal/pkg/api"
	"github.com/melpes/mailcal/pkg/confidence"
	"github.com/melpes/mailcal/pkg/config"
)

// runScore evaluates a single candidate event and prints the confidence
// breakdown without touching the confirmation workflow.
func runScore(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the JSON config file")
	candidatePath := fs.String("candidate", "", "path to a candidate event JSON file (required)")
	textPath := fs.String("text", "", "path to the source text the candidate was extracted from")
	subject := fs.String("subject", "", "subject line of the source email")
	sender := fs.String("sender", "", "sender address of the source email")
	asJSON := fs.Bool("json", false, "print the evaluated candidate as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *candidatePath == "" {
		return fmt.Errorf("-candidate is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	candidate, err := readCandidate(*candidatePath)
	if err != nil {
		return err
	}

	sourceText := ""
	if *textPath != "" {
		data, err := os.ReadFile(*textPath)
		if err != nil {
			return fmt.Errorf("reading source text: %w", err)
		}
		sourceText = string(data)
	}

	var srcCtx *api.SourceContext
	if *subject != "" || *sender != "" {
		srcCtx = &api.SourceContext{Subject: *subject, Sender: *sender}
	}

	evaluator := confidence.New(cfg.EvaluatorConfig(), logger.With("component", "evaluator"))
	evaluated := evaluator.Evaluate(candidate, sourceText, srcCtx)

	if *asJSON {
		out, err := json.MarshalIndent(evaluated, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	printBreakdown(evaluator, evaluated)
	return nil
}

func readCandidate(path string) (api.CandidateEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.CandidateEvent{}, fmt.Errorf("reading candidate: %w", err)
	}
	var candidate api.CandidateEvent
	if err := json.Unmarshal(data, &candidate); err != nil {
		return api.CandidateEvent{}, fmt.Errorf("parsing candidate JSON: %w", err)
	}
	return candidate, nil
}

func printBreakdown(evaluator *confidence.Evaluator, evaluated api.CandidateEvent) {
	fmt.Println("=== Confidence Breakdown ===")
	fmt.Println()
	fmt.Printf("Title: %s\n", orPlaceholder(evaluated.Summary, "(none)"))
	if evaluated.StartTime != nil {
		fmt.Printf("Starts: %s\n", evaluated.StartTime.Format(time.RFC3339))
	}
	if evaluated.EndTime != nil {
		fmt.Printf("Ends: %s\n", evaluated.EndTime.Format(time.RFC3339))
	}
	fmt.Println()

	for _, field := range api.Fields {
		fmt.Printf("  %-13s %5.1f%%\n", field+":", evaluated.FieldConfidence[field]*100)
	}
	fmt.Println()
	fmt.Printf("Overall: %.1f%%\n", evaluated.OverallConfidence*100)

	needsConfirmation, lowFields := evaluator.ShouldConfirm(evaluated)
	if needsConfirmation {
		fmt.Printf("Verdict: needs confirmation (low: %s)\n", strings.Join(lowFields, ", "))
	} else {
		fmt.Println("Verdict: confident, no confirmation needed")
	}
}

func orPlaceholder(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}
