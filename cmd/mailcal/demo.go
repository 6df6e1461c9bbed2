package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/melpes/mailcal/pkg/api"
	"github.com/melpes/mailcal/pkg/confidence"
	"github.com/melpes/mailcal/pkg/config"
	"github.com/melpes/mailcal/pkg/confirm"
	amqpnotify "github.com/melpes/mailcal/pkg/notify/amqp"
	consolenotify "github.com/melpes/mailcal/pkg/notify/console"
	jsonfilenotify "github.com/melpes/mailcal/pkg/notify/jsonfile"
	pgnotify "github.com/melpes/mailcal/pkg/notify/postgres"
	sloggernotify "github.com/melpes/mailcal/pkg/notify/slogger"
	webhooknotify "github.com/melpes/mailcal/pkg/notify/webhook"
)

// runDemo drives one candidate through the full confirmation workflow,
// answering the confirmation prompt from stdin.
func runDemo(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the JSON config file")
	candidatePath := fs.String("candidate", "", "path to a candidate event JSON file (default: built-in sample)")
	textPath := fs.String("text", "", "path to the source text the candidate was extracted from")
	subject := fs.String("subject", "", "subject line of the source email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	candidate, sourceText, srcCtx, err := demoInput(*candidatePath, *textPath, *subject)
	if err != nil {
		return err
	}

	handlers, closers, err := buildHandlers(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, closeHandler := range closers {
			closeHandler()
		}
	}()

	evaluator := confidence.New(cfg.EvaluatorConfig(), logger.With("component", "evaluator"))
	service := confirm.NewService(
		confirm.Config{DefaultExpiry: cfg.Expiry()},
		logger.With("component", "confirm"),
		handlers...,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	service.StartSweeper(ctx, time.Minute)

	evaluated := evaluator.Evaluate(candidate, sourceText, srcCtx)
	printBreakdown(evaluator, evaluated)
	fmt.Println()

	needsConfirmation, lowFields := evaluator.ShouldConfirm(evaluated)
	if !needsConfirmation {
		fmt.Println("Candidate is confident; it would be scheduled without asking.")
		return nil
	}

	requestID := service.RequestConfirmation(evaluated, "demo-email-1",
		confirm.WithSubject(srcCtx.Subject),
		confirm.WithCallback(func(id string, confirmed bool, modified map[string]any) (any, error) {
			if !confirmed {
				return "candidate discarded", nil
			}
			return fmt.Sprintf("event %q scheduled", evaluated.Summary), nil
		}),
	)

	fmt.Println(evaluator.BuildConfirmationMessage(evaluated, lowFields))
	fmt.Println()
	fmt.Print("> ")

	answer := "no"
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		answer = strings.ToLower(strings.TrimSpace(scanner.Text()))
	}
	confirmed := answer == "yes" || answer == "y"

	result, err := service.Respond(requestID, confirmed, nil, "")
	if err != nil {
		return fmt.Errorf("recording response: %w", err)
	}

	fmt.Println()
	fmt.Printf("Request %s: %s\n", result.RequestID, result.Status)
	if result.CallbackErr != nil {
		fmt.Printf("Callback failed: %v\n", result.CallbackErr)
	} else if result.CallbackResult != nil {
		fmt.Printf("Result: %v\n", result.CallbackResult)
	}

	stats, err := json.MarshalIndent(service.Stats(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding statistics: %w", err)
	}
	fmt.Println()
	fmt.Println("Statistics:")
	fmt.Println(string(stats))
	return nil
}

// buildHandlers assembles the notification handlers enabled by the
// configuration. The console handler is always on; the others require
// their endpoint to be configured.
func buildHandlers(cfg config.Config, logger *slog.Logger) ([]confirm.Handler, []func(), error) {
	handlers := []confirm.Handler{
		consolenotify.New(os.Stdout, logger.With("component", "console_notify")),
		sloggernotify.New(logger.With("component", "slog_notify"), slog.LevelDebug),
	}
	var closers []func()

	if cfg.AuditFilePath != "" {
		handler, err := jsonfilenotify.New(jsonfilenotify.Config{FilePath: cfg.AuditFilePath},
			logger.With("component", "jsonfile_notify"))
		if err != nil {
			return nil, closers, fmt.Errorf("creating jsonfile handler: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if cfg.WebhookURL != "" {
		handler, err := webhooknotify.New(webhooknotify.Config{URL: cfg.WebhookURL},
			logger.With("component", "webhook_notify"))
		if err != nil {
			return nil, closers, fmt.Errorf("creating webhook handler: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if cfg.AMQPURL != "" {
		handler, err := amqpnotify.New(amqpnotify.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
		}, logger.With("component", "amqp_notify"))
		if err != nil {
			return nil, closers, fmt.Errorf("creating amqp handler: %w", err)
		}
		handlers = append(handlers, handler)
		closers = append(closers, func() { _ = handler.Close() })
	}

	if cfg.PostgresHost != "" {
		handler, err := pgnotify.New(pgnotify.Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDatabase,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
		}, logger.With("component", "postgres_notify"))
		if err != nil {
			return nil, closers, fmt.Errorf("creating postgres handler: %w", err)
		}
		handlers = append(handlers, handler)
		closers = append(closers, handler.Close)
	}

	return handlers, closers, nil
}

// demoInput loads the candidate from flags, falling back to a built-in
// sample that lands below the confirmation threshold.
func demoInput(candidatePath, textPath, subject string) (api.CandidateEvent, string, *api.SourceContext, error) {
	if candidatePath != "" {
		candidate, err := readCandidate(candidatePath)
		if err != nil {
			return api.CandidateEvent{}, "", nil, err
		}
		sourceText := ""
		if textPath != "" {
			data, err := os.ReadFile(textPath)
			if err != nil {
				return api.CandidateEvent{}, "", nil, fmt.Errorf("reading source text: %w", err)
			}
			sourceText = string(data)
		}
		return candidate, sourceText, &api.SourceContext{Subject: subject}, nil
	}

	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	return api.CandidateEvent{
			Summary:      "Quarterly planning",
			StartTime:    &start,
			AllDay:       false,
			Location:     "TBD",
			Participants: []string{"alex@example.com", "sam@example.com"},
		},
		"Hi team, let's get together sometime next week to go over the quarterly plan. Room to be decided.",
		&api.SourceContext{
			Subject: "Quarterly planning",
			Sender:  "alex@example.com",
		}, nil
}
