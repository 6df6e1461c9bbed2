package main

import (
	"fmt"
	"os"

	"github.com/melpes/mailcal/pkg/logging"
)

const defaultConfigPath = "config.json"

func main() {
	logger := logging.Setup(logging.FromEnv())

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "score":
		err = runScore(logger, os.Args[2:])
	case "demo":
		err = runDemo(logger, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("mailcal - confidence scoring for email-extracted calendar events")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mailcal score [flags]   Score a candidate event and print the breakdown")
	fmt.Println("  mailcal demo [flags]    Run the interactive confirmation workflow")
	fmt.Println("  mailcal help            Show this help")
	fmt.Println()
	fmt.Println("Run 'mailcal <command> -h' for command flags.")
}
