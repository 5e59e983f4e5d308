// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command adaptctl is the operator CLI for the EduAdapt platform.
//
// It talks to the adaptation and sessions services over HTTP for
// day-to-day operations: health checks, policy export/import, manual
// feedback injection, and dataset inspection.
//
// # Examples
//
//	adaptctl health
//	adaptctl policy show
//	adaptctl policy export > policy.json
//	adaptctl policy import seed.yaml
//	adaptctl feedback --learner learner-1 --arm text_only_small --reward 0.8
//	adaptctl dataset status --json
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	adaptationURL string
	sessionsURL   string
	jsonOutput    bool

	rootCmd = &cobra.Command{
		Use:   "adaptctl",
		Short: "Operator CLI for the EduAdapt adaptive learning platform",
		Long: `adaptctl manages a running EduAdapt deployment over HTTP.

It covers service health, bandit policy administration, manual feedback
injection for testing, and learning dataset inspection.`,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(CLIExitError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&adaptationURL, "adaptation-url",
		envOr("ADAPTCTL_ADAPTATION_URL", "http://localhost:12310"),
		"Adaptation service base URL")
	rootCmd.PersistentFlags().StringVar(&sessionsURL, "sessions-url",
		envOr("ADAPTCTL_SESSIONS_URL", "http://localhost:12311"),
		"Sessions service base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(datasetCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
