// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/eduadapt/EduAdaptPlatform/pkg/ux"
)

var (
	feedbackLearner string
	feedbackArm     string
	feedbackReward  float64
)

// feedbackCmd injects one feedback observation, mainly for smoke
// testing a deployment.
//
// # Examples
//
//	adaptctl feedback --learner learner-1 --arm text_only_small --reward 0.8
var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Submit a feedback observation for an arm",
	Run:   runFeedbackCommand,
}

// datasetCmd groups learning dataset inspection.
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect the recorded learning dataset",
}

var datasetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded recommendation and feedback counts",
	Run:   runDatasetStatus,
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackLearner, "learner", "", "Learner id (required)")
	feedbackCmd.Flags().StringVar(&feedbackArm, "arm", "", "Arm id (required)")
	feedbackCmd.Flags().Float64Var(&feedbackReward, "reward", 1.0, "Reward value compared against the success threshold")
	feedbackCmd.MarkFlagRequired("learner")
	feedbackCmd.MarkFlagRequired("arm")

	datasetCmd.AddCommand(datasetStatusCmd)
}

func runFeedbackCommand(_ *cobra.Command, _ []string) {
	body := map[string]any{
		"learner_id": feedbackLearner,
		"arm_id":     feedbackArm,
		"reward":     feedbackReward,
	}
	if err := apiCall(http.MethodPost, adaptationURL+"/v1/adaptation/feedback", body, nil); err != nil {
		ux.Error(err.Error())
		os.Exit(CLIExitError)
	}
	ux.Success(fmt.Sprintf("Recorded reward %.2f for arm %s", feedbackReward, feedbackArm))
}

func runDatasetStatus(_ *cobra.Command, _ []string) {
	var status struct {
		Recommendations int64 `json:"recommendations"`
		Feedback        int64 `json:"feedback"`
	}
	if err := apiCall(http.MethodGet, adaptationURL+"/v1/rl/dataset/status", nil, &status); err != nil {
		ux.Error(err.Error())
		os.Exit(CLIExitError)
	}

	if jsonOutput {
		if err := outputJSON(status); err != nil {
			ux.Error(err.Error())
			os.Exit(CLIExitError)
		}
		return
	}
	ux.Title("Learning dataset")
	ux.KeyValue("recommendations", fmt.Sprintf("%d", status.Recommendations))
	ux.KeyValue("feedback", fmt.Sprintf("%d", status.Feedback))
}
