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
	"gopkg.in/yaml.v3"

	"github.com/eduadapt/EduAdaptPlatform/pkg/ux"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
)

// policyCmd groups bandit policy administration.
//
// # Examples
//
//	adaptctl policy show
//	adaptctl policy export > backup.json
//	adaptctl policy import seed.yaml
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and manage the active bandit policy",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active policy and its posterior evidence",
	Run:   runPolicyShow,
}

var policyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the active policy with posteriors as JSON to stdout",
	Run:   runPolicyExport,
}

var policyImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a YAML policy file as the new active policy",
	Args:  cobra.ExactArgs(1),
	Run:   runPolicyImport,
}

func init() {
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyExportCmd)
	policyCmd.AddCommand(policyImportCmd)
}

// policySnapshot mirrors the policy endpoint's response body.
type policySnapshot struct {
	Policy     *datatypes.Policy     `json:"policy"`
	Posteriors []datatypes.Posterior `json:"posteriors"`
}

func (s *policySnapshot) posterior(armID string) (datatypes.Posterior, bool) {
	for _, p := range s.Posteriors {
		if p.ArmID == armID {
			return p, true
		}
	}
	return datatypes.Posterior{}, false
}

func runPolicyShow(_ *cobra.Command, _ []string) {
	var snap policySnapshot
	if err := apiCall(http.MethodGet, adaptationURL+"/v1/adaptation/policy", nil, &snap); err != nil {
		ux.Error(err.Error())
		os.Exit(CLIExitError)
	}

	if jsonOutput {
		if err := outputJSON(snap); err != nil {
			ux.Error(err.Error())
			os.Exit(CLIExitError)
		}
		return
	}

	ux.Title(fmt.Sprintf("Policy %s (%s)", snap.Policy.ID, snap.Policy.Algorithm))
	for _, arm := range snap.Policy.Arms {
		post, ok := snap.posterior(arm.ID)
		if !ok {
			ux.KeyValue(arm.ID, "no posterior evidence")
			continue
		}
		ux.KeyValue(arm.ID, fmt.Sprintf(
			"Beta(%d, %d) mean %.3f",
			post.Alpha, post.Beta, post.Mean()))
	}
}

func runPolicyExport(_ *cobra.Command, _ []string) {
	var export map[string]any
	if err := apiCall(http.MethodGet, adaptationURL+"/v1/adaptation/policy/export", nil, &export); err != nil {
		ux.Error(err.Error())
		os.Exit(CLIExitError)
	}
	if err := outputJSON(export); err != nil {
		ux.Error(err.Error())
		os.Exit(CLIExitError)
	}
}

func runPolicyImport(_ *cobra.Command, args []string) {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		ux.Error(fmt.Sprintf("read policy file: %v", err))
		os.Exit(CLIExitError)
	}

	var policy datatypes.Policy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		ux.Error(fmt.Sprintf("parse policy file: %v", err))
		os.Exit(CLIExitError)
	}

	var resp struct {
		Status   string `json:"status"`
		PolicyID string `json:"policy_id"`
	}
	if err := apiCall(http.MethodPost, adaptationURL+"/v1/adaptation/policy/import",
		datatypes.PolicyImportRequest{Policy: &policy}, &resp); err != nil {
		ux.Error(err.Error())
		os.Exit(CLIExitError)
	}

	if jsonOutput {
		if err := outputJSON(resp); err != nil {
			ux.Error(err.Error())
			os.Exit(CLIExitError)
		}
		return
	}
	ux.Success(fmt.Sprintf("Imported policy %s", resp.PolicyID))
}
