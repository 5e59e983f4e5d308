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
	"golang.org/x/sync/errgroup"

	"github.com/eduadapt/EduAdaptPlatform/pkg/ux"
)

// healthCmd checks liveness of both platform services.
//
// # Examples
//
//	adaptctl health
//	adaptctl health --json
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check liveness of the adaptation and sessions services",
	Run:   runHealthCommand,
}

type healthStatus struct {
	Service string `json:"service"`
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runHealthCommand(_ *cobra.Command, _ []string) {
	names := []string{"adaptation", "sessions"}
	urls := []string{adaptationURL, sessionsURL}
	statuses := make([]healthStatus, len(names))

	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			statuses[i] = checkService(names[i], urls[i])
			return nil
		})
	}
	g.Wait()

	if jsonOutput {
		if err := outputJSON(statuses); err != nil {
			ux.Error(err.Error())
			os.Exit(CLIExitError)
		}
	} else {
		ux.Title("EduAdapt platform health")
		for _, st := range statuses {
			if st.Healthy {
				ux.Success(fmt.Sprintf("%s (%s) version %s", st.Service, st.URL, st.Version))
			} else {
				ux.Error(fmt.Sprintf("%s (%s): %s", st.Service, st.URL, st.Error))
			}
		}
	}

	for _, st := range statuses {
		if !st.Healthy {
			os.Exit(CLIExitError)
		}
	}
}

func checkService(name, baseURL string) healthStatus {
	st := healthStatus{Service: name, URL: baseURL}

	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := apiCall(http.MethodGet, baseURL+"/healthz", nil, &resp); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Healthy = resp.Status == "ok"
	st.Version = resp.Version
	if !st.Healthy {
		st.Error = fmt.Sprintf("status %q", resp.Status)
	}
	return st
}
