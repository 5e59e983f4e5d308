// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bandit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
)

// =============================================================================
// Default Policy
// =============================================================================

// DefaultPolicyID identifies the policy installed when the store has none.
const DefaultPolicyID = "default_bandit_v1"

// DefaultPolicy returns the built-in two-arm content delivery policy used
// when no policy has been imported or seeded.
func DefaultPolicy() *datatypes.Policy {
	return &datatypes.Policy{
		ID:        DefaultPolicyID,
		Type:      "bandit_policy",
		Active:    true,
		Algorithm: "thompson_sampling",
		Arms: []datatypes.Arm{
			{
				ID:         "text_only_small",
				Modalities: []string{"text"},
				ChunkSize:  1,
				Difficulty: "adaptive",
			},
			{
				ID:         "rich_medium",
				Modalities: []string{"text", "diagram"},
				ChunkSize:  2,
				Difficulty: "adaptive",
			},
		},
		Priors:        datatypes.DefaultPriors,
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: 1,
	}
}

// =============================================================================
// Seed Files
// =============================================================================

// LoadPolicyFile reads a YAML policy seed file and validates it enough to
// be importable. Missing priors fall back to Beta(1,1).
func LoadPolicyFile(path string) (*datatypes.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var policy datatypes.Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse policy file %q: %w", path, err)
	}

	if policy.ID == "" {
		return nil, fmt.Errorf("policy file %q: missing id", path)
	}
	if len(policy.Arms) == 0 {
		return nil, fmt.Errorf("policy file %q: no arms defined", path)
	}
	for i, arm := range policy.Arms {
		if arm.ID == "" {
			return nil, fmt.Errorf("policy file %q: arm %d missing id", path, i)
		}
	}
	if policy.Algorithm == "" {
		policy.Algorithm = "thompson_sampling"
	}
	if policy.Type == "" {
		policy.Type = "bandit_policy"
	}
	policy.Priors = policy.Priors.Normalize()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now().UTC()
	}
	if policy.SchemaVersion == 0 {
		policy.SchemaVersion = 1
	}
	return &policy, nil
}

// =============================================================================
// Hot Reload
// =============================================================================

// WatchPolicyFile watches a policy seed file and invokes apply with the
// freshly parsed policy on each change. Editors often replace files via
// rename, so the watch is placed on the parent directory and filtered by
// name. Parse failures are logged and skipped; the previous policy stays
// active. Blocks until ctx is cancelled.
func WatchPolicyFile(ctx context.Context, path string, logger *slog.Logger, apply func(*datatypes.Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	target := filepath.Clean(path)

	// Coalesce bursts of events from a single save.
	var pending *time.Timer
	pendingCh := make(chan struct{}, 1)

	reload := func() {
		policy, err := LoadPolicyFile(target)
		if err != nil {
			logger.Warn("policy reload skipped", "path", target, "error", err)
			return
		}
		if err := apply(policy); err != nil {
			logger.Error("policy reload failed to apply", "policy_id", policy.ID, "error", err)
			return
		}
		logger.Info("policy reloaded", "policy_id", policy.ID, "arms", len(policy.Arms))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case pendingCh <- struct{}{}:
				default:
				}
			})
		case <-pendingCh:
			reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("policy watcher error", "error", err)
		}
	}
}
