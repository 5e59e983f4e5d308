// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bandit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPolicyFile(t *testing.T) {
	path := writeSeedFile(t, `
id: classroom-pilot-v1
arms:
  - id: text_only_small
    modalities: [text]
    chunk_size: 1
    difficulty: adaptive
  - id: rich_medium
    modalities: [text, diagram]
    chunk_size: 2
    difficulty: adaptive
priors:
  alpha: 2
  beta: 2
`)

	policy, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile failed: %v", err)
	}
	if policy.ID != "classroom-pilot-v1" {
		t.Fatalf("unexpected id %q", policy.ID)
	}
	if len(policy.Arms) != 2 {
		t.Fatalf("got %d arms, want 2", len(policy.Arms))
	}
	if policy.Priors != (datatypes.Priors{Alpha: 2, Beta: 2}) {
		t.Fatalf("priors not parsed: %+v", policy.Priors)
	}
	if policy.Algorithm != "thompson_sampling" {
		t.Fatalf("algorithm default missing: %q", policy.Algorithm)
	}
	if policy.CreatedAt.IsZero() || policy.SchemaVersion != 1 {
		t.Fatal("defaults for created_at and schema_version not applied")
	}
}

func TestLoadPolicyFileDefaultsPriors(t *testing.T) {
	path := writeSeedFile(t, `
id: minimal
arms:
  - id: only-arm
`)
	policy, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile failed: %v", err)
	}
	if policy.Priors != datatypes.DefaultPriors {
		t.Fatalf("priors = %+v, want Beta(1,1)", policy.Priors)
	}
}

func TestLoadPolicyFileRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing id":   "arms:\n  - id: a\n",
		"no arms":      "id: p\n",
		"blank arm id": "id: p\narms:\n  - chunk_size: 1\n",
		"bad yaml":     "id: [unclosed\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadPolicyFile(writeSeedFile(t, content)); err == nil {
				t.Fatal("invalid seed file accepted")
			}
		})
	}
}

func TestDefaultPolicyShape(t *testing.T) {
	p := DefaultPolicy()
	if p.ID != DefaultPolicyID || !p.Active {
		t.Fatalf("unexpected default policy header: %+v", p)
	}
	if len(p.Arms) != 2 {
		t.Fatalf("default policy has %d arms, want 2", len(p.Arms))
	}
	if p.Arms[0].ID != "text_only_small" || p.Arms[1].ID != "rich_medium" {
		t.Fatalf("unexpected arm ids: %s, %s", p.Arms[0].ID, p.Arms[1].ID)
	}
	if p.Arms[0].ChunkSize != 1 || p.Arms[1].ChunkSize != 2 {
		t.Fatalf("unexpected chunk sizes: %d, %d", p.Arms[0].ChunkSize, p.Arms[1].ChunkSize)
	}
}
