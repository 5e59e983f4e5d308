// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/bandit"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/cache"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/datatypes"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/observability"
	"github.com/eduadapt/EduAdaptPlatform/services/adaptation/storage"
)

var (
	metricsOnce sync.Once
	testMetrics *observability.AdaptationMetrics
)

// sharedMetrics initializes the metrics singleton exactly once per test
// binary (promauto panics on duplicate registration).
func sharedMetrics() *observability.AdaptationMetrics {
	metricsOnce.Do(func() {
		testMetrics = observability.InitMetrics()
	})
	return testMetrics
}

func newTestRouter(t *testing.T) (*gin.Engine, *bandit.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	engine := bandit.NewEngine(store, cache.NewMemoryCache(), slog.Default(), bandit.Config{Seed: 1})
	m := sharedMetrics()

	router := gin.New()
	router.POST("/v1/adaptation/recommend-next", RecommendNext(engine, m))
	router.POST("/v1/adaptation/feedback", SubmitFeedback(engine, m))
	router.GET("/v1/adaptation/policy", PolicyInfo(engine, m))
	router.GET("/v1/adaptation/policy/export", ExportPolicy(engine, m))
	router.POST("/v1/adaptation/policy/import", ImportPolicy(engine, m))
	router.GET("/v1/rl/dataset/status", DatasetStatus(engine, m))
	router.GET("/healthz", Healthz("adaptation", "test"))
	return router, engine
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRecommendNextHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/adaptation/recommend-next",
		gin.H{"learner_id": "learner-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var rec datatypes.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.PolicyID != bandit.DefaultPolicyID {
		t.Errorf("policy_id = %q, want default policy", rec.PolicyID)
	}
	if rec.Strategy != datatypes.StrategyExploit && rec.Strategy != datatypes.StrategyExplore {
		t.Errorf("unexpected strategy %q", rec.Strategy)
	}
	if rec.Cached {
		t.Error("first recommendation must not be cached")
	}

	// Immediate repeat is debounced.
	w = doJSON(t, router, http.MethodPost, "/v1/adaptation/recommend-next",
		gin.H{"learner_id": "learner-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var repeat datatypes.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &repeat); err != nil {
		t.Fatal(err)
	}
	if !repeat.Cached {
		t.Error("repeat request inside TTL should be cached")
	}
	if repeat.ArmID != rec.ArmID {
		t.Errorf("cached arm %q differs from original %q", repeat.ArmID, rec.ArmID)
	}
}

func TestRecommendNextValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name string
		body any
	}{
		{"missing learner_id", gin.H{}},
		{"empty learner_id", gin.H{"learner_id": ""}},
		{"invalid characters", gin.H{"learner_id": "lea:rner"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/adaptation/recommend-next", tc.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", w.Code)
			}
		})
	}
}

func TestSubmitFeedbackHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/adaptation/feedback",
		gin.H{"learner_id": "learner-1", "arm": "text_only_small", "reward": 0.9})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// Reward is an arbitrary real compared against the threshold, so
	// values outside [0, 1] are accepted.
	w = doJSON(t, router, http.MethodPost, "/v1/adaptation/feedback",
		gin.H{"learner_id": "learner-1", "arm": "text_only_small", "reward": 1.5})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// Missing arm is rejected.
	w = doJSON(t, router, http.MethodPost, "/v1/adaptation/feedback",
		gin.H{"learner_id": "learner-1", "reward": 0.5})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestPolicyInfoHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/adaptation/policy", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var snap bandit.PolicySnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Policy == nil || snap.Policy.ID != bandit.DefaultPolicyID {
		t.Fatalf("unexpected policy: %+v", snap.Policy)
	}
	if len(snap.Posteriors) != len(snap.Policy.Arms) {
		t.Fatalf("got %d posteriors for %d arms", len(snap.Posteriors), len(snap.Policy.Arms))
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	policy := gin.H{
		"policy": gin.H{
			"id": "pilot-v2",
			"arms": []gin.H{
				{"id": "arm-a", "modalities": []string{"text"}, "chunk_size": 1},
				{"id": "arm-b", "modalities": []string{"video"}, "chunk_size": 3},
			},
			"priors": gin.H{"alpha": 2, "beta": 2},
		},
	}
	w := doJSON(t, router, http.MethodPost, "/v1/adaptation/policy/import", policy)
	if w.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/v1/adaptation/policy/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	var export struct {
		Policy *datatypes.Policy `json:"policy"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &export); err != nil {
		t.Fatal(err)
	}
	if export.Policy.ID != "pilot-v2" {
		t.Fatalf("exported policy %q, want pilot-v2", export.Policy.ID)
	}

	// Import without arms is rejected.
	w = doJSON(t, router, http.MethodPost, "/v1/adaptation/policy/import",
		gin.H{"policy": gin.H{"id": "broken"}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestDatasetStatusHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/v1/adaptation/recommend-next", gin.H{"learner_id": "learner-1"})
	doJSON(t, router, http.MethodPost, "/v1/adaptation/feedback",
		gin.H{"learner_id": "learner-1", "arm": "text_only_small", "reward": 0.7})

	w := doJSON(t, router, http.MethodGet, "/v1/rl/dataset/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status struct {
		Recommendations int64 `json:"recommendations"`
		Feedback        int64 `json:"feedback"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Recommendations != 1 || status.Feedback != 1 {
		t.Fatalf("counts = %+v, want 1 and 1", status)
	}
}

func TestHealthzHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["service"] != "adaptation" {
		t.Fatalf("unexpected health body: %v", body)
	}
}
