// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPRecommenderSuccess(t *testing.T) {
	var gotPath, gotLearner, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRequestID = r.Header.Get("X-Request-ID")
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotLearner = body["learner_id"]
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"learner_id": body["learner_id"],
			"arm_id":     "rich_medium",
			"strategy":   "exploit",
		})
	}))
	defer srv.Close()

	rec := NewHTTPRecommender(srv.URL, time.Second)
	ctx := WithRequestID(context.Background(), "req-42")
	payload, err := rec.RecommendNext(ctx, "learner-7")
	if err != nil {
		t.Fatalf("RecommendNext: %v", err)
	}

	if gotPath != "/v1/adaptation/recommend-next" {
		t.Errorf("path = %q", gotPath)
	}
	if gotLearner != "learner-7" {
		t.Errorf("learner_id = %q", gotLearner)
	}
	if gotRequestID != "req-42" {
		t.Errorf("X-Request-ID = %q", gotRequestID)
	}
	if payload["arm_id"] != "rich_medium" {
		t.Errorf("arm_id = %v", payload["arm_id"])
	}
}

func TestHTTPRecommenderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := NewHTTPRecommender(srv.URL, time.Second)
	_, err := rec.RecommendNext(context.Background(), "learner-7")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestHTTPRecommenderConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	rec := NewHTTPRecommender(srv.URL, time.Second)
	_, err := rec.RecommendNext(context.Background(), "learner-7")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestHTTPRecommenderMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	rec := NewHTTPRecommender(srv.URL, time.Second)
	_, err := rec.RecommendNext(context.Background(), "learner-7")
	if err == nil {
		t.Fatal("expected an error for a malformed body")
	}
	// A broken payload from a reachable upstream is an exception, not
	// an availability failure.
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("malformed body wrongly classified unavailable: %v", err)
	}
}
