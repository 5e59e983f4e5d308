// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUpstreamUnavailable marks failures caused by the upstream being
// unreachable or unhealthy (connection refused, timeout, non-200). The
// stream manager surfaces these as adaptation_unavailable; any other
// error becomes adaptation_exception.
var ErrUpstreamUnavailable = errors.New("recommendation upstream unavailable")

// Recommender is the stream manager's view of the recommendation
// engine. Implementations must honor ctx cancellation and deadlines.
type Recommender interface {
	// RecommendNext returns the next recommendation payload for a
	// learner. The payload is passed through to the stream consumer
	// unmodified.
	RecommendNext(ctx context.Context, learnerID string) (map[string]any, error)
}

// =============================================================================
// HTTP Client
// =============================================================================

// HTTPRecommender calls the adaptation service over HTTP. It is the
// production Recommender for deployments where sessions and adaptation
// run as separate services.
type HTTPRecommender struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRecommender builds a client for the adaptation service at
// baseURL (e.g. "http://adaptation:12310"). timeout bounds each call;
// zero means 5 seconds. There is no unbounded wait on the upstream.
func NewHTTPRecommender(baseURL string, timeout time.Duration) *HTTPRecommender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRecommender{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// RecommendNext implements Recommender.
func (r *HTTPRecommender) RecommendNext(ctx context.Context, learnerID string) (map[string]any, error) {
	body, err := json.Marshal(map[string]string{"learner_id": learnerID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/v1/adaptation/recommend-next", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode recommendation: %w", err)
	}
	return payload, nil
}

// requestIDKey carries the originating request id into upstream calls.
type requestIDKey struct{}

// WithRequestID returns a context that propagates the request id to
// upstream recommendation calls.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

var _ Recommender = (*HTTPRecommender)(nil)
