// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/eduadapt/EduAdaptPlatform/pkg/extensions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// staticAuthProvider validates any token to a fixed identity.
type staticAuthProvider struct {
	info *extensions.AuthInfo
	err  error
}

func (p staticAuthProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	return p.info, p.err
}

func TestRequireRoles_AllowsMatchingRole(t *testing.T) {
	router := gin.New()
	provider := staticAuthProvider{info: &extensions.AuthInfo{
		Subject: "u1", Roles: []string{extensions.RoleLearner},
	}}
	router.GET("/x", RequireRoles(provider, extensions.RoleLearner), func(c *gin.Context) {
		info := GetAuthInfo(c)
		if info == nil || info.Subject != "u1" {
			t.Errorf("handler did not see auth info: %+v", info)
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRequireRoles_RejectsMissingRole(t *testing.T) {
	router := gin.New()
	provider := staticAuthProvider{info: &extensions.AuthInfo{
		Subject: "u1", Roles: []string{extensions.RoleLearner},
	}}
	router.GET("/x", RequireRoles(provider, extensions.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestRequireRoles_RejectsInvalidToken(t *testing.T) {
	router := gin.New()
	provider := staticAuthProvider{err: extensions.ErrUnauthorized}
	router.GET("/x", RequireRoles(provider), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	if got := bearerToken("Bearer abc123"); got != "abc123" {
		t.Errorf("bearerToken = %q, want abc123", got)
	}
	if got := bearerToken("bearer abc123"); got != "abc123" {
		t.Errorf("case-insensitive scheme: got %q", got)
	}
	if got := bearerToken("Basic abc123"); got != "" {
		t.Errorf("non-bearer scheme should yield empty, got %q", got)
	}
	if got := bearerToken(""); got != "" {
		t.Errorf("empty header should yield empty, got %q", got)
	}
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/x", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if seen == "" {
		t.Fatal("handler saw empty request id")
	}
	if got := w.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header %q != context id %q", got, seen)
	}
}

func TestRequestID_HonorsIncomingHeader(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-fixed")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "req-fixed" {
		t.Errorf("expected incoming id echoed, got %q", got)
	}
}

func TestRateLimiter_DeniesOverBudget(t *testing.T) {
	rl := NewRateLimiter(2)
	denied := 0
	rl.OnDenied = func(string) { denied++ }

	router := gin.New()
	router.GET("/x", rl.Middleware("test"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := []int{}
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}

	// Burst is perMinute, so the first two pass and the rest are denied.
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first two requests should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests || codes[3] != http.StatusTooManyRequests {
		t.Errorf("later requests should be limited, got %v", codes)
	}
	if denied != 2 {
		t.Errorf("OnDenied called %d times, want 2", denied)
	}
}

func TestRateLimiter_ZeroDisables(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !rl.Allow("k") {
			t.Fatal("disabled limiter must always allow")
		}
	}
}
