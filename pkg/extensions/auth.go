// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the boundary interfaces through which EduAdapt
// services consume authentication, authorization, and audit infrastructure.
//
// The open source distribution ships no-op implementations that make every
// request a local caller with full roles; hosted deployments supply real
// implementations (JWT validation against an identity provider, SIEM-backed
// audit sinks) without the services changing.
package extensions

import (
	"context"
	"errors"
)

// =============================================================================
// Errors
// =============================================================================

// ErrUnauthorized is returned by AuthProvider.Validate when the presented
// token is missing, malformed, expired, or revoked.
var ErrUnauthorized = errors.New("unauthorized")

// =============================================================================
// Roles
// =============================================================================

// Role names used across the platform. Handlers declare which roles may
// invoke them; the auth middleware enforces the declaration.
const (
	RoleLearner  = "learner"
	RoleEducator = "educator"
	RoleAdmin    = "admin"
)

// =============================================================================
// Types
// =============================================================================

// AuthInfo is the resolved identity of an authenticated caller.
//
// # Fields
//
//   - Subject: unique identifier for the caller. Never empty.
//   - Roles: role memberships used for authorization decisions.
//   - Metadata: additional claims from the identity provider. Hosted
//     implementations can store provider-specific data here without
//     changes to the core struct.
type AuthInfo struct {
	Subject  string
	Roles    []string
	Metadata map[string]any
}

// HasRole reports whether the caller holds the named role.
func (a *AuthInfo) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the caller holds at least one of the named
// roles. An empty role list means no restriction and always returns true.
func (a *AuthInfo) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// =============================================================================
// Interfaces
// =============================================================================

// AuthProvider validates bearer tokens and resolves caller identity.
//
// Implementations must be safe for concurrent use. Validate is called on
// every request, so implementations should cache validation material
// (JWKS, revocation lists) internally.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	//
	// # Inputs
	//
	//   - ctx: context for cancellation and timeout control.
	//   - token: the raw bearer token. May be empty.
	//
	// # Outputs
	//
	//   - *AuthInfo: caller identity if valid.
	//   - error: ErrUnauthorized (possibly wrapped) if invalid; other
	//     errors for infrastructure failures.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// =============================================================================
// No-op Implementation
// =============================================================================

// NopAuthProvider authenticates every request as a local caller with all
// roles. This is the open source default: it lets a single-node deployment
// run without any identity infrastructure while keeping the role checks in
// place for hosted deployments.
type NopAuthProvider struct{}

// Validate always succeeds, ignoring the token.
func (NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		Subject: "local-user",
		Roles:   []string{RoleLearner, RoleEducator, RoleAdmin},
	}, nil
}

var _ AuthProvider = NopAuthProvider{}
