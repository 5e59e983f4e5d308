// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware shared by the EduAdapt
// services: bearer-token authentication with role checks, request-ID
// propagation, and per-client rate limiting.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header,
// validates it with the configured extensions.AuthProvider, and stores the
// resulting AuthInfo in the gin context for downstream handlers:
//
//	Request
//	   │
//	   ▼
//	RequireRoles("learner", "educator", "admin")
//	   │
//	   ├─► extract "Authorization: Bearer <token>"
//	   ├─► provider.Validate(ctx, token)
//	   ├─► role check
//	   └─► store AuthInfo in context
//	           │
//	           ▼
//	       handler (retrieves via GetAuthInfo)
//
// With the default NopAuthProvider every request is authenticated as a
// local caller holding all roles, so a single-node deployment works without
// identity infrastructure.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eduadapt/EduAdaptPlatform/pkg/extensions"
)

// authInfoKey is the gin context key for the authenticated caller.
// A namespaced key prevents collisions with other context values.
const authInfoKey = "eduadapt_auth_info"

// SetAuthInfo stores the authenticated caller in the gin context.
// Called by RequireRoles after successful authentication; exported so
// handler tests can inject identities directly.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated caller from the gin context.
// Returns nil if the request did not pass through RequireRoles.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	v, ok := c.Get(authInfoKey)
	if !ok {
		return nil
	}
	info, ok := v.(*extensions.AuthInfo)
	if !ok {
		return nil
	}
	return info
}

// RequireRoles returns middleware that authenticates the request with the
// provider and aborts with 401/403 unless the caller holds at least one of
// the named roles. An empty role list only requires authentication.
//
// # Inputs
//
//   - provider: AuthProvider used to validate the bearer token. Must not
//     be nil; pass extensions.NopAuthProvider{} for open source defaults.
//   - roles: acceptable roles for the guarded route group.
//
// # Outputs
//
//   - gin.HandlerFunc: aborts with {"error": "unauthorized"} (401) on
//     validation failure and {"error": "forbidden"} (403) on role mismatch.
func RequireRoles(provider extensions.AuthProvider, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !info.HasAnyRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		SetAuthInfo(c, info)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
// Returns "" when the header is absent or not a bearer scheme; the provider
// decides whether an empty token is acceptable.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
