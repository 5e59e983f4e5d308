// Copyright (C) 2025 EduAdapt (oss@eduadapt.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical
// operations.
//
// This package contains validators for user-provided identifiers that end up
// in storage keys (BadgerDB key prefixes, Redis debounce keys) or in log
// records. Using these validators prevents key injection and path traversal
// through crafted learner, arm, or session identifiers.
package validation

import (
	"fmt"
	"regexp"
)

// identifierPattern matches valid platform identifiers: learner ids, arm ids,
// unit ids, policy ids. Allows lowercase/uppercase letters, digits,
// underscores, hyphens; must start alphanumeric; max 64 characters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,63}$`)

// ValidateIdentifier validates a platform identifier before it is used in a
// storage key.
//
// Valid identifiers:
//   - 1-64 characters
//   - letters, digits, underscores, hyphens
//   - first character alphanumeric
//
// Returns an error naming the field if the value is invalid.
//
// Example:
//
//	if err := validation.ValidateIdentifier("learner_id", req.LearnerID); err != nil {
//	    c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateIdentifier(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if !identifierPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q (must be 1-64 alphanumeric, underscore, or hyphen chars)", field, value)
	}
	return nil
}

// ValidateIdentifiers validates several (field, value) pairs, returning the
// first failure. Pairs must have even length.
func ValidateIdentifiers(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := ValidateIdentifier(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}
