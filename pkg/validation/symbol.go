// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values that end up in
// external queries or request URLs.
//
// Price series symbols and InfluxDB identifiers are interpolated into Flux
// queries, and addresses are interpolated into Etherscan request URLs and
// Cypher parameters. Validating them here prevents Flux injection and
// malformed requests.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// symbolPattern matches price series symbols such as ETH, ETH-USD or WETH.E.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// identifierPattern matches InfluxDB bucket and measurement names.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]{0,63}$`)

// ValidateSymbol validates a price series symbol to prevent Flux injection.
//
// Valid symbols are 1-10 characters of uppercase letters, digits, dots and
// hyphens, starting with a letter or digit.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %q (must be 1-10 uppercase alphanumeric chars, dots, or hyphens)", symbol)
	}
	return nil
}

// SanitizeSymbol normalizes a symbol to upper case and validates it.
//
//	symbol, err := validation.SanitizeSymbol(cfg.Symbol)
//	if err != nil {
//	    return err
//	}
//	// symbol is safe to use in a Flux query
func SanitizeSymbol(symbol string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if err := ValidateSymbol(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateIdentifier validates an InfluxDB bucket or measurement name.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier: %q", name)
	}
	return nil
}
