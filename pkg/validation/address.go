// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// addressPattern matches a 20-byte hex account address with 0x prefix.
// Mixed-case (EIP-55 checksummed) input is accepted; the checksum itself
// is not verified.
var addressPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{40}$`)

// ValidateAddress reports whether address is a well-formed account address.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("invalid address format: %q (must be 0x followed by 40 hex digits)", address)
	}
	return nil
}

// SanitizeAddress trims, validates and lower-cases an account address.
//
// The returned form is the one used as a graph node label, so that
// checksummed and lower-case spellings of one account collapse to one node.
func SanitizeAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if err := ValidateAddress(trimmed); err != nil {
		return "", err
	}
	return strings.ToLower(trimmed), nil
}
