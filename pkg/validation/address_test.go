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
	"testing"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"lowercase", "0x60d170c2b604a4b613b43805ae4657476dca9e38", false},
		{"checksummed", "0x60D170c2b604a4B613b43805aE4657476DCA9E38", false},
		{"upper prefix", "0X60d170c2b604a4b613b43805ae4657476dca9e38", false},

		{"empty", "", true},
		{"no prefix", "60d170c2b604a4b613b43805ae4657476dca9e38", true},
		{"too short", "0x60d170c2", true},
		{"too long", "0x60d170c2b604a4b613b43805ae4657476dca9e3800", true},
		{"non hex", "0x60d170c2b604a4b613b43805ae4657476dca9eZZ", true},
		{"query injection", "0x60d170c2b604a4b613b43805ae4657476dca9e38&apikey=x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeAddress(t *testing.T) {
	got, err := SanitizeAddress("  0x60D170c2b604a4B613b43805aE4657476DCA9E38 ")
	if err != nil {
		t.Fatalf("SanitizeAddress() error = %v", err)
	}
	if want := "0x60d170c2b604a4b613b43805ae4657476dca9e38"; got != want {
		t.Errorf("SanitizeAddress() = %q, want %q", got, want)
	}

	if _, err := SanitizeAddress("not-an-address"); err == nil {
		t.Error("SanitizeAddress(not-an-address) expected error")
	}
}
