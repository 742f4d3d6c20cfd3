// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package etherscan

import (
	"bytes"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
)

// APIKey holds an Etherscan API key in encrypted, locked memory.
//
// APIKey deliberately formats as "[REDACTED]" so it cannot leak through
// logging or error wrapping.
type APIKey struct {
	enclave *memguard.Enclave
}

// NewAPIKey seals raw into an enclave. Surrounding whitespace is trimmed.
func NewAPIKey(raw string) (*APIKey, error) {
	return newAPIKey([]byte(raw))
}

// LoadAPIKey reads the key stored in path, trimming surrounding whitespace.
func LoadAPIKey(path string) (*APIKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read API key %s: %w", path, err)
	}
	key, err := newAPIKey(data)
	if err != nil {
		return nil, fmt.Errorf("read API key %s: %w", path, err)
	}
	return key, nil
}

func newAPIKey(raw []byte) (*APIKey, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		memguard.WipeBytes(raw)
		return nil, ErrEmptyAPIKey
	}
	// NewEnclave wipes the slice it is given.
	enclave := memguard.NewEnclave(trimmed)
	memguard.WipeBytes(raw)
	return &APIKey{enclave: enclave}, nil
}

// Use decrypts the key and passes it to fn. The plaintext buffer is
// destroyed when fn returns, so fn must not retain the string.
func (k *APIKey) Use(fn func(key string) error) error {
	if k == nil || k.enclave == nil {
		return ErrEmptyAPIKey
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("open API key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.String())
}

// String implements fmt.Stringer without revealing the key.
func (k *APIKey) String() string {
	return "[REDACTED]"
}
