// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package txgraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// weiDecimals is the number of decimal places between wei and ether.
const weiDecimals = 18

// Address is a lower-cased account address used as a node label.
type Address string

// NormalizeAddress trims and lower-cases an address so that checksummed and
// plain spellings of one account compare equal.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// String returns the address as a plain string.
func (a Address) String() string {
	return string(a)
}

// Short returns the first ten characters of the address, for log lines.
func (a Address) Short() string {
	if len(a) <= 10 {
		return string(a)
	}
	return string(a[:10])
}

// Transaction is one normal transaction as reported by the Etherscan
// account/txlist endpoint.
//
// All fields are kept as the decimal or hex strings the API returns so that
// a persisted graph carries the payload verbatim. Numeric accessors parse on
// demand.
type Transaction struct {
	BlockNumber       string `json:"blockNumber"`
	TimeStamp         string `json:"timeStamp"`
	Hash              string `json:"hash"`
	Nonce             string `json:"nonce"`
	BlockHash         string `json:"blockHash"`
	TransactionIndex  string `json:"transactionIndex"`
	From              string `json:"from"`
	To                string `json:"to"`
	Value             string `json:"value"`
	Gas               string `json:"gas"`
	GasPrice          string `json:"gasPrice"`
	IsError           string `json:"isError"`
	TxReceiptStatus   string `json:"txreceipt_status"`
	Input             string `json:"input"`
	ContractAddress   string `json:"contractAddress"`
	CumulativeGasUsed string `json:"cumulativeGasUsed"`
	GasUsed           string `json:"gasUsed"`
	Confirmations     string `json:"confirmations"`
	MethodID          string `json:"methodId"`
	FunctionName      string `json:"functionName"`
}

// FromAddress returns the normalized sender.
func (t Transaction) FromAddress() Address {
	return NormalizeAddress(t.From)
}

// ToAddress returns the normalized recipient. Empty for contract creation.
func (t Transaction) ToAddress() Address {
	return NormalizeAddress(t.To)
}

// HashKey returns the normalized hash used for deduplication.
func (t Transaction) HashKey() string {
	return strings.ToLower(strings.TrimSpace(t.Hash))
}

// IsContractCreation reports whether the transaction deploys a contract.
// Such transactions have no recipient and are not value transfers between
// two accounts.
func (t Transaction) IsContractCreation() bool {
	return strings.TrimSpace(t.To) == ""
}

// Failed reports whether the transaction reverted.
//
// isError is "1" for failed executions. txreceipt_status is "0" for failed
// post-Byzantium receipts and empty for older blocks.
func (t Transaction) Failed() bool {
	return t.IsError == "1" || t.TxReceiptStatus == "0"
}

// Unix returns the block timestamp in unix seconds.
func (t Transaction) Unix() (int64, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(t.TimeStamp), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: timestamp %q", ErrMalformedTransaction, t.Hash, t.TimeStamp)
	}
	return ts, nil
}

// Wei returns the transferred value in wei.
func (t Transaction) Wei() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(t.Value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: value %q", ErrMalformedTransaction, t.Hash, t.Value)
	}
	if v.IsNegative() || !v.Equal(v.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("%w: %s: value %q is not a non-negative integer", ErrMalformedTransaction, t.Hash, t.Value)
	}
	return v, nil
}

// Ether returns the transferred value in ether (wei / 10^18), exactly.
func (t Transaction) Ether() (decimal.Decimal, error) {
	wei, err := t.Wei()
	if err != nil {
		return decimal.Zero, err
	}
	return wei.Shift(-weiDecimals), nil
}
