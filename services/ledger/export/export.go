// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export pushes crawled graphs to downstream systems.
//
// KafkaPublisher streams edges to a Kafka topic, one JSON message per
// transaction, and doubles as a crawler.EdgeSink for live crawls.
// Neo4jExporter writes accounts and SENT_TO relationships into Neo4j.
//
// Both are idempotent per transaction hash: Kafka messages are keyed by
// hash and Neo4j relationships are merged on it.
package export

import (
	"errors"

	"github.com/AleutianAI/ethgraph/services/ledger/analytics"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
)

var (
	// ErrNoBrokers is returned when a Kafka config lists no brokers.
	ErrNoBrokers = errors.New("no kafka brokers configured")

	// ErrNoURI is returned when a Neo4j config has no URI.
	ErrNoURI = errors.New("no neo4j uri configured")
)

// EdgeMessage is the wire form of one edge.
type EdgeMessage struct {
	Session        string `json:"session,omitempty"`
	Hash           string `json:"hash"`
	Sender         string `json:"sender"`
	Recipient      string `json:"recipient"`
	ValueWei       string `json:"value_wei"`
	BlockNumber    string `json:"block_number"`
	BlockTimestamp int64  `json:"block_timestamp"`

	// USD is set when the exporter was given a valuer.
	USD string `json:"usd,omitempty"`
}

func newEdgeMessage(sessionID string, e *txgraph.Edge, v *analytics.Valuer) (EdgeMessage, error) {
	ts, err := e.Tx.Unix()
	if err != nil {
		return EdgeMessage{}, err
	}
	msg := EdgeMessage{
		Session:        sessionID,
		Hash:           e.Tx.HashKey(),
		Sender:         e.From.String(),
		Recipient:      e.To.String(),
		ValueWei:       e.Tx.Value,
		BlockNumber:    e.Tx.BlockNumber,
		BlockTimestamp: ts,
	}
	if v != nil {
		usd, err := v.USD(e.Tx)
		if err != nil {
			return EdgeMessage{}, err
		}
		msg.USD = usd.String()
	}
	return msg, nil
}
