// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/AleutianAI/ethgraph/services/ledger/analytics"
	"github.com/AleutianAI/ethgraph/services/ledger/ledgertest"
	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeMessage(t *testing.T, val []byte) EdgeMessage {
	t.Helper()
	var msg EdgeMessage
	require.NoError(t, sonnet.Unmarshal(val, &msg))
	return msg
}

func TestKafkaPublisher_PublishEdge(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	g := ledgertest.FixtureGraph()
	edge := g.Edges()[0]

	var got EdgeMessage
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		got = decodeMessage(t, val)
		return nil
	})

	p, err := NewKafkaPublisherWithProducer(producer, "", WithKafkaLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, p.Topic())

	require.NoError(t, p.PublishEdge(context.Background(), "session-1", edge))
	require.NoError(t, p.Close())

	assert.Equal(t, "session-1", got.Session)
	assert.Equal(t, edge.Tx.Hash, got.Hash)
	assert.Equal(t, ledgertest.AddrA.String(), got.Sender)
	assert.Equal(t, ledgertest.AddrB.String(), got.Recipient)
	assert.Equal(t, "63500000000000000", got.ValueWei)
	assert.Equal(t, ledgertest.T0+100, got.BlockTimestamp)
	assert.Empty(t, got.USD, "no valuer, no usd")
}

func TestKafkaPublisher_WithValuer(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	var got EdgeMessage
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		got = decodeMessage(t, val)
		return nil
	})

	p, err := NewKafkaPublisherWithProducer(producer, "edges",
		WithKafkaLogger(quietLogger()),
		WithKafkaValuer(analytics.NewValuer(ledgertest.FixtureIndex())),
	)
	require.NoError(t, err)
	require.NoError(t, p.PublishEdge(context.Background(), "", ledgertest.FixtureGraph().Edges()[1]))
	require.NoError(t, p.Close())

	assert.Equal(t, "1500", got.USD)
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p, err := NewKafkaPublisherWithProducer(producer, "edges", WithKafkaLogger(quietLogger()))
	require.NoError(t, err)

	err = p.PublishEdge(context.Background(), "s", ledgertest.FixtureGraph().Edges()[0])
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_PublishGraph(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	g := ledgertest.FixtureGraph()

	var hashes []string
	for range g.Edges() {
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			hashes = append(hashes, decodeMessage(t, val).Hash)
			return nil
		})
	}

	p, err := NewKafkaPublisherWithProducer(producer, "edges", WithKafkaLogger(quietLogger()))
	require.NoError(t, err)

	sent, err := p.PublishGraph(context.Background(), "s", g, 3)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	assert.Equal(t, 8, sent)
	require.Len(t, hashes, 8)
	for i, e := range g.Edges() {
		assert.Equal(t, e.Tx.HashKey(), hashes[i])
	}
}

func TestKafkaPublisher_Cancelled(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p, err := NewKafkaPublisherWithProducer(producer, "edges", WithKafkaLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.PublishGraph(ctx, "s", ledgertest.FixtureGraph(), 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, p.PublishEdge(ctx, "s", ledgertest.FixtureGraph().Edges()[0]), context.Canceled)
	require.NoError(t, p.Close())
}

func TestNewKafkaPublisher_NoBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "edges"})
	assert.ErrorIs(t, err, ErrNoBrokers)
}

// =============================================================================
// Neo4j
// =============================================================================

type recordedQuery struct {
	query  string
	params map[string]any
}

type queryRecorder struct {
	calls []recordedQuery
	err   error
}

func (r *queryRecorder) run(_ context.Context, query string, params map[string]any) error {
	r.calls = append(r.calls, recordedQuery{query: query, params: params})
	return r.err
}

func TestNeo4jExporter_ExportGraph(t *testing.T) {
	rec := &queryRecorder{}
	x := newNeo4jExporter(rec.run, 5, quietLogger())
	g := ledgertest.FixtureGraph()

	written, err := x.ExportGraph(context.Background(), g, analytics.NewValuer(ledgertest.FixtureIndex()))
	require.NoError(t, err)
	assert.Equal(t, 8, written)
	require.Len(t, rec.calls, 2, "8 edges in batches of 5")

	first := rec.calls[0]
	assert.Contains(t, first.query, "MERGE (sender:Account {id: row.sender})")
	assert.Contains(t, first.query, "[t:SENT_TO {hash: row.hash}]")

	rows, ok := first.params["rows"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, rows, 5)
	assert.Equal(t, ledgertest.AddrA.String(), rows[0]["sender"])
	assert.Equal(t, ledgertest.AddrB.String(), rows[0]["recipient"])
	assert.Equal(t, g.Edges()[0].Tx.HashKey(), rows[0]["hash"])
	assert.InDelta(t, 127.0, rows[0]["usd"], 1e-9)

	last, ok := rec.calls[1].params["rows"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, last, 3)
}

func TestNeo4jExporter_NoValuer(t *testing.T) {
	rec := &queryRecorder{}
	x := newNeo4jExporter(rec.run, 0, quietLogger())

	_, err := x.ExportGraph(context.Background(), ledgertest.FixtureGraph(), nil)
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	rows := rec.calls[0].params["rows"].([]map[string]any)
	assert.Nil(t, rows[0]["usd"])
}

func TestNeo4jExporter_QueryError(t *testing.T) {
	boom := errors.New("neo4j unavailable")
	rec := &queryRecorder{err: boom}
	x := newNeo4jExporter(rec.run, 4, quietLogger())

	written, err := x.ExportGraph(context.Background(), ledgertest.FixtureGraph(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, written)
	assert.NoError(t, x.Close(context.Background()))
}

func TestNewNeo4jExporter_NoURI(t *testing.T) {
	_, err := NewNeo4jExporter(context.Background(), Neo4jConfig{}, quietLogger())
	assert.ErrorIs(t, err, ErrNoURI)
}
