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
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/analytics"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/IBM/sarama"
	"github.com/sugawarayuuta/sonnet"
)

// DefaultTopic is the edge topic used when none is configured.
const DefaultTopic = "ethgraph.edges"

// KafkaConfig configures the edge stream.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`

	// Timeout bounds each produce request. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithKafkaValuer attaches USD values to published edges.
func WithKafkaValuer(v *analytics.Valuer) KafkaOption {
	return func(p *KafkaPublisher) { p.valuer = v }
}

// WithKafkaLogger sets the publisher's logger.
func WithKafkaLogger(l *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) { p.logger = l }
}

// KafkaPublisher produces EdgeMessages to one topic.
//
// Thread Safety: safe for concurrent use; sarama.SyncProducer is.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	valuer   *analytics.Valuer
	logger   *slog.Logger
}

// NewKafkaPublisher connects a synchronous producer to cfg.Brokers.
func NewKafkaPublisher(cfg KafkaConfig, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	sc := sarama.NewConfig()
	sc.ClientID = "ethgraph"
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	sc.Producer.Timeout = 10 * time.Second
	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic, opts...)
}

// NewKafkaPublisherWithProducer wraps an existing producer.
// An empty topic falls back to DefaultTopic.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Topic returns the destination topic.
func (p *KafkaPublisher) Topic() string {
	return p.topic
}

// PublishEdge sends one edge. It implements crawler.EdgeSink.
func (p *KafkaPublisher) PublishEdge(ctx context.Context, sessionID string, e *txgraph.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := p.message(sessionID, e)
	if err != nil {
		return err
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Tx.Hash, err)
	}
	p.logger.Debug("edge published", "hash", e.Tx.Hash, "partition", partition, "offset", offset)
	return nil
}

// PublishGraph sends every edge of g in batches of batchSize and returns the
// number of messages sent. A batchSize below 1 sends everything at once.
func (p *KafkaPublisher) PublishGraph(ctx context.Context, sessionID string, g *txgraph.Graph, batchSize int) (int, error) {
	edges := g.Edges()
	if batchSize < 1 {
		batchSize = len(edges)
	}
	sent := 0
	for start := 0; start < len(edges); start += batchSize {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		end := min(start+batchSize, len(edges))
		batch := make([]*sarama.ProducerMessage, 0, end-start)
		for _, e := range edges[start:end] {
			msg, err := p.message(sessionID, e)
			if err != nil {
				return sent, err
			}
			batch = append(batch, msg)
		}
		if err := p.producer.SendMessages(batch); err != nil {
			return sent, fmt.Errorf("publish batch at %d: %w", start, err)
		}
		sent += len(batch)
		p.logger.Info("published edge batch", "topic", p.topic, "sent", sent, "total", len(edges))
	}
	return sent, nil
}

func (p *KafkaPublisher) message(sessionID string, e *txgraph.Edge) (*sarama.ProducerMessage, error) {
	em, err := newEdgeMessage(sessionID, e, p.valuer)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", e.Tx.Hash, err)
	}
	payload, err := sonnet.Marshal(em)
	if err != nil {
		return nil, fmt.Errorf("publish %s: encode: %w", e.Tx.Hash, err)
	}
	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(em.Hash),
		Value: sarama.ByteEncoder(payload),
	}, nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
