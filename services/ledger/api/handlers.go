// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/analytics"
	"github.com/AleutianAI/ethgraph/services/ledger/prices"
	"github.com/AleutianAI/ethgraph/services/ledger/report"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ServiceVersion is reported by /health.
const ServiceVersion = "0.1.0"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string    `json:"status"`
	Version  string    `json:"version"`
	Graph    string    `json:"graph"`
	Edges    int       `json:"edges"`
	LoadedAt time.Time `json:"loaded_at"`
}

// GraphStatsResponse is the body of GET /v1/graph/stats.
type GraphStatsResponse struct {
	txgraph.GraphStats
	LoadedAt time.Time `json:"loaded_at"`
}

// PairsResponse is the body of GET /v1/report/pairs.
type PairsResponse struct {
	Section string           `json:"section"`
	Title   string           `json:"title"`
	Edges   int              `json:"edges"`
	Volume  report.Figure    `json:"volume"`
	Flow    report.Figure    `json:"flow"`
	Pairs   []analytics.Pair `json:"pairs"`
}

type reportQuery struct {
	Lower string `form:"lower"`
	Upper string `form:"upper"`
}

type pairsQuery struct {
	reportQuery
	Section string `form:"section" binding:"omitempty,oneof=two_way two_way_price_filtered"`
}

// Handlers serves the report endpoints.
type Handlers struct {
	store    *GraphStore
	prices   analytics.PriceSource
	defaults report.Options
}

// NewHandlers creates handlers over store priced by ps.
func NewHandlers(store *GraphStore, ps analytics.PriceSource, defaults report.Options) *Handlers {
	return &Handlers{store: store, prices: ps, defaults: defaults}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	g, loadedAt := h.store.Graph()
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  ServiceVersion,
		Graph:    h.store.Path(),
		Edges:    g.EdgeCount(),
		LoadedAt: loadedAt,
	})
}

// HandleGraphStats handles GET /v1/graph/stats.
func (h *Handlers) HandleGraphStats(c *gin.Context) {
	g, loadedAt := h.store.Graph()
	c.JSON(http.StatusOK, GraphStatsResponse{GraphStats: g.Stats(), LoadedAt: loadedAt})
}

// HandleReport handles GET /v1/report.
//
// Response:
//
//	200 OK: report.Report
//	400 Bad Request: unparsable or inverted bounds
//	422 Unprocessable Entity: an edge cannot be priced
func (h *Handlers) HandleReport(c *gin.Context) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	r, ok := h.build(c, q)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r)
}

// HandleReportPairs handles GET /v1/report/pairs. The section defaults to
// two_way.
func (h *Handlers) HandleReportPairs(c *gin.Context) {
	var q pairsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Section == "" {
		q.Section = report.SectionTwoWay
	}
	r, ok := h.build(c, q.reportQuery)
	if !ok {
		return
	}
	s, _ := r.Section(q.Section)
	resp := PairsResponse{
		Section: s.Name,
		Title:   s.Title,
		Edges:   s.Edges,
		Volume:  s.Total,
		Pairs:   s.Pairs,
	}
	if s.Flow != nil {
		resp.Flow = *s.Flow
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) build(c *gin.Context, q reportQuery) (*report.Report, bool) {
	opts := h.defaults
	var err error
	if q.Lower != "" {
		if opts.Lower, err = decimal.NewFromString(q.Lower); err != nil {
			badRequest(c, err)
			return nil, false
		}
	}
	if q.Upper != "" {
		if opts.Upper, err = decimal.NewFromString(q.Upper); err != nil {
			badRequest(c, err)
			return nil, false
		}
	}

	g, _ := h.store.Graph()
	r, err := report.Build(c.Request.Context(), g, h.prices, opts)
	switch {
	case err == nil:
		return r, true
	case errors.Is(err, analytics.ErrInvalidRange):
		badRequest(c, err)
	case errors.Is(err, prices.ErrPriceNotFound), errors.Is(err, txgraph.ErrMalformedTransaction):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "UNPRICEABLE"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
	}
	return nil, false
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_ARGUMENT"})
}
