// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/api"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	logger := rt.logger.Slog()
	opts, err := reportOptions()
	if err != nil {
		return err
	}

	graphs, err := api.NewGraphStore(rt.cfg.GraphPath(graphFile), logger)
	if err != nil {
		return err
	}
	defer graphs.Close()
	if rt.cfg.Serve.Watch {
		if err := graphs.Watch(ctx); err != nil {
			return err
		}
	}

	// Prices are loaded once. Edges newer than the last bucket take the
	// latest price, so reloaded graphs stay priceable.
	g, _ := graphs.Graph()
	ix, err := loadPrices(ctx, g, reportPrices)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = rt.cfg.Serve.Addr
	}

	gin.SetMode(gin.ReleaseMode)
	handlers := api.NewHandlers(graphs, ix, opts)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handlers, rt.cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	rt.logger.Info("serving reports", "addr", addr, "graph", graphs.Path(), "watch", rt.cfg.Serve.Watch)
	rt.out.Success(fmt.Sprintf("Serving reports for %s on http://%s/v1/report", graphs.Path(), addr))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
