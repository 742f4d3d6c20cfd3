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
	"fmt"
	"strconv"

	"github.com/AleutianAI/ethgraph/pkg/ux"
	"github.com/AleutianAI/ethgraph/services/ledger/crawler"
	"github.com/spf13/cobra"
)

func runSessionsList(cmd *cobra.Command, _ []string) error {
	db, err := openCheckpoints()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := crawler.NewCheckpointStore(db).ListSessions(cmd.Context())
	if err != nil {
		return err
	}
	printSessions(rt.out, sessions)
	return nil
}

func printSessions(out *ux.Printer, sessions []crawler.SessionSummary) {
	if len(sessions) == 0 {
		out.Muted("No stored crawl sessions")
		return
	}
	out.Title("Crawl sessions")
	for _, s := range sessions {
		if out.Mode() == ux.ModeMachine {
			out.KeyValue(s.ID, fmt.Sprintf("%s\t%s\t%s\t%d\t%d", s.Seed, s.Strategy, s.Status, s.Edges, s.Nodes), 0)
			continue
		}
		out.Info(s.ID)
		out.KeyValue("Seed", s.Seed, 10)
		out.KeyValue("Strategy", string(s.Strategy), 10)
		out.KeyValue("Status", s.Status, 10)
		out.KeyValue("Edges", strconv.Itoa(s.Edges), 10)
		out.KeyValue("Nodes", strconv.Itoa(s.Nodes), 10)
		out.KeyValue("Updated", s.UpdatedAt.Format("2006-01-02 15:04:05"), 10)
	}
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	db, err := openCheckpoints()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := crawler.NewCheckpointStore(db).DeleteSession(cmd.Context(), args[0]); err != nil {
		return err
	}
	rt.out.Success("Deleted session " + args[0])
	return nil
}
