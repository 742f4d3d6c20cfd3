// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AleutianAI/ethgraph/pkg/ux"
	"github.com/AleutianAI/ethgraph/services/ledger/analytics"
	"github.com/sugawarayuuta/sonnet"
)

const labelWidth = 14

// RenderText writes the report for a human reader.
//
// ModeMachine prints one "section.key<TAB>value" line per figure.
func RenderText(w io.Writer, r *Report, mode ux.Mode) error {
	p := ux.NewPrinter(w, mode)
	machine := mode == ux.ModeMachine

	label := func(section, key string) string {
		if machine {
			return section + "." + strings.ToLower(strings.ReplaceAll(key, " ", "_"))
		}
		return key
	}

	p.Title(fmt.Sprintf("ethgraph report (filter $%s to $%s)", r.Lower, r.Upper))
	for i, s := range r.Sections {
		if !machine {
			if i > 0 {
				fmt.Fprintln(w)
			}
			p.Title(s.Title)
		}
		p.KeyValue(label(s.Name, "Edges"), strconv.Itoa(s.Edges), labelWidth)
		p.KeyValue(label(s.Name, "Volume USD"), strconv.FormatInt(s.Total.Rounded, 10), labelWidth)
		mean := "n/a"
		if s.Mean != nil {
			mean = strconv.FormatInt(s.Mean.Rounded, 10)
		}
		p.KeyValue(label(s.Name, "Mean USD"), mean, labelWidth)
		if s.Flow != nil {
			p.KeyValue(label(s.Name, "Flow USD"), strconv.FormatInt(s.Flow.Rounded, 10), labelWidth)
			p.KeyValue(label(s.Name, "Pairs"), strconv.Itoa(len(s.Pairs)), labelWidth)
		}
	}
	return nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	data, err := sonnet.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WritePairLog writes the per-pair breakdown of a two-way section.
func WritePairLog(w io.Writer, s Section) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", s.Title)
	fmt.Fprintf(&b, "# %d pairs, %d edges\n", len(s.Pairs), s.Edges)
	for i, pair := range s.Pairs {
		fmt.Fprintf(&b, "\npair %d: %s <-> %s\n", i+1, pair.A, pair.B)
		writeDirection(&b, pair.A.String(), pair.B.String(), pair.Forward, pair.ForwardUSD.StringFixed(2))
		if !pair.SelfLoop() {
			writeDirection(&b, pair.B.String(), pair.A.String(), pair.Reverse, pair.ReverseUSD.StringFixed(2))
		}
		fmt.Fprintf(&b, "  volume %s USD, flow %s USD\n", pair.Volume.StringFixed(2), pair.Flow.StringFixed(2))
	}
	if s.Flow != nil {
		fmt.Fprintf(&b, "\ntotal volume %s USD, total flow %s USD\n", s.Total.Exact.StringFixed(2), s.Flow.Exact.StringFixed(2))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write pair log: %w", err)
	}
	return nil
}

func writeDirection(b *strings.Builder, from, to string, edges []analytics.EdgeValue, sum string) {
	fmt.Fprintf(b, "  %s -> %s: %d edges, %s USD\n", from, to, len(edges), sum)
	for _, ev := range edges {
		fmt.Fprintf(b, "    %s  %d  %s\n", ev.Hash, ev.Timestamp, ev.USD.StringFixed(2))
	}
}

// SavePairLogs writes one pair log per two-way section into dir and returns
// the paths written.
func SavePairLogs(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("save pair logs: %w", err)
	}
	var paths []string
	for _, s := range r.Sections {
		if s.Flow == nil {
			continue
		}
		path := filepath.Join(dir, "pairs_"+s.Name+".log")
		f, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("save pair log %s: %w", path, err)
		}
		werr := WritePairLog(f, s)
		cerr := f.Close()
		if werr != nil {
			return paths, fmt.Errorf("save pair log %s: %w", path, werr)
		}
		if cerr != nil {
			return paths, fmt.Errorf("save pair log %s: %w", path, cerr)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
