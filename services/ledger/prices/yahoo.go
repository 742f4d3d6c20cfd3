// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prices

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/AleutianAI/ethgraph/pkg/validation"
	"github.com/shopspring/decimal"
	"github.com/sugawarayuuta/sonnet"
)

// DefaultYahooBaseURL is the Yahoo Finance chart endpoint.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// YahooFetcher downloads hourly candles and turns them into price records.
type YahooFetcher struct {
	HTTPClient HTTPClient
	BaseURL    string
	Logger     *slog.Logger
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooResult `json:"result"`
		Error  any           `json:"error"`
	} `json:"chart"`
}

type yahooResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open  []*float64 `json:"open"`
			High  []*float64 `json:"high"`
			Low   []*float64 `json:"low"`
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchHourly returns one record per hourly candle in [start, end).
//
// The bucket price is the mean of open, high, low and close. Candles with
// missing values are skipped. Yahoo serves hourly candles for roughly the
// last two years only.
func (f *YahooFetcher) FetchHourly(ctx context.Context, symbol string, start, end time.Time) ([]Record, error) {
	symbol, err := validation.SanitizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, nil
	}

	base := f.BaseURL
	if base == "" {
		base = DefaultYahooBaseURL
	}
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", "1h")
	q.Set("events", "history")
	reqURL := fmt.Sprintf("%s/%s?%s", base, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Yahoo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Yahoo API returned status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read Yahoo response: %w", err)
	}
	var chart yahooChartResponse
	if err := sonnet.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo JSON: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo API error: %v", chart.Chart.Error)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("no results for symbol %s", symbol)
	}

	res := chart.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("incomplete indicators for symbol %s", symbol)
	}
	quote := res.Indicators.Quote[0]

	four := decimal.NewFromInt(4)
	records := make([]Record, 0, len(res.Timestamp))
	skipped := 0
	for i, ts := range res.Timestamp {
		vals := []*float64{at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)}
		sum := decimal.Zero
		complete := true
		for _, v := range vals {
			if v == nil {
				complete = false
				break
			}
			sum = sum.Add(decimal.NewFromFloat(*v))
		}
		if !complete {
			skipped++
			continue
		}
		// Candles are aligned to the hour; normalize in case of drift.
		bucket := ts - ts%BucketSeconds
		if n := len(records); n > 0 && records[n-1].Start == bucket {
			continue
		}
		records = append(records, Record{Start: bucket, Price: sum.Div(four)})
	}

	if f.Logger != nil {
		f.Logger.Info("fetched hourly prices", "symbol", symbol, "records", len(records), "skipped", skipped)
	}
	return records, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}
