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
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestYahooFetcher_FetchHourly(t *testing.T) {
	var gotURL string
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return jsonResponse(http.StatusOK, `{
			"chart": {
				"result": [{
					"timestamp": [1700000000, 1700003600, 1700007200],
					"indicators": {"quote": [{
						"open":  [2000, 2100, null],
						"high":  [2040, 2140, 2200],
						"low":   [1980, 2060, 2100],
						"close": [2020, 2100, 2150]
					}]}
				}],
				"error": null
			}
		}`), nil
	}}

	f := &YahooFetcher{HTTPClient: client, BaseURL: "http://yahoo.test/chart"}
	start := time.Unix(1700000000, 0)
	records, err := f.FetchHourly(context.Background(), "eth-usd", start, start.Add(3*time.Hour))
	require.NoError(t, err)

	assert.Contains(t, gotURL, "http://yahoo.test/chart/ETH-USD?")
	assert.Contains(t, gotURL, "interval=1h")

	// Third candle has a null open and is skipped. 1700000000 is not hour
	// aligned, so buckets are normalized to the hour.
	require.Len(t, records, 2)
	assert.Equal(t, int64(1700000000-1700000000%3600), records[0].Start)
	assert.Equal(t, "2010", records[0].Price.String())
	assert.Equal(t, "2100", records[1].Price.String())
}

func TestYahooFetcher_Errors(t *testing.T) {
	start := time.Unix(1700000000, 0)
	end := start.Add(time.Hour)

	tests := []struct {
		name string
		resp *http.Response
		err  error
	}{
		{"transport", nil, errors.New("connection refused")},
		{"status", jsonResponse(http.StatusTooManyRequests, ""), nil},
		{"bad json", jsonResponse(http.StatusOK, "{"), nil},
		{"api error", jsonResponse(http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found"}}}`), nil},
		{"no result", jsonResponse(http.StatusOK, `{"chart":{"result":[],"error":null}}`), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &YahooFetcher{HTTPClient: &mockHTTPClient{doFunc: func(*http.Request) (*http.Response, error) {
				return tt.resp, tt.err
			}}}
			_, err := f.FetchHourly(context.Background(), "ETH-USD", start, end)
			assert.Error(t, err)
		})
	}
}

func TestYahooFetcher_InvalidSymbol(t *testing.T) {
	f := &YahooFetcher{HTTPClient: &mockHTTPClient{doFunc: func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}}
	_, err := f.FetchHourly(context.Background(), "ETH/../x", time.Unix(0, 0), time.Unix(3600, 0))
	assert.Error(t, err)
}
