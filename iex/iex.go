// Copyright 2023 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package iex implements a client for the IEX market data API, reshaping its
// JSON responses into tables. Every method re-checks the requested symbols
// against the exchange's reference list before touching a data endpoint;
// symbols not on the list are dropped from the output entirely.
package iex

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/iexdata/table"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
)

// URL is the default base URL of the server. It may be overwritten in tests
// before creating a new client.
var URL = "https://api.iextrading.com/1.0"

// Bucket is a historical window size accepted by the chart endpoint.
//
// The client performs no validation of the bucket; an unsupported value
// surfaces as an upstream request failure.
type Bucket = string

// Buckets currently supported by the chart endpoint.
const (
	Bucket1Month     = Bucket("1m")
	Bucket3Months    = Bucket("3m")
	Bucket6Months    = Bucket("6m")
	Bucket1Year      = Bucket("1y")
	BucketYearToDate = Bucket("ytd")
	Bucket2Years     = Bucket("2y")
	Bucket5Years     = Bucket("5y")
)

// Client for querying IEX market data.
type Client struct {
	baseURL string // the base URL of the server, fixed at construction
}

// NewClient creates a new client using the package-level URL.
func NewClient() *Client {
	return &Client{baseURL: URL}
}

// NewClientURL creates a new client for a custom base URL.
func NewClientURL(baseURL string) *Client {
	return &Client{baseURL: baseURL}
}

// fetchTable issues a single blocking GET for path, parses the response as
// JSON and flattens it into a table. When nestedKey is non-empty, the table
// is built from the array under that key of the response object.
func (c *Client) fetchTable(ctx context.Context, path string, query url.Values, nestedKey string) (*table.Table, error) {
	var js any
	uri := c.baseURL + "/" + path
	if err := fetch.FetchJSON(ctx, uri, &js, query, nil); err != nil {
		return nil, errors.Annotate(err, "failed to fetch %s", path)
	}
	if nestedKey != "" {
		obj, ok := js.(map[string]any)
		if !ok {
			return nil, errors.Reason(
				"%s: expected a JSON object with a %q key, got: %v",
				path, nestedKey, js)
		}
		nested, ok := obj[nestedKey]
		if !ok {
			return nil, errors.Reason("%s: response has no %q key", path, nestedKey)
		}
		js = nested
	}
	tbl, err := table.FromJSON(js)
	if err != nil {
		return nil, errors.Annotate(err, "failed to flatten %s response", path)
	}
	return tbl, nil
}

// ValidSecurities returns the subset of symbols present on the exchange's
// reference list, preserving the caller's order. The list is fetched fresh on
// every call.
func (c *Client) ValidSecurities(ctx context.Context, symbols []string) ([]string, error) {
	tbl, err := c.fetchTable(ctx, "ref-data/symbols", nil, "")
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch reference symbols")
	}
	listed := make(map[string]struct{}, tbl.NumRows())
	for i := 0; i < tbl.NumRows(); i++ {
		if s, ok := tbl.Row(i)["symbol"].(string); ok {
			listed[s] = struct{}{}
		}
	}
	var valid []string
	for _, s := range symbols {
		if _, ok := listed[s]; ok {
			valid = append(valid, s)
		}
	}
	return valid, nil
}

// validate gates every public operation. A nil, nil result means none of the
// requested symbols are valid; the condition is logged and the caller is
// expected to return an absent table rather than an error.
func (c *Client) validate(ctx context.Context, symbols []string) ([]string, error) {
	valid, err := c.ValidSecurities(ctx, symbols)
	if err != nil {
		return nil, err
	}
	if len(valid) == 0 {
		logging.Warningf(ctx, "these securities are invalid: %s",
			strings.Join(symbols, ", "))
		return nil, nil
	}
	return valid, nil
}

// millisToTime converts an epoch-milliseconds cell to a Time cell.
func millisToTime(v table.Value) (table.Value, error) {
	ms, ok := v.(float64)
	if !ok {
		return nil, errors.Reason("expected epoch milliseconds, got: %v", v)
	}
	return TimeFromMillis(int64(ms)), nil
}

// isoToTime converts an ISO datetime string cell to a Time cell.
func isoToTime(v table.Value) (table.Value, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errors.Reason("expected a datetime string, got: %v", v)
	}
	return ParseTime(s)
}

// batched fetches a single comma-joined URL for all valid symbols and decodes
// the given epoch-milliseconds columns.
func (c *Client) batched(ctx context.Context, symbols []string, path string, msCols ...string) (*table.Table, error) {
	valid, err := c.validate(ctx, symbols)
	if err != nil || valid == nil {
		return nil, err
	}
	query := url.Values{"symbols": {strings.Join(valid, ",")}}
	tbl, err := c.fetchTable(ctx, path, query, "")
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch %s", path)
	}
	for _, col := range msCols {
		if err := tbl.Convert(col, millisToTime); err != nil {
			return nil, errors.Annotate(err, "failed to decode %q in %s", col, path)
		}
	}
	if err := tbl.SetIndex("symbol"); err != nil {
		return nil, errors.Annotate(err, "failed to index %s by symbol", path)
	}
	return tbl, nil
}

// LatestQuoteTrade returns the latest top-of-book quote and trade data for
// the valid subset of symbols, indexed by symbol. The lastSaleTime and
// lastUpdated columns are decoded from epoch milliseconds.
func (c *Client) LatestQuoteTrade(ctx context.Context, symbols []string) (*table.Table, error) {
	return c.batched(ctx, symbols, "tops", "lastSaleTime", "lastUpdated")
}

// LatestTrade returns the latest trade data for the valid subset of symbols,
// indexed by symbol. The time column is decoded from epoch milliseconds.
func (c *Client) LatestTrade(ctx context.Context, symbols []string) (*table.Table, error) {
	return c.batched(ctx, symbols, "tops/last", "time")
}

// perSymbol validates the symbols and concatenates the per-symbol batches
// produced by fetchOne, preserving the caller's symbol order.
func (c *Client) perSymbol(ctx context.Context, symbols []string, fetchOne func(symbol string) (*table.Table, error)) (*table.Table, error) {
	valid, err := c.validate(ctx, symbols)
	if err != nil || valid == nil {
		return nil, err
	}
	var fetchErr error
	res := iterator.Reduce[string, *table.Table](
		iterator.FromSlice(valid), table.New(),
		func(symbol string, acc *table.Table) *table.Table {
			if fetchErr != nil {
				return acc
			}
			tbl, err := fetchOne(symbol)
			if err != nil {
				fetchErr = errors.Annotate(err, "failed to fetch data for %s", symbol)
				return acc
			}
			acc.Concat(tbl)
			return acc
		})
	if fetchErr != nil {
		return nil, fetchErr
	}
	return res, nil
}

// newsColumns is the fixed column order of LatestNews results.
var newsColumns = []string{
	"symbol", "time", "headline", "summary", "source", "url", "related"}

// LatestNews returns up to count most recent news items per valid symbol.
// The raw datetime column is decoded and renamed to time. The count is passed
// to the server as-is; an out-of-range value surfaces as an upstream request
// failure.
func (c *Client) LatestNews(ctx context.Context, symbols []string, count int) (*table.Table, error) {
	return c.perSymbol(ctx, symbols, func(symbol string) (*table.Table, error) {
		path := fmt.Sprintf("stock/%s/news/last/%d", symbol, count)
		tbl, err := c.fetchTable(ctx, path, nil, "")
		if err != nil {
			return nil, err
		}
		if err := tbl.Rename("datetime", "time"); err != nil {
			return nil, errors.Annotate(err, "unexpected news shape for %s", symbol)
		}
		if err := tbl.Convert("time", isoToTime); err != nil {
			return nil, errors.Annotate(err, "failed to decode news time for %s", symbol)
		}
		if err := tbl.AddConst("symbol", symbol); err != nil {
			return nil, errors.Annotate(err, "failed to tag news for %s", symbol)
		}
		if err := tbl.Select(newsColumns...); err != nil {
			return nil, errors.Annotate(err, "unexpected news shape for %s", symbol)
		}
		return tbl, nil
	})
}

// unnested fetches the array under nestedKey of a per-symbol endpoint and
// tags each row with the symbol.
func (c *Client) unnested(ctx context.Context, symbols []string, endpoint, nestedKey string) (*table.Table, error) {
	return c.perSymbol(ctx, symbols, func(symbol string) (*table.Table, error) {
		path := "stock/" + symbol + "/" + endpoint
		tbl, err := c.fetchTable(ctx, path, nil, nestedKey)
		if err != nil {
			return nil, err
		}
		if err := tbl.AddConst("symbol", symbol); err != nil {
			return nil, errors.Annotate(err, "failed to tag %s for %s", endpoint, symbol)
		}
		return tbl, nil
	})
}

// Financials returns the latest financial periods per valid symbol, one row
// per period, tagged with the symbol.
func (c *Client) Financials(ctx context.Context, symbols []string) (*table.Table, error) {
	return c.unnested(ctx, symbols, "financials", "financials")
}

// Earnings returns the latest earnings periods per valid symbol, one row per
// period, tagged with the symbol.
func (c *Client) Earnings(ctx context.Context, symbols []string) (*table.Table, error) {
	return c.unnested(ctx, symbols, "earnings", "earnings")
}

// TradeBars returns historical bars for the given lookback bucket per valid
// symbol, one row per time bucket, tagged with the symbol.
func (c *Client) TradeBars(ctx context.Context, symbols []string, bucket Bucket) (*table.Table, error) {
	return c.perSymbol(ctx, symbols, func(symbol string) (*table.Table, error) {
		path := "stock/" + symbol + "/chart/" + bucket
		tbl, err := c.fetchTable(ctx, path, nil, "")
		if err != nil {
			return nil, err
		}
		if err := tbl.AddConst("symbol", symbol); err != nil {
			return nil, errors.Annotate(err, "failed to tag bars for %s", symbol)
		}
		return tbl, nil
	})
}
