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

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iexdata/iex"
	"github.com/stockparfait/iexdata/table"
	"github.com/stockparfait/logging"

	toml "github.com/pelletier/go-toml/v2"
)

var ops = []string{"tops", "last", "news", "financials", "earnings", "chart"}

type Flags struct {
	Endpoint string // overrides config endpoint; default: iex.URL
	Config   string // optional TOML config file
	Symbols  string // comma-separated; overrides config symbols
	Op       string // one of ops
	Count    int    // news items per symbol
	Bucket   string // chart lookback window
	Summary  bool   // with -op chart: print per-symbol bar statistics
	CSV      bool   // dump CSV format; default: text
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("iexfetch", flag.ExitOnError)
	fs.StringVar(&flags.Endpoint, "endpoint", "", "base URL of the API server")
	fs.StringVar(&flags.Config, "config", "", "TOML config file")
	fs.StringVar(&flags.Symbols, "symbols", "", "comma-separated symbols")
	fs.StringVar(&flags.Op, "op", "", "data to fetch: "+strings.Join(ops, ", "))
	fs.IntVar(&flags.Count, "count", 1, "news items per symbol")
	fs.StringVar(&flags.Bucket, "bucket", iex.Bucket1Month,
		"chart window: 1m, 3m, 6m, 1y, ytd, 2y, 5y")
	fs.BoolVar(&flags.Summary, "summary", false,
		"with -op chart: print per-symbol bar statistics")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	validOp := false
	for _, op := range ops {
		if flags.Op == op {
			validOp = true
		}
	}
	if !validOp {
		return nil, errors.Reason("-op must be one of: %s", strings.Join(ops, ", "))
	}
	if flags.Summary && flags.Op != "chart" {
		return nil, errors.Reason("-summary requires -op chart")
	}
	return &flags, nil
}

type Config struct {
	Endpoint string   `toml:"endpoint"` // default: iex.URL
	Symbols  []string `toml:"symbols"`
	Count    int      `toml:"count"`
	Bucket   string   `toml:"bucket"`
}

func parseConfig(filePath string) (*Config, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return &c, nil
}

// resolve merges the config file (if any) into the flags. Flags win.
func resolve(flags *Flags) (endpoint string, symbols []string, count int, bucket string, err error) {
	endpoint = iex.URL
	count = flags.Count
	bucket = flags.Bucket
	if flags.Config != "" {
		c, cfgErr := parseConfig(flags.Config)
		if cfgErr != nil {
			err = errors.Annotate(cfgErr, "failed to parse config")
			return
		}
		if c.Endpoint != "" {
			endpoint = c.Endpoint
		}
		symbols = c.Symbols
		if c.Count > 0 && flags.Count == 1 {
			count = c.Count
		}
		if c.Bucket != "" && flags.Bucket == iex.Bucket1Month {
			bucket = c.Bucket
		}
	}
	if flags.Endpoint != "" {
		endpoint = flags.Endpoint
	}
	if flags.Symbols != "" {
		symbols = strings.Split(flags.Symbols, ",")
	}
	if len(symbols) == 0 {
		err = errors.Reason("no symbols: use -symbols or a config file")
	}
	return
}

func summaryTable(summaries map[string]iex.Summary) *table.Table {
	symbols := make([]string, 0, len(summaries))
	for s := range summaries {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	tbl := table.New("symbol", "samples", "mean", "stddev", "volatility")
	for _, s := range symbols {
		sm := summaries[s]
		tbl.AddRow(table.Row{
			"symbol":     s,
			"samples":    float64(sm.Samples),
			"mean":       sm.Mean,
			"stddev":     sm.StdDev,
			"volatility": sm.Volatility,
		})
	}
	return tbl
}

func run(ctx context.Context, flags *Flags, w io.Writer) error {
	endpoint, symbols, count, bucket, err := resolve(flags)
	if err != nil {
		return err
	}
	client := iex.NewClientURL(endpoint)

	var tbl *table.Table
	switch flags.Op {
	case "tops":
		tbl, err = client.LatestQuoteTrade(ctx, symbols)
	case "last":
		tbl, err = client.LatestTrade(ctx, symbols)
	case "news":
		tbl, err = client.LatestNews(ctx, symbols, count)
	case "financials":
		tbl, err = client.Financials(ctx, symbols)
	case "earnings":
		tbl, err = client.Earnings(ctx, symbols)
	case "chart":
		tbl, err = client.TradeBars(ctx, symbols, bucket)
	}
	if err != nil {
		return errors.Annotate(err, "failed to fetch %s", flags.Op)
	}
	if tbl == nil { // no valid symbols; already logged
		return nil
	}
	if flags.Summary {
		summaries, err := iex.BarSummary(tbl)
		if err != nil {
			return errors.Annotate(err, "failed to compute bar summary")
		}
		tbl = summaryTable(summaries)
	}
	if flags.CSV {
		if err := tbl.WriteCSV(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
