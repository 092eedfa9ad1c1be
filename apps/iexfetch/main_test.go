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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

const refJSON = `[{"symbol": "AAPL"}, {"symbol": "IBM"}]`

func TestMain(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_iexfetch")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		Convey("accepts a full set of flags", func() {
			flags, err := parseFlags([]string{
				"-endpoint", "http://localhost:1234/1.0",
				"-symbols", "AAPL,IBM", "-op", "news", "-count", "5",
				"-log-level", "warning", "-csv"})
			So(err, ShouldBeNil)
			So(flags.Endpoint, ShouldEqual, "http://localhost:1234/1.0")
			So(flags.Symbols, ShouldEqual, "AAPL,IBM")
			So(flags.Op, ShouldEqual, "news")
			So(flags.Count, ShouldEqual, 5)
			So(flags.LogLevel, ShouldEqual, logging.Warning)
			So(flags.CSV, ShouldBeTrue)
		})

		Convey("requires a known -op", func() {
			_, err := parseFlags([]string{"-symbols", "AAPL"})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-symbols", "AAPL", "-op", "nosuch"})
			So(err, ShouldNotBeNil)
		})

		Convey("-summary requires -op chart", func() {
			_, err := parseFlags([]string{"-symbols", "AAPL", "-op", "last", "-summary"})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("run works", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		endpoint := server.URL() + "/1.0"

		ctx := fetch.UseClient(context.Background(), server.Client())
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))

		Convey("latest trade as CSV", func() {
			server.ResponseBody = []string{refJSON, `[
  {"symbol": "AAPL", "price": 160.12, "size": 100, "time": 1500000000000}
]`}
			flags, err := parseFlags([]string{
				"-endpoint", endpoint, "-symbols", "AAPL", "-op", "last", "-csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
symbol,price,size,time
AAPL,160.12,100,2017-07-14 02:40:00
`)
		})

		Convey("invalid symbols produce no output and no error", func() {
			server.ResponseBody = []string{refJSON}
			flags, err := parseFlags([]string{
				"-endpoint", endpoint, "-symbols", "MSFT", "-op", "last", "-csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			So(buf.String(), ShouldEqual, "")
			So(server.RequestPath, ShouldEqual, "/1.0/ref-data/symbols")
		})

		Convey("chart summary as CSV", func() {
			server.ResponseBody = []string{refJSON, `[
  {"date": "2017-07-12", "close": 100.0},
  {"date": "2017-07-13", "close": 110.0},
  {"date": "2017-07-14", "close": 121.0}
]`}
			flags, err := parseFlags([]string{
				"-endpoint", endpoint, "-symbols", "AAPL",
				"-op", "chart", "-bucket", "1y", "-summary", "-csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			So(server.RequestPath, ShouldEqual, "/1.0/stock/AAPL/chart/1y")
			So(buf.String(), ShouldStartWith,
				"symbol,samples,mean,stddev,volatility\nAAPL,2,")
		})

		Convey("config file supplies defaults, flags win", func() {
			configFile := filepath.Join(tmpdir, "config.toml")
			So(testutil.WriteFile(configFile, fmt.Sprintf(`
endpoint = "%s"
symbols = ["AAPL"]
count = 2
bucket = "1y"
`, endpoint)), ShouldBeNil)

			Convey("run uses the config endpoint and symbols", func() {
				server.ResponseBody = []string{refJSON, `[
  {"symbol": "AAPL", "price": 160.12, "size": 100, "time": 1500000000000}
]`}
				flags, err := parseFlags([]string{
					"-config", configFile, "-op", "last", "-csv"})
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				So(run(ctx, flags, &buf), ShouldBeNil)
				So(buf.String(), ShouldStartWith, "symbol,price,size,time\nAAPL,")
			})

			Convey("flag symbols override the config", func() {
				flags, err := parseFlags([]string{
					"-config", configFile, "-symbols", "IBM", "-op", "chart"})
				So(err, ShouldBeNil)
				ep, symbols, count, bucket, err := resolve(flags)
				So(err, ShouldBeNil)
				So(ep, ShouldEqual, endpoint)
				So(symbols, ShouldResemble, []string{"IBM"})
				So(count, ShouldEqual, 2)
				So(bucket, ShouldEqual, "1y")
			})
		})

		Convey("missing symbols is an error", func() {
			flags, err := parseFlags([]string{"-endpoint", endpoint, "-op", "last"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldNotBeNil)
		})
	})
}
