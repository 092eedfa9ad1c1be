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

package iex

import (
	"math"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iexdata/table"
	"gonum.org/v1/gonum/stat"
)

// tradingDays per year, for annualizing daily volatility.
const tradingDays = 252.0

// Summary holds sample statistics of the daily log-profits of a single
// symbol over a bar window.
type Summary struct {
	Samples    int     // number of log-profits, one less than the bars
	Mean       float64 // mean daily log-profit
	StdDev     float64 // standard deviation of daily log-profits
	Volatility float64 // StdDev annualized over 252 trading days
}

// BarSummary computes per-symbol log-profit statistics from a bar table as
// returned by Client.TradeBars. Bars are assumed to be daily and in date
// order, which is how the chart endpoint serves them.
func BarSummary(t *table.Table) (map[string]Summary, error) {
	if t == nil {
		return nil, errors.Reason("no bar data")
	}
	closes := make(map[string][]float64)
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		symbol, ok := row["symbol"].(string)
		if !ok {
			return nil, errors.Reason("bar row %d has no symbol", i)
		}
		cl, ok := row["close"].(float64)
		if !ok {
			return nil, errors.Reason("bar row %d of %s has no numeric close",
				i, symbol)
		}
		if cl <= 0.0 {
			return nil, errors.Reason("bar row %d of %s has non-positive close: %g",
				i, symbol, cl)
		}
		closes[symbol] = append(closes[symbol], cl)
	}
	res := make(map[string]Summary, len(closes))
	for symbol, cs := range closes {
		profits := make([]float64, 0, len(cs))
		for i := 1; i < len(cs); i++ {
			profits = append(profits, math.Log(cs[i]/cs[i-1]))
		}
		s := Summary{Samples: len(profits)}
		if len(profits) > 0 {
			s.Mean = stat.Mean(profits, nil)
		}
		if len(profits) > 1 {
			s.StdDev = stat.StdDev(profits, nil)
			s.Volatility = s.StdDev * math.Sqrt(tradingDays)
		}
		res[symbol] = s
	}
	return res, nil
}
