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
	"encoding/json"
	"time"

	"github.com/stockparfait/errors"
)

// Time is a wrapper around time.Time with JSON methods and the string
// representation used in table cells.
type Time time.Time

var _ json.Marshaler = Time{}
var _ json.Unmarshaler = &Time{}

// NewTime creates a Time from the calendar components in UTC.
func NewTime(year, month, day, hour, minute, second int) Time {
	return Time(time.Date(
		year, time.Month(month), day, hour, minute, second, 0, time.UTC))
}

// TimeFromMillis converts Unix epoch milliseconds, as served by the quote and
// trade endpoints, to Time in UTC.
func TimeFromMillis(ms int64) Time {
	return Time(time.UnixMilli(ms).UTC())
}

// ParseTime parses the ISO-ish datetime string formats served by the API.
func ParseTime(s string) (Time, error) {
	formats := []string{
		"2006-01-02T15:04:05.999Z07:00",
		"2006-01-02T15:04:05.999Z",
		"2006-01-02T15:04:05.999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	var err error
	for _, f := range formats {
		var tm time.Time
		if tm, err = time.Parse(f, s); err == nil {
			return Time(tm), nil
		}
	}
	return Time{}, errors.Annotate(err, "failed to parse time string: '%s'", s)
}

// ToTime converts to the standard library representation.
func (t Time) ToTime() time.Time { return time.Time(t) }

// String representation of Time.
func (t Time) String() string {
	return time.Time(t).Format("2006-01-02 15:04:05")
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Annotate(err, "Time JSON must be a string")
	}
	tm, err := ParseTime(s)
	if err != nil {
		return errors.Annotate(err, "failed to parse Time")
	}
	*t = tm
	return nil
}
