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

package table

import (
	"github.com/stockparfait/errors"
)

// FromJSON builds a Table from a generic JSON value as decoded by
// encoding/json: an object becomes a single row, an array of objects becomes
// one row per element. Nested objects are flattened into dot-separated column
// names; array values are kept as-is in a single cell.
func FromJSON(js any) (*Table, error) {
	t := New()
	switch v := js.(type) {
	case map[string]any:
		t.AddRow(flattenObject(v))
	case []any:
		for i, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, errors.Reason(
					"element %d is not a JSON object: %v", i, el)
			}
			t.AddRow(flattenObject(obj))
		}
	default:
		return nil, errors.Reason(
			"expected a JSON object or an array of objects, got: %v", js)
	}
	return t, nil
}

func flattenObject(obj map[string]any) Row {
	row := make(Row, len(obj))
	flattenInto("", obj, row)
	return row
}

func flattenInto(prefix string, obj map[string]any, row Row) {
	for k, v := range obj {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(name, nested, row)
			continue
		}
		row[name] = v
	}
}
