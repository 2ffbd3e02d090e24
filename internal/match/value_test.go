// SPDX-License-Identifier: Apache-2.0

package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		input         string
		wantNumeric   float64
		wantUnit      string
		wantTolerance float64
	}{
		{input: "10k", wantNumeric: 10000},
		{input: "10K", wantNumeric: 10000},
		{input: "4.7u", wantNumeric: 4.7e-6},
		{input: "4.7uF", wantNumeric: 4.7e-6, wantUnit: "farad"},
		{input: "100n", wantNumeric: 100e-9},
		{input: "100nF", wantNumeric: 100e-9, wantUnit: "farad"},
		{input: "1M", wantNumeric: 1e6},
		{input: "4R7", wantNumeric: 4.7, wantUnit: "ohm"},
		{input: "0R", wantNumeric: 0, wantUnit: "ohm"},
		{input: "10kOhm", wantNumeric: 10000, wantUnit: "ohm"},
		{input: "2.2", wantNumeric: 2.2},
		{input: "10k 5%", wantNumeric: 10000, wantTolerance: 0.05},
		{input: "100nF 10%", wantNumeric: 100e-9, wantUnit: "farad", wantTolerance: 0.10},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := ParseValue(tt.input)
			assert.True(t, v.HasNumeric, "expected numeric interpretation")
			assert.InDelta(t, tt.wantNumeric, v.Numeric, tt.wantNumeric*1e-9+1e-15)
			assert.Equal(t, tt.wantUnit, v.Unit)
			assert.InDelta(t, tt.wantTolerance, v.Tolerance, 1e-9)
		})
	}
}

func TestParseValueNonNumeric(t *testing.T) {
	for _, input := range []string{"LM358", "DNP", ""} {
		v := ParseValue(input)
		assert.False(t, v.HasNumeric, "input %q", input)
	}
}

func TestValuesMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "prefix vs plain number", a: "10k", b: "10000", want: true},
		{name: "within five percent", a: "10k", b: "10.1k", want: true},
		{name: "outside five percent", a: "10k", b: "12k", want: false},
		{name: "farad prefix equivalence", a: "100nF", b: "0.1uF", want: true},
		{name: "r notation vs decimal", a: "4R7", b: "4.7", want: true},
		{name: "unit mismatch", a: "10uF", b: "10uH", want: false},
		{name: "non numeric exact string", a: "LM358", b: "lm358", want: true},
		{name: "non numeric different string", a: "LM358", b: "NE555", want: false},
		{name: "zero matches only zero", a: "0R", b: "10k", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValuesMatch(tt.a, tt.b, 5.0))
		})
	}
}

func TestParsedValueFormatted(t *testing.T) {
	assert.Equal(t, "10k", ParseValue("10000").Formatted)
	assert.Equal(t, "100n", ParseValue("100n").Formatted)
	assert.Equal(t, "1M", ParseValue("1M").Formatted)
	assert.Equal(t, "100nF", ParseValue("100nF").Formatted)
}
