package crypto

import (
	"encoding/json"
	"errors"
	"testing"
)

type verdict string

func TestCanonicalize(t *testing.T) {
	var nilSlice []any

	cases := []struct {
		name  string
		input any
		want  string
	}{
		{
			name: "sorted keys without nulls",
			input: map[string]any{
				"verdict": "approve",
				"milli":   712,
				"trace":   nil,
				"policy":  map[string]any{"strict": nil, "soft_gate": true},
			},
			want: `{"milli":712,"policy":{"soft_gate":true},"verdict":"approve"}`,
		},
		{name: "nfc strings", input: map[string]any{"jurisdiction": "Que\u0301bec"}, want: "{\"jurisdiction\":\"Qu\u00e9bec\"}"},
		{name: "array keeps nulls", input: []any{1, nil, "utah"}, want: `[1,null,"utah"]`},
		{name: "nil slice", input: nilSlice, want: "null"},
		{name: "empty slice", input: []string{}, want: "[]"},
		{name: "integer json number", input: json.Number("42"), want: "42"},
		{name: "named string", input: map[string]any{"decision": verdict("auto_approve")}, want: `{"decision":"auto_approve"}`},
		{name: "unsigned and bool", input: []any{uint8(7), false}, want: `[7,false]`},
		{name: "pointer", input: func() *int { v := 3; return &v }(), want: "3"},
	}
	for _, tc := range cases {
		got, err := Canonicalize(tc.input)
		if err != nil {
			t.Fatalf("%s: canonicalize: %v", tc.name, err)
		}
		if string(got) != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestCanonicalizeErrors(t *testing.T) {
	type payload struct{ A int }

	cases := []struct {
		name  string
		input any
		want  error
	}{
		{name: "float", input: 0.75, want: ErrFloatNotAllowed},
		{name: "nested float", input: map[string]any{"confidence": []any{0.5}}, want: ErrFloatNotAllowed},
		{name: "fractional json number", input: json.Number("1.25"), want: ErrFloatNotAllowed},
		{name: "exponent json number", input: json.Number("1e3"), want: ErrFloatNotAllowed},
		{name: "key collision", input: map[string]any{"e\u0301": 1, "\u00e9": 2}, want: ErrKeyCollision},
		{name: "int keys", input: map[int]any{1: "a"}, want: ErrNonStringMapKey},
		{name: "struct", input: payload{A: 1}, want: ErrUnsupportedType},
	}
	for _, tc := range cases {
		if _, err := Canonicalize(tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
