package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleString(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{"string value", "ANO", "ANO", true},
		{"integer float", float64(42), "42", true},
		{"fraction", 3.14, "3.14", true},
		{"large integer keeps digits", float64(9007199254740), "9007199254740", true},
		{"json number", json.Number("17"), "17", true},
		{"boolean", true, "true", true},
		{"negative", float64(-7), "-7", true},
		{"null", nil, "", false},
		{"object", map[string]any{"a": 1}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleString(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("FlexibleString(%v) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFlexibleInt(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int64
		wantErr bool
	}{
		{"float", float64(15), 15, false},
		{"string", "15", 15, false},
		{"padded string", " 15 ", 15, false},
		{"json number", json.Number("99"), 99, false},
		{"int", 3, 3, false},
		{"fraction", 1.5, 0, true},
		{"text", "abc", 0, true},
		{"bool", true, 0, true},
		{"null", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FlexibleInt(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FlexibleInt(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FlexibleInt(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlexibleBool(t *testing.T) {
	tests := []struct {
		input   any
		want    bool
		wantErr bool
	}{
		{true, true, false},
		{false, false, false},
		{"true", true, false},
		{"ANO", true, false},
		{"ne", false, false},
		{float64(1), true, false},
		{float64(0), false, false},
		{float64(2), false, true},
		{"maybe", false, true},
		{nil, false, true},
	}

	for _, tt := range tests {
		got, err := FlexibleBool(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("FlexibleBool(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("FlexibleBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFlexibleStrings(t *testing.T) {
	got, err := FlexibleStrings([]any{"code", "name"})
	if err != nil || len(got) != 2 || got[0] != "code" || got[1] != "name" {
		t.Errorf("FlexibleStrings(list) = %v, %v", got, err)
	}

	got, err = FlexibleStrings("code, name,,")
	if err != nil || len(got) != 2 || got[1] != "name" {
		t.Errorf("FlexibleStrings(csv) = %v, %v", got, err)
	}

	if _, err := FlexibleStrings([]any{"code", 1.0}); err == nil {
		t.Error("expected an error for a non-string element")
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		input any
		want  float64
	}{
		{float64(2.5), 2.5},
		{int64(4), 4},
		{"12.25", 12.25},
		{nil, 0},
		{"n/a", 0},
		{json.Number("3"), 3},
	}

	for _, tt := range tests {
		if got := Number(tt.input); got != tt.want {
			t.Errorf("Number(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
