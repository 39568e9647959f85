package core

import (
	"math"
	"testing"
	"time"
)

func TestBar_IsFinite(t *testing.T) {
	tests := []struct {
		name string
		bar  Bar
		want bool
	}{
		{"valid", Bar{Open: 1, High: 2, Low: 0.5, Close: 1.5}, true},
		{"nan close", Bar{Open: 1, High: 2, Low: 0.5, Close: math.NaN()}, false},
		{"inf high", Bar{Open: 1, High: math.Inf(1), Low: 0.5, Close: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bar.IsFinite(); got != tt.want {
				t.Errorf("IsFinite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBar_Field(t *testing.T) {
	b := Bar{Date: time.Now(), Open: 1, High: 2, Low: 3, Close: 4, Volume: 5, AdjClose: 6}
	for i, name := range PriceFields {
		v, ok := b.Field(name)
		if !ok {
			t.Fatalf("field %s not found", name)
		}
		if v != float64(i+1) {
			t.Errorf("field %s = %v, want %v", name, v, i+1)
		}
	}
	if _, ok := b.Field("regime"); ok {
		t.Error("unknown field should not resolve")
	}
}

func TestDirection_Sign(t *testing.T) {
	if Long.Sign() != 1 {
		t.Error("long sign should be 1")
	}
	if Short.Sign() != -1 {
		t.Error("short sign should be -1")
	}
}
