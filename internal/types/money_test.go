package types

import (
	"math/big"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12", 1200, false},
		{"12.5", 1250, false},
		{"12.50", 1250, false},
		{"0.07", 7, false},
		{".5", 50, false},
		{"-3.10", -310, false},
		{"1.234", 0, true},
		{"1.", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in, "MZN")
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMoney(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMoney(%q): %v", tc.in, err)
			continue
		}
		if got.Amount != tc.want {
			t.Errorf("ParseMoney(%q) = %d, want %d", tc.in, got.Amount, tc.want)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		7:      "0.07",
		11000:  "110.00",
		89050:  "890.50",
		-1234:  "-12.34",
	}
	for amount, want := range cases {
		if got := NewMoney(amount, "MZN").String(); got != want {
			t.Errorf("Money(%d).String() = %q, want %q", amount, got, want)
		}
	}
}

func TestDivRoundHalfUp(t *testing.T) {
	cases := []struct {
		num, den, want int64
	}{
		{5, 10, 1},
		{4, 10, 0},
		{15, 10, 2},
		{14999, 10000, 1},
		{15000, 10000, 2},
		{-15, 10, -2},
	}
	for _, tc := range cases {
		if got := DivRoundHalfUp(tc.num, tc.den); got != tc.want {
			t.Errorf("DivRoundHalfUp(%d, %d) = %d, want %d", tc.num, tc.den, got, tc.want)
		}
	}
}

func TestPercentFromFloatPrecision(t *testing.T) {
	cases := []struct {
		in      float64
		want    int64
		wantErr bool
	}{
		{11, 1100, false},
		{0.29, 29, false},
		{12.35, 1235, false},
		{50, 5000, false},
		{12.345, 0, true},
		{0.001, 0, true},
		{1e300, 0, true},
	}
	for _, tc := range cases {
		got, err := PercentFromFloat(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("PercentFromFloat(%v) = %d, expected error", tc.in, got)
			}
			continue
		}
		if err != nil || got.BasisPoints() != tc.want {
			t.Errorf("PercentFromFloat(%v) = %d, %v, want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestPercentFromFloat(t *testing.T) {
	p, err := PercentFromFloat(11.5)
	if err != nil {
		t.Fatalf("PercentFromFloat: %v", err)
	}
	if p.BasisPoints() != 1150 {
		t.Fatalf("basis points = %d, want 1150", p.BasisPoints())
	}
	if p.String() != "11.5" {
		t.Fatalf("String() = %q", p.String())
	}
	if WholePercent(11) != Percent(1100) {
		t.Fatalf("WholePercent(11) mismatch")
	}
}

func TestRatRoundHalfUp(t *testing.T) {
	cases := []struct {
		num, den int64
		want     int64
		ok       bool
	}{
		{617283945, 10000, 61728, true},
		{1, 2, 1, true},
		{49999, 100000, 0, true},
		{5, 2, 3, true},
		{0, 1, 0, true},
		{-1, 2, 0, false},
	}
	for _, tc := range cases {
		got, ok := RatRoundHalfUp(big.NewRat(tc.num, tc.den))
		if ok != tc.ok || got != tc.want {
			t.Errorf("RatRoundHalfUp(%d/%d) = %d, %v, want %d, %v", tc.num, tc.den, got, ok, tc.want, tc.ok)
		}
	}
	huge := new(big.Rat).SetInt(new(big.Int).Lsh(big.NewInt(1), 70))
	if _, ok := RatRoundHalfUp(huge); ok {
		t.Error("expected out of range for 2^70")
	}
}
