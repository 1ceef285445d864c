package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "12.34", want: 1234},
		{in: "£12.34", want: 1234},
		{in: "1,234.56", want: 123456},
		{in: "£1,234.56", want: 123456},
		{in: "-50", want: -5000},
		{in: "0", want: 0},
		{in: " 7.5 ", want: 750},
		{in: "12.345", want: 1235}, // rounds half away from zero
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "£", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMoney(%q) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney(%q) unexpected error: %v", tt.in, err)
			}
			if got.Pence != tt.want {
				t.Errorf("ParseMoney(%q) = %d pence, want %d", tt.in, got.Pence, tt.want)
			}
		})
	}
}

func TestParseMoneyCellEmptyIsZero(t *testing.T) {
	got, err := ParseMoneyCell("   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("empty cell = %v, want zero", got)
	}
}

func TestMoneyJSONIsPlainPounds(t *testing.T) {
	b, err := json.Marshal(Money{Pence: 120050})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "1200.5" {
		t.Errorf("marshal = %s, want 1200.5", b)
	}

	var m Money
	if err := json.Unmarshal([]byte("1200.5"), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Pence != 120050 {
		t.Errorf("unmarshal = %d pence, want 120050", m.Pence)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Pence: 500}
	b := Money{Pence: 200}
	if got := a.Sub(b); got.Pence != 300 {
		t.Errorf("Sub = %d, want 300", got.Pence)
	}
	if got := a.Add(b.Neg()); got.Pence != 300 {
		t.Errorf("Add(Neg) = %d, want 300", got.Pence)
	}
}
