package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
	}{
		{"USD", USD(4900), 4900, "usd"},
		{"EUR", EUR(19900), 19900, "eur"},
		{"GBP", GBP(9900), 9900, "gbp"},
		{"Zero", Zero("USD"), 0, "usd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("currency: got %q, want %q", tt.money.Currency, tt.currency)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		result   Money
		expected Money
	}{
		{"Add", USD(100).Add(USD(200)), USD(300)},
		{"Subtract", USD(300).Subtract(USD(100)), USD(200)},
		{"Subtract below zero", USD(100).Subtract(USD(300)), USD(-200)},
		{"Negate", USD(150).Negate(), USD(-150)},
		{"Negate negative", USD(-150).Negate(), USD(150)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.result.Equal(tt.expected) {
				t.Errorf("got %v, want %v", tt.result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	_ = USD(100).Add(EUR(100))
}

func TestMoneyComparison(t *testing.T) {
	a, b := USD(100), USD(200)

	if !a.LessThan(b) {
		t.Error("100 should be less than 200")
	}
	if !b.GreaterThan(a) {
		t.Error("200 should be greater than 100")
	}
	if !a.Min(b).Equal(a) {
		t.Errorf("Min: got %v, want %v", a.Min(b), a)
	}
	if !a.Equal(USD(100)) {
		t.Error("equal values should be Equal")
	}
	if a.Equal(EUR(100)) {
		t.Error("different currencies should not be Equal")
	}
}

func TestMoneyPredicates(t *testing.T) {
	if !Zero("usd").IsZero() {
		t.Error("Zero should be zero")
	}
	if !USD(1).IsPositive() {
		t.Error("USD(1) should be positive")
	}
	if !USD(-1).IsNegative() {
		t.Error("USD(-1) should be negative")
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{USD(4900), "49.00"},
		{USD(5), "0.05"},
		{USD(-4950), "-49.50"},
		{GBP(0), "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{USD(4900), "$49.00"},
		{EUR(19900), "€199.00"},
		{GBP(9900), "£99.00"},
		{Money{Amount: 100, Currency: "sek"}, "SEK 1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Amount != 4900 || decoded.Currency != "usd" || decoded.Display != "$49.00" {
		t.Errorf("unexpected JSON round-trip: %+v", decoded)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", []Money{}, Zero("usd")},
		{"Single", []Money{USD(100)}, USD(100)},
		{"Multiple", []Money{USD(100), USD(200), USD(300)}, USD(600)},
		{"With negatives", []Money{USD(100), USD(-50), USD(200)}, USD(250)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sum(tt.values...)
			if !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}
}
