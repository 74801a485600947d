package domain

import (
	"testing"
)

func mustNewMoney(amount int64, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name        string
		amount      int64
		currency    string
		expectError bool
	}{
		{
			name:        "valid money",
			amount:      1000,
			currency:    "USD",
			expectError: false,
		},
		{
			name:        "zero amount is valid",
			amount:      0,
			currency:    "EUR",
			expectError: false,
		},
		{
			name:        "negative amount",
			amount:      -100,
			currency:    "USD",
			expectError: true,
		},
		{
			name:        "empty currency",
			amount:      1000,
			currency:    "",
			expectError: true,
		},
		{
			name:        "invalid currency code length",
			amount:      1000,
			currency:    "US",
			expectError: true,
		},
		{
			name:        "lowercase currency code",
			amount:      1000,
			currency:    "usd",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, err := NewMoney(tt.amount, tt.currency)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if money.Amount() != tt.amount {
					t.Errorf("expected amount %d, got %d", tt.amount, money.Amount())
				}
				if money.Currency() != tt.currency {
					t.Errorf("expected currency %s, got %s", tt.currency, money.Currency())
				}
			}
		})
	}
}

func TestMoney_Add(t *testing.T) {
	tests := []struct {
		name        string
		money1      Money
		money2      Money
		expected    int64
		expectError bool
	}{
		{
			name:     "add same currency",
			money1:   mustNewMoney(1000, "USD"),
			money2:   mustNewMoney(500, "USD"),
			expected: 1500,
		},
		{
			name:     "add zero",
			money1:   mustNewMoney(1000, "USD"),
			money2:   ZeroMoney("USD"),
			expected: 1000,
		},
		{
			name:        "currency mismatch",
			money1:      mustNewMoney(1000, "USD"),
			money2:      mustNewMoney(500, "EUR"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.money1.Add(tt.money2)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.Amount() != tt.expected {
					t.Errorf("expected %d, got %d", tt.expected, result.Amount())
				}
			}
		})
	}
}

func TestMoney_Subtract(t *testing.T) {
	tests := []struct {
		name        string
		money1      Money
		money2      Money
		expected    int64
		expectedErr error
	}{
		{
			name:     "subtract smaller amount",
			money1:   mustNewMoney(1000, "USD"),
			money2:   mustNewMoney(300, "USD"),
			expected: 700,
		},
		{
			name:     "subtract equal amount",
			money1:   mustNewMoney(1000, "USD"),
			money2:   mustNewMoney(1000, "USD"),
			expected: 0,
		},
		{
			name:        "result would be negative",
			money1:      mustNewMoney(300, "USD"),
			money2:      mustNewMoney(1000, "USD"),
			expectedErr: ErrNegativeMoney,
		},
		{
			name:        "currency mismatch",
			money1:      mustNewMoney(1000, "USD"),
			money2:      mustNewMoney(500, "EUR"),
			expectedErr: ErrCurrencyMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.money1.Subtract(tt.money2)

			if tt.expectedErr != nil {
				if err != tt.expectedErr {
					t.Errorf("expected error %v, got %v", tt.expectedErr, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.Amount() != tt.expected {
					t.Errorf("expected %d, got %d", tt.expected, result.Amount())
				}
			}
		})
	}
}

func TestMoney_Multiply(t *testing.T) {
	tests := []struct {
		name        string
		money       Money
		qty         int
		expected    int64
		expectError bool
	}{
		{
			name:     "multiply by quantity",
			money:    mustNewMoney(250, "USD"),
			qty:      4,
			expected: 1000,
		},
		{
			name:     "multiply by zero",
			money:    mustNewMoney(250, "USD"),
			qty:      0,
			expected: 0,
		},
		{
			name:        "negative quantity",
			money:       mustNewMoney(250, "USD"),
			qty:         -1,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.money.Multiply(tt.qty)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.Amount() != tt.expected {
					t.Errorf("expected %d, got %d", tt.expected, result.Amount())
				}
			}
		})
	}
}

func TestMoney_Divide(t *testing.T) {
	tests := []struct {
		name        string
		money       Money
		divisor     int
		expected    int64
		expectError bool
	}{
		{
			name:     "exact division",
			money:    mustNewMoney(1000, "USD"),
			divisor:  4,
			expected: 250,
		},
		{
			name:     "rounds down below half",
			money:    mustNewMoney(10, "USD"),
			divisor:  3,
			expected: 3,
		},
		{
			name:     "rounds up at half",
			money:    mustNewMoney(11, "USD"),
			divisor:  2,
			expected: 6,
		},
		{
			name:     "rounds up above half",
			money:    mustNewMoney(20, "USD"),
			divisor:  3,
			expected: 7,
		},
		{
			name:        "zero divisor",
			money:       mustNewMoney(1000, "USD"),
			divisor:     0,
			expectError: true,
		},
		{
			name:        "negative divisor",
			money:       mustNewMoney(1000, "USD"),
			divisor:     -2,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.money.Divide(tt.divisor)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.Amount() != tt.expected {
					t.Errorf("expected %d, got %d", tt.expected, result.Amount())
				}
			}
		})
	}
}

func TestMoney_Comparisons(t *testing.T) {
	a := mustNewMoney(1000, "USD")
	b := mustNewMoney(500, "USD")
	c := mustNewMoney(1000, "EUR")

	if !a.Equals(mustNewMoney(1000, "USD")) {
		t.Errorf("expected equal money values")
	}
	if a.Equals(c) {
		t.Errorf("different currencies must not be equal")
	}

	greater, err := a.GreaterThan(b)
	if err != nil || !greater {
		t.Errorf("expected a > b, got %v, err %v", greater, err)
	}

	if _, err := a.GreaterThan(c); err != ErrCurrencyMismatch {
		t.Errorf("expected currency mismatch, got %v", err)
	}
}

func TestMoney_String(t *testing.T) {
	m := mustNewMoney(123456, "USD")
	if m.String() != "1234.56 USD" {
		t.Errorf("unexpected string: %s", m.String())
	}
}
