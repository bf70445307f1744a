package calculator

import (
	"errors"
	"math"
	"testing"

	"github.com/mmynk/tripledger/internal/models"
)

func TestShare(t *testing.T) {
	tests := []struct {
		name         string
		amount       float64
		currency     models.Currency
		bufferRate   float64
		participants int
		want         float64
		wantErr      error
	}{
		{
			name:         "JPY converted with buffer rate",
			amount:       35000,
			currency:     models.CurrencyJPY,
			bufferRate:   0.30,
			participants: 5,
			want:         2100.00,
		},
		{
			name:         "THB ignores buffer rate",
			amount:       5000,
			currency:     models.CurrencyTHB,
			bufferRate:   0.30,
			participants: 4,
			want:         1250.00,
		},
		{
			name:         "JPY with three-decimal rate",
			amount:       84000,
			currency:     models.CurrencyJPY,
			bufferRate:   0.215,
			participants: 2,
			want:         9030.00,
		},
		{
			name:         "rounded to two decimals",
			amount:       100,
			currency:     models.CurrencyTHB,
			participants: 3,
			want:         33.33,
		},
		{
			name:         "half rounds away from zero",
			amount:       0.05,
			currency:     models.CurrencyTHB,
			participants: 2,
			want:         0.03,
		},
		{
			name:         "zero participants rejected",
			amount:       100,
			currency:     models.CurrencyTHB,
			participants: 0,
			wantErr:      ErrInvalidExpenseState,
		},
		{
			name:         "unknown currency rejected",
			amount:       100,
			currency:     models.Currency("USD"),
			participants: 2,
			wantErr:      ErrInvalidExpenseState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Share(tt.amount, tt.currency, tt.bufferRate, tt.participants)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Share() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Share() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Share() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Each share is rounded to 2 dp, so multiplying back can drift by at most
// half a satang per participant.
func TestShare_RecoversCollectedTotal(t *testing.T) {
	amounts := []float64{1, 99.99, 1000, 12345.67, 35000}
	for _, amount := range amounts {
		for n := 1; n <= 6; n++ {
			share, err := Share(amount, models.CurrencyJPY, 0.23, n)
			if err != nil {
				t.Fatalf("Share(%v, %d) error: %v", amount, n, err)
			}
			collected, _ := CollectedTHB(amount, models.CurrencyJPY, 0.23)
			diff := math.Abs(share*float64(n) - collected.InexactFloat64())
			if diff > 0.005*float64(n)+1e-9 {
				t.Errorf("amount=%v n=%d: share*n differs from collected by %v", amount, n, diff)
			}
		}
	}
}

func TestActualShare(t *testing.T) {
	got, err := ActualShare(8400, 5)
	if err != nil {
		t.Fatalf("ActualShare() error: %v", err)
	}
	if got != 1680.00 {
		t.Errorf("ActualShare() = %v, want 1680", got)
	}

	if _, err := ActualShare(8400, 0); !errors.Is(err, ErrInvalidExpenseState) {
		t.Errorf("ActualShare(n=0) error = %v, want ErrInvalidExpenseState", err)
	}
}

func TestSum(t *testing.T) {
	// 0.1 + 0.2 is the classic float trap.
	if got := Sum(0.1, 0.2); got != 0.3 {
		t.Errorf("Sum(0.1, 0.2) = %v, want 0.3", got)
	}
	if got := Sum(); got != 0 {
		t.Errorf("Sum() = %v, want 0", got)
	}
	if got := Sub(2100, 1680); got != 420 {
		t.Errorf("Sub(2100, 1680) = %v, want 420", got)
	}
}
