package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
)

// ErrInvalidExpenseState is returned when an expense cannot be split:
// no participants or an unsupported currency.
var ErrInvalidExpenseState = errors.New("invalid expense state")

// decimalPlaces is the precision every share is rounded to.
const decimalPlaces = 2

// CollectedTHB converts an expense amount into its upfront THB collection
// target. JPY amounts are multiplied by the buffer rate; THB amounts are
// taken as-is and the buffer rate is ignored.
func CollectedTHB(amount float64, currency models.Currency, bufferRate float64) (decimal.Decimal, error) {
	switch currency {
	case models.CurrencyJPY:
		return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(bufferRate)), nil
	case models.CurrencyTHB:
		return decimal.NewFromFloat(amount), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %q", ErrInvalidExpenseState, currency)
	}
}

// Share computes one participant's collected THB share of an expense:
// person_share = collected_thb / participants, rounded once to 2 dp.
func Share(amount float64, currency models.Currency, bufferRate float64, participants int) (float64, error) {
	share, err := exactShare(amount, currency, bufferRate, participants)
	if err != nil {
		return 0, err
	}
	return Round(share), nil
}

// ExpenseShare is Share applied to a participant-scoped expense.
func ExpenseShare(e models.ParticipantExpense) (float64, error) {
	return Share(e.Amount, e.Currency, e.BufferRate, e.TotalParticipants)
}

// ExactExpenseShare is ExpenseShare without rounding. Totals that are
// rounded once add these instead of the displayed line shares.
func ExactExpenseShare(e models.ParticipantExpense) (decimal.Decimal, error) {
	return exactShare(e.Amount, e.Currency, e.BufferRate, e.TotalParticipants)
}

// ActualShare computes one participant's share of a realized THB cost.
func ActualShare(actualTHB float64, participants int) (float64, error) {
	share, err := exactActualShare(actualTHB, participants)
	if err != nil {
		return 0, err
	}
	return Round(share), nil
}

// Sum adds already-rounded shares without accumulating float error.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return Round(total)
}

// Sub returns a - b rounded to 2 dp.
func Sub(a, b float64) float64 {
	return Round(decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)))
}

// ShareLabel formats the fraction shown on documents, e.g. "1/5".
func ShareLabel(participants int) string {
	return fmt.Sprintf("1/%d", participants)
}

// Round converts an exact amount to a 2 dp float.
func Round(d decimal.Decimal) float64 {
	return d.Round(decimalPlaces).InexactFloat64()
}

func exactShare(amount float64, currency models.Currency, bufferRate float64, participants int) (decimal.Decimal, error) {
	if participants < 1 {
		return decimal.Zero, fmt.Errorf("%w: participant count %d", ErrInvalidExpenseState, participants)
	}
	collected, err := CollectedTHB(amount, currency, bufferRate)
	if err != nil {
		return decimal.Zero, err
	}
	return collected.Div(decimal.NewFromInt(int64(participants))), nil
}

func exactActualShare(actualTHB float64, participants int) (decimal.Decimal, error) {
	if participants < 1 {
		return decimal.Zero, fmt.Errorf("%w: participant count %d", ErrInvalidExpenseState, participants)
	}
	return decimal.NewFromFloat(actualTHB).Div(decimal.NewFromInt(int64(participants))), nil
}
