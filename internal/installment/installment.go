package installment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Installment is one entry of a card installment schedule. Amounts are integer
// minor currency units (centavos).
type Installment struct {
	Count       int    `json:"count"`
	AmountCents int64  `json:"amount_cents"`
	TotalCents  int64  `json:"total_cents"`
	HasInterest bool   `json:"has_interest"`
	Label       string `json:"label"`
}

var one = decimal.NewFromInt(1)

// Plan computes the installment options for a principal amount.
//
// Count 1 never carries interest. For count i > 1 the total is
// principal * (1 + rate*i): simple interest proportional to the count, not
// compounding. The sequence stops at the first count whose per-installment
// amount, evaluated on the interest-inclusive total, falls below
// minInstallmentCents. Checking the interest-inclusive amount instead of the
// principal intentionally yields more installment options; this is a business
// rule, not an oversight.
//
// Pure function: deterministic, no I/O.
func Plan(amountCents int64, rate decimal.Decimal, maxInstallments int, minInstallmentCents int64) []Installment {
	if amountCents < 0 || maxInstallments < 1 || minInstallmentCents < 1 {
		return nil
	}

	principal := decimal.NewFromInt(amountCents)
	out := make([]Installment, 0, maxInstallments)
	for i := 1; i <= maxInstallments; i++ {
		count := decimal.NewFromInt(int64(i))
		total := principal
		hasInterest := false
		if i > 1 && rate.IsPositive() {
			total = principal.Mul(one.Add(rate.Mul(count)))
			hasInterest = true
		}

		perCents := total.DivRound(count, 0).IntPart()
		if i > 1 && perCents < minInstallmentCents {
			break
		}

		out = append(out, Installment{
			Count:       i,
			AmountCents: perCents,
			TotalCents:  perCents * int64(i),
			HasInterest: hasInterest,
			Label:       label(i, perCents, hasInterest),
		})
	}
	return out
}

func label(count int, perCents int64, hasInterest bool) string {
	suffix := "sem juros"
	if hasInterest {
		suffix = "com juros"
	}
	return fmt.Sprintf("%dx de %s %s", count, FormatBRL(perCents), suffix)
}

// FormatBRL renders minor units as a pt-BR currency string, e.g. "R$ 1.234,56".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	reais := cents / 100
	centavos := cents % 100

	digits := fmt.Sprintf("%d", reais)
	var grouped []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, d)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped, centavos)
}
