package service

import (
	"time"

	"github.com/corebank-io/corebank-go/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// BuildAmortizationSchedule computes an equal-installment (annuity)
// repayment schedule. For a monthly rate i = annualRatePct/12/100 over n
// months the payment is
//
//	M = P · i · (1+i)^n / ((1+i)^n − 1)
//
// Each row's interest is the rounded monthly interest on the remaining
// balance and principal is the payment minus that interest. The final row
// absorbs all rounding drift: its principal is forced to the exact
// remaining balance, so the principal column always sums to P.
//
// A zero rate degrades to an equal principal split with the remainder on
// the last row.
func BuildAmortizationSchedule(principal domain.Money, annualRatePct decimal.Decimal, termMonths int, firstDueDate time.Time) ([]domain.Installment, error) {
	if !principal.IsPositive() {
		return nil, &domain.ErrValidation{Field: "principal", Message: "must be positive"}
	}
	if termMonths < 1 {
		return nil, &domain.ErrValidation{Field: "term_months", Message: "must be at least 1"}
	}
	if annualRatePct.IsNegative() {
		return nil, &domain.ErrValidation{Field: "interest_rate", Message: "must not be negative"}
	}

	n := int64(termMonths)
	schedule := make([]domain.Installment, 0, termMonths)

	if annualRatePct.IsZero() {
		base := domain.NewMoney(principal.Decimal().Div(decimal.NewFromInt(n)))
		remaining := principal
		for k := 1; k <= termMonths; k++ {
			p := base
			if k == termMonths {
				p = remaining
			}
			remaining = remaining.Sub(p)
			schedule = append(schedule, domain.Installment{
				Number:    k,
				DueDate:   firstDueDate.AddDate(0, k-1, 0),
				Principal: p,
				Interest:  domain.ZeroMoney(),
				Total:     p,
			})
		}
		return schedule, nil
	}

	i := annualRatePct.Div(twelve).Div(hundred)
	pow := one.Add(i).Pow(decimal.NewFromInt(n))
	payment := domain.NewMoney(principal.Decimal().Mul(i).Mul(pow).Div(pow.Sub(one)))

	remaining := principal
	for k := 1; k <= termMonths; k++ {
		interest := domain.NewMoney(remaining.Decimal().Mul(i))
		p := payment.Sub(interest)
		if k == termMonths {
			p = remaining
		}
		remaining = remaining.Sub(p)
		schedule = append(schedule, domain.Installment{
			Number:    k,
			DueDate:   firstDueDate.AddDate(0, k-1, 0),
			Principal: p,
			Interest:  interest,
			Total:     p.Add(interest),
		})
	}
	return schedule, nil
}
