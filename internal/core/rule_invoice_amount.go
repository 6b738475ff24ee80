package core

import (
	"context"
	"fmt"

	"clientpulse/pkg/domain"
)

// NewInvoiceAmountRule returns the in-transaction rule rejecting invoices with
// non-positive amounts.
func NewInvoiceAmountRule() domain.Rule {
	return invoiceAmountRule{}
}

type invoiceAmountRule struct{}

func (invoiceAmountRule) Name() string { return "invoice_amounts" }

func (invoiceAmountRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, inv := range view.ListInvoices() {
		if inv.Amount > 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "invoice_amounts",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("invoice %s has non-positive amount %.2f", inv.ID, inv.Amount),
			Entity:   domain.EntityInvoice,
			EntityID: inv.ID,
		})
	}
	return res, nil
}
