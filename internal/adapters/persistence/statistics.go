package persistence

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"memberdesk/backend/internal/domain"
)

// Statistics counts applicants and members and sums shares and dues. The
// value of shares depends on the share price and is left to the caller.
func (r *SQLRepository) Statistics(ctx context.Context) (domain.Statistics, error) {
	var stats domain.Statistics

	counts := []struct {
		target *int
		query  string
		args   []any
	}{
		{&stats.Applicants, "SELECT COUNT(*) FROM members WHERE membership_accepted = ?", []any{false}},
		{&stats.Members, "SELECT COUNT(*) FROM members WHERE membership_accepted = ? AND membership_loss_date IS NULL", []any{true}},
		{&stats.LegalEntities, "SELECT COUNT(*) FROM members WHERE membership_accepted = ? AND membership_loss_date IS NULL AND is_legal_entity = ?", []any{true, true}},
		{&stats.InvestingMembers, "SELECT COUNT(*) FROM members WHERE membership_accepted = ? AND membership_loss_date IS NULL AND membership_type = ?", []any{true, domain.MembershipTypeInvesting}},
		{&stats.FormerMembers, "SELECT COUNT(*) FROM members WHERE membership_accepted = ? AND membership_loss_date IS NOT NULL", []any{true}},
		{&stats.SharesTotal, "SELECT COALESCE(SUM(number), 0) FROM shares", nil},
	}
	for _, entry := range counts {
		total, err := r.count(ctx, entry.query, entry.args...)
		if err != nil {
			return domain.Statistics{}, fmt.Errorf("statistics: %w", err)
		}
		*entry.target = total
	}

	sums := []struct {
		target *decimal.Decimal
		query  string
	}{
		{&stats.DuesInvoicedAmount, "SELECT COALESCE(SUM(CAST(invoice_amount AS NUMERIC)), 0) FROM dues_invoices"},
		{&stats.DuesPaidAmount, "SELECT COALESCE(SUM(CAST(amount_paid AS NUMERIC)), 0) FROM member_dues"},
	}
	for _, entry := range sums {
		if err := r.queryRow(ctx, entry.query).Scan(entry.target); err != nil {
			return domain.Statistics{}, fmt.Errorf("statistics: %w", mapError(err))
		}
		*entry.target = entry.target.Round(2)
	}

	return stats, nil
}
