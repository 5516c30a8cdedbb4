package persistence

import (
	"context"
	"fmt"

	"memberdesk/backend/internal/domain"
)

const memberDuesColumns = `member_id, year, start_code, amount, reduced, amount_reduced, invoiced,
	invoice_date, invoice_no, balance, balanced, paid, amount_paid, paid_date`

const invoiceColumns = `id, year, invoice_no, invoice_no_string, invoice_date, invoice_amount,
	is_cancelled, cancelled_date, is_reversal, is_altered, member_id, membership_number, email,
	token, preceding_invoice_no, succeeding_invoice_no`

var invoiceSortColumns = map[string]string{
	"id":                "id",
	"invoice_no":        "invoice_no",
	"invoice_date":      "invoice_date",
	"invoice_amount":    "CAST(invoice_amount AS NUMERIC)",
	"membership_number": "membership_number",
	"email":             "email",
}

func scanMemberDues(row rowScanner) (domain.MemberDues, error) {
	var dues domain.MemberDues
	err := row.Scan(
		&dues.MemberID,
		&dues.Year,
		&dues.StartCode,
		&dues.Amount,
		&dues.Reduced,
		&dues.AmountReduced,
		&dues.Invoiced,
		dateColumn{&dues.InvoiceDate},
		&dues.InvoiceNo,
		&dues.Balance,
		&dues.Balanced,
		&dues.Paid,
		&dues.AmountPaid,
		dateColumn{&dues.PaidDate},
	)
	return dues, err
}

func scanInvoice(row rowScanner) (domain.DuesInvoice, error) {
	var invoice domain.DuesInvoice
	err := row.Scan(
		&invoice.ID,
		&invoice.Year,
		&invoice.InvoiceNo,
		&invoice.InvoiceNoString,
		dateColumn{&invoice.InvoiceDate},
		&invoice.InvoiceAmount,
		&invoice.IsCancelled,
		dateColumn{&invoice.CancelledDate},
		&invoice.IsReversal,
		&invoice.IsAltered,
		&invoice.MemberID,
		&invoice.MembershipNumber,
		&invoice.Email,
		&invoice.Token,
		&invoice.PrecedingInvoiceNo,
		&invoice.SucceedingInvoiceNo,
	)
	return invoice, err
}

func (r *SQLRepository) GetMemberDues(ctx context.Context, memberID int64, year int) (domain.MemberDues, error) {
	dues, err := scanMemberDues(r.queryRow(ctx, "SELECT "+memberDuesColumns+" FROM member_dues WHERE member_id = ? AND year = ?", memberID, year))
	if err != nil {
		return domain.MemberDues{}, notFound(mapError(err), fmt.Sprintf("dues %d of member", year), memberID)
	}
	return dues, nil
}

// SaveMemberDues inserts or replaces the account of one member and year.
func (r *SQLRepository) SaveMemberDues(ctx context.Context, dues domain.MemberDues) (domain.MemberDues, error) {
	_, err := r.exec(ctx, `INSERT INTO member_dues (`+memberDuesColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (member_id, year) DO UPDATE SET
			start_code = excluded.start_code,
			amount = excluded.amount,
			reduced = excluded.reduced,
			amount_reduced = excluded.amount_reduced,
			invoiced = excluded.invoiced,
			invoice_date = excluded.invoice_date,
			invoice_no = excluded.invoice_no,
			balance = excluded.balance,
			balanced = excluded.balanced,
			paid = excluded.paid,
			amount_paid = excluded.amount_paid,
			paid_date = excluded.paid_date`,
		dues.MemberID,
		dues.Year,
		dues.StartCode,
		dues.Amount,
		dues.Reduced,
		dues.AmountReduced,
		dues.Invoiced,
		dateValue(dues.InvoiceDate),
		dues.InvoiceNo,
		dues.Balance,
		dues.Balanced,
		dues.Paid,
		dues.AmountPaid,
		dateValue(dues.PaidDate),
	)
	if err != nil {
		return domain.MemberDues{}, fmt.Errorf("save dues %d of member %d: %w", dues.Year, dues.MemberID, err)
	}
	return dues, nil
}

func (r *SQLRepository) CreateDuesInvoice(ctx context.Context, invoice domain.DuesInvoice) (domain.DuesInvoice, error) {
	id, err := r.insert(ctx, `INSERT INTO dues_invoices (year, invoice_no, invoice_no_string, invoice_date,
		invoice_amount, is_cancelled, cancelled_date, is_reversal, is_altered, member_id, membership_number,
		email, token, preceding_invoice_no, succeeding_invoice_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.Year,
		invoice.InvoiceNo,
		invoice.InvoiceNoString,
		dateValue(invoice.InvoiceDate),
		invoice.InvoiceAmount,
		invoice.IsCancelled,
		dateValue(invoice.CancelledDate),
		invoice.IsReversal,
		invoice.IsAltered,
		invoice.MemberID,
		invoice.MembershipNumber,
		invoice.Email,
		invoice.Token,
		invoice.PrecedingInvoiceNo,
		invoice.SucceedingInvoiceNo,
	)
	if err != nil {
		return domain.DuesInvoice{}, fmt.Errorf("create invoice %s: %w", invoice.InvoiceNoString, err)
	}
	invoice.ID = id
	return invoice, nil
}

// UpdateDuesInvoice updates the mutable part of an invoice: cancellation and
// the link to its successor.
func (r *SQLRepository) UpdateDuesInvoice(ctx context.Context, invoice domain.DuesInvoice) (domain.DuesInvoice, error) {
	result, err := r.exec(ctx, `UPDATE dues_invoices SET is_cancelled = ?, cancelled_date = ?,
		preceding_invoice_no = ?, succeeding_invoice_no = ?, token = ?
		WHERE year = ? AND invoice_no = ?`,
		invoice.IsCancelled,
		dateValue(invoice.CancelledDate),
		invoice.PrecedingInvoiceNo,
		invoice.SucceedingInvoiceNo,
		invoice.Token,
		invoice.Year,
		invoice.InvoiceNo,
	)
	if err != nil {
		return domain.DuesInvoice{}, fmt.Errorf("update invoice %d/%d: %w", invoice.Year, invoice.InvoiceNo, err)
	}
	if err := requireAffected(result, "invoice", fmt.Sprintf("%d/%d", invoice.Year, invoice.InvoiceNo)); err != nil {
		return domain.DuesInvoice{}, err
	}
	return r.GetDuesInvoice(ctx, invoice.Year, invoice.InvoiceNo)
}

func (r *SQLRepository) GetDuesInvoice(ctx context.Context, year, invoiceNo int) (domain.DuesInvoice, error) {
	invoice, err := scanInvoice(r.queryRow(ctx, "SELECT "+invoiceColumns+" FROM dues_invoices WHERE year = ? AND invoice_no = ?", year, invoiceNo))
	if err != nil {
		return domain.DuesInvoice{}, notFound(mapError(err), "invoice", fmt.Sprintf("%d/%d", year, invoiceNo))
	}
	return invoice, nil
}

func (r *SQLRepository) ListDuesInvoicesByMember(ctx context.Context, memberID int64, year int) ([]domain.DuesInvoice, error) {
	return r.listInvoices(ctx, "SELECT "+invoiceColumns+" FROM dues_invoices WHERE member_id = ? AND year = ? ORDER BY invoice_no ASC", memberID, year)
}

func (r *SQLRepository) ListDuesInvoices(ctx context.Context, year int, options domain.ListOptions) ([]domain.DuesInvoice, int, error) {
	total, err := r.count(ctx, "SELECT COUNT(*) FROM dues_invoices WHERE year = ?", year)
	if err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	limit, limitArgs := limitClause(options)
	query := "SELECT " + invoiceColumns + " FROM dues_invoices WHERE year = ?" + orderClause(options, invoiceSortColumns, "invoice_no") + limit
	invoices, err := r.listInvoices(ctx, query, append([]any{year}, limitArgs...)...)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *SQLRepository) ListAllDuesInvoices(ctx context.Context, year int) ([]domain.DuesInvoice, error) {
	return r.listInvoices(ctx, "SELECT "+invoiceColumns+" FROM dues_invoices WHERE year = ? ORDER BY invoice_no ASC", year)
}

func (r *SQLRepository) MaxDuesInvoiceNo(ctx context.Context, year int) (int, error) {
	var number int
	if err := r.queryRow(ctx, "SELECT COALESCE(MAX(invoice_no), 0) FROM dues_invoices WHERE year = ?", year).Scan(&number); err != nil {
		return 0, fmt.Errorf("max invoice number %d: %w", year, mapError(err))
	}
	return number, nil
}

func (r *SQLRepository) listInvoices(ctx context.Context, query string, args ...any) ([]domain.DuesInvoice, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]domain.DuesInvoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}
