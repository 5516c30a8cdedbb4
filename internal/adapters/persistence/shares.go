package persistence

import (
	"context"
	"fmt"

	"memberdesk/backend/internal/domain"
)

const sharesColumns = `id, member_id, number, date_of_acquisition, reference_code,
	signature_received, signature_received_date, signature_confirmed, signature_confirmed_date,
	payment_received, payment_received_date, payment_confirmed, payment_confirmed_date,
	accountant_comment, created_at, updated_at`

func scanShares(row rowScanner) (domain.Shares, error) {
	var shares domain.Shares
	err := row.Scan(
		&shares.ID,
		&shares.MemberID,
		&shares.Number,
		dateColumn{&shares.DateOfAcquisition},
		&shares.ReferenceCode,
		&shares.SignatureReceived,
		dateColumn{&shares.SignatureReceivedDate},
		&shares.SignatureConfirmed,
		dateColumn{&shares.SignatureConfirmedDate},
		&shares.PaymentReceived,
		dateColumn{&shares.PaymentReceivedDate},
		&shares.PaymentConfirmed,
		dateColumn{&shares.PaymentConfirmedDate},
		&shares.AccountantComment,
		timeColumn{&shares.CreatedAt},
		timeColumn{&shares.UpdatedAt},
	)
	return shares, err
}

func (r *SQLRepository) CreateShares(ctx context.Context, shares domain.Shares) (domain.Shares, error) {
	shares.CreatedAt = nowUTC()
	shares.UpdatedAt = shares.CreatedAt

	id, err := r.insert(ctx, `INSERT INTO shares (member_id, number, date_of_acquisition, reference_code,
		signature_received, signature_received_date, signature_confirmed, signature_confirmed_date,
		payment_received, payment_received_date, payment_confirmed, payment_confirmed_date,
		accountant_comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shares.MemberID,
		shares.Number,
		dateValue(shares.DateOfAcquisition),
		shares.ReferenceCode,
		shares.SignatureReceived,
		dateValue(shares.SignatureReceivedDate),
		shares.SignatureConfirmed,
		dateValue(shares.SignatureConfirmedDate),
		shares.PaymentReceived,
		dateValue(shares.PaymentReceivedDate),
		shares.PaymentConfirmed,
		dateValue(shares.PaymentConfirmedDate),
		shares.AccountantComment,
		timeValue(shares.CreatedAt),
		timeValue(shares.UpdatedAt),
	)
	if err != nil {
		return domain.Shares{}, fmt.Errorf("create shares: %w", err)
	}
	shares.ID = id
	return shares, nil
}

func (r *SQLRepository) GetShares(ctx context.Context, id int64) (domain.Shares, error) {
	shares, err := scanShares(r.queryRow(ctx, "SELECT "+sharesColumns+" FROM shares WHERE id = ?", id))
	if err != nil {
		return domain.Shares{}, notFound(mapError(err), "shares", id)
	}
	return shares, nil
}

func (r *SQLRepository) UpdateShares(ctx context.Context, shares domain.Shares) (domain.Shares, error) {
	shares.UpdatedAt = nowUTC()
	result, err := r.exec(ctx, `UPDATE shares SET number = ?, date_of_acquisition = ?, reference_code = ?,
		signature_received = ?, signature_received_date = ?, signature_confirmed = ?, signature_confirmed_date = ?,
		payment_received = ?, payment_received_date = ?, payment_confirmed = ?, payment_confirmed_date = ?,
		accountant_comment = ?, updated_at = ?
		WHERE id = ?`,
		shares.Number,
		dateValue(shares.DateOfAcquisition),
		shares.ReferenceCode,
		shares.SignatureReceived,
		dateValue(shares.SignatureReceivedDate),
		shares.SignatureConfirmed,
		dateValue(shares.SignatureConfirmedDate),
		shares.PaymentReceived,
		dateValue(shares.PaymentReceivedDate),
		shares.PaymentConfirmed,
		dateValue(shares.PaymentConfirmedDate),
		shares.AccountantComment,
		timeValue(shares.UpdatedAt),
		shares.ID,
	)
	if err != nil {
		return domain.Shares{}, fmt.Errorf("update shares %d: %w", shares.ID, err)
	}
	if err := requireAffected(result, "shares", shares.ID); err != nil {
		return domain.Shares{}, err
	}
	return r.GetShares(ctx, shares.ID)
}

func (r *SQLRepository) DeleteShares(ctx context.Context, id int64) error {
	result, err := r.exec(ctx, "DELETE FROM shares WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete shares %d: %w", id, err)
	}
	return requireAffected(result, "shares", id)
}

func (r *SQLRepository) ListSharesByMember(ctx context.Context, memberID int64) ([]domain.Shares, error) {
	rows, err := r.query(ctx, "SELECT "+sharesColumns+" FROM shares WHERE member_id = ? ORDER BY date_of_acquisition ASC, id ASC", memberID)
	if err != nil {
		return nil, fmt.Errorf("list shares of member %d: %w", memberID, err)
	}
	defer rows.Close()

	packages := make([]domain.Shares, 0)
	for rows.Next() {
		shares, err := scanShares(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shares: %w", err)
		}
		packages = append(packages, shares)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shares of member %d: %w", memberID, err)
	}
	return packages, nil
}
