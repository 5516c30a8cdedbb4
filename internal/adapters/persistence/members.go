package persistence

import (
	"context"
	"fmt"
	"strings"

	"memberdesk/backend/internal/domain"
)

var memberWritableColumns = []string{
	"firstname", "lastname", "email", "address1", "address2", "postcode", "city", "country", "locale",
	"date_of_birth", "membership_type", "is_legal_entity", "court_of_law", "registration_number", "num_shares",
	"date_of_submission", "email_confirm_code", "email_is_confirmed",
	"signature_received", "signature_received_date", "signature_confirmed", "signature_confirmed_date",
	"payment_received", "payment_received_date", "payment_confirmed", "payment_confirmed_date",
	"accountant_comment", "membership_accepted", "membership_date", "membership_number",
	"membership_loss_date", "membership_loss_type", "certificate_token", "certificate_token_date",
	"created_at", "updated_at",
}

var memberColumns = "id, " + strings.Join(memberWritableColumns, ", ")

var memberSortColumns = map[string]string{
	"id":                 "id",
	"firstname":          "firstname",
	"lastname":           "lastname",
	"email":              "email",
	"city":               "city",
	"membership_number":  "membership_number",
	"membership_date":    "membership_date",
	"date_of_submission": "date_of_submission",
	"num_shares":         "num_shares",
}

func scanMember(row rowScanner) (domain.Member, error) {
	var member domain.Member
	err := row.Scan(
		&member.ID,
		&member.Firstname,
		&member.Lastname,
		&member.Email,
		&member.Address1,
		&member.Address2,
		&member.Postcode,
		&member.City,
		&member.Country,
		&member.Locale,
		dateColumn{&member.DateOfBirth},
		&member.MembershipType,
		&member.IsLegalEntity,
		&member.CourtOfLaw,
		&member.RegistrationNumber,
		&member.NumShares,
		timeColumn{&member.DateOfSubmission},
		textColumn{&member.EmailConfirmCode},
		&member.EmailIsConfirmed,
		&member.SignatureReceived,
		dateColumn{&member.SignatureReceivedDate},
		&member.SignatureConfirmed,
		dateColumn{&member.SignatureConfirmedDate},
		&member.PaymentReceived,
		dateColumn{&member.PaymentReceivedDate},
		&member.PaymentConfirmed,
		dateColumn{&member.PaymentConfirmedDate},
		&member.AccountantComment,
		&member.MembershipAccepted,
		dateColumn{&member.MembershipDate},
		intColumn{&member.MembershipNumber},
		dateColumn{&member.MembershipLossDate},
		&member.MembershipLossType,
		textColumn{&member.CertificateToken},
		timeColumn{&member.CertificateTokenDate},
		timeColumn{&member.CreatedAt},
		timeColumn{&member.UpdatedAt},
	)
	return member, err
}

// memberValues follows memberWritableColumns.
func memberValues(member domain.Member) []any {
	return []any{
		member.Firstname,
		member.Lastname,
		member.Email,
		member.Address1,
		member.Address2,
		member.Postcode,
		member.City,
		member.Country,
		member.Locale,
		dateValue(member.DateOfBirth),
		member.MembershipType,
		member.IsLegalEntity,
		member.CourtOfLaw,
		member.RegistrationNumber,
		member.NumShares,
		timeValue(member.DateOfSubmission),
		textValue(member.EmailConfirmCode),
		member.EmailIsConfirmed,
		member.SignatureReceived,
		dateValue(member.SignatureReceivedDate),
		member.SignatureConfirmed,
		dateValue(member.SignatureConfirmedDate),
		member.PaymentReceived,
		dateValue(member.PaymentReceivedDate),
		member.PaymentConfirmed,
		dateValue(member.PaymentConfirmedDate),
		member.AccountantComment,
		member.MembershipAccepted,
		dateValue(member.MembershipDate),
		intValue(member.MembershipNumber),
		dateValue(member.MembershipLossDate),
		member.MembershipLossType,
		textValue(member.CertificateToken),
		timeValue(member.CertificateTokenDate),
		timeValue(member.CreatedAt),
		timeValue(member.UpdatedAt),
	}
}

func (r *SQLRepository) CreateMember(ctx context.Context, member domain.Member) (domain.Member, error) {
	now := nowUTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = member.CreatedAt
	if member.DateOfSubmission.IsZero() {
		member.DateOfSubmission = member.CreatedAt
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(memberWritableColumns)), ", ")
	query := "INSERT INTO members (" + strings.Join(memberWritableColumns, ", ") + ") VALUES (" + placeholders + ")"
	id, err := r.insert(ctx, query, memberValues(member)...)
	if err != nil {
		return domain.Member{}, fmt.Errorf("create member: %w", err)
	}
	member.ID = id
	return member, nil
}

func (r *SQLRepository) GetMember(ctx context.Context, id int64) (domain.Member, error) {
	member, err := scanMember(r.queryRow(ctx, "SELECT "+memberColumns+" FROM members WHERE id = ?", id))
	if err != nil {
		return domain.Member{}, notFound(mapError(err), "member", id)
	}
	return member, nil
}

func (r *SQLRepository) GetMemberByConfirmCode(ctx context.Context, code string) (domain.Member, error) {
	member, err := scanMember(r.queryRow(ctx, "SELECT "+memberColumns+" FROM members WHERE email_confirm_code = ?", code))
	if err != nil {
		return domain.Member{}, notFound(mapError(err), "application", code)
	}
	return member, nil
}

func (r *SQLRepository) GetMemberByMembershipNumber(ctx context.Context, number int64) (domain.Member, error) {
	member, err := scanMember(r.queryRow(ctx, "SELECT "+memberColumns+" FROM members WHERE membership_number = ?", number))
	if err != nil {
		return domain.Member{}, notFound(mapError(err), "membership number", number)
	}
	return member, nil
}

func (r *SQLRepository) UpdateMember(ctx context.Context, member domain.Member) (domain.Member, error) {
	if member.CreatedAt.IsZero() {
		existing, err := r.GetMember(ctx, member.ID)
		if err != nil {
			return domain.Member{}, err
		}
		member.CreatedAt = existing.CreatedAt
	}
	member.UpdatedAt = nowUTC()

	assignments := make([]string, 0, len(memberWritableColumns))
	for _, column := range memberWritableColumns {
		assignments = append(assignments, column+" = ?")
	}
	args := append(memberValues(member), member.ID)
	result, err := r.exec(ctx, "UPDATE members SET "+strings.Join(assignments, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return domain.Member{}, fmt.Errorf("update member %d: %w", member.ID, err)
	}
	if err := requireAffected(result, "member", member.ID); err != nil {
		return domain.Member{}, err
	}
	return member, nil
}

func (r *SQLRepository) DeleteMember(ctx context.Context, id int64) error {
	result, err := r.exec(ctx, "DELETE FROM members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete member %d: %w", id, err)
	}
	return requireAffected(result, "member", id)
}

func memberWhere(filter domain.MemberFilter) (string, []any) {
	var conditions []string
	var args []any
	if filter.Accepted != nil {
		conditions = append(conditions, "membership_accepted = ?")
		args = append(args, *filter.Accepted)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		conditions = append(conditions, "(LOWER(firstname || ' ' || lastname || ' ' || email) LIKE ? OR LOWER(city) LIKE ?)")
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *SQLRepository) ListMembers(ctx context.Context, filter domain.MemberFilter, options domain.ListOptions) ([]domain.Member, int, error) {
	where, args := memberWhere(filter)
	total, err := r.count(ctx, "SELECT COUNT(*) FROM members"+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	limit, limitArgs := limitClause(options)
	query := "SELECT " + memberColumns + " FROM members" + where + orderClause(options, memberSortColumns, "id") + limit
	members, err := r.listMembers(ctx, query, append(args, limitArgs...)...)
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (r *SQLRepository) ListAllMembers(ctx context.Context, filter domain.MemberFilter) ([]domain.Member, error) {
	where, args := memberWhere(filter)
	return r.listMembers(ctx, "SELECT "+memberColumns+" FROM members"+where+" ORDER BY id ASC", args...)
}

func (r *SQLRepository) MaxMembershipNumber(ctx context.Context) (int64, error) {
	var number int64
	if err := r.queryRow(ctx, "SELECT COALESCE(MAX(membership_number), 0) FROM members").Scan(&number); err != nil {
		return 0, fmt.Errorf("max membership number: %w", mapError(err))
	}
	return number, nil
}

// ListDuesCandidates returns normal members active during year whose dues
// for it are neither invoiced nor exempted, ordered by membership number.
func (r *SQLRepository) ListDuesCandidates(ctx context.Context, year int, limit int) ([]domain.Member, error) {
	query := "SELECT " + memberColumns + ` FROM members
		WHERE membership_accepted = ?
		AND membership_type = ?
		AND membership_date <= ?
		AND (membership_loss_date IS NULL OR membership_loss_date >= ?)
		AND NOT EXISTS (
			SELECT 1 FROM member_dues d
			WHERE d.member_id = members.id AND d.year = ?
			AND (d.invoiced = ? OR (d.reduced = ? AND CAST(d.amount_reduced AS REAL) = 0))
		)
		ORDER BY membership_number ASC`
	args := []any{
		true,
		domain.MembershipTypeNormal,
		fmt.Sprintf("%04d-12-31", year),
		fmt.Sprintf("%04d-01-01", year),
		year,
		true,
		true,
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.listMembers(ctx, query, args...)
}

func (r *SQLRepository) listMembers(ctx context.Context, query string, args ...any) ([]domain.Member, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}
