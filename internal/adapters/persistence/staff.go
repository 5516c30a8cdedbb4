package persistence

import (
	"context"
	"fmt"
	"sort"

	"memberdesk/backend/internal/domain"
)

const staffColumns = "id, login, email, password_hash, last_password_change, created_at, updated_at"

func scanStaff(row rowScanner) (domain.Staff, error) {
	var staff domain.Staff
	err := row.Scan(
		&staff.ID,
		&staff.Login,
		&staff.Email,
		&staff.PasswordHash,
		timeColumn{&staff.LastPasswordChange},
		timeColumn{&staff.CreatedAt},
		timeColumn{&staff.UpdatedAt},
	)
	return staff, err
}

func (r *SQLRepository) CreateStaff(ctx context.Context, staff domain.Staff) (domain.Staff, error) {
	staff.CreatedAt = nowUTC()
	staff.UpdatedAt = staff.CreatedAt
	if staff.LastPasswordChange.IsZero() {
		staff.LastPasswordChange = staff.CreatedAt
	}

	err := r.inTx(ctx, func(tx *SQLRepository) error {
		id, err := tx.insert(ctx, `INSERT INTO staff (login, email, password_hash, last_password_change, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			staff.Login,
			staff.Email,
			staff.PasswordHash,
			timeValue(staff.LastPasswordChange),
			timeValue(staff.CreatedAt),
			timeValue(staff.UpdatedAt),
		)
		if err != nil {
			return err
		}
		staff.ID = id
		return tx.replaceGroups(ctx, id, staff.Groups)
	})
	if err != nil {
		return domain.Staff{}, fmt.Errorf("create staff %q: %w", staff.Login, err)
	}
	staff.Password = ""
	return staff, nil
}

func (r *SQLRepository) GetStaff(ctx context.Context, id int64) (domain.Staff, error) {
	staff, err := scanStaff(r.queryRow(ctx, "SELECT "+staffColumns+" FROM staff WHERE id = ?", id))
	if err != nil {
		return domain.Staff{}, notFound(mapError(err), "staff", id)
	}
	return r.withGroups(ctx, staff)
}

func (r *SQLRepository) GetStaffByLogin(ctx context.Context, login string) (domain.Staff, error) {
	staff, err := scanStaff(r.queryRow(ctx, "SELECT "+staffColumns+" FROM staff WHERE login = ?", login))
	if err != nil {
		return domain.Staff{}, notFound(mapError(err), "staff", login)
	}
	return r.withGroups(ctx, staff)
}

func (r *SQLRepository) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	rows, err := r.query(ctx, "SELECT "+staffColumns+" FROM staff ORDER BY login ASC")
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	accounts := make([]domain.Staff, 0)
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		accounts = append(accounts, staff)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list staff: %w", err)
	}
	rows.Close()

	groups, err := r.allGroups(ctx)
	if err != nil {
		return nil, err
	}
	for idx := range accounts {
		accounts[idx].Groups = groups[accounts[idx].ID]
		if accounts[idx].Groups == nil {
			accounts[idx].Groups = []string{}
		}
	}
	return accounts, nil
}

// UpdateStaff stores login, email, groups and, when set, the password hash.
func (r *SQLRepository) UpdateStaff(ctx context.Context, staff domain.Staff) (domain.Staff, error) {
	staff.UpdatedAt = nowUTC()
	err := r.inTx(ctx, func(tx *SQLRepository) error {
		result, err := tx.exec(ctx, `UPDATE staff SET login = ?, email = ?, password_hash = ?,
			last_password_change = ?, updated_at = ? WHERE id = ?`,
			staff.Login,
			staff.Email,
			staff.PasswordHash,
			timeValue(staff.LastPasswordChange),
			timeValue(staff.UpdatedAt),
			staff.ID,
		)
		if err != nil {
			return err
		}
		if err := requireAffected(result, "staff", staff.ID); err != nil {
			return err
		}
		return tx.replaceGroups(ctx, staff.ID, staff.Groups)
	})
	if err != nil {
		return domain.Staff{}, fmt.Errorf("update staff %d: %w", staff.ID, err)
	}
	return r.GetStaff(ctx, staff.ID)
}

func (r *SQLRepository) DeleteStaff(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *SQLRepository) error {
		if _, err := tx.exec(ctx, "DELETE FROM staff_groups WHERE staff_id = ?", id); err != nil {
			return fmt.Errorf("delete groups of staff %d: %w", id, err)
		}
		result, err := tx.exec(ctx, "DELETE FROM staff WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete staff %d: %w", id, err)
		}
		return requireAffected(result, "staff", id)
	})
}

func (r *SQLRepository) replaceGroups(ctx context.Context, staffID int64, groups []string) error {
	if _, err := r.exec(ctx, "DELETE FROM staff_groups WHERE staff_id = ?", staffID); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, group := range groups {
		if seen[group] {
			continue
		}
		seen[group] = true
		if _, err := r.exec(ctx, "INSERT INTO staff_groups (staff_id, name) VALUES (?, ?)", staffID, group); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) withGroups(ctx context.Context, staff domain.Staff) (domain.Staff, error) {
	rows, err := r.query(ctx, "SELECT name FROM staff_groups WHERE staff_id = ? ORDER BY name ASC", staff.ID)
	if err != nil {
		return domain.Staff{}, fmt.Errorf("list groups of staff %d: %w", staff.ID, err)
	}
	defer rows.Close()

	staff.Groups = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return domain.Staff{}, err
		}
		staff.Groups = append(staff.Groups, name)
	}
	return staff, rows.Err()
}

func (r *SQLRepository) allGroups(ctx context.Context) (map[int64][]string, error) {
	rows, err := r.query(ctx, "SELECT staff_id, name FROM staff_groups")
	if err != nil {
		return nil, fmt.Errorf("list staff groups: %w", err)
	}
	defer rows.Close()

	groups := map[int64][]string{}
	for rows.Next() {
		var staffID int64
		var name string
		if err := rows.Scan(&staffID, &name); err != nil {
			return nil, err
		}
		groups[staffID] = append(groups[staffID], name)
	}
	for _, names := range groups {
		sort.Strings(names)
	}
	return groups, rows.Err()
}
