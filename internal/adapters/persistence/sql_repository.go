package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLRepository struct {
	db      *sql.DB
	q       querier
	tx      *sql.Tx
	dialect string
}

var _ ports.Repository = (*SQLRepository)(nil)

// Open connects to the database and waits for it to answer. PostgreSQL is
// retried a few times so the backend can start alongside its database.
func Open(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	attempts := uint(1)
	if driver == DriverPostgres {
		attempts = 5
	}
	err = retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return New(db, driver), nil
}

// New wraps an open database. SQLite is limited to one connection, which
// serializes writers and keeps in-memory databases alive.
func New(db *sql.DB, driver string) *SQLRepository {
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	return &SQLRepository{db: db, q: db, dialect: driver}
}

func (r *SQLRepository) Dialect() string {
	return r.dialect
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) Migrate(ctx context.Context) error {
	for idx, statement := range schemaStatements(r.dialect) {
		if _, err := r.q.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", idx+1, err)
		}
	}
	return nil
}

func (r *SQLRepository) InTx(ctx context.Context, fn func(ports.Repository) error) error {
	return r.inTx(ctx, func(tx *SQLRepository) error { return fn(tx) })
}

// inTx reuses an open transaction, so nested calls commit with the outermost.
func (r *SQLRepository) inTx(ctx context.Context, fn func(*SQLRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txRepo := &SQLRepository{db: r.db, q: tx, tx: tx, dialect: r.dialect}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if fnErr := fn(txRepo); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(fnErr, fmt.Errorf("rollback: %w", rbErr))
		}
		return fnErr
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DriverPostgres {
		return query
	}
	var builder strings.Builder
	builder.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			builder.WriteByte('$')
			builder.WriteString(strconv.Itoa(n))
			continue
		}
		builder.WriteRune(ch)
	}
	return builder.String()
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := r.q.ExecContext(ctx, r.rebind(query), args...)
	return result, mapError(err)
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := r.q.QueryContext(ctx, r.rebind(query), args...)
	return rows, mapError(err)
}

func (r *SQLRepository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (r *SQLRepository) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := r.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

func (r *SQLRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var total int
	if err := r.queryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, mapError(err)
	}
	return total, nil
}

func requireAffected(result sql.Result, entity string, id any) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if isUniqueViolation(err) {
		return errors.Join(domain.ErrValidation, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}

func notFound(err error, entity string, id any) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s %v: %w", entity, id, domain.ErrNotFound)
	}
	return err
}

func orderClause(options domain.ListOptions, columns map[string]string, fallback string) string {
	column, ok := columns[options.SortBy]
	if !ok {
		column = fallback
	}
	direction := "ASC"
	if options.Descending {
		direction = "DESC"
	}
	clause := " ORDER BY " + column + " " + direction
	if column != "id" {
		clause += ", id " + direction
	}
	return clause
}

func limitClause(options domain.ListOptions) (string, []any) {
	if options.Limit <= 0 {
		return "", nil
	}
	return " LIMIT ? OFFSET ?", []any{options.Limit, max(options.Offset, 0)}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// OpenInMemory returns a migrated, private SQLite database.
func OpenInMemory(ctx context.Context) (*SQLRepository, error) {
	repo, err := Open(ctx, DriverSQLite, "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}
