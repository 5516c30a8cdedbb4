package persistence

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rubenv/pgtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

type repositoryCase struct {
	name string
	run  func(t *testing.T, repo *SQLRepository)
}

var repositoryCases = []repositoryCase{
	{name: "member round trip", run: testMemberRoundTrip},
	{name: "member lookups", run: testMemberLookups},
	{name: "member listing", run: testMemberListing},
	{name: "dues candidates", run: testDuesCandidates},
	{name: "shares", run: testShares},
	{name: "dues accounts and invoices", run: testDuesAccountsAndInvoices},
	{name: "staff", run: testStaff},
	{name: "transactions", run: testTransactions},
	{name: "statistics", run: testStatistics},
}

func TestSQLiteRepository(t *testing.T) {
	for _, tc := range repositoryCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.run(t, newTestRepository(t))
		})
	}
}

// TestPostgresRepository runs the same cases against a throwaway PostgreSQL
// server. It needs the postgres binaries and is opt-in.
func TestPostgresRepository(t *testing.T) {
	if os.Getenv("MEMBERDESK_PGTEST") != "1" {
		t.Skip("set MEMBERDESK_PGTEST=1 to run against PostgreSQL")
	}

	pg, err := pgtest.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Stop() })

	repo := New(pg.DB, DriverPostgres)
	ctx := context.Background()
	require.NoError(t, repo.Migrate(ctx))

	for _, tc := range repositoryCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pg.DB.ExecContext(ctx, "TRUNCATE members, staff RESTART IDENTITY CASCADE")
			require.NoError(t, err)
			tc.run(t, repo)
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Migrate(context.Background()))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	sqliteRepo := &SQLRepository{dialect: DriverSQLite}
	postgresRepo := &SQLRepository{dialect: DriverPostgres}
	query := "SELECT id FROM members WHERE id = ? AND email = ?"

	assert.Equal(t, query, sqliteRepo.rebind(query))
	assert.Equal(t, "SELECT id FROM members WHERE id = $1 AND email = $2", postgresRepo.rebind(query))
}

func TestSchemaStatementsPerDialect(t *testing.T) {
	postgres := strings.Join(schemaStatements(DriverPostgres), "\n")
	sqlite := strings.Join(schemaStatements(DriverSQLite), "\n")

	assert.Contains(t, postgres, "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, postgres, "NUMERIC(12,2)")
	assert.Contains(t, sqlite, "INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.NotContains(t, sqlite, "{{")
	assert.NotContains(t, postgres, "{{")
}

func TestOrderClauseUsesWhitelist(t *testing.T) {
	clause := orderClause(domain.ListOptions{SortBy: "lastname; DROP TABLE members", Descending: true}, memberSortColumns, "id")
	assert.Equal(t, " ORDER BY id DESC", clause)

	clause = orderClause(domain.ListOptions{SortBy: "lastname"}, memberSortColumns, "id")
	assert.Equal(t, " ORDER BY lastname ASC, id ASC", clause)
}

func testMemberRoundTrip(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	submitted := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	input := domain.Member{
		Firstname:             "Ada",
		Lastname:              "Lovelace",
		Email:                 "ada@example.org",
		Address1:              "1 Analytical Street",
		Postcode:              "12345",
		City:                  "London",
		Country:               "GB",
		Locale:                "en",
		DateOfBirth:           "1990-12-10",
		MembershipType:        domain.MembershipTypeNormal,
		NumShares:             3,
		DateOfSubmission:      submitted,
		EmailConfirmCode:      "ABC123",
		SignatureReceived:     true,
		SignatureReceivedDate: "2025-03-10",
		AccountantComment:     "called back",
	}

	created, err := repo.CreateMember(ctx, input)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	loaded, err := repo.GetMember(ctx, created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(created, loaded); diff != "" {
		t.Fatalf("member mismatch (-created +loaded):\n%s", diff)
	}

	loaded.MembershipAccepted = true
	loaded.MembershipDate = "2025-04-01"
	loaded.MembershipNumber = 7
	loaded.CertificateToken = "token"
	loaded.CertificateTokenDate = submitted.Add(time.Hour)
	updated, err := repo.UpdateMember(ctx, loaded)
	require.NoError(t, err)

	reloaded, err := repo.GetMember(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), reloaded.MembershipNumber)
	assert.Equal(t, "2025-04-01", reloaded.MembershipDate)
	assert.Equal(t, "token", reloaded.CertificateToken)
	assert.True(t, updated.CreatedAt.Equal(reloaded.CreatedAt))

	_, err = repo.UpdateMember(ctx, domain.Member{ID: 999, Firstname: "x", Lastname: "y", Email: "x@example.org", CreatedAt: submitted})
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.DeleteMember(ctx, created.ID))
	_, err = repo.GetMember(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, repo.DeleteMember(ctx, created.ID), domain.ErrNotFound)
}

func testMemberLookups(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	first := createMember(t, repo, "Grace", "Hopper", func(m *domain.Member) {
		m.EmailConfirmCode = "CODE1"
		m.MembershipAccepted = true
		m.MembershipDate = "2024-01-01"
		m.MembershipNumber = 1
	})

	byCode, err := repo.GetMemberByConfirmCode(ctx, "CODE1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byCode.ID)

	byNumber, err := repo.GetMemberByMembershipNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byNumber.ID)

	_, err = repo.GetMemberByConfirmCode(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetMemberByMembershipNumber(ctx, 42)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.CreateMember(ctx, domain.Member{Firstname: "Dup", Lastname: "Number", Email: "dup@example.org", MembershipNumber: 1})
	require.ErrorIs(t, err, domain.ErrValidation)

	maxNumber, err := repo.MaxMembershipNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), maxNumber)
}

func testMemberListing(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	createMember(t, repo, "Alan", "Turing", nil)
	createMember(t, repo, "Barbara", "Liskov", func(m *domain.Member) {
		m.MembershipAccepted = true
		m.MembershipDate = "2024-02-01"
		m.MembershipNumber = 2
	})
	createMember(t, repo, "Edsger", "Dijkstra", func(m *domain.Member) { m.City = "Eindhoven" })

	applicants := false
	items, total, err := repo.ListMembers(ctx, domain.MemberFilter{Accepted: &applicants}, domain.ListOptions{Limit: 10, SortBy: "lastname"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Dijkstra", items[0].Lastname)
	assert.Equal(t, "Turing", items[1].Lastname)

	items, total, err = repo.ListMembers(ctx, domain.MemberFilter{}, domain.ListOptions{Offset: 1, Limit: 1, SortBy: "lastname", Descending: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Liskov", items[0].Lastname)

	items, total, err = repo.ListMembers(ctx, domain.MemberFilter{Search: "EINDHOVEN"}, domain.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Edsger", items[0].Firstname)

	all, err := repo.ListAllMembers(ctx, domain.MemberFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testDuesCandidates(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	accepted := func(number int64, date string) func(*domain.Member) {
		return func(m *domain.Member) {
			m.MembershipAccepted = true
			m.MembershipDate = date
			m.MembershipNumber = number
		}
	}
	early := createMember(t, repo, "Early", "Member", accepted(1, "2023-05-01"))
	createMember(t, repo, "Late", "Member", accepted(2, "2026-01-01"))
	createMember(t, repo, "Investing", "Member", func(m *domain.Member) {
		accepted(3, "2023-01-01")(m)
		m.MembershipType = domain.MembershipTypeInvesting
	})
	createMember(t, repo, "Former", "Member", func(m *domain.Member) {
		accepted(4, "2020-01-01")(m)
		m.MembershipLossDate = "2024-12-31"
		m.MembershipLossType = domain.LossTypeResignation
	})
	invoiced := createMember(t, repo, "Invoiced", "Member", accepted(5, "2022-01-01"))
	createMember(t, repo, "Applicant", "Only", nil)

	_, err := repo.SaveMemberDues(ctx, domain.MemberDues{MemberID: invoiced.ID, Year: 2025, Amount: decimal.NewFromInt(50), Invoiced: true, InvoiceNo: 1})
	require.NoError(t, err)

	candidates, err := repo.ListDuesCandidates(ctx, 2025, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, early.ID, candidates[0].ID)

	limited, err := repo.ListDuesCandidates(ctx, 2024, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, int64(1), limited[0].MembershipNumber)
}

func testShares(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	member := createMember(t, repo, "Share", "Holder", nil)

	first, err := repo.CreateShares(ctx, domain.Shares{MemberID: member.ID, Number: 2, DateOfAcquisition: "2025-01-01", ReferenceCode: "REF1"})
	require.NoError(t, err)
	second, err := repo.CreateShares(ctx, domain.Shares{MemberID: member.ID, Number: 5, DateOfAcquisition: "2024-06-01", ReferenceCode: "REF2"})
	require.NoError(t, err)

	packages, err := repo.ListSharesByMember(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, second.ID, packages[0].ID, "ordered by acquisition date")

	first.PaymentReceived = true
	first.PaymentReceivedDate = "2025-01-05"
	updated, err := repo.UpdateShares(ctx, first)
	require.NoError(t, err)
	assert.True(t, updated.PaymentReceived)
	assert.Equal(t, "2025-01-05", updated.PaymentReceivedDate)

	require.NoError(t, repo.DeleteShares(ctx, second.ID))
	_, err = repo.GetShares(ctx, second.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.DeleteMember(ctx, member.ID))
	_, err = repo.GetShares(ctx, first.ID)
	require.ErrorIs(t, err, domain.ErrNotFound, "shares are removed with their member")
}

func testDuesAccountsAndInvoices(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	member := createMember(t, repo, "Dues", "Payer", nil)

	_, err := repo.GetMemberDues(ctx, member.ID, 2025)
	require.ErrorIs(t, err, domain.ErrNotFound)

	dues := domain.MemberDues{MemberID: member.ID, Year: 2025, StartCode: "q2_2025", Amount: decimal.RequireFromString("37.5")}
	_, err = repo.SaveMemberDues(ctx, dues)
	require.NoError(t, err)

	dues.Invoiced = true
	dues.InvoiceNo = 1
	dues.InvoiceDate = "2025-05-01"
	dues.Balance = decimal.RequireFromString("37.5")
	_, err = repo.SaveMemberDues(ctx, dues)
	require.NoError(t, err)

	loaded, err := repo.GetMemberDues(ctx, member.ID, 2025)
	require.NoError(t, err)
	assert.True(t, loaded.Invoiced)
	assert.True(t, loaded.Balance.Equal(decimal.RequireFromString("37.50")))
	assert.Equal(t, "2025-05-01", loaded.InvoiceDate)

	invoice := domain.DuesInvoice{
		Year:            2025,
		InvoiceNo:       1,
		InvoiceNoString: domain.InvoiceNoString("COOP", 2025, 1),
		InvoiceDate:     "2025-05-01",
		InvoiceAmount:   decimal.RequireFromString("37.5"),
		MemberID:        member.ID,
		Email:           member.Email,
		Token:           "secret",
	}
	created, err := repo.CreateDuesInvoice(ctx, invoice)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	_, err = repo.CreateDuesInvoice(ctx, invoice)
	require.ErrorIs(t, err, domain.ErrValidation, "invoice numbers are unique per year")

	reversal := invoice
	reversal.InvoiceNo = 2
	reversal.InvoiceNoString = domain.InvoiceNoString("COOP", 2025, 2)
	reversal.InvoiceAmount = invoice.InvoiceAmount.Neg()
	reversal.IsReversal = true
	reversal.PrecedingInvoiceNo = 1
	_, err = repo.CreateDuesInvoice(ctx, reversal)
	require.NoError(t, err)

	created.IsCancelled = true
	created.CancelledDate = "2025-06-01"
	created.SucceedingInvoiceNo = 2
	cancelled, err := repo.UpdateDuesInvoice(ctx, created)
	require.NoError(t, err)
	assert.True(t, cancelled.IsCancelled)
	assert.Equal(t, 2, cancelled.SucceedingInvoiceNo)

	byMember, err := repo.ListDuesInvoicesByMember(ctx, member.ID, 2025)
	require.NoError(t, err)
	require.Len(t, byMember, 2)
	assert.True(t, domain.InvoiceSum(byMember).IsZero())

	maxNo, err := repo.MaxDuesInvoiceNo(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, maxNo)
	maxNo, err = repo.MaxDuesInvoiceNo(ctx, 2026)
	require.NoError(t, err)
	assert.Zero(t, maxNo)

	page, total, err := repo.ListDuesInvoices(ctx, 2025, domain.ListOptions{Limit: 1, SortBy: "invoice_amount"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.True(t, page[0].IsReversal, "negative amount sorts first")

	all, err := repo.ListAllDuesInvoices(ctx, 2025)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.GetDuesInvoice(ctx, 2025, 9)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testStaff(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	created, err := repo.CreateStaff(ctx, domain.Staff{Login: "rita", Email: "rita@example.org", PasswordHash: "hash", Groups: []string{domain.RoleAccountant, domain.RoleAccountant}})
	require.NoError(t, err)

	loaded, err := repo.GetStaffByLogin(ctx, "rita")
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, []string{domain.RoleAccountant}, loaded.Groups)
	assert.Equal(t, "hash", loaded.PasswordHash)

	_, err = repo.CreateStaff(ctx, domain.Staff{Login: "rita", PasswordHash: "other"})
	require.ErrorIs(t, err, domain.ErrValidation)

	loaded.Groups = []string{domain.RoleAdmin, domain.RoleAccountant}
	loaded.Email = "rita@coop.example.org"
	updated, err := repo.UpdateStaff(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.RoleAccountant, domain.RoleAdmin}, updated.Groups)
	assert.Equal(t, "rita@coop.example.org", updated.Email)

	_, err = repo.CreateStaff(ctx, domain.Staff{Login: "bob", PasswordHash: "hash"})
	require.NoError(t, err)
	list, err := repo.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bob", list[0].Login)
	assert.Empty(t, list[0].Groups)
	assert.NotNil(t, list[0].Groups)

	require.NoError(t, repo.DeleteStaff(ctx, created.ID))
	_, err = repo.GetStaff(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, repo.DeleteStaff(ctx, created.ID), domain.ErrNotFound)
}

func testTransactions(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	failure := errors.New("abort")

	err := repo.InTx(ctx, func(tx ports.Repository) error {
		if _, err := tx.CreateMember(ctx, domain.Member{Firstname: "Rolled", Lastname: "Back", Email: "rb@example.org"}); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	all, err := repo.ListAllMembers(ctx, domain.MemberFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	err = repo.InTx(ctx, func(tx ports.Repository) error {
		if _, err := tx.CreateMember(ctx, domain.Member{Firstname: "Outer", Lastname: "Tx", Email: "outer@example.org"}); err != nil {
			return err
		}
		return tx.InTx(ctx, func(inner ports.Repository) error {
			_, err := inner.CreateMember(ctx, domain.Member{Firstname: "Inner", Lastname: "Tx", Email: "inner@example.org"})
			return err
		})
	})
	require.NoError(t, err)

	all, err = repo.ListAllMembers(ctx, domain.MemberFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testStatistics(t *testing.T, repo *SQLRepository) {
	ctx := context.Background()
	createMember(t, repo, "Apply", "Ing", nil)
	member := createMember(t, repo, "Full", "Member", func(m *domain.Member) {
		m.MembershipAccepted = true
		m.MembershipDate = "2024-01-01"
		m.MembershipNumber = 1
		m.IsLegalEntity = true
	})
	createMember(t, repo, "Invest", "Or", func(m *domain.Member) {
		m.MembershipAccepted = true
		m.MembershipDate = "2024-01-01"
		m.MembershipNumber = 2
		m.MembershipType = domain.MembershipTypeInvesting
	})
	createMember(t, repo, "Gone", "Away", func(m *domain.Member) {
		m.MembershipAccepted = true
		m.MembershipDate = "2020-01-01"
		m.MembershipNumber = 3
		m.MembershipLossDate = "2023-12-31"
		m.MembershipLossType = domain.LossTypeDeath
	})

	_, err := repo.CreateShares(ctx, domain.Shares{MemberID: member.ID, Number: 4, DateOfAcquisition: "2024-01-01"})
	require.NoError(t, err)
	_, err = repo.CreateDuesInvoice(ctx, domain.DuesInvoice{Year: 2025, InvoiceNo: 1, InvoiceNoString: "x", InvoiceDate: "2025-01-01", InvoiceAmount: decimal.RequireFromString("12.5"), MemberID: member.ID, Token: "t"})
	require.NoError(t, err)
	_, err = repo.CreateDuesInvoice(ctx, domain.DuesInvoice{Year: 2025, InvoiceNo: 2, InvoiceNoString: "y", InvoiceDate: "2025-01-01", InvoiceAmount: decimal.RequireFromString("30.25"), MemberID: member.ID, Token: "t"})
	require.NoError(t, err)
	_, err = repo.SaveMemberDues(ctx, domain.MemberDues{MemberID: member.ID, Year: 2025, AmountPaid: decimal.RequireFromString("20")})
	require.NoError(t, err)

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Applicants)
	assert.Equal(t, 2, stats.Members)
	assert.Equal(t, 1, stats.LegalEntities)
	assert.Equal(t, 1, stats.InvestingMembers)
	assert.Equal(t, 1, stats.FormerMembers)
	assert.Equal(t, 4, stats.SharesTotal)
	assert.True(t, stats.DuesInvoicedAmount.Equal(decimal.RequireFromString("42.75")), "got %s", stats.DuesInvoicedAmount)
	assert.True(t, stats.DuesPaidAmount.Equal(decimal.NewFromInt(20)), "got %s", stats.DuesPaidAmount)
}

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createMember(t *testing.T, repo *SQLRepository, firstname, lastname string, mutate func(*domain.Member)) domain.Member {
	t.Helper()
	member := domain.Member{
		Firstname:      firstname,
		Lastname:       lastname,
		Email:          strings.ToLower(firstname+"."+lastname) + "@example.org",
		Country:        "DE",
		Locale:         "de",
		DateOfBirth:    "1980-01-01",
		MembershipType: domain.MembershipTypeNormal,
		NumShares:      1,
	}
	if mutate != nil {
		mutate(&member)
	}
	created, err := repo.CreateMember(context.Background(), member)
	require.NoError(t, err)
	return created
}
