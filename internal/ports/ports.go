package ports

import (
	"context"
	"net/http"
	"time"

	"memberdesk/backend/internal/domain"
)

type AuthContext struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

func (a AuthContext) HasRole(role string) bool {
	for _, entry := range a.Roles {
		if entry == role {
			return true
		}
	}

	return false
}

type AuthProvider interface {
	FromRequest(r *http.Request) (AuthContext, error)
}

// TokenIssuer hands out bearer tokens after a successful staff login.
type TokenIssuer interface {
	Issue(auth AuthContext, ttl time.Duration) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

type Telemetry interface {
	Record(name string, attributes map[string]string)
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, message Message) error
}

// DocumentRenderer typesets a named document template into a PDF.
type DocumentRenderer interface {
	Render(ctx context.Context, template string, data any) ([]byte, error)
}

type ImportExport interface {
	DecodeMembers(ctx context.Context, raw []byte) ([]domain.Member, error)
	EncodeMembers(ctx context.Context, members []domain.Member) ([]byte, error)
	EncodeInvoices(ctx context.Context, invoices []domain.DuesInvoice) ([]byte, error)
}

type Repository interface {
	// InTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil.
	InTx(ctx context.Context, fn func(Repository) error) error

	CreateMember(ctx context.Context, member domain.Member) (domain.Member, error)
	GetMember(ctx context.Context, id int64) (domain.Member, error)
	GetMemberByConfirmCode(ctx context.Context, code string) (domain.Member, error)
	GetMemberByMembershipNumber(ctx context.Context, number int64) (domain.Member, error)
	UpdateMember(ctx context.Context, member domain.Member) (domain.Member, error)
	DeleteMember(ctx context.Context, id int64) error
	ListMembers(ctx context.Context, filter domain.MemberFilter, options domain.ListOptions) ([]domain.Member, int, error)
	ListAllMembers(ctx context.Context, filter domain.MemberFilter) ([]domain.Member, error)
	MaxMembershipNumber(ctx context.Context) (int64, error)
	ListDuesCandidates(ctx context.Context, year int, limit int) ([]domain.Member, error)

	CreateShares(ctx context.Context, shares domain.Shares) (domain.Shares, error)
	GetShares(ctx context.Context, id int64) (domain.Shares, error)
	UpdateShares(ctx context.Context, shares domain.Shares) (domain.Shares, error)
	DeleteShares(ctx context.Context, id int64) error
	ListSharesByMember(ctx context.Context, memberID int64) ([]domain.Shares, error)

	GetMemberDues(ctx context.Context, memberID int64, year int) (domain.MemberDues, error)
	SaveMemberDues(ctx context.Context, dues domain.MemberDues) (domain.MemberDues, error)
	CreateDuesInvoice(ctx context.Context, invoice domain.DuesInvoice) (domain.DuesInvoice, error)
	UpdateDuesInvoice(ctx context.Context, invoice domain.DuesInvoice) (domain.DuesInvoice, error)
	GetDuesInvoice(ctx context.Context, year, invoiceNo int) (domain.DuesInvoice, error)
	ListDuesInvoicesByMember(ctx context.Context, memberID int64, year int) ([]domain.DuesInvoice, error)
	ListDuesInvoices(ctx context.Context, year int, options domain.ListOptions) ([]domain.DuesInvoice, int, error)
	ListAllDuesInvoices(ctx context.Context, year int) ([]domain.DuesInvoice, error)
	MaxDuesInvoiceNo(ctx context.Context, year int) (int, error)

	CreateStaff(ctx context.Context, staff domain.Staff) (domain.Staff, error)
	GetStaff(ctx context.Context, id int64) (domain.Staff, error)
	GetStaffByLogin(ctx context.Context, login string) (domain.Staff, error)
	ListStaff(ctx context.Context) ([]domain.Staff, error)
	UpdateStaff(ctx context.Context, staff domain.Staff) (domain.Staff, error)
	DeleteStaff(ctx context.Context, id int64) error

	Statistics(ctx context.Context) (domain.Statistics, error)
}
