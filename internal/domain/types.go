package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

const (
	RoleAccountant = "accountant"
	RoleAdmin      = "admin"
)

const (
	MembershipTypeNormal    = "normal"
	MembershipTypeInvesting = "investing"
)

const (
	LossTypeResignation = "resignation"
	LossTypeExpulsion   = "expulsion"
	LossTypeDeath       = "death"
	LossTypeBankruptcy  = "bankruptcy"
	LossTypeTransfer    = "transfer"
)

const (
	LocaleGerman  = "de"
	LocaleEnglish = "en"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
)

// Member is both an applicant and, once accepted, a member of the
// cooperative. MembershipAccepted separates the two.
type Member struct {
	ID                 int64  `json:"id"`
	Firstname          string `json:"firstname"`
	Lastname           string `json:"lastname"`
	Email              string `json:"email"`
	Address1           string `json:"address1"`
	Address2           string `json:"address2,omitempty"`
	Postcode           string `json:"postcode"`
	City               string `json:"city"`
	Country            string `json:"country"`
	Locale             string `json:"locale"`
	DateOfBirth        string `json:"date_of_birth"`
	MembershipType     string `json:"membership_type"`
	IsLegalEntity      bool   `json:"is_legal_entity"`
	CourtOfLaw         string `json:"court_of_law,omitempty"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	NumShares          int    `json:"num_shares"`

	DateOfSubmission time.Time `json:"date_of_submission"`
	EmailConfirmCode string    `json:"email_confirm_code,omitempty"`
	EmailIsConfirmed bool      `json:"email_is_confirmed"`

	SignatureReceived      bool   `json:"signature_received"`
	SignatureReceivedDate  string `json:"signature_received_date,omitempty"`
	SignatureConfirmed     bool   `json:"signature_confirmed"`
	SignatureConfirmedDate string `json:"signature_confirmed_date,omitempty"`
	PaymentReceived        bool   `json:"payment_received"`
	PaymentReceivedDate    string `json:"payment_received_date,omitempty"`
	PaymentConfirmed       bool   `json:"payment_confirmed"`
	PaymentConfirmedDate   string `json:"payment_confirmed_date,omitempty"`
	AccountantComment      string `json:"accountant_comment,omitempty"`

	MembershipAccepted bool   `json:"membership_accepted"`
	MembershipDate     string `json:"membership_date,omitempty"`
	MembershipNumber   int64  `json:"membership_number,omitempty"`
	MembershipLossDate string `json:"membership_loss_date,omitempty"`
	MembershipLossType string `json:"membership_loss_type,omitempty"`

	CertificateToken     string    `json:"-"`
	CertificateTokenDate time.Time `json:"certificate_token_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m Member) FullName() string {
	return strings.TrimSpace(m.Firstname + " " + m.Lastname)
}

// IsMemberOn reports whether the membership was active on the given date.
func (m Member) IsMemberOn(date string) bool {
	if !m.MembershipAccepted || m.MembershipDate == "" || m.MembershipDate > date {
		return false
	}
	if m.MembershipLossDate != "" && m.MembershipLossDate < date {
		return false
	}
	return true
}

type Shares struct {
	ID                     int64     `json:"id"`
	MemberID               int64     `json:"member_id"`
	Number                 int       `json:"number"`
	DateOfAcquisition      string    `json:"date_of_acquisition"`
	ReferenceCode          string    `json:"reference_code"`
	SignatureReceived      bool      `json:"signature_received"`
	SignatureReceivedDate  string    `json:"signature_received_date,omitempty"`
	SignatureConfirmed     bool      `json:"signature_confirmed"`
	SignatureConfirmedDate string    `json:"signature_confirmed_date,omitempty"`
	PaymentReceived        bool      `json:"payment_received"`
	PaymentReceivedDate    string    `json:"payment_received_date,omitempty"`
	PaymentConfirmed       bool      `json:"payment_confirmed"`
	PaymentConfirmedDate   string    `json:"payment_confirmed_date,omitempty"`
	AccountantComment      string    `json:"accountant_comment,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type ShareInformation struct {
	MemberID   int64           `json:"member_id"`
	Packages   []Shares        `json:"packages"`
	TotalCount int             `json:"total_count"`
	TotalValue decimal.Decimal `json:"total_value"`
}

type DuesInvoice struct {
	ID                  int64           `json:"id"`
	Year                int             `json:"year"`
	InvoiceNo           int             `json:"invoice_no"`
	InvoiceNoString     string          `json:"invoice_no_string"`
	InvoiceDate         string          `json:"invoice_date"`
	InvoiceAmount       decimal.Decimal `json:"invoice_amount"`
	IsCancelled         bool            `json:"is_cancelled"`
	CancelledDate       string          `json:"cancelled_date,omitempty"`
	IsReversal          bool            `json:"is_reversal"`
	IsAltered           bool            `json:"is_altered"`
	MemberID            int64           `json:"member_id"`
	MembershipNumber    int64           `json:"membership_number"`
	Email               string          `json:"email"`
	Token               string          `json:"-"`
	PrecedingInvoiceNo  int             `json:"preceding_invoice_no,omitempty"`
	SucceedingInvoiceNo int             `json:"succeeding_invoice_no,omitempty"`
}

// MemberDues is the dues account of one member for one year.
type MemberDues struct {
	MemberID      int64           `json:"member_id"`
	Year          int             `json:"year"`
	StartCode     string          `json:"start_code"`
	Amount        decimal.Decimal `json:"amount"`
	Reduced       bool            `json:"reduced"`
	AmountReduced decimal.Decimal `json:"amount_reduced"`
	Invoiced      bool            `json:"invoiced"`
	InvoiceDate   string          `json:"invoice_date,omitempty"`
	InvoiceNo     int             `json:"invoice_no,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	Balanced      bool            `json:"balanced"`
	Paid          bool            `json:"paid"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaidDate      string          `json:"paid_date,omitempty"`
}

func (d MemberDues) EffectiveAmount() decimal.Decimal {
	if d.Reduced {
		return d.AmountReduced
	}
	return d.Amount
}

type Staff struct {
	ID                 int64     `json:"id"`
	Login              string    `json:"login"`
	Email              string    `json:"email"`
	Password           string    `json:"password,omitempty"`
	PasswordHash       string    `json:"-"`
	Groups             []string  `json:"groups"`
	LastPasswordChange time.Time `json:"last_password_change"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (s Staff) InGroup(group string) bool {
	for _, entry := range s.Groups {
		if entry == group {
			return true
		}
	}
	return false
}

type Statistics struct {
	Applicants         int             `json:"applicants"`
	Members            int             `json:"members"`
	LegalEntities      int             `json:"legal_entities"`
	InvestingMembers   int             `json:"investing_members"`
	FormerMembers      int             `json:"former_members"`
	SharesTotal        int             `json:"shares_total"`
	SharesValue        decimal.Decimal `json:"shares_value"`
	DuesInvoicedAmount decimal.Decimal `json:"dues_invoiced_amount"`
	DuesPaidAmount     decimal.Decimal `json:"dues_paid_amount"`
}

// ListOptions is the storage-level view of a page request.
type ListOptions struct {
	Offset     int
	Limit      int
	SortBy     string
	Descending bool
}

type MemberFilter struct {
	Accepted *bool
	Search   string
}

func ValidateDate(value string) (string, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return "", err
	}

	return parsed.Format(DateLayout), nil
}

// ValidateOptionalDate accepts the empty string as "unset".
func ValidateOptionalDate(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return ValidateDate(value)
}

func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrValidation
	}

	return nil
}

func ValidateEmail(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ErrValidation
	}
	address, err := mail.ParseAddress(trimmed)
	if err != nil || address.Address != trimmed {
		return ErrValidation
	}
	return nil
}

func ValidateMembershipType(value string) error {
	switch value {
	case MembershipTypeNormal, MembershipTypeInvesting:
		return nil
	default:
		return ErrValidation
	}
}

func ValidateLossType(value string) error {
	switch value {
	case LossTypeResignation, LossTypeExpulsion, LossTypeDeath, LossTypeBankruptcy, LossTypeTransfer:
		return nil
	default:
		return ErrValidation
	}
}

func ValidateGroup(value string) error {
	switch value {
	case RoleAccountant, RoleAdmin:
		return nil
	default:
		return ErrValidation
	}
}

func ValidateAmount(value decimal.Decimal) error {
	if value.IsNegative() {
		return ErrValidation
	}
	if value.Exponent() < -2 && !value.Equal(value.Round(2)) {
		return ErrValidation
	}
	return nil
}
