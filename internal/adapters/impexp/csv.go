// Package impexp converts members and dues invoices from and to CSV.
package impexp

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

// MemberColumns is the header written on export. Imports accept any subset
// in any order as long as the required columns are present.
var MemberColumns = []string{
	"membership_number",
	"firstname",
	"lastname",
	"email",
	"address1",
	"address2",
	"postcode",
	"city",
	"country",
	"locale",
	"date_of_birth",
	"membership_type",
	"is_legal_entity",
	"court_of_law",
	"registration_number",
	"num_shares",
	"email_is_confirmed",
	"signature_received",
	"signature_received_date",
	"payment_received",
	"payment_received_date",
	"membership_accepted",
	"membership_date",
	"membership_loss_date",
	"membership_loss_type",
	"accountant_comment",
}

var requiredMemberColumns = []string{"firstname", "lastname", "email"}

var InvoiceColumns = []string{
	"year",
	"invoice_no",
	"invoice_no_string",
	"invoice_date",
	"invoice_amount",
	"is_cancelled",
	"cancelled_date",
	"is_reversal",
	"is_altered",
	"membership_number",
	"email",
	"preceding_invoice_no",
	"succeeding_invoice_no",
}

// RowError points at the offending line of an import; Row counts the header
// as line 1.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() []error {
	return []error{domain.ErrValidation, e.Err}
}

type CSVCodec struct{}

var _ ports.ImportExport = (*CSVCodec)(nil)

func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

// DecodeMembers parses all rows and reports every malformed cell, not just
// the first one.
func (c *CSVCodec) DecodeMembers(_ context.Context, raw []byte) ([]domain.Member, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))))
	reader.Comma = detectDelimiter(raw)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.Join(domain.ErrValidation, errors.New("empty csv document"))
	}
	if err != nil {
		return nil, errors.Join(domain.ErrValidation, fmt.Errorf("read csv header: %w", err))
	}

	index := make(map[string]int, len(header))
	for idx, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	var missing []string
	for _, name := range requiredMemberColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(domain.ErrValidation, fmt.Errorf("missing csv columns: %s", strings.Join(missing, ", ")))
	}

	var (
		members []domain.Member
		errs    []error
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			line := 0
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}
			errs = append(errs, &RowError{Row: line, Err: err})
			continue
		}
		line, _ := reader.FieldPos(0)
		row := csvRow{record: record, index: index, line: line}
		member := row.member()
		if len(row.errs) > 0 {
			errs = append(errs, row.errs...)
			continue
		}
		members = append(members, member)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return members, nil
}

func (c *CSVCodec) EncodeMembers(_ context.Context, members []domain.Member) ([]byte, error) {
	rows := make([][]string, 0, len(members))
	for _, member := range members {
		number := ""
		if member.MembershipNumber > 0 {
			number = strconv.FormatInt(member.MembershipNumber, 10)
		}
		rows = append(rows, []string{
			number,
			member.Firstname,
			member.Lastname,
			member.Email,
			member.Address1,
			member.Address2,
			member.Postcode,
			member.City,
			member.Country,
			member.Locale,
			member.DateOfBirth,
			member.MembershipType,
			strconv.FormatBool(member.IsLegalEntity),
			member.CourtOfLaw,
			member.RegistrationNumber,
			strconv.Itoa(member.NumShares),
			strconv.FormatBool(member.EmailIsConfirmed),
			strconv.FormatBool(member.SignatureReceived),
			member.SignatureReceivedDate,
			strconv.FormatBool(member.PaymentReceived),
			member.PaymentReceivedDate,
			strconv.FormatBool(member.MembershipAccepted),
			member.MembershipDate,
			member.MembershipLossDate,
			member.MembershipLossType,
			member.AccountantComment,
		})
	}
	return encode(MemberColumns, rows)
}

func (c *CSVCodec) EncodeInvoices(_ context.Context, invoices []domain.DuesInvoice) ([]byte, error) {
	rows := make([][]string, 0, len(invoices))
	for _, invoice := range invoices {
		rows = append(rows, []string{
			strconv.Itoa(invoice.Year),
			strconv.Itoa(invoice.InvoiceNo),
			invoice.InvoiceNoString,
			invoice.InvoiceDate,
			invoice.InvoiceAmount.StringFixed(2),
			strconv.FormatBool(invoice.IsCancelled),
			invoice.CancelledDate,
			strconv.FormatBool(invoice.IsReversal),
			strconv.FormatBool(invoice.IsAltered),
			strconv.FormatInt(invoice.MembershipNumber, 10),
			invoice.Email,
			optionalInt(invoice.PrecedingInvoiceNo),
			optionalInt(invoice.SucceedingInvoiceNo),
		})
	}
	return encode(InvoiceColumns, rows)
}

func encode(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalInt(value int) string {
	if value == 0 {
		return ""
	}
	return strconv.Itoa(value)
}

// detectDelimiter picks ';' for spreadsheets exported with a German locale.
func detectDelimiter(raw []byte) rune {
	firstLine := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		firstLine = raw[:idx]
	}
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		return ';'
	}
	return ','
}

type csvRow struct {
	record []string
	index  map[string]int
	line   int
	errs   []error
}

func (r *csvRow) text(column string) string {
	idx, ok := r.index[column]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r *csvRow) fail(column string, err error) {
	r.errs = append(r.errs, &RowError{Row: r.line, Column: column, Err: err})
}

func (r *csvRow) boolean(column string) bool {
	value := strings.ToLower(r.text(column))
	switch value {
	case "", "0", "false", "no", "n", "nein":
		return false
	case "1", "true", "yes", "y", "x", "ja":
		return true
	default:
		r.fail(column, fmt.Errorf("invalid boolean %q", value))
		return false
	}
}

func (r *csvRow) integer(column string) int64 {
	value := r.text(column)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		r.fail(column, fmt.Errorf("invalid number %q", value))
		return 0
	}
	return parsed
}

func (r *csvRow) date(column string) string {
	value, err := domain.ValidateOptionalDate(r.text(column))
	if err != nil {
		r.fail(column, fmt.Errorf("expected YYYY-MM-DD, got %q", r.text(column)))
	}
	return value
}

func (r *csvRow) member() domain.Member {
	membershipType := strings.ToLower(r.text("membership_type"))
	if membershipType == "" {
		membershipType = domain.MembershipTypeNormal
	}
	locale := r.text("locale")
	if locale != "" {
		matched, ok := domain.MatchLocale(locale)
		if !ok {
			r.fail("locale", fmt.Errorf("unsupported language %q", locale))
		}
		locale = matched
	}

	member := domain.Member{
		MembershipNumber:      r.integer("membership_number"),
		Firstname:             r.text("firstname"),
		Lastname:              r.text("lastname"),
		Email:                 r.text("email"),
		Address1:              r.text("address1"),
		Address2:              r.text("address2"),
		Postcode:              r.text("postcode"),
		City:                  r.text("city"),
		Country:               strings.ToUpper(r.text("country")),
		Locale:                locale,
		DateOfBirth:           r.date("date_of_birth"),
		MembershipType:        membershipType,
		IsLegalEntity:         r.boolean("is_legal_entity"),
		CourtOfLaw:            r.text("court_of_law"),
		RegistrationNumber:    r.text("registration_number"),
		NumShares:             int(r.integer("num_shares")),
		EmailIsConfirmed:      r.boolean("email_is_confirmed"),
		SignatureReceived:     r.boolean("signature_received"),
		SignatureReceivedDate: r.date("signature_received_date"),
		PaymentReceived:       r.boolean("payment_received"),
		PaymentReceivedDate:   r.date("payment_received_date"),
		MembershipAccepted:    r.boolean("membership_accepted"),
		MembershipDate:        r.date("membership_date"),
		MembershipLossDate:    r.date("membership_loss_date"),
		MembershipLossType:    strings.ToLower(r.text("membership_loss_type")),
		AccountantComment:     r.text("accountant_comment"),
	}
	if err := domain.ValidateMembershipType(member.MembershipType); err != nil {
		r.fail("membership_type", fmt.Errorf("expected normal or investing, got %q", member.MembershipType))
	}
	return member
}

// ParseAmount accepts both decimal separators.
func ParseAmount(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if strings.Contains(trimmed, ",") && !strings.Contains(trimmed, ".") {
		trimmed = strings.Replace(trimmed, ",", ".", 1)
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, errors.Join(domain.ErrValidation, fmt.Errorf("invalid amount %q", value))
	}
	return amount, nil
}
