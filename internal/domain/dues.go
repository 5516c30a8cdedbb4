package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var DefaultAnnualDues = decimal.NewFromInt(50)

// DuesSchedule prices one year of membership. Members joining during the
// year pay for the remaining quarters, counting the quarter they joined in.
type DuesSchedule struct {
	Annual decimal.Decimal
}

func NewDuesSchedule(annual decimal.Decimal) DuesSchedule {
	if annual.IsZero() || annual.IsNegative() {
		annual = DefaultAnnualDues
	}
	return DuesSchedule{Annual: annual}
}

func ValidateDuesYear(year int) error {
	if year < 2000 || year > 2999 {
		return errors.Join(ErrValidation, fmt.Errorf("invalid dues year %d", year))
	}
	return nil
}

// Calculate returns the start code (q1_2025 ... q4_2025) and the amount due
// by member for year.
func (s DuesSchedule) Calculate(member Member, year int) (string, decimal.Decimal, error) {
	if err := ValidateDuesYear(year); err != nil {
		return "", decimal.Zero, err
	}
	if !member.MembershipAccepted || member.MembershipDate == "" {
		return "", decimal.Zero, errors.Join(ErrValidation, errors.New("not a member"))
	}
	if member.MembershipType == MembershipTypeInvesting {
		return "", decimal.Zero, errors.Join(ErrValidation, errors.New("investing members pay no dues"))
	}

	yearStart := fmt.Sprintf("%04d-01-01", year)
	yearEnd := fmt.Sprintf("%04d-12-31", year)
	if member.MembershipDate > yearEnd {
		return "", decimal.Zero, errors.Join(ErrValidation, fmt.Errorf("membership starts after %d", year))
	}
	if member.MembershipLossDate != "" && member.MembershipLossDate < yearStart {
		return "", decimal.Zero, errors.Join(ErrValidation, fmt.Errorf("membership ended before %d", year))
	}

	quarter := 1
	if member.MembershipDate >= yearStart {
		joined, err := time.Parse(DateLayout, member.MembershipDate)
		if err != nil {
			return "", decimal.Zero, errors.Join(ErrValidation, fmt.Errorf("invalid membership date %q", member.MembershipDate))
		}
		quarter = (int(joined.Month())-1)/3 + 1
	}

	remaining := decimal.NewFromInt(int64(5 - quarter))
	amount := s.Annual.Mul(remaining).Div(decimal.NewFromInt(4)).Round(2)
	return StartCode(quarter, year), amount, nil
}

func StartCode(quarter, year int) string {
	return "q" + strconv.Itoa(quarter) + "_" + strconv.Itoa(year)
}

func InvoiceNoString(prefix string, year, invoiceNo int) string {
	return fmt.Sprintf("%s-dues%d-%04d", prefix, year, invoiceNo)
}

// IssueInvoice bills the effective amount of dues and updates the account.
func IssueInvoice(dues MemberDues, member Member, invoiceNo int, date, prefix string) (DuesInvoice, MemberDues, error) {
	if dues.Invoiced {
		return DuesInvoice{}, dues, errors.Join(ErrValidation, fmt.Errorf("dues %d already invoiced", dues.Year))
	}
	amount := dues.EffectiveAmount()
	if !amount.IsPositive() {
		return DuesInvoice{}, dues, errors.Join(ErrValidation, errors.New("member is exempted from dues"))
	}

	invoice := DuesInvoice{
		Year:             dues.Year,
		InvoiceNo:        invoiceNo,
		InvoiceNoString:  InvoiceNoString(prefix, dues.Year, invoiceNo),
		InvoiceDate:      date,
		InvoiceAmount:    amount,
		MemberID:         member.ID,
		MembershipNumber: member.MembershipNumber,
		Email:            member.Email,
	}

	dues.Invoiced = true
	dues.InvoiceDate = date
	dues.InvoiceNo = invoiceNo
	dues.Balance = dues.Balance.Add(amount)
	dues.Balanced = dues.Balance.IsZero()
	return invoice, dues, nil
}

// Reduction is the outcome of lowering the dues of an already known
// account. Cancelled, Reversal and Replacement are nil when nothing was
// invoiced yet; Replacement is nil for an exemption.
type Reduction struct {
	Dues        MemberDues
	Cancelled   *DuesInvoice
	Reversal    *DuesInvoice
	Replacement *DuesInvoice
}

type ReductionInput struct {
	Dues          MemberDues
	Current       *DuesInvoice
	Amount        decimal.Decimal
	Date          string
	NextInvoiceNo int
	Prefix        string
}

// Reduce lowers the dues to input.Amount. An invoiced account gets its
// current invoice cancelled, a reversal invoice and, unless the new amount is
// zero, a replacement invoice. The invoice chain stays linked through the
// preceding/succeeding numbers and the sum over all invoices equals the new
// amount.
func Reduce(input ReductionInput) (Reduction, error) {
	dues := input.Dues
	amount := input.Amount.Round(2)
	if err := ValidateAmount(amount); err != nil {
		return Reduction{}, errors.Join(ErrValidation, errors.New("reduced amount must not be negative"))
	}

	current := dues.EffectiveAmount()
	if current.IsZero() {
		return Reduction{}, errors.Join(ErrValidation, errors.New("dues already exempted"))
	}
	if !amount.LessThan(current) {
		return Reduction{}, errors.Join(ErrValidation, fmt.Errorf("reduced amount must be lower than %s", current.StringFixed(2)))
	}

	dues.Reduced = true
	dues.AmountReduced = amount

	if !dues.Invoiced || input.Current == nil {
		dues.Balanced = dues.Balance.IsZero()
		return Reduction{Dues: dues}, nil
	}
	if input.Current.IsCancelled || input.Current.IsReversal {
		return Reduction{}, errors.Join(ErrValidation, errors.New("current invoice is not reducible"))
	}

	cancelled := *input.Current
	reversal := DuesInvoice{
		Year:               cancelled.Year,
		InvoiceNo:          input.NextInvoiceNo,
		InvoiceNoString:    InvoiceNoString(input.Prefix, cancelled.Year, input.NextInvoiceNo),
		InvoiceDate:        input.Date,
		InvoiceAmount:      cancelled.InvoiceAmount.Neg(),
		IsReversal:         true,
		MemberID:           cancelled.MemberID,
		MembershipNumber:   cancelled.MembershipNumber,
		Email:              cancelled.Email,
		PrecedingInvoiceNo: cancelled.InvoiceNo,
	}
	cancelled.IsCancelled = true
	cancelled.CancelledDate = input.Date
	cancelled.SucceedingInvoiceNo = reversal.InvoiceNo

	dues.Balance = dues.Balance.Add(reversal.InvoiceAmount)
	dues.InvoiceNo = reversal.InvoiceNo
	dues.InvoiceDate = input.Date

	result := Reduction{Cancelled: &cancelled, Reversal: &reversal}
	if amount.IsPositive() {
		replacement := DuesInvoice{
			Year:               cancelled.Year,
			InvoiceNo:          reversal.InvoiceNo + 1,
			InvoiceNoString:    InvoiceNoString(input.Prefix, cancelled.Year, reversal.InvoiceNo+1),
			InvoiceDate:        input.Date,
			InvoiceAmount:      amount,
			IsAltered:          true,
			MemberID:           cancelled.MemberID,
			MembershipNumber:   cancelled.MembershipNumber,
			Email:              cancelled.Email,
			PrecedingInvoiceNo: reversal.InvoiceNo,
		}
		reversal.SucceedingInvoiceNo = replacement.InvoiceNo
		dues.Balance = dues.Balance.Add(amount)
		dues.InvoiceNo = replacement.InvoiceNo
		result.Replacement = &replacement
	}

	dues.Balanced = dues.Balance.IsZero()
	result.Dues = dues
	return result, nil
}

// ApplyPayment books a payment against the account. Overpayments leave a
// negative balance, i.e. a credit.
func ApplyPayment(dues MemberDues, amount decimal.Decimal, date string) (MemberDues, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return dues, errors.Join(ErrValidation, errors.New("payment amount must be positive"))
	}
	normalizedDate, err := ValidateDate(date)
	if err != nil {
		return dues, errors.Join(ErrValidation, fmt.Errorf("invalid payment date %q: %w", date, err))
	}

	dues.Paid = true
	dues.PaidDate = normalizedDate
	dues.AmountPaid = dues.AmountPaid.Add(amount)
	dues.Balance = dues.Balance.Sub(amount)
	dues.Balanced = dues.Balance.IsZero()
	return dues, nil
}

// InvoiceSum is the total over an invoice chain, reversals included.
func InvoiceSum(invoices []DuesInvoice) decimal.Decimal {
	sum := decimal.Zero
	for _, invoice := range invoices {
		sum = sum.Add(invoice.InvoiceAmount)
	}
	return sum
}

// CurrentInvoice returns the invoice that is neither cancelled nor a
// reversal, if any.
func CurrentInvoice(invoices []DuesInvoice) *DuesInvoice {
	for idx := len(invoices) - 1; idx >= 0; idx-- {
		if !invoices[idx].IsCancelled && !invoices[idx].IsReversal {
			invoice := invoices[idx]
			return &invoice
		}
	}
	return nil
}
