package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Revenue TransactionType = "revenue"
	Expense TransactionType = "expense"

	OPEX  ExpenseType = "OPEX"
	CAPEX ExpenseType = "CAPEX"
	GA    ExpenseType = "G&A"

	MaintenanceKind ItemKind = "maintenance"
	CapexKind       ItemKind = "capex"
)

// DateLayout is the calendar-date wire format.
const DateLayout = "2006-01-02"

type (
	TransactionType string
	ExpenseType     string
	ItemKind        string

	Date struct {
		time.Time
	}

	// ItemRef points at a maintenance item or a CAPEX project.
	ItemRef struct {
		Kind ItemKind `json:"kind"`
		ID   string   `json:"id"`
	}

	// Actor is the authenticated user performing an operation. Authentication
	// itself happens outside this module.
	Actor struct {
		UserID string `json:"userId"`
		Email  string `json:"email,omitempty"`
	}

	Transaction struct {
		ID                     string          `json:"id"`
		Date                   Date            `json:"date"`
		Amount                 decimal.Decimal `json:"amount"`
		Type                   TransactionType `json:"type"`
		ExpenseType            ExpenseType     `json:"expenseType,omitempty"`
		Description            string          `json:"description,omitempty"`
		FiscalYear             int             `json:"fiscalYear"`
		MajorMaintenanceItemID string          `json:"majorMaintenanceItemId,omitempty"`
		CapexProjectID         string          `json:"capexProjectId,omitempty"`
		CreatedBy              string          `json:"createdBy,omitempty"`
		CreatedAt              time.Time       `json:"createdAt"`
		UpdatedBy              string          `json:"updatedBy,omitempty"`
		UpdatedAt              time.Time       `json:"updatedAt"`
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidExpenseType  = errors.New("invalid expense type")
	ErrAmbiguousLink       = errors.New("transaction cannot link both a maintenance item and a capex project")
	ErrLinkOnRevenue       = errors.New("only expenses can be linked to maintenance items or capex projects")
	ErrInvalidFiscalMonth  = errors.New("fiscal month must be between 0 and 11")
	ErrInvalidRecurrence   = errors.New("recurrence years must be positive with min <= max")
	ErrMissingActor        = errors.New("missing actor")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidDescription  = errors.New("description too long (max 200 characters)")
	ErrInvalidFiscalYear   = errors.New("invalid fiscal year")

	// ErrLinkedItemNotFound aborts a save: the referenced item does not resolve.
	ErrLinkedItemNotFound = errors.New("linked item not found")
	// ErrUnmappedFiscalMonth is a warning: the transaction date is outside its fiscal year.
	ErrUnmappedFiscalMonth = errors.New("transaction date outside fiscal year")
	// ErrBudgetDocumentMissing is a warning: no budget exists for the fiscal year.
	ErrBudgetDocumentMissing = errors.New("budget document missing")
)

// IsValidationError reports whether err is a rejected input rather than a
// storage or infrastructure failure.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidDate, ErrInvalidType, ErrInvalidExpenseType,
		ErrAmbiguousLink, ErrLinkOnRevenue, ErrInvalidFiscalMonth, ErrInvalidRecurrence,
		ErrInvalidDescription, ErrInvalidFiscalYear,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.Format(DateLayout))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	s, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		*d = Date{Time: t}
		return nil
	}
	// Timestamps written by older clients carry a time component.
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	*d = DateOf(t)
	return nil
}

func (k ItemKind) Valid() bool {
	return k == MaintenanceKind || k == CapexKind
}

// Bucket returns the budget bucket an item kind is planned in.
func (k ItemKind) Bucket() Bucket {
	if k == CapexKind {
		return BucketCapex
	}
	return BucketOpex
}

func (r ItemRef) String() string {
	return string(r.Kind) + "/" + r.ID
}

func (a Actor) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return ErrMissingActor
	}
	return nil
}

// LinkRef returns the item the transaction is linked to, if any.
func (t Transaction) LinkRef() (ItemRef, bool) {
	switch {
	case t.MajorMaintenanceItemID != "":
		return ItemRef{Kind: MaintenanceKind, ID: t.MajorMaintenanceItemID}, true
	case t.CapexProjectID != "":
		return ItemRef{Kind: CapexKind, ID: t.CapexProjectID}, true
	}
	return ItemRef{}, false
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	switch t.Type {
	case Revenue:
		if t.MajorMaintenanceItemID != "" || t.CapexProjectID != "" {
			return ErrLinkOnRevenue
		}
	case Expense:
		switch t.ExpenseType {
		case OPEX, CAPEX, GA:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidExpenseType, t.ExpenseType)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if t.MajorMaintenanceItemID != "" && t.CapexProjectID != "" {
		return ErrAmbiguousLink
	}
	if len(t.Description) > 200 {
		return ErrInvalidDescription
	}
	if t.FiscalYear < 0 {
		return fmt.Errorf("%w %d", ErrInvalidFiscalYear, t.FiscalYear)
	}
	return nil
}

// Entry builds the ledger entry recorded on the linked item.
func (t Transaction) Entry() LinkedTransaction {
	return LinkedTransaction{
		ID:         t.ID,
		Date:       t.Date,
		Amount:     t.Amount,
		FiscalYear: t.FiscalYear,
	}
}
