package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"clubfin/internal/forecast"

	"github.com/shopspring/decimal"
)

const (
	placementPlanned = "planned"
	placementLinked  = "linked"
)

type (
	// LinkedTransaction is the ledger entry kept on an item for each linked transaction.
	LinkedTransaction struct {
		ID         string          `json:"id"`
		Date       Date            `json:"date"`
		Amount     decimal.Decimal `json:"amount"`
		FiscalYear int             `json:"fiscalYear"`
	}

	Occurrence struct {
		Date           Date            `json:"date"`
		Amount         decimal.Decimal `json:"amount"`
		TransactionIDs []string        `json:"transactionIds"`
	}

	// Placement says where an item's budget currently lives. It is either
	// Planned (nothing linked yet) or Linked (at least one transaction).
	Placement interface {
		CurrentMonth() int
		PlannedMonth() int
		Entries() []LinkedTransaction
		isPlacement()
	}

	// Planned parks the full planned amount in Month.
	Planned struct {
		Month int
	}

	// Linked means the planned amount was taken out of OriginalMonth and each
	// transaction's amount sits in its own month. OriginalMonth never changes
	// while the item stays linked.
	Linked struct {
		Month         int
		OriginalMonth int
		Transactions  []LinkedTransaction
	}

	// Completion carries what an item needs to record a finished occurrence.
	Completion struct {
		Last           LinkedTransaction
		Total          decimal.Decimal
		TransactionIDs []string
		Today          time.Time
		Policy         forecast.Policy
	}

	// Linkable is implemented by every document transactions can be linked to.
	Linkable interface {
		Ref() ItemRef
		Bucket() Bucket
		PlannedAmount() decimal.Decimal
		PlannedFiscalYear() int
		CurrentPlacement() Placement
		SetPlacement(Placement)
		SetActualTotal(decimal.Decimal)
		IsCompleted() bool
		Complete(Completion)
		Reopen()
	}

	MaintenanceItem struct {
		ID                 string           `json:"id"`
		Name               string           `json:"name"`
		FiscalYear         int              `json:"fiscalYear"`
		BudgetAmount       decimal.Decimal  `json:"budgetAmount"`
		Placement          Placement        `json:"-"`
		RecurrenceYearsMin int              `json:"recurrenceYearsMin"`
		RecurrenceYearsMax int              `json:"recurrenceYearsMax"`
		LastOccurrence     *Occurrence      `json:"lastOccurrence"`
		NextDueDateMin     *Date            `json:"nextDueDateMin"`
		NextDueDateMax     *Date            `json:"nextDueDateMax"`
		NextExpectedCost   *decimal.Decimal `json:"nextExpectedCost"`
		TotalActualAmount  decimal.Decimal  `json:"totalActualAmount"`
		Completed          bool             `json:"completed"`
		TrackingEnabled    bool             `json:"trackingEnabled"`
		Notes              string           `json:"notes,omitempty"`
	}

	CapexProject struct {
		ID                string          `json:"id"`
		Name              string          `json:"name"`
		FiscalYear        int             `json:"fiscalYear"`
		Amount            decimal.Decimal `json:"amount"`
		Placement         Placement       `json:"-"`
		TotalActualAmount decimal.Decimal `json:"totalActualAmount"`
		Completed         bool            `json:"completed"`
		CompletedDate     *Date           `json:"completedDate"`
		InstallDate       *Date           `json:"installDate"`
		Notes             string          `json:"notes,omitempty"`
	}

	placementWire struct {
		State              string              `json:"placement"`
		Month              int                 `json:"month"`
		OriginalMonth      *int                `json:"originalMonth,omitempty"`
		LinkedTransactions []LinkedTransaction `json:"linkedTransactions"`
	}
)

var (
	_ Linkable = (*MaintenanceItem)(nil)
	_ Linkable = (*CapexProject)(nil)
)

func (p Planned) CurrentMonth() int            { return p.Month }
func (p Planned) PlannedMonth() int            { return p.Month }
func (p Planned) Entries() []LinkedTransaction { return nil }
func (Planned) isPlacement()                   {}

func (l Linked) CurrentMonth() int            { return l.Month }
func (l Linked) PlannedMonth() int            { return l.OriginalMonth }
func (l Linked) Entries() []LinkedTransaction { return l.Transactions }
func (Linked) isPlacement()                   {}

func placementOrDefault(p Placement) Placement {
	if p == nil {
		return Planned{}
	}
	return p
}

func encodePlacement(p Placement) placementWire {
	switch v := placementOrDefault(p).(type) {
	case Linked:
		orig := v.OriginalMonth
		return placementWire{
			State:              placementLinked,
			Month:              v.Month,
			OriginalMonth:      &orig,
			LinkedTransactions: v.Transactions,
		}
	default:
		month := v.CurrentMonth()
		return placementWire{
			State:              placementPlanned,
			Month:              month,
			OriginalMonth:      &month,
			LinkedTransactions: []LinkedTransaction{},
		}
	}
}

// decode trusts the ledger over the discriminator: a document with linked
// transactions is Linked whatever its state field says.
func (w placementWire) decode() Placement {
	if len(w.LinkedTransactions) == 0 {
		return Planned{Month: w.Month}
	}
	orig := w.Month
	if w.OriginalMonth != nil {
		orig = *w.OriginalMonth
	}
	return Linked{Month: w.Month, OriginalMonth: orig, Transactions: w.LinkedTransactions}
}

func validatePlacement(p Placement) error {
	p = placementOrDefault(p)
	if err := ValidateMonth(p.CurrentMonth()); err != nil {
		return err
	}
	return ValidateMonth(p.PlannedMonth())
}

// MaintenanceItem

func (m *MaintenanceItem) Ref() ItemRef                   { return ItemRef{Kind: MaintenanceKind, ID: m.ID} }
func (m *MaintenanceItem) Bucket() Bucket                 { return BucketOpex }
func (m *MaintenanceItem) PlannedAmount() decimal.Decimal { return m.BudgetAmount }
func (m *MaintenanceItem) PlannedFiscalYear() int         { return m.FiscalYear }
func (m *MaintenanceItem) CurrentPlacement() Placement    { return placementOrDefault(m.Placement) }
func (m *MaintenanceItem) SetPlacement(p Placement)       { m.Placement = p }
func (m *MaintenanceItem) SetActualTotal(d decimal.Decimal) {
	m.TotalActualAmount = d
}
func (m *MaintenanceItem) IsCompleted() bool { return m.Completed }

// Complete records the occurrence and recomputes the next-due forecast.
func (m *MaintenanceItem) Complete(c Completion) {
	m.Completed = true
	m.LastOccurrence = &Occurrence{
		Date:           c.Last.Date,
		Amount:         c.Total,
		TransactionIDs: c.TransactionIDs,
	}
	m.NextDueDateMin, m.NextDueDateMax, m.NextExpectedCost = nil, nil, nil
	est, ok := forecast.Forecast(c.Last.Date.Time, c.Total, m.RecurrenceYearsMin, m.RecurrenceYearsMax, c.Today, c.Policy.InflationRate)
	if !ok {
		return
	}
	minDue, maxDue, cost := Date{Time: est.Window.Min}, Date{Time: est.Window.Max}, est.ExpectedCost
	m.NextDueDateMin, m.NextDueDateMax, m.NextExpectedCost = &minDue, &maxDue, &cost
}

func (m *MaintenanceItem) Reopen() {
	m.Completed = false
	m.LastOccurrence = nil
	m.NextDueDateMin, m.NextDueDateMax, m.NextExpectedCost = nil, nil, nil
}

func (m MaintenanceItem) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("maintenance item id is required")
	}
	if m.FiscalYear <= 0 {
		return errors.New("maintenance item fiscal year is required")
	}
	if m.BudgetAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if m.RecurrenceYearsMin <= 0 || m.RecurrenceYearsMax < m.RecurrenceYearsMin {
		return ErrInvalidRecurrence
	}
	return validatePlacement(m.Placement)
}

func (m MaintenanceItem) MarshalJSON() ([]byte, error) {
	type alias MaintenanceItem
	return json.Marshal(struct {
		alias
		placementWire
	}{alias(m), encodePlacement(m.Placement)})
}

func (m *MaintenanceItem) UnmarshalJSON(b []byte) error {
	type alias MaintenanceItem
	aux := struct {
		*alias
		placementWire
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	m.Placement = aux.placementWire.decode()
	return nil
}

// CapexProject

func (c *CapexProject) Ref() ItemRef                   { return ItemRef{Kind: CapexKind, ID: c.ID} }
func (c *CapexProject) Bucket() Bucket                 { return BucketCapex }
func (c *CapexProject) PlannedAmount() decimal.Decimal { return c.Amount }
func (c *CapexProject) PlannedFiscalYear() int         { return c.FiscalYear }
func (c *CapexProject) CurrentPlacement() Placement    { return placementOrDefault(c.Placement) }
func (c *CapexProject) SetPlacement(p Placement)       { c.Placement = p }
func (c *CapexProject) SetActualTotal(d decimal.Decimal) {
	c.TotalActualAmount = d
}
func (c *CapexProject) IsCompleted() bool { return c.Completed }

// Complete stamps the completion and install dates. CAPEX has no recurrence.
func (c *CapexProject) Complete(comp Completion) {
	c.Completed = true
	done := comp.Last.Date
	installed := comp.Last.Date
	c.CompletedDate = &done
	c.InstallDate = &installed
}

func (c *CapexProject) Reopen() {
	c.Completed = false
	c.CompletedDate = nil
	c.InstallDate = nil
}

func (c CapexProject) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("capex project id is required")
	}
	if c.FiscalYear <= 0 {
		return errors.New("capex project fiscal year is required")
	}
	if c.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return validatePlacement(c.Placement)
}

func (c CapexProject) MarshalJSON() ([]byte, error) {
	type alias CapexProject
	return json.Marshal(struct {
		alias
		placementWire
	}{alias(c), encodePlacement(c.Placement)})
}

func (c *CapexProject) UnmarshalJSON(b []byte) error {
	type alias CapexProject
	aux := struct {
		*alias
		placementWire
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.Placement = aux.placementWire.decode()
	return nil
}
