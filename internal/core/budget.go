package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	BucketRevenue Bucket = "revenue"
	BucketOpex    Bucket = "opex"
	BucketCapex   Bucket = "capex"
	BucketGA      Bucket = "ga"
)

// MonthsPerYear is the number of fiscal months in a budget.
const MonthsPerYear = 12

type (
	Bucket string

	MonthlyBudget struct {
		Revenue decimal.Decimal `json:"revenue"`
		Opex    decimal.Decimal `json:"opex"`
		Capex   decimal.Decimal `json:"capex"`
		GA      decimal.Decimal `json:"ga"`
	}

	// BudgetDocument holds one fiscal year's plan, indexed by fiscal month
	// (0 = October of FiscalYear-1).
	BudgetDocument struct {
		FiscalYear          int                          `json:"fiscalYear"`
		MonthlyBudgets      [MonthsPerYear]MonthlyBudget `json:"monthlyBudgets"`
		StartingBalance     decimal.Decimal              `json:"startingBalance"`
		LowBalanceThreshold decimal.Decimal              `json:"lowBalanceThreshold"`
		UpdatedBy           string                       `json:"updatedBy,omitempty"`
		UpdatedAt           time.Time                    `json:"updatedAt"`
	}
)

// BudgetID is the document id of a fiscal year's budget.
func BudgetID(fiscalYear int) string {
	return fmt.Sprintf("FY%d", fiscalYear)
}

// NewBudget returns an empty budget for the fiscal year.
func NewBudget(fiscalYear int) BudgetDocument {
	return BudgetDocument{FiscalYear: fiscalYear}
}

func (b Bucket) Valid() bool {
	switch b {
	case BucketRevenue, BucketOpex, BucketCapex, BucketGA:
		return true
	}
	return false
}

// Get returns the amount held in bucket.
func (m MonthlyBudget) Get(bucket Bucket) decimal.Decimal {
	switch bucket {
	case BucketRevenue:
		return m.Revenue
	case BucketOpex:
		return m.Opex
	case BucketCapex:
		return m.Capex
	case BucketGA:
		return m.GA
	}
	return decimal.Zero
}

// Net is revenue minus every expense bucket.
func (m MonthlyBudget) Net() decimal.Decimal {
	return m.Revenue.Sub(m.Opex).Sub(m.Capex).Sub(m.GA)
}

// Adjust adds delta to bucket in the given fiscal month.
func (b *BudgetDocument) Adjust(month int, bucket Bucket, delta decimal.Decimal) error {
	if err := ValidateMonth(month); err != nil {
		return err
	}
	mb := &b.MonthlyBudgets[month]
	switch bucket {
	case BucketRevenue:
		mb.Revenue = mb.Revenue.Add(delta)
	case BucketOpex:
		mb.Opex = mb.Opex.Add(delta)
	case BucketCapex:
		mb.Capex = mb.Capex.Add(delta)
	case BucketGA:
		mb.GA = mb.GA.Add(delta)
	default:
		return fmt.Errorf("unknown budget bucket %q", bucket)
	}
	return nil
}

// Amount returns the value of bucket in the given fiscal month.
func (b BudgetDocument) Amount(month int, bucket Bucket) decimal.Decimal {
	if ValidateMonth(month) != nil {
		return decimal.Zero
	}
	return b.MonthlyBudgets[month].Get(bucket)
}

// Total sums bucket across all twelve months.
func (b BudgetDocument) Total(bucket Bucket) decimal.Decimal {
	total := decimal.Zero
	for _, m := range b.MonthlyBudgets {
		total = total.Add(m.Get(bucket))
	}
	return total
}

// ValidateMonth checks a fiscal month index.
func ValidateMonth(month int) error {
	if month < 0 || month >= MonthsPerYear {
		return fmt.Errorf("%w: got %d", ErrInvalidFiscalMonth, month)
	}
	return nil
}
