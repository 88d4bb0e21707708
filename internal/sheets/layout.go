package sheets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"clubfin/internal/core"
	"clubfin/internal/fiscal"

	"github.com/shopspring/decimal"
)

// Header is the first row of every budget tab.
var Header = []string{"Month", "Revenue", "OpEx", "CapEx", "G&A", "Net"}

// Rows written per tab: header, twelve months, total.
const RowCount = core.MonthsPerYear + 2

var columnBuckets = []core.Bucket{core.BucketRevenue, core.BucketOpex, core.BucketCapex, core.BucketGA}

// TabName returns the tab a fiscal year is mirrored to, e.g. "FY2026 Budget".
func TabName(suffix string, fiscalYear int) string {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return core.BudgetID(fiscalYear)
	}
	return fmt.Sprintf("%s %s", core.BudgetID(fiscalYear), suffix)
}

// A1Range returns the quoted A1 range covering a whole budget tab.
func A1Range(tab string) string {
	return fmt.Sprintf("'%s'!A1:F%d", strings.ReplaceAll(tab, "'", "''"), RowCount)
}

// MonthLabel names a fiscal month row by its calendar month, e.g. "Oct 2025".
func MonthLabel(fiscalYear, month int) string {
	return fiscal.MonthStart(fiscalYear, month).Format("Jan 2006")
}

// BudgetRows renders doc as the value matrix of its tab.
func BudgetRows(doc core.BudgetDocument) [][]any {
	rows := make([][]any, 0, RowCount)
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	rows = append(rows, header)

	for m, mb := range doc.MonthlyBudgets {
		row := []any{MonthLabel(doc.FiscalYear, m)}
		for _, b := range columnBuckets {
			row = append(row, mb.Get(b).StringFixed(2))
		}
		rows = append(rows, append(row, mb.Net().StringFixed(2)))
	}

	total := []any{"Total"}
	net := decimal.Zero
	for _, b := range columnBuckets {
		total = append(total, doc.Total(b).StringFixed(2))
	}
	for _, mb := range doc.MonthlyBudgets {
		net = net.Add(mb.Net())
	}
	return append(rows, append(total, net.StringFixed(2)))
}

// Fingerprint hashes the rendered rows so unchanged budgets can be skipped.
func Fingerprint(doc core.BudgetDocument) string {
	h := sha256.New()
	for _, row := range BudgetRows(doc) {
		for _, v := range row {
			fmt.Fprintf(h, "%v\x1f", v)
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ParseBudgetRows reads a tab's value matrix back into a budget document.
// Month rows are positional; columns are located by header name.
func ParseBudgetRows(values [][]any, fiscalYear int) (core.BudgetDocument, error) {
	doc := core.NewBudget(fiscalYear)
	if len(values) == 0 {
		return doc, ErrTabNotFound
	}

	headers := toStrings(values[0])
	cols := make(map[core.Bucket]int, len(columnBuckets))
	var missing []string
	for i, b := range columnBuckets {
		idx := indexOf(headers, Header[i+1])
		if idx == -1 {
			missing = append(missing, Header[i+1])
		}
		cols[b] = idx
	}
	if len(missing) > 0 {
		return doc, fmt.Errorf("unexpected budget header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	for m := 0; m < core.MonthsPerYear && m+1 < len(values); m++ {
		row := toStrings(values[m+1])
		for _, b := range columnBuckets {
			raw := safeGet(row, cols[b])
			if raw == "" {
				continue
			}
			amount, err := parseCell(raw)
			if err != nil {
				return doc, fmt.Errorf("row %d (%s) column %s: %w", m+2, MonthLabel(fiscalYear, m), b, err)
			}
			if err := doc.Adjust(m, b, amount); err != nil {
				return doc, err
			}
		}
	}
	return doc, nil
}

// parseCell accepts plain and formatted numbers: "1234.5", "1,234.50",
// "1234,50" and "-12".
func parseCell(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
