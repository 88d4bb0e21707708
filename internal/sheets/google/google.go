// Package google mirrors budget documents into a Google Sheets spreadsheet,
// one tab per fiscal year.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"clubfin/internal/core"
	applog "clubfin/internal/log"
	ports "clubfin/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ ports.BudgetMirror = (*Client)(nil)

// Config selects the spreadsheet and credentials. One of
// ServiceAccountJSON or ServiceAccountFile is required unless extra client
// options supply transport and auth.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	SheetSuffix        string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	suffix        string

	mu                 sync.Mutex
	knownTabs          map[string]struct{}
	tabsExpireAt       time.Time
	cacheValidDuration time.Duration
}

// New creates a client. opts are appended after the credential options and
// are how tests point the client at a fake endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var clientOpts []goption.ClientOption
	if len(opts) == 0 {
		creds, err := credentialsJSON(ctx, cfg)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		applog.FieldComponent, applog.ComponentSheets,
		"spreadsheet_id", id)

	return &Client{
		svc:                svc,
		spreadsheetID:      id,
		suffix:             cfg.SheetSuffix,
		knownTabs:          make(map[string]struct{}),
		cacheValidDuration: 10 * time.Minute,
	}, nil
}

func credentialsJSON(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// WriteBudget overwrites the fiscal year's tab, creating it on first write.
func (c *Client) WriteBudget(ctx context.Context, doc core.BudgetDocument) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tab := ports.TabName(c.suffix, doc.FiscalYear)
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	rng := ports.A1Range(tab)
	vr := &gsheet.ValueRange{Values: ports.BudgetRows(doc)}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		if isMissingTab(err) {
			c.InvalidateTabCache()
		}
		return fmt.Errorf("update %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Budget tab written",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldFiscalYear, doc.FiscalYear,
		"tab", tab)
	return nil
}

// ReadBudget reads the mirrored tab back. Missing tabs yield ErrTabNotFound.
func (c *Client) ReadBudget(ctx context.Context, fiscalYear int) (core.BudgetDocument, error) {
	if c.svc == nil {
		return core.BudgetDocument{}, errors.New("sheets service not initialized")
	}
	rng := ports.A1Range(ports.TabName(c.suffix, fiscalYear))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		if isMissingTab(err) {
			return core.BudgetDocument{}, ports.ErrTabNotFound
		}
		return core.BudgetDocument{}, fmt.Errorf("read %s: %w", rng, err)
	}
	return ports.ParseBudgetRows(resp.Values, fiscalYear)
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	c.mu.Lock()
	_, known := c.knownTabs[tab]
	fresh := time.Now().Before(c.tabsExpireAt)
	c.mu.Unlock()
	if known && fresh {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}

	c.mu.Lock()
	c.knownTabs = make(map[string]struct{}, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.knownTabs[sh.Properties.Title] = struct{}{}
		}
	}
	c.tabsExpireAt = time.Now().Add(c.cacheValidDuration)
	_, known = c.knownTabs[tab]
	c.mu.Unlock()
	if known {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: tab},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %q: %w", tab, err)
	}
	slog.InfoContext(ctx, "Budget tab created",
		applog.FieldComponent, applog.ComponentSheets,
		"tab", tab)

	c.mu.Lock()
	c.knownTabs[tab] = struct{}{}
	c.mu.Unlock()
	return nil
}

// InvalidateTabCache forces the next write to re-list the spreadsheet's tabs.
func (c *Client) InvalidateTabCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabsExpireAt = time.Time{}
}

// isMissingTab matches the 400 the API returns for a range on an unknown tab.
func isMissingTab(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}
