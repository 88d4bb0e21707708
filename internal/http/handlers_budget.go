package http

import (
	"fmt"
	"net/http"

	"clubfin/internal/core"
	"clubfin/internal/fiscal"
	"clubfin/internal/forecast"
	applog "clubfin/internal/log"
	"clubfin/internal/repository"

	"github.com/shopspring/decimal"
)

type monthSummary struct {
	Month   int             `json:"month"`
	Label   string          `json:"label"`
	Start   core.Date       `json:"start"`
	Revenue decimal.Decimal `json:"revenue"`
	Opex    decimal.Decimal `json:"opex"`
	Capex   decimal.Decimal `json:"capex"`
	GA      decimal.Decimal `json:"ga"`
	Net     decimal.Decimal `json:"net"`
}

type budgetBody struct {
	Budget core.BudgetDocument `json:"budget"`
	Months []monthSummary      `json:"months"`
	Net    decimal.Decimal     `json:"net"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	fy, err := ParseFiscalYear(r.PathValue("fy"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	doc, ok, err := repository.GetBudget(r.Context(), s.deps.Store, fy)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if !ok {
		NotFoundError(fmt.Sprintf("budget %s not found", core.BudgetID(fy))).Write(w)
		return
	}

	body := budgetBody{Budget: doc, Months: make([]monthSummary, 0, core.MonthsPerYear), Net: decimal.Zero}
	for m, mb := range doc.MonthlyBudgets {
		body.Months = append(body.Months, monthSummary{
			Month:   m,
			Label:   fiscal.MonthLabel(m),
			Start:   core.DateOf(fiscal.MonthStart(fy, m)),
			Revenue: mb.Revenue,
			Opex:    mb.Opex,
			Capex:   mb.Capex,
			GA:      mb.GA,
			Net:     mb.Net(),
		})
		body.Net = body.Net.Add(mb.Net())
	}
	NewJSONResponse().Body(body).Write(w)
}

func (s *Server) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	fy, err := optionalFiscalYear(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	items, err := repository.ListMaintenanceItems(r.Context(), s.deps.Store, fy)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if items == nil {
		items = []core.MaintenanceItem{}
	}
	NewJSONResponse().Body(map[string]any{"items": items}).Write(w)
}

func (s *Server) handleGetMaintenance(w http.ResponseWriter, r *http.Request) {
	item, err := repository.GetMaintenanceItem(r.Context(), s.deps.Store, r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(item).Write(w)
}

func (s *Server) handleListCapex(w http.ResponseWriter, r *http.Request) {
	fy, err := optionalFiscalYear(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	projects, err := repository.ListCapexProjects(r.Context(), s.deps.Store, fy)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if projects == nil {
		projects = []core.CapexProject{}
	}
	NewJSONResponse().Body(map[string]any{"projects": projects}).Write(w)
}

func (s *Server) handleGetCapex(w http.ResponseWriter, r *http.Request) {
	project, err := repository.GetCapexProject(r.Context(), s.deps.Store, r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(project).Write(w)
}

func (s *Server) handleItemJournal(w http.ResponseWriter, r *http.Request) {
	kind, err := parseItemKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	ref := core.ItemRef{Kind: kind, ID: r.PathValue("id")}
	entries, err := repository.JournalForItem(r.Context(), s.deps.Store, ref)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if entries == nil {
		entries = []core.JournalEntry{}
	}
	NewJSONResponse().Body(map[string]any{"item": ref, "entries": entries}).Write(w)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.deps.Alerts.MaintenanceAlerts(r.Context(), s.deps.Now())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"alerts": alerts}).Write(w)
}

// handleFiscalMonth maps ?date= to its fiscal year and month. With
// ?fiscalYear= it instead reports whether the date falls inside that year.
func (s *Server) handleFiscalMonth(w http.ResponseWriter, r *http.Request) {
	d, err := core.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	fy, err := optionalFiscalYear(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}

	body := map[string]any{"date": d}
	if fy == 0 {
		fy, month := fiscal.Locate(d.Time)
		body["fiscalYear"], body["month"], body["label"], body["mapped"] = fy, month, fiscal.MonthLabel(month), true
	} else {
		month, ok := fiscal.MonthOf(d.Time, fy)
		body["fiscalYear"], body["mapped"] = fy, ok
		if ok {
			body["month"], body["label"] = month, fiscal.MonthLabel(month)
		}
	}
	NewJSONResponse().Body(body).Write(w)
}

type forecastBody struct {
	NextDueDateMin   core.Date       `json:"nextDueDateMin"`
	NextDueDateMax   core.Date       `json:"nextDueDateMax"`
	YearsUntilDue    float64         `json:"yearsUntilDue"`
	Status           forecast.Status `json:"status"`
	NextExpectedCost decimal.Decimal `json:"nextExpectedCost"`
}

// handleForecast previews a recurrence:
// ?lastOccurrence=2024-03-01&amount=10000&minYears=7&maxYears=10.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	last, err := core.ParseDate(q.Get("lastOccurrence"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	amount, err := core.ParseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	minYears, err := parseIntParam(r, "minYears", true)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	maxYears, err := parseIntParam(r, "maxYears", true)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if minYears <= 0 || maxYears < minYears {
		writeError(w, r, applog.OpRead, core.ErrInvalidRecurrence)
		return
	}

	today := s.deps.Now()
	est, _ := forecast.Forecast(last.Time, amount, minYears, maxYears, today, s.deps.Policy.InflationRate)
	years, _ := forecast.YearsUntil(est.Window.Min, today)
	NewJSONResponse().Body(forecastBody{
		NextDueDateMin:   core.DateOf(est.Window.Min),
		NextDueDateMax:   core.DateOf(est.Window.Max),
		YearsUntilDue:    years,
		Status:           forecast.Classify(years, s.deps.Policy.Thresholds),
		NextExpectedCost: est.ExpectedCost,
	}).Write(w)
}
