package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"clubfin/internal/core"
	"clubfin/internal/docstore"
	"clubfin/internal/forecast"
	"clubfin/internal/repository"

	"github.com/shopspring/decimal"
)

// MaintenanceAlert is the dashboard view of one tracked maintenance item.
type MaintenanceAlert struct {
	ItemID           string          `json:"itemId"`
	Name             string          `json:"name"`
	NextDueDateMin   core.Date       `json:"nextDueDateMin"`
	NextDueDateMax   core.Date       `json:"nextDueDateMax"`
	YearsUntilDue    float64         `json:"yearsUntilDue"`
	Status           forecast.Status `json:"status"`
	NextExpectedCost decimal.Decimal `json:"nextExpectedCost"`
}

// AlertService reads maintenance forecasts for dashboards. It never writes.
type AlertService struct {
	store  docstore.Reader
	policy forecast.Policy
}

func NewAlertService(store docstore.Reader, policy forecast.Policy) *AlertService {
	return &AlertService{store: store, policy: policy}
}

// MaintenanceAlerts classifies every tracked item that has a due window,
// most urgent first.
func (s *AlertService) MaintenanceAlerts(ctx context.Context, today time.Time) ([]MaintenanceAlert, error) {
	items, err := repository.ListMaintenanceItems(ctx, s.store, 0)
	if err != nil {
		return nil, fmt.Errorf("list maintenance items: %w", err)
	}

	alerts := make([]MaintenanceAlert, 0, len(items))
	for _, it := range items {
		if !it.TrackingEnabled || it.NextDueDateMin == nil {
			continue
		}
		years, ok := forecast.YearsUntil(it.NextDueDateMin.Time, today)
		if !ok {
			continue
		}
		a := MaintenanceAlert{
			ItemID:         it.ID,
			Name:           it.Name,
			NextDueDateMin: *it.NextDueDateMin,
			YearsUntilDue:  years,
			Status:         forecast.Classify(years, s.policy.Thresholds),
		}
		if it.NextDueDateMax != nil {
			a.NextDueDateMax = *it.NextDueDateMax
		}
		// The stored cost was computed at completion time; re-inflate from
		// the last occurrence so the figure tracks today.
		switch {
		case it.LastOccurrence != nil:
			a.NextExpectedCost = forecast.InflatedCost(it.LastOccurrence.Amount, years, s.policy.InflationRate)
		case it.NextExpectedCost != nil:
			a.NextExpectedCost = *it.NextExpectedCost
		}
		alerts = append(alerts, a)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Status.Rank(), alerts[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].YearsUntilDue < alerts[j].YearsUntilDue
	})
	return alerts, nil
}
