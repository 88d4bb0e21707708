package ctl

import (
	"fmt"

	"clubfin/internal/core"
	"clubfin/internal/fiscal"
	"clubfin/internal/forecast"

	"github.com/spf13/cobra"
)

func parseDateFlag(name, value string) (core.Date, error) {
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func (a *App) fiscalMonthCommand() *cobra.Command {
	var fiscalYear int
	cmd := &cobra.Command{
		Use:   "fiscal-month DATE",
		Short: "Show the fiscal year and month of a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := core.ParseDate(args[0])
			if err != nil {
				return err
			}
			if fiscalYear == 0 {
				fy, month := fiscal.Locate(d.Time)
				fmt.Fprintf(out(cmd), "%s  FY%d  month %d (%s)\n", d, fy, month, fiscal.MonthLabel(month))
				return nil
			}
			month, ok := fiscal.MonthOf(d.Time, fiscalYear)
			if !ok {
				fmt.Fprintf(out(cmd), "%s  outside FY%d\n", d, fiscalYear)
				return nil
			}
			fmt.Fprintf(out(cmd), "%s  FY%d  month %d (%s)\n", d, fiscalYear, month, fiscal.MonthLabel(month))
			return nil
		},
	}
	cmd.Flags().IntVar(&fiscalYear, "fiscal-year", 0, "Map within this fiscal year only")
	return cmd
}

func (a *App) forecastCommand() *cobra.Command {
	var (
		last      string
		amount    string
		minYears  int
		maxYears  int
		inflation float64
	)
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast the next occurrence of a recurring maintenance item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lastDate, err := parseDateFlag("last", last)
			if err != nil {
				return err
			}
			base, err := core.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			if minYears <= 0 || maxYears < minYears {
				return core.ErrInvalidRecurrence
			}
			today, err := a.todayTime()
			if err != nil {
				return err
			}

			policy := a.cfg.ForecastPolicy()
			if cmd.Flags().Changed("inflation") {
				policy.InflationRate = inflation
			}
			est, _ := forecast.Forecast(lastDate.Time, base, minYears, maxYears, today, policy.InflationRate)
			years, _ := forecast.YearsUntil(est.Window.Min, today)

			w := out(cmd)
			fmt.Fprintf(w, "Next due:      %s to %s\n", core.DateOf(est.Window.Min), core.DateOf(est.Window.Max))
			fmt.Fprintf(w, "Years until:   %.2f\n", years)
			fmt.Fprintf(w, "Status:        %s\n", forecast.Classify(years, policy.Thresholds))
			fmt.Fprintf(w, "Expected cost: %s\n", core.FormatAmount(est.ExpectedCost))
			return nil
		},
	}
	cmd.Flags().StringVar(&last, "last", "", "Date of the last occurrence (YYYY-MM-DD)")
	cmd.Flags().StringVar(&amount, "amount", "", "Cost of the last occurrence")
	cmd.Flags().IntVar(&minYears, "min", 0, "Minimum years between occurrences")
	cmd.Flags().IntVar(&maxYears, "max", 0, "Maximum years between occurrences")
	cmd.Flags().Float64Var(&inflation, "inflation", 0, "Yearly inflation rate (defaults to the configured policy)")
	_ = cmd.MarkFlagRequired("last")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("min")
	_ = cmd.MarkFlagRequired("max")
	return cmd
}
