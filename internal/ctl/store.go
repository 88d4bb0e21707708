package ctl

import (
	"fmt"
	"text/tabwriter"

	"clubfin/internal/core"
	"clubfin/internal/docstore"
	"clubfin/internal/repository"
	"clubfin/internal/services"
	"clubfin/internal/sheets"

	"github.com/spf13/cobra"
)

func (a *App) alertsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List tracked maintenance items by urgency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			today, err := a.todayTime()
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store docstore.Store) error {
				alerts, err := services.NewAlertService(store, a.cfg.ForecastPolicy()).MaintenanceAlerts(cmd.Context(), today)
				if err != nil {
					return err
				}
				if len(alerts) == 0 {
					fmt.Fprintln(out(cmd), "No tracked maintenance items.")
					return nil
				}
				tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "STATUS\tITEM\tDUE FROM\tDUE BY\tYEARS\tEXPECTED")
				for _, al := range alerts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
						al.Status, al.Name, al.NextDueDateMin, al.NextDueDateMax,
						al.YearsUntilDue, core.FormatAmount(al.NextExpectedCost))
				}
				return tw.Flush()
			})
		},
	}
}

func (a *App) auditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check every item's budget state against the reallocation journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(store docstore.Store) error {
				findings, err := services.NewAuditService(store).Run(cmd.Context())
				if err != nil {
					return err
				}
				for _, f := range findings {
					fmt.Fprintln(out(cmd), f)
				}
				if len(findings) > 0 {
					return fmt.Errorf("%w: %d", ErrAuditFindings, len(findings))
				}
				fmt.Fprintln(out(cmd), "Journal consistent.")
				return nil
			})
		},
	}
}

func (a *App) budgetCommand() *cobra.Command {
	budget := &cobra.Command{
		Use:   "budget",
		Short: "Inspect budget documents",
	}
	budget.AddCommand(&cobra.Command{
		Use:   "show FISCAL_YEAR",
		Short: "Print a fiscal year's monthly budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fy, err := parseFiscalYear(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store docstore.Store) error {
				doc, ok, err := repository.GetBudget(cmd.Context(), store, fy)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", core.ErrBudgetDocumentMissing, core.BudgetID(fy))
				}
				tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', tabwriter.AlignRight)
				for _, row := range sheets.BudgetRows(doc) {
					for _, cell := range row {
						fmt.Fprintf(tw, "%v\t", cell)
					}
					fmt.Fprintln(tw)
				}
				return tw.Flush()
			})
		},
	})
	return budget
}
