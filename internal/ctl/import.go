package ctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"clubfin/internal/core"
	"clubfin/internal/docstore"
	applog "clubfin/internal/log"

	"github.com/spf13/cobra"
)

// Seed is the import file layout.
type Seed struct {
	Budgets     []core.BudgetDocument  `json:"budgets"`
	Maintenance []core.MaintenanceItem `json:"maintenance"`
	Capex       []core.CapexProject    `json:"capex"`
}

var errLinkedSeed = errors.New("seeded items must be planned, not linked")

func parseFiscalYear(s string) (int, error) {
	fy, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(s), "FY"))
	if err != nil || fy <= 0 {
		return 0, fmt.Errorf("%w %q", core.ErrInvalidFiscalYear, s)
	}
	return fy, nil
}

// Ops validates the seed and renders it as one batch of full-document sets.
func (s Seed) Ops() ([]docstore.Op, error) {
	var ops []docstore.Op
	add := func(collection, id string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", collection, id, err)
		}
		ops = append(ops, docstore.Op{Kind: docstore.OpSet, Collection: collection, ID: id, Data: data})
		return nil
	}

	for _, b := range s.Budgets {
		if b.FiscalYear <= 0 {
			return nil, fmt.Errorf("budget: %w %d", core.ErrInvalidFiscalYear, b.FiscalYear)
		}
		if err := add(docstore.CollectionBudgets, core.BudgetID(b.FiscalYear), b); err != nil {
			return nil, err
		}
	}
	for i := range s.Maintenance {
		m := &s.Maintenance[i]
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("maintenance %q: %w", m.ID, err)
		}
		if _, linked := m.CurrentPlacement().(core.Linked); linked {
			return nil, fmt.Errorf("maintenance %q: %w", m.ID, errLinkedSeed)
		}
		if err := add(docstore.CollectionMaintenance, m.ID, m); err != nil {
			return nil, err
		}
	}
	for i := range s.Capex {
		c := &s.Capex[i]
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("capex %q: %w", c.ID, err)
		}
		if _, linked := c.CurrentPlacement().(core.Linked); linked {
			return nil, fmt.Errorf("capex %q: %w", c.ID, errLinkedSeed)
		}
		if err := add(docstore.CollectionCapex, c.ID, c); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func (a *App) importCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Seed budgets, maintenance items and CAPEX projects from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read seed: %w", err)
			}
			var seed Seed
			if err := json.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("parse seed: %w", err)
			}
			ops, err := seed.Ops()
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(out(cmd), "Would write %d documents.\n", len(ops))
				return nil
			}
			return a.withStore(cmd.Context(), func(store docstore.Store) error {
				if err := store.BatchWrite(cmd.Context(), ops); err != nil {
					return fmt.Errorf("import: %w", err)
				}
				applog.FromContext(cmd.Context()).InfoContext(cmd.Context(), "Seed imported",
					applog.FieldOperation, applog.OpImport,
					"budgets", len(seed.Budgets),
					"maintenance", len(seed.Maintenance),
					"capex", len(seed.Capex))
				fmt.Fprintf(out(cmd), "Imported %d documents.\n", len(ops))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the file without writing")
	return cmd
}
