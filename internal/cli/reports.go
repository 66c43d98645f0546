package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/promessa/internal/budget"
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/store"
)

var (
	reportsLimit       int
	reportsFingerprint string
	budgetFrom         int
	budgetTo           int
	budgetSphere       string
)

var reportsCmd = &cobra.Command{
	Use:   "reports [politician]",
	Short: "List stored audit reports",
	Long: `Reports lists the audit history of a politician, newest first, or shows
the latest report for one fingerprint.

Example:
  promessa reports "Tabata Amaral"
  promessa reports --fingerprint 3f2a... --json`,
	Args: cobra.ArbitraryArgs,
	RunE: runReports,
}

var budgetCmd = &cobra.Command{
	Use:   "budget <category>",
	Short: "Show budget execution history for a category",
	Long: `Budget prints budgeted and executed amounts per year for one category.
Years without published figures are skipped.

Example:
  promessa budget educacao --from 2020 --to 2025
  promessa budget saude --sphere STATE`,
	Args: cobra.ExactArgs(1),
	RunE: runBudget,
}

func init() {
	rootCmd.AddCommand(reportsCmd, budgetCmd)

	reportsCmd.Flags().IntVar(&reportsLimit, "limit", 20, "maximum reports to list")
	reportsCmd.Flags().StringVar(&reportsFingerprint, "fingerprint", "", "show the latest report for this audit fingerprint")

	year := time.Now().Year()
	budgetCmd.Flags().IntVar(&budgetFrom, "from", year-4, "first year")
	budgetCmd.Flags().IntVar(&budgetTo, "to", year, "last year")
	budgetCmd.Flags().StringVar(&budgetSphere, "sphere", string(model.SphereFederal), "FEDERAL, STATE or MUNICIPAL")
}

func runReports(cmd *cobra.Command, args []string) error {
	if reportsFingerprint == "" && len(args) == 0 {
		return errors.New("give a politician or --fingerprint")
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	if reportsFingerprint != "" {
		report, err := s.pipeline.Store.ReportByFingerprint(ctx, reportsFingerprint)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no report for fingerprint %s", reportsFingerprint)
		}
		if err != nil {
			return err
		}
		return s.ui.Report(report)
	}

	reports, err := s.pipeline.Store.ReportsByPolitician(ctx, strings.Join(args, " "), reportsLimit)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	return s.ui.Reports(reports)
}

func runBudget(cmd *cobra.Command, args []string) error {
	if budgetFrom > budgetTo {
		return fmt.Errorf("--from %d is after --to %d", budgetFrom, budgetTo)
	}
	category, ok := budget.NormalizeCategory(args[0])
	if !ok {
		return fmt.Errorf("unknown category %q", args[0])
	}
	sphere := model.Sphere(strings.ToUpper(budgetSphere))
	switch sphere {
	case model.SphereFederal, model.SphereState, model.SphereMunicipal:
	default:
		return fmt.Errorf("unknown sphere %q", budgetSphere)
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	s.ui.VerboseLog("Budget history for %s (%s) %d-%d", category, budget.SiconfiCode(category), budgetFrom, budgetTo)
	history := s.pipeline.BudgetHistory(cmd.Context(), string(category), budgetFrom, budgetTo, sphere)
	return s.ui.BudgetHistory(history)
}
