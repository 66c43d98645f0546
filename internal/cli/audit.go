package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/promessa/internal/audit"
	"github.com/ppiankov/promessa/internal/model"
)

var (
	auditPolitician string
	auditCategory   string
	auditYear       int
	auditSphere     string
	auditTimeout    time.Duration
)

var auditCmd = &cobra.Command{
	Use:   "audit <promise text>",
	Short: "Audit one campaign promise",
	Long: `Audit checks a promise against budget execution and the politician's
roll-call votes, then prints the verdict with its signals.

Without --category the promise is structured by the configured extraction
providers; if none is available the audit fails.

Example:
  promessa audit "Vou dobrar o orçamento da educação básica até 2027" --politician "Tabata Amaral"
  promessa audit "Construir 50 UBS" --category saude --sphere MUNICIPAL --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVarP(&auditPolitician, "politician", "p", "", "politician id or name in the legislative roster")
	auditCmd.Flags().StringVarP(&auditCategory, "category", "c", "", "promise category (educacao, saude, EDUCATION, ...)")
	auditCmd.Flags().IntVar(&auditYear, "year", 0, "budget year (default: configured reference year)")
	auditCmd.Flags().StringVar(&auditSphere, "sphere", "", "FEDERAL, STATE or MUNICIPAL (default: detected from text)")
	auditCmd.Flags().DurationVar(&auditTimeout, "timeout", 2*time.Minute, "overall audit timeout")
}

func runAudit(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	req := audit.Request{
		PromiseText:  strings.Join(args, " "),
		Category:     auditCategory,
		PoliticianID: auditPolitician,
		Year:         auditYear,
		Sphere:       model.Sphere(strings.ToUpper(auditSphere)),
	}

	ctx, cancel := contextWithTimeout(cmd, auditTimeout)
	defer cancel()

	s.ui.VerboseLog("Auditing promise (fingerprint %s)", req.Fingerprint())
	report, err := s.pipeline.Audit(ctx, req)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}
	return s.ui.Report(report)
}

// contextWithTimeout derives a timeout context from the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
