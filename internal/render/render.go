// Package render prints audit reports, scout results and budget history
// for terminal users.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ppiankov/promessa/internal/coherence"
	"github.com/ppiankov/promessa/internal/model"
)

// UI writes colored human output, or indented JSON when JSON is set.
type UI struct {
	Verbose bool
	JSON    bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue)
	successPrefix = color.New(color.FgHiGreen)
	warningPrefix = color.New(color.FgHiYellow)
	errorPrefix   = color.New(color.FgHiRed)
	bold          = color.New(color.Bold).SprintFunc()
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// DisableColor turns off ANSI colors for all output.
func DisableColor() {
	color.NoColor = true
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", infoPrefix.Sprint("i"), fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", successPrefix.Sprint("✓"), fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix.Sprint("⚠"), fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix.Sprint("✗"), fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.ErrOut, "%s %s\n", infoPrefix.Sprint("  →"), fmt.Sprintf(format, a...))
	}
}

// Table creates a borderless left-aligned table on Out.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// WriteJSON encodes v as indented JSON on Out.
func (u *UI) WriteJSON(v any) error {
	enc := json.NewEncoder(u.Out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// VerdictColor colors a verdict: green for REALISTA, yellow for DUVIDOSA, red for VAZIA.
func VerdictColor(v model.Verdict) string {
	s := string(v)
	switch v {
	case model.VerdictRealista:
		return green(s)
	case model.VerdictDuvidosa:
		return yellow(s)
	case model.VerdictVazia:
		return red(s)
	default:
		return s
	}
}

// ScoreColor colors a 0-100 viability score with the verdict bands.
func ScoreColor(score int) string {
	s := strconv.Itoa(score)
	switch {
	case score >= 60:
		return green(s)
	case score >= 30:
		return yellow(s)
	default:
		return red(s)
	}
}

func severityColor(s model.SignalSeverity) string {
	switch s {
	case model.SeverityCritical:
		return red(string(s))
	case model.SeverityWarning:
		return yellow(string(s))
	default:
		return cyan(string(s))
	}
}

// Report prints one audit report.
func (u *UI) Report(r *model.AuditReport) error {
	if u.JSON {
		return u.WriteJSON(r)
	}

	w := u.Out
	fmt.Fprintf(w, "%s %s\n", bold("Promessa:"), r.Promise)
	fmt.Fprintf(w, "%s %s (%s)\n", bold("Tema:"), coherence.Label(r.Category), r.Category)
	if r.PoliticianID != "" {
		fmt.Fprintf(w, "%s %s\n", bold("Parlamentar:"), r.PoliticianID)
	}
	fmt.Fprintf(w, "%s %s   %s %s/100\n", bold("Veredito:"), VerdictColor(r.Verdict), bold("Viabilidade:"), ScoreColor(r.ViabilityScore))

	if b := r.BudgetContext; b != nil {
		fmt.Fprintf(w, "%s %s %d (%s): executado %s de %s, %.1f%%\n",
			bold("Orçamento:"), b.Category, b.Year, b.Sphere,
			Money(b.ExecutedBudget), Money(b.TotalBudget), b.ExecutionRate)
	} else {
		fmt.Fprintf(w, "%s %s\n", bold("Orçamento:"), yellow("desconhecido"))
	}
	if r.Extraction != nil {
		fmt.Fprintf(w, "%s %s/%s (%d)\n", bold("Extração:"), r.Extraction.Provider, r.Extraction.Model, r.Extraction.Claims)
	}
	fmt.Fprintln(w)

	if len(r.Signals) > 0 {
		table := u.Table([]string{"Signal", "Severity", "Description"})
		for _, s := range r.Signals {
			_ = table.Append([]string{string(s.Type), severityColor(s.Severity), s.Description})
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	pc := r.PoliticalConsistency
	switch {
	case !pc.Known:
		fmt.Fprintf(w, "%s %s\n", warningPrefix.Sprint("⚠"), pc.Caveat)
	case len(pc.RelevantVotes) > 0:
		if err := u.votes(pc); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, r.Explanation)
	return nil
}

func (u *UI) votes(pc model.PoliticalConsistency) error {
	contradicting := ""
	if pc.Contradiction != nil {
		contradicting = pc.Contradiction.VoteID
	}
	table := u.Table([]string{"Date", "Bill", "Vote", "Summary"})
	for _, v := range pc.RelevantVotes {
		vote := string(v.Vote)
		if v.VoteID == contradicting && contradicting != "" {
			vote = red(vote)
		}
		_ = table.Append([]string{formatDate(v.Date), v.BillReference, vote, truncate(v.Summary, 70)})
	}
	return table.Render()
}

// Reports prints a list of stored reports, newest first.
func (u *UI) Reports(reports []*model.AuditReport) error {
	if u.JSON {
		if reports == nil {
			reports = []*model.AuditReport{}
		}
		return u.WriteJSON(reports)
	}
	if len(reports) == 0 {
		u.Info("No reports found")
		return nil
	}
	table := u.Table([]string{"Created", "Verdict", "Score", "Category", "Promise"})
	for _, r := range reports {
		_ = table.Append([]string{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			VerdictColor(r.Verdict),
			ScoreColor(r.ViabilityScore),
			string(r.Category),
			truncate(r.Promise, 60),
		})
	}
	return table.Render()
}

// ScoutResults prints discovered news items.
func (u *UI) ScoutResults(items []model.ScoutResult) error {
	if u.JSON {
		if items == nil {
			items = []model.ScoutResult{}
		}
		return u.WriteJSON(items)
	}
	if len(items) == 0 {
		u.Info("No new items")
		return nil
	}
	table := u.Table([]string{"Published", "Tier", "Source", "Title", "URL"})
	for _, it := range items {
		_ = table.Append([]string{
			formatDate(it.PublishedAt),
			tierColor(it.Authority),
			it.Source,
			truncate(it.Title, 60),
			it.URL,
		})
	}
	return table.Render()
}

func tierColor(t model.AuthorityTier) string {
	switch t {
	case model.TierPrimary:
		return green(t.String())
	case model.TierSecondary:
		return cyan(t.String())
	default:
		return t.String()
	}
}

// BudgetHistory prints one row per year.
func (u *UI) BudgetHistory(history []model.BudgetComparison) error {
	if u.JSON {
		if history == nil {
			history = []model.BudgetComparison{}
		}
		return u.WriteJSON(history)
	}
	if len(history) == 0 {
		u.Info("No budget history available")
		return nil
	}
	table := u.Table([]string{"Year", "Budgeted", "Executed", "Variance", "Rate"})
	for _, h := range history {
		_ = table.Append([]string{
			strconv.Itoa(h.Year),
			Money(h.Budgeted),
			Money(h.Executed),
			Money(h.Variance),
			fmt.Sprintf("%.1f%%", h.ExecutionRate),
		})
	}
	return table.Render()
}

// Money formats an amount in reais with a short magnitude suffix.
func Money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%sR$ %.2f bi", sign, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%sR$ %.2f mi", sign, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%sR$ %.1f mil", sign, v/1e3)
	default:
		return fmt.Sprintf("%sR$ %.2f", sign, v)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
