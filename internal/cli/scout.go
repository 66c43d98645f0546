package cli

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	scoutTimeout     time.Duration
	batchConcurrency int
	batchTimeout     time.Duration
	seenLimit        int
	purgeOlderThan   time.Duration
)

var scoutCmd = &cobra.Command{
	Use:   "scout <subject>",
	Short: "Discover news items about a politician not reported before",
	Long: `Scout queries every configured news source for the subject and prints
only items never reported for that subject before. Reported items are
remembered until purged.

Example:
  promessa scout "Tabata Amaral"
  promessa scout batch deputados.txt --concurrency 4
  promessa scout seen "Tabata Amaral"
  promessa scout purge "Tabata Amaral" --older-than 720h`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScout,
}

var scoutBatchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Scout every subject listed in a file (one per line)",
	Args:  cobra.ExactArgs(1),
	RunE:  runScoutBatch,
}

var scoutSeenCmd = &cobra.Command{
	Use:   "seen <subject>",
	Short: "List items already reported for a subject",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScoutSeen,
}

var scoutPurgeCmd = &cobra.Command{
	Use:   "purge <subject>",
	Short: "Forget the items reported for a subject",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScoutPurge,
}

func init() {
	rootCmd.AddCommand(scoutCmd)
	scoutCmd.AddCommand(scoutBatchCmd, scoutSeenCmd, scoutPurgeCmd)

	scoutCmd.Flags().DurationVar(&scoutTimeout, "timeout", time.Minute, "overall scout timeout")

	scoutBatchCmd.Flags().IntVar(&batchConcurrency, "concurrency", runtime.NumCPU(), "number of concurrent subjects")
	scoutBatchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for the batch")

	scoutSeenCmd.Flags().IntVar(&seenLimit, "limit", 50, "maximum items to list")

	scoutPurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "only forget items reported longer ago than this (default: all)")
}

func runScout(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := contextWithTimeout(cmd, scoutTimeout)
	defer cancel()

	subject := strings.Join(args, " ")
	items, err := s.pipeline.Search(ctx, subject)
	if err != nil {
		return fmt.Errorf("scout failed: %w", err)
	}
	if err := s.ui.ScoutResults(items); err != nil {
		return err
	}
	if !jsonOut && len(items) > 0 {
		s.ui.Success("%d new items for %s", len(items), subject)
	}
	return nil
}

func runScoutBatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := contextWithTimeout(cmd, batchTimeout)
	defer cancel()

	s.ui.Info("Scouting subjects from %s with %d workers", args[0], batchConcurrency)
	results, err := s.pipeline.Batch(batchConcurrency).ProcessFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	if jsonOut {
		type entry struct {
			Subject string `json:"subject"`
			Items   any    `json:"items"`
			Error   string `json:"error,omitempty"`
		}
		out := make([]entry, 0, len(results))
		for _, r := range results {
			e := entry{Subject: r.Subject, Items: r.Items}
			if r.Error != nil {
				e.Error = r.Error.Error()
			}
			out = append(out, e)
		}
		return s.ui.WriteJSON(out)
	}

	failures, total := 0, 0
	for _, r := range results {
		if r.Error != nil {
			failures++
			s.ui.Error("%s: %v", r.Subject, r.Error)
			continue
		}
		total += len(r.Items)
		s.ui.Success("%s: %d new items (%s)", r.Subject, len(r.Items), r.Duration.Round(time.Millisecond))
		if verbose && len(r.Items) > 0 {
			if err := s.ui.ScoutResults(r.Items); err != nil {
				return err
			}
		}
	}

	s.ui.Info("Subjects: %d  New items: %d  Failures: %d", len(results), total, failures)
	return nil
}

func runScoutSeen(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	items, err := s.pipeline.Scout.Seen(cmd.Context(), strings.Join(args, " "), seenLimit)
	if err != nil {
		return fmt.Errorf("list seen: %w", err)
	}
	return s.ui.ScoutResults(items)
}

func runScoutPurge(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var cutoff time.Time
	if purgeOlderThan > 0 {
		cutoff = time.Now().Add(-purgeOlderThan)
	}
	subject := strings.Join(args, " ")
	n, err := s.pipeline.Scout.Purge(cmd.Context(), subject, cutoff)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	s.ui.Success("Forgot %d items for %s", n, subject)
	return nil
}
