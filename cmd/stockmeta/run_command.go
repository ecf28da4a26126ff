package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stockmeta/internal/api"
	"stockmeta/internal/batch"
	"stockmeta/internal/config"
	"stockmeta/internal/encoding"
	"stockmeta/internal/intake"
	"stockmeta/internal/services"
	"stockmeta/internal/session"
)

var errItemsFailed = errors.New("one or more files failed")

func newRunCommand(ctx *commandContext) *cobra.Command {
	var model string
	var jsonOutput bool
	var outputPath string

	cmd := &cobra.Command{
		Use:   "run [flags] <image|dir>...",
		Short: "Generate metadata for image files",
		Long: `Generate a title, description and keywords for each image.

Directories are expanded one level deep. Files that are not images are
skipped. The API key is read without echo from the terminal, or from the
first line of stdin when stdin is not a terminal.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}
			runCtx := cmd.Context()

			candidates, err := intake.FromPaths(runCtx, logger, args)
			if err != nil {
				return err
			}

			sess, err := verifiedSession(runCtx, cmd, cfg, logger)
			if err != nil {
				return err
			}
			if strings.TrimSpace(model) != "" {
				if err := sess.SelectModel(model); err != nil {
					return fmt.Errorf("%w (available: %s)", err, strings.Join(sess.Models(), ", "))
				}
			}
			if sess.Model() == "" {
				return fmt.Errorf("no model selected; pass --model (available: %s)", strings.Join(sess.Models(), ", "))
			}

			q := sess.Queue()
			added, err := q.Add(candidates...)
			if err != nil {
				return err
			}
			if len(added) == 0 {
				return errors.New("no image files to process")
			}

			var observers []batch.Observer
			if !jsonOutput {
				observers = append(observers, newProgressPrinter(cmd.ErrOrStderr(), sess.Model(), shouldColorize(cmd.ErrOrStderr())))
			}
			runner := batch.NewRunner(encoding.NewEncoder(cfg, logger), logger, observers...)
			summary, err := runner.Run(runCtx, q, sess.Job())
			if err != nil {
				return errors.New(services.DisplayMessage(err))
			}

			items := q.Items()
			result := api.RunResult{
				Run:   api.FromRunSummary(summary, sess.Model()),
				Items: api.FromQueueItems(items),
			}
			if outputPath != "" {
				if err := writeResultFile(outputPath, result); err != nil {
					return err
				}
			}
			if jsonOutput {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderResults(items))
				fmt.Fprintln(out, summaryLine(summary))
			}
			if summary.Errored > 0 {
				return errItemsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Vision model to use (defaults to model.default when available)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Also write the JSON results to this file")
	return cmd
}

func verifiedSession(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*session.Session, error) {
	sess, err := session.New("", cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	key, err := readAPIKey(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := sess.Verify(ctx, key); err != nil {
		return nil, errors.New(services.DisplayMessage(err))
	}
	return sess, nil
}

func summaryLine(summary batch.Summary) string {
	line := fmt.Sprintf("Processed %d file(s): %d completed, %d failed in %s",
		summary.Processed, summary.Completed, summary.Errored, summary.Duration.Round(100*time.Millisecond))
	if len(summary.ErrorKind) == 0 {
		return line
	}
	kinds := make([]string, 0, len(summary.ErrorKind))
	for _, kind := range []string{services.KindCredential, services.KindEncoding, services.KindRequest, services.KindParse, services.KindUnknown} {
		if count := summary.ErrorKind[kind]; count > 0 {
			kinds = append(kinds, fmt.Sprintf("%s=%d", kind, count))
		}
	}
	return line + " (" + strings.Join(kinds, ", ") + ")"
}
