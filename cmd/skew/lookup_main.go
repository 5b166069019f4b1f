package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/skew/internal/bias"
	"github.com/sawpanic/skew/internal/classify"
	skewlog "github.com/sawpanic/skew/internal/log"
	"github.com/sawpanic/skew/internal/metrics"
	"github.com/sawpanic/skew/internal/ui"
)

const gaugeWidth = 41

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Classify an article and show its bias gauge",
		Long: `Sends the article identity to the classification service and draws the
result as a gauge running from right (0%) to left (100%).

A service that is still processing answers with a job hash; fetch the
result later with --job.`,
		RunE: runLookup,
	}

	cmd.Flags().String("url", "", "Article URL")
	cmd.Flags().String("title", "", "Article title")
	cmd.Flags().String("host", "", "Article host (defaults to the URL host)")
	cmd.Flags().String("endpoint", "", "Classification service base URL (overrides config)")
	cmd.Flags().String("job", "", "Fetch a previously queued job by hash instead of classifying")
	cmd.Flags().Bool("json", false, "Print the result as JSON")

	return cmd
}

type lookupResult struct {
	Success bool            `json:"success"`
	ID      string          `json:"id,omitempty"`
	Reading *bias.Reading   `json:"reading,omitempty"`
	Error   *classify.Error `json:"error,omitempty"`
}

func runLookup(cmd *cobra.Command, args []string) error {
	pageURL, _ := cmd.Flags().GetString("url")
	title, _ := cmd.Flags().GetString("title")
	host, _ := cmd.Flags().GetString("host")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	job, _ := cmd.Flags().GetString("job")
	asJSON, _ := cmd.Flags().GetBool("json")

	if job == "" && pageURL == "" {
		return fmt.Errorf("--url is required unless --job is given")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if endpoint != "" {
		cfg.Classifier.Endpoint = endpoint
	}

	reg := metrics.NewRegistry()
	client, err := classify.New(cfg.Classifier, classify.WithMetrics(reg))
	if err != nil {
		return err
	}

	page := classify.Page{URL: pageURL, Title: title, Host: host}
	result := lookupResult{}
	if job == "" {
		result.ID = classify.DeriveID(page)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var spinner *skewlog.Spinner
	if !asJSON && term.IsTerminal(int(os.Stderr.Fd())) {
		spinner = skewlog.NewSpinner(os.Stderr, "Classifying...", skewlog.SpinnerDots)
		spinner.Start()
	}

	var reading bias.Reading
	if job != "" {
		reading, err = client.Job(ctx, job)
	} else {
		reading, err = client.Classify(ctx, page)
	}

	if spinner != nil {
		spinner.Stop()
	}
	logClassifySummary(log.Logger, reg)

	out := cmd.OutOrStdout()
	gauge := ui.NewGauge(out, gaugeWidth)

	if err != nil {
		if asJSON {
			result.Error = asClassifyError(err)
			if encErr := writeResult(cmd, result); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintln(out, gauge.RenderError(err))
		}
		return reportedError{err}
	}

	if asJSON {
		result.Success = true
		result.Reading = &reading
		return writeResult(cmd, result)
	}

	fmt.Fprintln(out, gauge.Render(reading))
	return nil
}

// logClassifySummary reports what the client recorded for this invocation
func logClassifySummary(logger zerolog.Logger, reg *metrics.Registry) {
	outcomes, total, err := reg.ClassifySummary()
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read classification metrics")
		return
	}

	event := logger.Debug().Dur("elapsed", total)
	for outcome, count := range outcomes {
		event = event.Float64("outcome_"+outcome, count)
	}
	event.Msg("Classification finished")
}

func asClassifyError(err error) *classify.Error {
	var ce *classify.Error
	if errors.As(err, &ce) {
		return ce
	}
	return &classify.Error{Kind: classify.KindTransport, Err: err}
}

func writeResult(cmd *cobra.Command, result lookupResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
