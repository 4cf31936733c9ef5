package commands

// Holders export command
// Fetches <num_holders> holders starting at <start_rank>, writes the CSV once at the end,
// then optionally renders a chart, dumps metrics and reports to Telegram
// SIGINT/SIGTERM cancels the run before anything is written

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"dog-holders/bots_monitor"
	"dog-holders/internal/clients_api/geniidata"
	"dog-holders/internal/features/holders"
	"dog-holders/internal/features/tg_charts"
	"dog-holders/internal/infra/config"
	"dog-holders/internal/infra/fs"
	"dog-holders/internal/infra/log"
	"dog-holders/internal/infra/metrics"
	"dog-holders/internal/infra/retry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const holdersUsage = "holders <start_rank> <num_holders> <api_key>"

var errUsage = errors.New("usage: dog-holders " + holdersUsage)

func newHoldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   holdersUsage,
		Short: "Export DOG holders to CSV",
		Long: `Export <num_holders> DOG holders starting at rank <start_rank> to DOG_Holders.csv.
<api_key> may be omitted when GENIIDATA_API_KEY (or api.key in config.yaml) is set.
Pages that keep failing are skipped and listed at the end; they do not fail the command.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runHolders,
	}
}

type holdersArgs struct {
	startRank  int
	numHolders int
	apiKey     string
}

// parseHoldersArgs requires all three arguments unless a credential is configured.
func parseHoldersArgs(args []string, cfg *config.Config) (holdersArgs, error) {
	if len(args) != 3 && cfg.API.Key == "" {
		return holdersArgs{}, errUsage
	}

	startRank, err := strconv.Atoi(args[0])
	if err != nil || startRank < 1 {
		return holdersArgs{}, fmt.Errorf("start_rank must be a positive integer, got %q", args[0])
	}
	numHolders, err := strconv.Atoi(args[1])
	if err != nil || numHolders < 0 {
		return holdersArgs{}, fmt.Errorf("num_holders must be a non-negative integer, got %q", args[1])
	}

	var keyArg string
	if len(args) == 3 {
		keyArg = args[2]
	}
	apiKey, err := cfg.ResolveAPIKey(keyArg)
	if err != nil {
		return holdersArgs{}, err
	}

	return holdersArgs{startRank: startRank, numHolders: numHolders, apiKey: apiKey}, nil
}

func runHolders(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	parsed, err := parseHoldersArgs(args, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := geniidata.NewClient(geniidata.Options{
		BaseURL:         cfg.API.BaseURL,
		TokenID:         cfg.API.TokenID,
		RequestTimeout:  cfg.API.RequestTimeout,
		RateLimit:       cfg.API.RateLimit,
		MaxResponseSize: cfg.API.MaxResponseSize,
	})
	writer := fs.NewCSVWriter(cfg.Output.File)
	recorder := metrics.NewRecorder()

	pipeline := holders.NewPipeline(client, writer, holders.Options{
		Policy: retry.Policy{
			MaxAttempts:   cfg.Run.MaxAttempts,
			RetryDelay:    cfg.Run.RetryDelay,
			QuotaCooldown: cfg.Run.QuotaCooldown,
		},
		Parser:  holders.NewParser(cfg.Token.TotalSupply),
		Metrics: recorder,
	})

	startTime := time.Now()
	result, err := pipeline.Run(ctx, parsed.startRank, parsed.numHolders, parsed.apiKey)
	if err != nil {
		log.LogError("Holders export failed", zap.Error(err))
		return err
	}
	duration := time.Since(startTime)

	cmd.Printf("Saved %d holders to %s\n", len(result.Rows), writer.Path())
	if len(result.FailedOffsets) > 0 {
		cmd.Printf("Failed offsets: %v\n", result.FailedOffsets)
	}

	if cfg.Output.SummaryFile != "" {
		summary := fs.RunSummary{
			StartRank:     parsed.startRank,
			NumHolders:    parsed.numHolders,
			RowsWritten:   len(result.Rows),
			NextRank:      result.NextRank,
			Attempts:      result.Attempts,
			FailedOffsets: result.FailedOffsets,
			CSVFile:       writer.Path(),
			FinishedAt:    time.Now().UTC(),
			DurationMs:    duration.Milliseconds(),
		}
		if err := fs.SaveRunSummary(cfg.Output.SummaryFile, summary); err != nil {
			log.LogWarn("Failed to save run summary", zap.String("path", cfg.Output.SummaryFile), zap.Error(err))
		}
	}

	publishRun(ctx, cfg, recorder, bots_monitor.RunReport{
		StartRank:  parsed.startRank,
		NumHolders: parsed.numHolders,
		Result:     result,
		CSVPath:    writer.Path(),
		Duration:   duration,
	})
	return nil
}

// publishRun handles the optional outputs. Their failures are logged, never returned:
// the CSV is already on disk.
func publishRun(ctx context.Context, cfg *config.Config, recorder *metrics.Recorder, report bots_monitor.RunReport) {
	if cfg.Output.ChartFile != "" && len(report.Result.Rows) > 0 {
		if err := tg_charts.GenerateHoldersChart(report.Result.Rows, cfg.Output.ChartFile, tg_charts.DefaultTopN); err != nil {
			log.LogWarn("Failed to generate holders chart", zap.Error(err))
		} else {
			report.ChartPath = cfg.Output.ChartFile
		}
	}

	if cfg.Output.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			log.LogWarn("Failed to write metrics", zap.String("path", cfg.Output.MetricsFile), zap.Error(err))
		}
	}

	if cfg.Telegram.BotToken == "" || ctx.Err() != nil {
		return
	}
	reporter, err := bots_monitor.NewHoldersReporter(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		log.LogWarn("Telegram report disabled", zap.Error(err))
		return
	}
	if err := reporter.Send(report); err != nil {
		log.LogWarn("Telegram report incomplete", zap.Error(err))
	}
}
