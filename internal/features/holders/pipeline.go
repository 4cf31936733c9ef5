package holders

import (
	"context"
	"fmt"
	"time"

	"dog-holders/internal/clients_api/geniidata"
	"dog-holders/internal/infra/log"
	"dog-holders/internal/infra/metrics"
	"dog-holders/internal/infra/retry"

	"go.uber.org/zap"
)

type Options struct {
	Policy  retry.Policy  // zero value means retry.DefaultPolicy()
	Sleep   retry.Sleeper // nil means retry.Sleep
	Parser  *Parser       // nil means NewParser(DefaultTotalSupply)
	Metrics *metrics.Recorder
}

// Pipeline fetches pages one offset at a time, retries failures under its
// policy, accumulates ranked rows and flushes them to the Writer once.
type Pipeline struct {
	fetcher Fetcher
	writer  Writer
	policy  retry.Policy
	sleep   retry.Sleeper
	parser  *Parser
	metrics *metrics.Recorder
}

func NewPipeline(fetcher Fetcher, writer Writer, opts Options) *Pipeline {
	if opts.Policy == (retry.Policy{}) {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	if opts.Parser == nil {
		opts.Parser = NewParser(DefaultTotalSupply)
	}

	return &Pipeline{
		fetcher: fetcher,
		writer:  writer,
		policy:  opts.Policy,
		sleep:   opts.Sleep,
		parser:  opts.Parser,
		metrics: opts.Metrics,
	}
}

// Run exports numHolders holders starting at startRank.
// Offsets go from startRank-1 up to startRank-1+numHolders in steps of PageSize.
// Pages that exhaust their attempts are listed in Result.FailedOffsets and add no rows.
// If ctx is cancelled during a delay the run stops and nothing is written.
func (p *Pipeline) Run(ctx context.Context, startRank, numHolders int, apiKey string) (*Result, error) {
	if startRank < 1 {
		return nil, fmt.Errorf("%w: start rank must be positive, got %d", ErrInvalidRange, startRank)
	}
	if numHolders < 0 {
		return nil, fmt.Errorf("%w: number of holders must not be negative, got %d", ErrInvalidRange, numHolders)
	}
	if err := p.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}

	startTime := time.Now()
	result := &Result{NextRank: startRank}
	firstOffset := startRank - 1
	endOffset := firstOffset + numHolders

	log.LogInfo("Starting holders export",
		zap.Int("start_rank", startRank),
		zap.Int("num_holders", numHolders),
		zap.Int("first_offset", firstOffset))

	for offset := firstOffset; offset < endOffset; offset += PageSize {
		done, err := p.runOffset(ctx, offset, apiKey, result)
		if err != nil {
			log.LogWarn("Holders export interrupted, nothing written",
				zap.Int("offset", offset),
				zap.Int("rows", len(result.Rows)),
				zap.Error(err))
			return result, fmt.Errorf("holders export interrupted at offset %d: %w", offset, err)
		}
		if !done {
			result.FailedOffsets = append(result.FailedOffsets, offset)
			p.metrics.FailedOffset()
			log.LogError("Giving up on holders page",
				zap.Int("offset", offset),
				zap.Int("attempts", p.policy.MaxAttempts))
		}
	}

	if err := p.writer.Write(result.Rows); err != nil {
		return result, fmt.Errorf("failed to write holders: %w", err)
	}

	duration := time.Since(startTime)
	p.metrics.RunFinished(len(result.Rows), duration)
	log.LogSuccess("Holders saved",
		zap.Int("rows", len(result.Rows)),
		zap.Ints("failed_offsets", result.FailedOffsets),
		zap.Int("next_rank", result.NextRank),
		zap.Int64("duration_ms", duration.Milliseconds()))

	return result, nil
}

// runOffset drives one offset until it is done or out of attempts.
// Every failed attempt is followed by a delay, the last one included.
func (p *Pipeline) runOffset(ctx context.Context, offset int, apiKey string, result *Result) (bool, error) {
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		result.Attempts++
		outcome := p.fetcher.Fetch(ctx, offset, apiKey)
		p.metrics.Outcome(outcome.Kind.String())

		var delay time.Duration
		switch outcome.Kind {
		case geniidata.OutcomeSuccess:
			rows, nextRank := p.parser.Parse(outcome.Payload, result.NextRank)
			result.Rows = append(result.Rows, rows...)
			result.NextRank = nextRank
			log.LogDebug("Holders page parsed",
				zap.Int("offset", offset),
				zap.Int("rows", len(rows)),
				zap.Int("next_rank", nextRank))
			return true, nil

		case geniidata.OutcomeQuotaExceeded:
			delay = p.policy.QuotaCooldown
			p.metrics.Wait("quota")
			log.LogNotice(fmt.Sprintf("Quota exceeded, waiting %s before retrying", delay),
				zap.Int("offset", offset),
				zap.Int("attempt", attempt),
				zap.Duration("wait", delay))

		default:
			delay = p.policy.RetryDelay
			p.metrics.Wait("retry")
			log.LogWarn("Error fetching holders page, retrying",
				zap.Int("offset", offset),
				zap.Int("attempt", attempt),
				zap.String("outcome", outcome.Kind.String()),
				zap.Error(outcome.Err))
		}

		if err := p.sleep(ctx, delay); err != nil {
			return false, err
		}
	}

	return false, nil
}
