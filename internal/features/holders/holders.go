package holders

// Package holders turns GeniiData holders pages into ranked rows
// Rank follows parse order, not the request offset: a page that never
// arrives leaves a gap in coverage but never in the rank sequence

import (
	"context"
	"errors"
	"strconv"

	"dog-holders/internal/clients_api/geniidata"
)

// DefaultTotalSupply of DOG•GO•TO•THE•MOON, the denominator for ownership percentage
const DefaultTotalSupply int64 = 100_000_000_000

const PageSize = geniidata.PageSize

var (
	ErrMalformedPayload = errors.New("malformed holders payload")
	ErrInvalidRange     = errors.New("invalid holders range")
)

// HolderRecord is one entry of the API list.
type HolderRecord struct {
	Address string
	Balance int64
}

// RankedRow is one output line: Rank,Address,Percentage,Balance
type RankedRow struct {
	Rank       int
	Address    string
	Percentage string
	Balance    int64
}

// Fetcher requests one holders page. *geniidata.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, offset int, apiKey string) geniidata.Outcome
}

// Writer persists the full row set once, at the end of a run.
type Writer interface {
	Write(rows []RankedRow) error
}

// Result is what a run produced.
type Result struct {
	Rows          []RankedRow
	FailedOffsets []int
	NextRank      int
	Attempts      int
}

// percentage renders balance/totalSupply*100 in float64 with two decimals
func percentage(balance, totalSupply int64) string {
	return strconv.FormatFloat(float64(balance)/float64(totalSupply)*100, 'f', 2, 64) + "%"
}
