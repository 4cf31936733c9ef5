package holders

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"dog-holders/internal/infra/log"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var maxBalance = decimal.NewFromInt(math.MaxInt64)

// Parser converts a decoded holders payload into ranked rows.
type Parser struct {
	totalSupply int64
}

// NewParser uses DefaultTotalSupply when totalSupply is not positive.
func NewParser(totalSupply int64) *Parser {
	if totalSupply <= 0 {
		totalSupply = DefaultTotalSupply
	}
	return &Parser{totalSupply: totalSupply}
}

// Parse walks payload.data.list starting at startingRank and returns the rows
// plus the rank the next page should start from. It never fails: a payload of
// the wrong shape is logged and whatever was parsed before the fault is kept.
func (p *Parser) Parse(payload any, startingRank int) ([]RankedRow, int) {
	var rows []RankedRow

	root, ok := payload.(map[string]any)
	if !ok {
		log.LogWarn("Unexpected holders payload type",
			zap.String("type", fmt.Sprintf("%T", payload)),
			zap.Any("payload", payload))
		return rows, startingRank
	}

	list, err := holderList(root)
	if err != nil {
		log.LogError("Key error during parsing", zap.Error(err))
		return rows, startingRank
	}

	rank := startingRank
	for i, item := range list {
		record, err := parseRecord(item)
		if err != nil {
			log.LogError("Key error during parsing",
				zap.Int("index", i),
				zap.Int("parsed", len(rows)),
				zap.Error(err))
			break
		}

		rows = append(rows, RankedRow{
			Rank:       rank,
			Address:    record.Address,
			Percentage: percentage(record.Balance, p.totalSupply),
			Balance:    record.Balance,
		})
		rank++
	}

	return rows, rank
}

func holderList(root map[string]any) ([]any, error) {
	rawData, ok := root["data"]
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrMalformedPayload, "data")
	}
	data, ok := rawData.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want object", ErrMalformedPayload, "data", rawData)
	}

	rawList, ok := data["list"]
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrMalformedPayload, "list")
	}
	if rawList == nil {
		// past the last page the API answers with "list": null
		return nil, nil
	}
	list, ok := rawList.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want array", ErrMalformedPayload, "list", rawList)
	}
	return list, nil
}

// parseRecord: absent address -> "", absent balance -> 0
func parseRecord(item any) (HolderRecord, error) {
	entry, ok := item.(map[string]any)
	if !ok {
		return HolderRecord{}, fmt.Errorf("%w: holder entry is %T, want object", ErrMalformedPayload, item)
	}

	var record HolderRecord
	switch address := entry["address"].(type) {
	case nil:
	case string:
		record.Address = address
	default:
		record.Address = fmt.Sprint(address)
	}

	if raw, ok := entry["balance"]; ok {
		balance, err := parseBalance(raw)
		if err != nil {
			return HolderRecord{}, fmt.Errorf("%w: address %q: %w", ErrMalformedPayload, record.Address, err)
		}
		record.Balance = balance
	}

	return record, nil
}

func parseBalance(raw any) (int64, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := raw.(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		d = decimal.NewFromFloat(v)
	case int64:
		d = decimal.NewFromInt(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	default:
		return 0, fmt.Errorf("balance is %T", raw)
	}
	if err != nil {
		return 0, fmt.Errorf("balance %v: %w", raw, err)
	}

	switch {
	case !d.IsInteger():
		return 0, fmt.Errorf("balance %s is not an integer", d)
	case d.IsNegative():
		return 0, fmt.Errorf("balance %s is negative", d)
	case d.GreaterThan(maxBalance):
		return 0, fmt.Errorf("balance %s overflows int64", d)
	}
	return d.IntPart(), nil
}
