package strategy

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/oms-core/internal/oms"
	"github.com/abdoElHodaky/oms-core/pkg/errors"
)

// The external boundary carries strategy parameters as a string map. These
// are the semantic keys; SendOrder translates the map into one of the
// typed structs below before any strategy logic runs, so internal code
// never touches the raw map.
const (
	ParamTriggerPrice     = "trigger_price"
	ParamTriggerSide      = "trigger_side"
	ParamTriggerTimestamp = "trigger_timestamp"
	ParamChainedPrice     = "chained_price"
	ParamChainedSymbol    = "chained_symbol"
	ParamChainedSide      = "chained_side"
	ParamChainedQuantity  = "chained_quantity"
	ParamTotalVolume      = "total_volume"
	ParamIntervalSeconds  = "interval_seconds"
	ParamTimeoutSeconds   = "timeout_seconds"
	ParamLimitPrice       = "limit_price"
)

// TriggerParams is the shared trigger spec for STOP and CHAIN: fire when
// wall-clock reaches trigger_timestamp (when positive), or when the
// monitored side of the book crosses trigger_price: BUY monitors
// best_bid >= trigger_price, SELL monitors best_ask <= trigger_price.
type TriggerParams struct {
	TriggerPrice     decimal.Decimal
	TriggerSide      oms.OrderSide
	TriggerTimestamp float64
}

// StopParams configures a STOP strategy. ChainedPrice, when present, is
// the limit price of the successor order; absent means the successor goes
// out as a MARKET order.
type StopParams struct {
	TriggerParams
	ChainedPrice *decimal.Decimal
}

// ChainParams configures a CHAIN strategy: the trigger spec plus the
// complete successor order.
type ChainParams struct {
	TriggerParams
	ChainedSymbol   string
	ChainedSide     oms.OrderSide
	ChainedQuantity int64
	ChainedPrice    *decimal.Decimal
}

// VWAPParams configures a VWAP strategy slicing TotalVolume over
// ceil(timeout/interval) intervals.
type VWAPParams struct {
	TotalVolume     int64
	IntervalSeconds float64
	TimeoutSeconds  float64
	LimitPrice      *decimal.Decimal
}

// TotalIntervals is ceil(timeout/interval), floored at one.
func (p VWAPParams) TotalIntervals() float64 {
	n := math.Ceil(p.TimeoutSeconds / p.IntervalSeconds)
	if n < 1 {
		return 1
	}
	return n
}

func parseTriggerParams(params map[string]string) (TriggerParams, error) {
	var out TriggerParams

	raw, ok := params[ParamTriggerPrice]
	if !ok {
		return out, errors.Newf(errors.ErrMissingStrategyParam, "missing %s", ParamTriggerPrice)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return out, errors.Newf(errors.ErrMissingStrategyParam, "invalid %s: %q", ParamTriggerPrice, raw)
	}
	out.TriggerPrice = price

	side, err := parseSide(params[ParamTriggerSide])
	if err != nil {
		return out, err
	}
	out.TriggerSide = side

	if raw, ok := params[ParamTriggerTimestamp]; ok {
		ts, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return out, errors.Newf(errors.ErrMissingStrategyParam, "invalid %s: %q", ParamTriggerTimestamp, raw)
		}
		out.TriggerTimestamp = ts
	}

	return out, nil
}

// ParseStopParams builds StopParams from the external string map.
func ParseStopParams(params map[string]string) (StopParams, error) {
	trigger, err := parseTriggerParams(params)
	if err != nil {
		return StopParams{}, err
	}

	out := StopParams{TriggerParams: trigger}
	if raw, ok := params[ParamChainedPrice]; ok {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return StopParams{}, errors.Newf(errors.ErrMissingStrategyParam, "invalid %s: %q", ParamChainedPrice, raw)
		}
		out.ChainedPrice = &price
	}
	return out, nil
}

// ParseChainParams builds ChainParams from the external string map.
func ParseChainParams(params map[string]string) (ChainParams, error) {
	trigger, err := parseTriggerParams(params)
	if err != nil {
		return ChainParams{}, err
	}

	out := ChainParams{TriggerParams: trigger}

	out.ChainedSymbol = params[ParamChainedSymbol]
	if out.ChainedSymbol == "" {
		return ChainParams{}, errors.Newf(errors.ErrMissingStrategyParam, "missing %s", ParamChainedSymbol)
	}

	side, err := parseSide(params[ParamChainedSide])
	if err != nil {
		return ChainParams{}, err
	}
	out.ChainedSide = side

	raw, ok := params[ParamChainedQuantity]
	if !ok {
		return ChainParams{}, errors.Newf(errors.ErrMissingStrategyParam, "missing %s", ParamChainedQuantity)
	}
	qty, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || qty <= 0 {
		return ChainParams{}, errors.Newf(errors.ErrMissingStrategyParam, "invalid %s: %q", ParamChainedQuantity, raw)
	}
	out.ChainedQuantity = qty

	if raw, ok := params[ParamChainedPrice]; ok {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return ChainParams{}, errors.Newf(errors.ErrMissingStrategyParam, "invalid %s: %q", ParamChainedPrice, raw)
		}
		out.ChainedPrice = &price
	}

	return out, nil
}

// ParseVWAPParams builds VWAPParams from the external string map.
func ParseVWAPParams(params map[string]string) (VWAPParams, error) {
	var out VWAPParams

	raw, ok := params[ParamTotalVolume]
	if !ok {
		return out, errors.Newf(errors.ErrMissingStrategyParam, "missing %s", ParamTotalVolume)
	}
	vol, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || vol <= 0 {
		return out, errors.Newf(errors.ErrMissingStrategyParam, "invalid %s: %q", ParamTotalVolume, raw)
	}
	out.TotalVolume = vol

	interval, err := parsePositiveFloat(params, ParamIntervalSeconds)
	if err != nil {
		return out, err
	}
	out.IntervalSeconds = interval

	timeout, err := parsePositiveFloat(params, ParamTimeoutSeconds)
	if err != nil {
		return out, err
	}
	out.TimeoutSeconds = timeout

	if raw, ok := params[ParamLimitPrice]; ok {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return out, errors.Newf(errors.ErrMissingStrategyParam, "invalid %s: %q", ParamLimitPrice, raw)
		}
		out.LimitPrice = &price
	}

	return out, nil
}

func parseSide(raw string) (oms.OrderSide, error) {
	switch oms.OrderSide(raw) {
	case oms.Buy:
		return oms.Buy, nil
	case oms.Sell:
		return oms.Sell, nil
	default:
		return "", errors.Newf(errors.ErrMissingStrategyParam, "invalid side: %q", raw)
	}
}

func parsePositiveFloat(params map[string]string, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, errors.Newf(errors.ErrMissingStrategyParam, "missing %s", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, errors.Newf(errors.ErrMissingStrategyParam, "invalid %s: %q", key, raw)
	}
	return v, nil
}
