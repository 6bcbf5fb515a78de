package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"delta-hedge-bot/internal/strategy"
)

func decodeAny(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// parsePositions accepts a bare array or an object carrying a positions
// array. Any other shape is an error, never an empty book.
func parsePositions(payload any) ([]strategy.Position, error) {
	items, ok := toSlice(payload)
	if !ok {
		m, isMap := toMap(payload)
		if !isMap {
			return nil, fmt.Errorf("unexpected positions payload %T", payload)
		}
		items, ok = toSlice(m["positions"])
		if !ok {
			return nil, errors.New("positions payload has no positions array")
		}
	}
	positions := make([]strategy.Position, 0, len(items))
	for i, item := range items {
		m, ok := toMap(item)
		if !ok {
			return nil, fmt.Errorf("position %d is %T, not an object", i, item)
		}
		positions = append(positions, parsePosition(m))
	}
	return positions, nil
}

func parsePosition(m map[string]any) strategy.Position {
	product, _ := toMap(m["product"])
	pos := strategy.Position{
		ProductID:     intFromAny(m["product_id"], 0),
		ProductSymbol: stringFromMap(m, "product_symbol", "symbol"),
		Size:          floatFromMap(m, "size"),
		Delta:         floatFromMap(m, "delta"),
		MarkPrice:     floatFromMap(m, "mark_price", "markPrice"),
	}
	kind := stringFromMap(m, "product_type", "contract_type")
	if product != nil {
		if pos.ProductID == 0 {
			pos.ProductID = intFromAny(product["id"], 0)
		}
		if pos.ProductSymbol == "" {
			pos.ProductSymbol = stringFromMap(product, "symbol")
		}
		if kind == "" {
			kind = stringFromMap(product, "contract_type", "product_type")
		}
		if pos.MarkPrice == 0 {
			pos.MarkPrice = floatFromMap(product, "mark_price")
		}
	}
	pos.ProductType = productTypeFromString(kind)
	return pos
}

func productTypeFromString(kind string) strategy.ProductType {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "future", "futures", "perpetual_futures", "perpetual_future":
		return strategy.ProductFuture
	case "call_option", "call_options":
		return strategy.ProductCallOption
	case "put_option", "put_options":
		return strategy.ProductPutOption
	default:
		return strategy.ProductOther
	}
}

func parseOrderAck(payload any) OrderAck {
	m, ok := toMap(payload)
	if !ok {
		return OrderAck{}
	}
	return OrderAck{
		OrderID:       stringFromAny(m["id"]),
		ProductID:     intFromAny(m["product_id"], 0),
		Side:          stringFromMap(m, "side"),
		Size:          floatFromMap(m, "size"),
		UnfilledSize:  floatFromMap(m, "unfilled_size"),
		State:         stringFromMap(m, "state"),
		AvgFillPrice:  floatFromMap(m, "average_fill_price"),
		ClientOrderID: stringFromMap(m, "client_order_id"),
	}
}

func parseAPIError(status int, raw json.RawMessage) *APIError {
	apiErr := &APIError{Status: status}
	payload, err := decodeAny(raw)
	if err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	switch val := payload.(type) {
	case string:
		apiErr.Code = strings.TrimSpace(val)
	case map[string]any:
		apiErr.Code = stringFromMap(val, "code")
		apiErr.Message = stringFromMap(val, "message", "msg")
		if apiErr.Message == "" {
			if ctx, ok := val["context"]; ok {
				if b, err := json.Marshal(ctx); err == nil {
					apiErr.Message = string(b)
				}
			}
		}
	}
	return apiErr
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func stringFromMap(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringFromAny(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func floatFromMap(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if f, ok := floatFromAny(m[key]); ok {
			return f
		}
	}
	return 0
}

func floatFromAny(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func intFromAny(v any, fallback int) int {
	if f, ok := floatFromAny(v); ok {
		return int(f)
	}
	return fallback
}
