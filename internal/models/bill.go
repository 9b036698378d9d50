package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel to callers as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// timestampLayouts are tried in order when decoding a line item timestamp.
// Zone-less layouts are interpreted in the process local zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// BillLineItem is one row of a hospital bill
type BillLineItem struct {
	Description string          `json:"description" validate:"required"`
	Category    string          `json:"category" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gte=1"`
	UnitPrice   decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	TotalPrice  decimal.Decimal `json:"totalPrice" validate:"gte=0"` // Billed amount of record
	Timestamp   *time.Time      `json:"timestamp,omitempty"`
}

// UnmarshalJSON accepts RFC 3339 timestamps as well as the zone-less
// "2006-01-02T15:04:05" form hospital exports commonly use.
func (i *BillLineItem) UnmarshalJSON(data []byte) error {
	type alias BillLineItem
	aux := struct {
		*alias
		Timestamp *string `json:"timestamp,omitempty"`
	}{alias: (*alias)(i)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	i.Timestamp = nil
	if aux.Timestamp == nil || strings.TrimSpace(*aux.Timestamp) == "" {
		return nil
	}

	ts, err := ParseTimestamp(*aux.Timestamp)
	if err != nil {
		return err
	}
	i.Timestamp = &ts
	return nil
}

// ParseTimestamp parses a bill or event timestamp
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// StandardPriceEntry is the expected per-unit price range of a reference item
type StandardPriceEntry struct {
	Min decimal.Decimal `json:"min" yaml:"min"`
	Max decimal.Decimal `json:"max" yaml:"max"`
}

// Scale returns the range multiplied by quantity
func (e StandardPriceEntry) Scale(quantity int) StandardPriceEntry {
	q := decimal.NewFromInt(int64(quantity))
	return StandardPriceEntry{Min: e.Min.Mul(q), Max: e.Max.Mul(q)}
}
