// Package billfile loads and validates bill and care-event files at the
// boundary, before anything reaches the analyzers.
package billfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/garyjia/medbill-audit/pkg/utils"
	"github.com/go-playground/validator/v10"
)

// ErrEmptyBill is returned for a bill file with no line items
var ErrEmptyBill = errors.New("bill has no line items")

// ValidationError describes the first invalid field of a bill or event file
type ValidationError struct {
	Index int    // Zero-based position in the file
	Field string // JSON field name
	Rule  string // Failed validation tag
	Value interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %d: field %q failed %q validation (value: %v)", e.Index, e.Field, e.Rule, e.Value)
}

// Bill is a decoded bill file
type Bill struct {
	Items []models.BillLineItem `json:"items"`
}

var validate = utils.NewValidator()

// Load reads and validates a bill file. Plain or gzip JSON holding either an
// array of line items or an object with an "items" array is accepted.
func Load(path string) (*Bill, error) {
	data, err := utils.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bill file: %w", err)
	}
	bill, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bill, nil
}

// Parse decodes and validates bill JSON
func Parse(data []byte) (*Bill, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyBill
	}

	var bill Bill
	if data[0] == '[' {
		if err := json.Unmarshal(data, &bill.Items); err != nil {
			return nil, fmt.Errorf("failed to decode bill: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &bill); err != nil {
			return nil, fmt.Errorf("failed to decode bill: %w", err)
		}
	}

	if len(bill.Items) == 0 {
		return nil, ErrEmptyBill
	}

	for i := range bill.Items {
		bill.Items[i].Description = utils.SanitizeString(bill.Items[i].Description)
		bill.Items[i].Category = utils.SanitizeString(bill.Items[i].Category)
		if err := validateAt(i, bill.Items[i]); err != nil {
			return nil, err
		}
	}

	return &bill, nil
}

// LoadEvents reads and validates a care-event timeline file
func LoadEvents(path string) ([]models.CareEvent, error) {
	data, err := utils.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}
	events, err := ParseEvents(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// ParseEvents decodes and validates a JSON array of care events
func ParseEvents(data []byte) ([]models.CareEvent, error) {
	var events []models.CareEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	for i, e := range events {
		if err := validateAt(i, e); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func validateAt(index int, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Index: index,
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Value: fe.Value(),
		}
	}
	return fmt.Errorf("item %d: %w", index, err)
}
