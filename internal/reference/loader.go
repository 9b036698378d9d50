package reference

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/garyjia/medbill-audit/internal/models"
	"github.com/garyjia/medbill-audit/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var hundred = decimal.NewFromInt(100)

//go:embed data/standard_prices.json
var defaultPrices []byte

//go:embed data/policy_rules.json
var defaultPolicies []byte

// Default returns a Store built from the tables compiled into the binary
func Default() (*Store, error) {
	return build(defaultPrices, defaultPolicies)
}

// Load builds a Store from reference files. An empty path selects the
// compiled-in table for that half. Files may be JSON or YAML and may be
// gzip-compressed (".gz" suffix).
func Load(pricesPath, policiesPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prices := defaultPrices
	if pricesPath != "" {
		data, err := utils.ReadFile(pricesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read price table: %w", err)
		}
		prices = data
	}

	policies := defaultPolicies
	if policiesPath != "" {
		data, err := utils.ReadFile(policiesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy rules: %w", err)
		}
		policies = data
	}

	store, err := build(prices, policies)
	if err != nil {
		return nil, err
	}

	items := 0
	for _, b := range store.buckets {
		items += b.Len()
	}
	logger.Info("Reference data loaded",
		zap.String("prices_path", displayPath(pricesPath)),
		zap.String("policies_path", displayPath(policiesPath)),
		zap.Int("price_buckets", len(store.buckets)),
		zap.Int("price_items", items),
		zap.Int("policies", len(store.policyIDs)))

	return store, nil
}

func build(prices, policies []byte) (*Store, error) {
	buckets, err := ParsePrices(prices)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price table: %w", err)
	}
	named, err := ParsePolicies(policies)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy rules: %w", err)
	}
	return NewStore(buckets, named)
}

// ParsePrices decodes a {category: {description: {min, max}}} table,
// keeping the order categories and descriptions appear in the document.
func ParsePrices(data []byte) ([]PriceBucket, error) {
	root, err := rootMapping(data)
	if err != nil {
		return nil, err
	}

	buckets := make([]PriceBucket, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		category := root.Content[i].Value
		itemsNode := root.Content[i+1]
		if itemsNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("category %q: expected a mapping (line %d)", category, itemsNode.Line)
		}

		items := make([]PriceItem, 0, len(itemsNode.Content)/2)
		for j := 0; j+1 < len(itemsNode.Content); j += 2 {
			desc := itemsNode.Content[j].Value
			entry, err := decodeEntry(itemsNode.Content[j+1])
			if err != nil {
				return nil, fmt.Errorf("category %q item %q: %w", category, desc, err)
			}
			items = append(items, PriceItem{Description: desc, Entry: entry})
		}
		buckets = append(buckets, NewPriceBucket(category, items...))
	}

	return buckets, nil
}

// ParsePolicies decodes a {policy_id: PolicyDetails} table in document order
func ParsePolicies(data []byte) ([]NamedPolicy, error) {
	root, err := rootMapping(data)
	if err != nil {
		return nil, err
	}

	policies := make([]NamedPolicy, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		id := root.Content[i].Value
		details, err := decodePolicy(root.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", id, err)
		}
		policies = append(policies, NamedPolicy{ID: id, Details: details})
	}

	return policies, nil
}

func rootMapping(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a top-level mapping (line %d)", root.Line)
	}
	return root, nil
}

func decodeEntry(node *yaml.Node) (models.StandardPriceEntry, error) {
	if node.Kind != yaml.MappingNode {
		return models.StandardPriceEntry{}, fmt.Errorf("expected {min, max} (line %d)", node.Line)
	}

	var entry models.StandardPriceEntry
	var haveMin, haveMax bool
	for i := 0; i+1 < len(node.Content); i += 2 {
		val := node.Content[i+1]
		switch node.Content[i].Value {
		case "min":
			d, err := decimalScalar(val)
			if err != nil {
				return entry, fmt.Errorf("min: %w", err)
			}
			entry.Min, haveMin = d, true
		case "max":
			d, err := decimalScalar(val)
			if err != nil {
				return entry, fmt.Errorf("max: %w", err)
			}
			entry.Max, haveMax = d, true
		}
	}
	if !haveMin || !haveMax {
		return entry, fmt.Errorf("both min and max are required (line %d)", node.Line)
	}
	return entry, nil
}

func decodePolicy(node *yaml.Node) (models.PolicyDetails, error) {
	var p models.PolicyDetails
	if node.Kind != yaml.MappingNode {
		return p, fmt.Errorf("expected a mapping (line %d)", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]

		var err error
		switch key {
		case "name":
			p.Name = val.Value
		case "room_rent_limit":
			p.RoomRentLimit, err = decimalScalar(val)
		case "icu_limit":
			p.ICULimit, err = decimalScalar(val)
		case "copay_percentage":
			p.CopayPercentage, err = decimalScalar(val)
		case "sum_insured":
			p.SumInsured, err = decimalScalar(val)
		case "exclusions":
			err = val.Decode(&p.Exclusions)
		case "pre_hospitalization_days":
			p.PreHospitalizationDays, err = intScalar(val)
		case "post_hospitalization_days":
			p.PostHospitalizationDays, err = intScalar(val)
		}
		if err != nil {
			return p, fmt.Errorf("%s: %w", key, err)
		}
	}

	return p, nil
}

func decimalScalar(node *yaml.Node) (decimal.Decimal, error) {
	if node.Kind != yaml.ScalarNode {
		return decimal.Zero, fmt.Errorf("expected a number (line %d)", node.Line)
	}
	return decimal.NewFromString(strings.TrimSpace(node.Value))
}

func intScalar(node *yaml.Node) (*int, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("expected an integer (line %d)", node.Line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(node.Value))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func displayPath(path string) string {
	if path == "" {
		return "(embedded)"
	}
	return path
}
