// Package reference holds the static price ranges and insurance policy rule
// sets the analyzers check bills against. A Store is immutable once built and
// may be shared by any number of goroutines.
package reference

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/medbill-audit/internal/models"
)

// ErrPolicyNotFound is returned when a policy identifier is not in the store
var ErrPolicyNotFound = errors.New("policy not found")

// PriceItem is a single reference description and its per-unit price range
type PriceItem struct {
	Description string
	Entry       models.StandardPriceEntry
}

// PriceBucket is an ordered group of reference items under one category
type PriceBucket struct {
	Category string
	keys     []string
	entries  map[string]models.StandardPriceEntry
}

// NewPriceBucket builds a bucket. Item order is kept; on duplicate
// descriptions the first entry wins.
func NewPriceBucket(category string, items ...PriceItem) PriceBucket {
	b := PriceBucket{
		Category: category,
		keys:     make([]string, 0, len(items)),
		entries:  make(map[string]models.StandardPriceEntry, len(items)),
	}
	for _, item := range items {
		if _, exists := b.entries[item.Description]; exists {
			continue
		}
		b.keys = append(b.keys, item.Description)
		b.entries[item.Description] = item.Entry
	}
	return b
}

// Len returns the number of items in the bucket
func (b PriceBucket) Len() int {
	return len(b.keys)
}

// Items returns the bucket contents in table order
func (b PriceBucket) Items() []PriceItem {
	items := make([]PriceItem, 0, len(b.keys))
	for _, k := range b.keys {
		items = append(items, PriceItem{Description: k, Entry: b.entries[k]})
	}
	return items
}

// NamedPolicy pairs a policy identifier with its rules
type NamedPolicy struct {
	ID      string
	Details models.PolicyDetails
}

// Store is the read-only reference data used by the fraud and coverage analyzers
type Store struct {
	buckets   []PriceBucket
	policies  map[string]models.PolicyDetails
	policyIDs []string
}

// NewStore validates the tables and builds a Store
func NewStore(buckets []PriceBucket, policies []NamedPolicy) (*Store, error) {
	for _, b := range buckets {
		for _, k := range b.keys {
			if err := validateEntry(b.entries[k]); err != nil {
				return nil, fmt.Errorf("price entry %q in %q: %w", k, b.Category, err)
			}
		}
	}

	s := &Store{
		buckets:   buckets,
		policies:  make(map[string]models.PolicyDetails, len(policies)),
		policyIDs: make([]string, 0, len(policies)),
	}
	for _, p := range policies {
		if p.ID == "" {
			return nil, fmt.Errorf("policy with empty identifier")
		}
		if _, exists := s.policies[p.ID]; exists {
			return nil, fmt.Errorf("duplicate policy %q", p.ID)
		}
		if err := validatePolicy(p.Details); err != nil {
			return nil, fmt.Errorf("policy %q: %w", p.ID, err)
		}
		s.policies[p.ID] = p.Details
		s.policyIDs = append(s.policyIDs, p.ID)
	}

	return s, nil
}

// LookupPrice resolves a free-text bill description to its per-unit price range.
//
// All buckets are searched regardless of the item's own category. An exact key
// match in any bucket wins; failing that, the first key (in bucket then key
// order) where either string contains the other, ignoring case, is used.
func (s *Store) LookupPrice(description string) (models.StandardPriceEntry, bool) {
	for _, b := range s.buckets {
		if entry, ok := b.entries[description]; ok {
			return entry, true
		}
	}

	desc := strings.ToLower(description)
	for _, b := range s.buckets {
		for _, k := range b.keys {
			key := strings.ToLower(k)
			if strings.Contains(desc, key) || strings.Contains(key, desc) {
				return b.entries[k], true
			}
		}
	}

	return models.StandardPriceEntry{}, false
}

// Policy returns the rules of a named policy
func (s *Store) Policy(id string) (models.PolicyDetails, error) {
	p, ok := s.policies[id]
	if !ok {
		return models.PolicyDetails{}, fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}
	return p, nil
}

// PolicyIDs lists policy identifiers in table order
func (s *Store) PolicyIDs() []string {
	ids := make([]string, len(s.policyIDs))
	copy(ids, s.policyIDs)
	return ids
}

// Buckets returns the price buckets in table order
func (s *Store) Buckets() []PriceBucket {
	buckets := make([]PriceBucket, len(s.buckets))
	copy(buckets, s.buckets)
	return buckets
}

func validateEntry(e models.StandardPriceEntry) error {
	if e.Min.IsNegative() || e.Max.IsNegative() {
		return fmt.Errorf("negative price bound")
	}
	if e.Min.GreaterThan(e.Max) {
		return fmt.Errorf("min %s greater than max %s", e.Min, e.Max)
	}
	return nil
}

func validatePolicy(p models.PolicyDetails) error {
	if p.RoomRentLimit.IsNegative() || p.ICULimit.IsNegative() {
		return fmt.Errorf("negative daily limit")
	}
	if p.SumInsured.IsNegative() {
		return fmt.Errorf("negative sum insured")
	}
	if p.CopayPercentage.IsNegative() || p.CopayPercentage.GreaterThan(hundred) {
		return fmt.Errorf("copay_percentage must be between 0 and 100, got %s", p.CopayPercentage)
	}
	return nil
}
