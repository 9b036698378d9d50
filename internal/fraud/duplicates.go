package fraud

import (
	"time"

	"github.com/garyjia/medbill-audit/internal/models"
)

// DetectDuplicateTests finds tests ordered more than once within window.
// Every qualifying pair of TEST_ORDERED events is reported, in input order.
func DetectDuplicateTests(events []models.CareEvent, window time.Duration) []models.DuplicateTest {
	orders := make([]models.CareEvent, 0, len(events))
	for _, e := range events {
		if e.Type == models.EventTestOrdered {
			orders = append(orders, e)
		}
	}

	duplicates := make([]models.DuplicateTest, 0)
	for i := 0; i < len(orders); i++ {
		name := orders[i].TestName()
		if name == "" {
			continue
		}
		for j := i + 1; j < len(orders); j++ {
			if orders[j].TestName() != name {
				continue
			}
			gap := orders[j].Timestamp.Sub(orders[i].Timestamp)
			if gap < 0 {
				gap = -gap
			}
			if gap < window {
				duplicates = append(duplicates, models.DuplicateTest{
					Test:        name,
					Timestamps:  []time.Time{orders[i].Timestamp, orders[j].Timestamp},
					DaysBetween: gap.Hours() / 24,
				})
			}
		}
	}

	return duplicates
}
