package models

import (
	"encoding/json"
	"time"
)

// Care event types
const (
	EventTestOrdered     = "TEST_ORDERED"
	EventTestResult      = "TEST_RESULT"
	EventDoctorVisit     = "DOCTOR_VISIT"
	EventMedicationGiven = "MEDICATION_GIVEN"
	EventRoomChange      = "ROOM_CHANGE"
	EventICUAdmission    = "ICU_ADMISSION"
	EventICUDischarge    = "ICU_DISCHARGE"
	EventBillItemAdded   = "BILL_ITEM_ADDED"
)

// CareEvent is one entry of a hospital stay timeline
type CareEvent struct {
	Type      string                 `json:"type" validate:"required"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// UnmarshalJSON accepts the same timestamp forms as BillLineItem
func (e *CareEvent) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type      string                 `json:"type"`
		Timestamp string                 `json:"timestamp"`
		Data      map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts, err := ParseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}

	e.Type = aux.Type
	e.Timestamp = ts
	e.Data = aux.Data
	return nil
}

// TestName returns the ordered test name carried in the event data
func (e CareEvent) TestName() string {
	if e.Data == nil {
		return ""
	}
	name, _ := e.Data["test"].(string)
	return name
}

// DuplicateTest reports the same test ordered twice within a short window
type DuplicateTest struct {
	Test        string      `json:"test"`
	Timestamps  []time.Time `json:"timestamps"`
	DaysBetween float64     `json:"daysBetween"`
}

// SecondOpinion is an AI-generated plain-language review of an analysis
type SecondOpinion struct {
	Summary         string    `json:"summary"`
	Recommendations []string  `json:"recommendations"`
	Model           string    `json:"model"`
	GeneratedAt     time.Time `json:"generated_at"`
}
