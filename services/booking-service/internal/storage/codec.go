package storage

import (
	"encoding/json"
	"fmt"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

// The service snapshot is stored as a JSON document; totals live in their own
// columns for querying but are always recomputed from the snapshot on load.

func encodeServices(lines []model.ServiceLine) ([]byte, error) {
	raw, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode service snapshot: %w", err)
	}
	return raw, nil
}

func decodeServices(raw []byte, a *model.Appointment) error {
	var lines []model.ServiceLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return fmt.Errorf("decode service snapshot of %s: %w", a.ID, err)
	}
	a.SetServices(lines)
	return nil
}

func recurrenceColumns(r *model.Recurrence) (freq string, end *model.Date) {
	if r == nil {
		return "", nil
	}
	e := r.EndDate
	return string(r.Frequency), &e
}
