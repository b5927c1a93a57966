package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/md-rashed-zaman/agendafacil/libs/lock"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

// Memory keeps appointments in process. A keyed lock serializes Reserve per
// (company, employee, date); the map itself is guarded by mu.
type Memory struct {
	keys *lock.Keyed

	mu    sync.RWMutex
	byID  map[string]model.Appointment
	byKey map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		keys:  lock.NewKeyed(),
		byID:  map[string]model.Appointment{},
		byKey: map[string][]string{},
	}
}

func (m *Memory) Reserve(_ context.Context, appt model.Appointment, check CheckFunc) error {
	key := appt.Key()
	unlock := m.keys.Lock(key)
	defer unlock()

	m.mu.RLock()
	live := m.liveLocked(key)
	m.mu.RUnlock()

	if check != nil {
		if err := check(live); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byID[appt.ID]; dup {
		return &model.ConflictError{AppointmentID: appt.ID, Reason: "appointment id already exists"}
	}
	m.byID[appt.ID] = appt.Clone()
	m.byKey[key] = append(m.byKey[key], appt.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok {
		return model.Appointment{}, model.NotFound("appointment", id)
	}
	return a.Clone(), nil
}

// Update holds the appointment's key lock so a concurrent Reserve on the same
// day sees either the old or the new status, never a torn write.
func (m *Memory) Update(_ context.Context, id string, fn func(*model.Appointment) error) (model.Appointment, error) {
	m.mu.RLock()
	current, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return model.Appointment{}, model.NotFound("appointment", id)
	}

	unlock := m.keys.Lock(current.Key())
	defer unlock()

	m.mu.RLock()
	working := m.byID[id].Clone()
	m.mu.RUnlock()
	if err := fn(&working); err != nil {
		return model.Appointment{}, err
	}

	m.mu.Lock()
	m.byID[id] = working.Clone()
	m.mu.Unlock()
	return working, nil
}

func (m *Memory) ListDay(_ context.Context, companyID, employeeID string, d model.Date) ([]model.Appointment, error) {
	key := model.SlotKey(companyID, employeeID, d)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Appointment, 0, len(m.byKey[key]))
	for _, id := range m.byKey[key] {
		out = append(out, m.byID[id].Clone())
	}
	sortByStart(out)
	return out, nil
}

func (m *Memory) ListByStatus(_ context.Context, status model.Status, from, to model.Date) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Appointment
	for _, a := range m.byID {
		if a.Status == status && !a.Date.Before(from) && !a.Date.After(to) {
			out = append(out, a.Clone())
		}
	}
	sortByStart(out)
	return out, nil
}

func (m *Memory) liveLocked(key string) []model.Appointment {
	var out []model.Appointment
	for _, id := range m.byKey[key] {
		if a := m.byID[id]; a.Status.Occupies() {
			out = append(out, a.Clone())
		}
	}
	return out
}

func sortByStart(as []model.Appointment) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.Before(as[j].Date)
		}
		if as[i].Start != as[j].Start {
			return as[i].Start < as[j].Start
		}
		return as[i].ID < as[j].ID
	})
}
