package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

// Seed is the on-disk shape of a memory catalog (CATALOG_SEED_FILE).
type Seed struct {
	Companies []model.Company  `json:"companies"`
	Employees []model.Employee `json:"employees"`
	Services  []model.Service  `json:"services"`
}

type Memory struct {
	mu        sync.RWMutex
	companies map[string]model.Company
	employees map[string]model.Employee
	services  map[string]model.Service
}

func NewMemory() *Memory {
	return &Memory{
		companies: map[string]model.Company{},
		employees: map[string]model.Employee{},
		services:  map[string]model.Service{},
	}
}

// LoadSeedFile builds a Memory catalog from a JSON seed, validating every record.
func LoadSeedFile(path string) (*Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed %s: %w", path, err)
	}
	m := NewMemory()
	if err := m.Load(seed); err != nil {
		return nil, fmt.Errorf("catalog seed %s: %w", path, err)
	}
	return m, nil
}

func (m *Memory) Load(seed Seed) error {
	for _, c := range seed.Companies {
		if err := m.PutCompany(c); err != nil {
			return err
		}
	}
	for _, s := range seed.Services {
		if err := m.PutService(s); err != nil {
			return err
		}
	}
	for _, e := range seed.Employees {
		if err := m.PutEmployee(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) PutCompany(c model.Company) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("company %s: %w", c.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
	return nil
}

// PutEmployee requires the owning company to be present already.
func (m *Memory) PutEmployee(e model.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[e.CompanyID]
	if !ok {
		return fmt.Errorf("employee %s: %w", e.ID, model.NotFound("company", e.CompanyID))
	}
	if err := e.Validate(c); err != nil {
		return fmt.Errorf("employee %s: %w", e.ID, err)
	}
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) PutService(s model.Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
	return nil
}

func (m *Memory) GetCompany(_ context.Context, id string) (model.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return model.Company{}, model.NotFound("company", id)
	}
	return c, nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (model.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return model.Employee{}, model.NotFound("employee", id)
	}
	return e, nil
}

func (m *Memory) GetServices(_ context.Context, ids []string) ([]model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		s, ok := m.services[id]
		if !ok {
			return nil, model.NotFound("service", id)
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) ListServices(_ context.Context, companyID string) ([]model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Service
	for _, s := range m.services {
		if s.CompanyID == companyID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
