// Package catalog is the read-only view of companies, employees and services
// owned by the company-management workflows.
package catalog

import (
	"context"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

type Reader interface {
	GetCompany(ctx context.Context, id string) (model.Company, error)
	GetEmployee(ctx context.Context, id string) (model.Employee, error)
	// GetServices returns services in the order of ids; an unknown id is a *model.NotFoundError.
	GetServices(ctx context.Context, ids []string) ([]model.Service, error)
	ListServices(ctx context.Context, companyID string) ([]model.Service, error)
}

// ShortestActive returns the smallest duration among active services, or 0 when there are none.
func ShortestActive(services []model.Service) int {
	min := 0
	for _, s := range services {
		if !s.Active || s.DurationMinutes <= 0 {
			continue
		}
		if min == 0 || s.DurationMinutes < min {
			min = s.DurationMinutes
		}
	}
	return min
}
