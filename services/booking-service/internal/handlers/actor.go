package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/agendafacil/libs/auth"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

var errUnauthenticated = errors.New("missing or invalid credentials")

// actorFrom reads the caller from a verified HS256 bearer token when a secret is
// configured, else from the headers the gateway forwards.
func (h *Handler) actorFrom(r *http.Request) (model.Actor, error) {
	if h.jwtSecret != "" {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return model.Actor{}, errUnauthenticated
		}
		claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(raw), h.jwtSecret)
		if err != nil {
			return model.Actor{}, errUnauthenticated
		}
		role, err := model.ParseRole(claims.Role)
		if err != nil {
			return model.Actor{}, errUnauthenticated
		}
		return model.Actor{Role: role, ID: claims.Subject, CompanyID: claims.CompanyID}, nil
	}

	id := strings.TrimSpace(r.Header.Get("X-User-Id"))
	role, err := model.ParseRole(r.Header.Get("X-Role"))
	if id == "" || err != nil {
		return model.Actor{}, errUnauthenticated
	}
	return model.Actor{Role: role, ID: id, CompanyID: strings.TrimSpace(r.Header.Get("X-Company-Id"))}, nil
}

// canSee reports whether actor may read appointments of companyID.
func canSee(actor model.Actor, companyID string) bool {
	switch actor.Role {
	case model.RoleCompany, model.RoleEmployee:
		return actor.CompanyID == companyID
	}
	return true
}
