package auth

import (
	"errors"
	"net/http"
	"strings"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

const (
	headerUserID = "X-User-ID"
	headerRoles  = "X-Role"
)

// DevAuthProvider trusts identity headers and falls back to configured
// defaults. It is only wired in development mode.
type DevAuthProvider struct {
	defaultUserID string
	defaultRoles  []string
	bearer        ports.AuthProvider
}

func NewDevAuthProvider(userID, roles string) *DevAuthProvider {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "dev-user"
	}
	defaultRoles := parseRoles(roles)
	if len(defaultRoles) == 0 {
		defaultRoles = []string{domain.RoleAccountant}
	}

	return &DevAuthProvider{
		defaultUserID: userID,
		defaultRoles:  defaultRoles,
	}
}

// WithBearer makes requests carrying an Authorization header authenticate
// through bearer instead of the identity headers.
func (p *DevAuthProvider) WithBearer(bearer ports.AuthProvider) *DevAuthProvider {
	p.bearer = bearer
	return p
}

func (p *DevAuthProvider) FromRequest(r *http.Request) (ports.AuthContext, error) {
	if p == nil {
		return ports.AuthContext{}, errors.New("auth provider is nil")
	}
	if p.bearer != nil && strings.TrimSpace(r.Header.Get(headerAuthorization)) != "" {
		return p.bearer.FromRequest(r)
	}

	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		userID = p.defaultUserID
	}

	roles := parseRoles(r.Header.Get(headerRoles))
	if len(roles) == 0 {
		roles = append([]string{}, p.defaultRoles...)
	}

	return ports.AuthContext{
		UserID: userID,
		Roles:  roles,
	}, nil
}

func parseRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		role := strings.TrimSpace(part)
		if role == "" {
			continue
		}
		roles = append(roles, role)
	}
	return roles
}
