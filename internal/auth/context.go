package auth

import "context"

type contextKey string

const (
	tenantKey  contextKey = "auth.tenant_id"
	roleKey    contextKey = "auth.role"
	subjectKey contextKey = "auth.subject"
)

// WithIdentity attaches the authenticated caller to the request
// context. Downstream handlers and the audit trail read it back
// rather than reparsing the token.
func WithIdentity(ctx context.Context, tenantID string, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, tenantKey, tenantID)
	ctx = context.WithValue(ctx, roleKey, role)
	return context.WithValue(ctx, subjectKey, subject)
}

// TenantIDFromContext returns the caller's tenant, or "" on an
// unauthenticated context.
func TenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if tenantID, ok := ctx.Value(tenantKey).(string); ok {
		return tenantID
	}
	return ""
}

// RoleFromContext returns the caller's role, or "" when none was set.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(roleKey)
	if role, ok := value.(Role); ok {
		return role
	}
	if raw, ok := value.(string); ok {
		if role, valid := NormalizeRole(raw); valid {
			return role
		}
	}
	return ""
}

// SubjectFromContext returns the token subject, typically a user id.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(subjectKey).(string); ok {
		return subject
	}
	return ""
}
