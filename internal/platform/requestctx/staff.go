package requestctx

import "context"

// staffIDContextKey is the context key for the authenticated staff identity.
type staffIDContextKey struct{}

// serviceCallContextKey marks requests authenticated with the shared
// service token instead of a staff session.
type serviceCallContextKey struct{}

// WithStaffID stores a staff identifier in context.
func WithStaffID(ctx context.Context, staffID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, staffIDContextKey{}, staffID)
}

// StaffIDFromContext returns the staff identifier stored in context.
func StaffIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(staffIDContextKey{}).(string)
	return value
}

// staffRoleContextKey is the context key for the authenticated staff role.
type staffRoleContextKey struct{}

// WithStaffRole stores the staff role text form in context.
func WithStaffRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, staffRoleContextKey{}, role)
}

// StaffRoleFromContext returns the staff role stored in context.
func StaffRoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(staffRoleContextKey{}).(string)
	return value
}

// WithServiceCall marks the context as authenticated via service token.
func WithServiceCall(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, serviceCallContextKey{}, true)
}

// IsServiceCall reports whether the context carries service-token auth.
func IsServiceCall(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	value, _ := ctx.Value(serviceCallContextKey{}).(bool)
	return value
}
