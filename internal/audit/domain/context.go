package domain

import "context"

type clientKey struct{}

type client struct {
	ip        string
	userAgent string
}

// WithClient records the caller's address and user agent for audit entries.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{ip: ip, userAgent: userAgent})
}

func ClientFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(clientKey{}).(client); ok {
		return v.ip, v.userAgent
	}
	return "", ""
}
