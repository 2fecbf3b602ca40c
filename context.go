package goRefresh

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type fingerprintContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is recorded on
// refresh token records issued during the call and included in audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for issuance
// records and session summaries.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithFingerprint attaches an opaque device fingerprint to ctx.
func WithFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, fingerprintContextKey{}, fingerprint)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}

func fingerprintFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	fp, _ := ctx.Value(fingerprintContextKey{}).(string)
	return fp
}

// deviceFromContext merges explicit metadata with whatever the context
// carries; explicit fields win.
func deviceFromContext(ctx context.Context, explicit DeviceMetadata) DeviceMetadata {
	out := explicit
	if out.IPAddress == "" {
		out.IPAddress = clientIPFromContext(ctx)
	}
	if out.UserAgent == "" {
		out.UserAgent = userAgentFromContext(ctx)
	}
	if out.Fingerprint == "" {
		out.Fingerprint = fingerprintFromContext(ctx)
	}
	return out
}
