package goRefresh

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goRefresh/internal"
	"github.com/MrEthical07/goRefresh/jwt"
	"github.com/MrEthical07/goRefresh/refresh"
)

// Engine is the session subsystem's entry point: stateless access token
// verification on one side, persisted refresh token rotation on the other.
// Construct it through Builder.Build; the zero value returns
// ErrEngineNotReady from every method. Safe for concurrent use.
type Engine struct {
	config   Config
	jwt      *jwt.Manager
	store    refresh.Store
	metrics  *Metrics
	audit    *auditDispatcher
	logger   *slog.Logger
	secrets  SecretSource
	throttle *rotationThrottle
	ready    bool
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot copies the engine's counters for export.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Ping verifies connectivity to the refresh token store.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// Login issues a fresh token pair for userID, starting a new refresh token
// family. Roles are embedded in the access token claims only.
func (e *Engine) Login(ctx context.Context, userID string, roles []string, device DeviceMetadata) (*TokenPair, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user ID", ErrInvalidArgument)
	}
	ip := deviceFromContext(ctx, device).IPAddress
	if err := e.throttle.Enforce(ctx, throttleUserKey(userID), throttleIPKey(ip)); err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	now := time.Now()
	accessToken, claims, err := e.jwt.Create(userID, roles, 0, now)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: %v", ErrTokenIssuanceFailed, err)
	}

	issue, err := e.CreateRefreshToken(ctx, CreateRefreshInput{
		UserID: userID,
		Device: device,
		Now:    now,
	})
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			Timestamp: now,
			EventType: AuditLogin,
			UserID:    userID,
			IP:        deviceFromContext(ctx, device).IPAddress,
			Success:   false,
			Error:     err.Error(),
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: now,
		EventType: AuditLogin,
		UserID:    userID,
		FamilyID:  issue.FamilyID,
		TokenID:   issue.TokenID,
		IP:        deviceFromContext(ctx, device).IPAddress,
		Success:   true,
	})

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshToken:     issue.Token,
		RefreshExpiresAt: issue.ExpiresAt,
		UserID:           userID,
		FamilyID:         issue.FamilyID,
	}, nil
}

// Refresh rotates the presented refresh token and issues a new access token
// for the recovered identity. The new access token carries no roles; callers
// that embed roles should re-resolve them and use Login-style issuance.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, device DeviceMetadata) (*TokenPair, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	ip := deviceFromContext(ctx, device).IPAddress
	if err := e.throttle.Enforce(ctx, throttleIPKey(ip)); err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	rotated, err := e.RotateRefreshToken(ctx, RotateInput{
		Token:  refreshToken,
		Device: device,
	})
	if err != nil {
		return nil, err
	}

	accessToken, claims, err := e.jwt.Create(rotated.UserID, nil, 0, time.Now())
	if err != nil {
		// The rotation already committed; pull the orphaned successor back
		// so the family does not hold a token nobody received.
		if _, revErr := e.store.Revoke(ctx, refresh.Selector{TokenID: rotated.TokenID}, time.Now()); revErr != nil {
			e.logger.Error("failed to revoke orphaned refresh token",
				"token_id", rotated.TokenID, "error", revErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenIssuanceFailed, err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshToken:     rotated.Token,
		RefreshExpiresAt: rotated.ExpiresAt,
		UserID:           rotated.UserID,
		FamilyID:         rotated.FamilyID,
	}, nil
}

// Logout revokes the whole family of the presented refresh token. The token
// must decode and match its stored record; anything else returns the uniform
// ErrRefreshInvalidOrReused. Logging out an already revoked session is not
// an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.checkReady(); err != nil {
		return err
	}

	id, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrRefreshInvalidOrReused
	}

	rec, err := e.store.GetByID(ctx, id.String())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if rec == nil {
		return ErrRefreshInvalidOrReused
	}

	hash := internal.HashRefreshToken(e.config.Refresh.HashSecret, id, secret)
	if !hmac.Equal(hash[:], rec.TokenHash[:]) {
		return ErrRefreshInvalidOrReused
	}

	now := time.Now()
	if _, err := e.store.Revoke(ctx, refresh.Selector{FamilyID: rec.FamilyID}, now); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricFamilyRevoked)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: now,
		EventType: AuditLogout,
		UserID:    rec.UserID,
		FamilyID:  rec.FamilyID,
		TokenID:   rec.ID,
		IP:        clientIPFromContext(ctx),
		Success:   true,
	})
	return nil
}

// Authenticate verifies an access token without touching the store and
// returns the embedded identity. Errors map onto the package sentinels:
// ErrMissingToken, ErrTokenExpired, ErrTokenVerification, ErrTokenInvalid.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*AuthenticatedPrincipal, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}()

	if accessToken == "" {
		e.metricInc(MetricAuthenticateFailure)
		return nil, ErrMissingToken
	}

	claims, err := e.jwt.Parse(accessToken)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		switch {
		case errors.Is(err, jwtlib.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrMissingSubjectClaim):
			return nil, fmt.Errorf("%w: %v", ErrTokenVerification, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
	}

	e.metricInc(MetricAuthenticateSuccess)
	return &AuthenticatedPrincipal{
		UserID:    claims.UserID,
		Roles:     claims.Roles,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (e *Engine) checkReady() error {
	if e == nil || !e.ready {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.audit.Emit(ctx, event)
}
