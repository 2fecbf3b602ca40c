package goRefresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goRefresh/internal"
	"github.com/MrEthical07/goRefresh/refresh"
)

// CreateRefreshToken mints and persists a refresh token. An empty FamilyID
// starts a new family; hash collisions regenerate the secret up to the
// configured attempt budget.
func (e *Engine) CreateRefreshToken(ctx context.Context, in CreateRefreshInput) (*RefreshIssue, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: empty user ID", ErrInvalidArgument)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	ttl := e.clampRefreshTTL(in.TTL)
	familyID := in.FamilyID
	if familyID == "" {
		familyID = uuid.NewString()
	}
	device := deviceFromContext(ctx, in.Device)

	for attempt := 0; attempt < e.config.issueAttempts(); attempt++ {
		raw, err := e.secrets()
		if err != nil {
			return nil, fmt.Errorf("%w: secret generation: %v", ErrInternal, err)
		}
		secret := internal.TokenSecret(raw)
		id := uuid.New()
		hash := internal.HashRefreshToken(e.config.Refresh.HashSecret, id, secret)

		rec := refresh.Record{
			ID:          id.String(),
			TokenHash:   hash,
			UserID:      in.UserID,
			FamilyID:    familyID,
			IssuedAt:    now,
			ExpiresAt:   now.Add(ttl),
			IPAddress:   device.IPAddress,
			UserAgent:   device.UserAgent,
			Fingerprint: device.Fingerprint,
		}

		err = e.store.Insert(ctx, rec)
		if errors.Is(err, refresh.ErrHashExists) {
			e.metricInc(MetricIssuanceRetry)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}

		e.metricInc(MetricTokenIssued)
		e.emitAudit(ctx, AuditEvent{
			Timestamp: now,
			EventType: AuditTokenIssued,
			UserID:    in.UserID,
			FamilyID:  familyID,
			TokenID:   rec.ID,
			IP:        device.IPAddress,
			Success:   true,
		})
		return &RefreshIssue{
			Token:     internal.EncodeRefreshToken(id, secret),
			TokenID:   rec.ID,
			FamilyID:  familyID,
			ExpiresAt: rec.ExpiresAt,
		}, nil
	}

	e.metricInc(MetricIssuanceFailed)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: now,
		EventType: AuditTokenIssuanceFailed,
		UserID:    in.UserID,
		FamilyID:  familyID,
		IP:        device.IPAddress,
		Success:   false,
		Error:     "hash collision retry budget exhausted",
	})
	return nil, ErrTokenIssuanceFailed
}

// RotateRefreshToken consumes the presented token and returns its successor.
// A presented token that maps to a revoked or expired record is treated as
// reuse: the whole family is revoked and the caller gets the same uniform
// error as for an unknown token.
func (e *Engine) RotateRefreshToken(ctx context.Context, in RotateInput) (*RotateResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	id, secret, err := internal.DecodeRefreshToken(in.Token)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditRefreshInvalid,
			IP:        clientIPFromContext(ctx),
			Success:   false,
			Error:     "malformed token",
		})
		return nil, ErrRefreshInvalidOrReused
	}
	oldHash := internal.HashRefreshToken(e.config.Refresh.HashSecret, id, secret)

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	ttl := e.clampRefreshTTL(in.TTL)
	device := deviceFromContext(ctx, in.Device)

	for attempt := 0; attempt < e.config.issueAttempts(); attempt++ {
		raw, err := e.secrets()
		if err != nil {
			return nil, fmt.Errorf("%w: secret generation: %v", ErrInternal, err)
		}
		newSecret := internal.TokenSecret(raw)
		newID := uuid.New()
		successor := refresh.Record{
			ID:          newID.String(),
			TokenHash:   internal.HashRefreshToken(e.config.Refresh.HashSecret, newID, newSecret),
			IssuedAt:    now,
			ExpiresAt:   now.Add(ttl),
			IPAddress:   device.IPAddress,
			UserAgent:   device.UserAgent,
			Fingerprint: device.Fingerprint,
		}

		old, err := e.store.Consume(ctx, oldHash, successor, now)
		switch {
		case err == nil:
			e.metricInc(MetricRefreshSuccess)
			e.metricInc(MetricTokenIssued)
			e.emitAudit(ctx, AuditEvent{
				Timestamp: now,
				EventType: AuditRefreshSuccess,
				UserID:    old.UserID,
				FamilyID:  old.FamilyID,
				TokenID:   successor.ID,
				IP:        device.IPAddress,
				Success:   true,
			})
			return &RotateResult{
				Token:     internal.EncodeRefreshToken(newID, newSecret),
				TokenID:   successor.ID,
				UserID:    old.UserID,
				FamilyID:  old.FamilyID,
				ExpiresAt: successor.ExpiresAt,
			}, nil

		case errors.Is(err, refresh.ErrHashExists):
			e.metricInc(MetricIssuanceRetry)
			continue

		case errors.Is(err, refresh.ErrTokenDead):
			e.handleReuse(ctx, old, device, now)
			return nil, ErrRefreshInvalidOrReused

		case errors.Is(err, refresh.ErrTokenMissing):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, AuditEvent{
				Timestamp: now,
				EventType: AuditRefreshInvalid,
				IP:        device.IPAddress,
				Success:   false,
				Error:     "unknown token",
			})
			return nil, ErrRefreshInvalidOrReused

		default:
			e.metricInc(MetricRefreshFailure)
			return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
		}
	}

	e.metricInc(MetricIssuanceFailed)
	return nil, ErrTokenIssuanceFailed
}

// handleReuse applies the family kill: a dead token was presented, so every
// descendant it could have is revoked.
func (e *Engine) handleReuse(ctx context.Context, dead *refresh.Record, device DeviceMetadata, now time.Time) {
	e.metricInc(MetricRefreshReuseDetected)
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: now,
		EventType: AuditRefreshReuse,
		UserID:    dead.UserID,
		FamilyID:  dead.FamilyID,
		TokenID:   dead.ID,
		IP:        device.IPAddress,
		Success:   false,
		Error:     "revoked or expired token presented",
	})

	count, err := e.store.Revoke(ctx, refresh.Selector{FamilyID: dead.FamilyID}, now)
	if err != nil {
		e.logger.Error("family revocation after reuse failed",
			"family_id", dead.FamilyID, "user_id", dead.UserID, "error", err)
		return
	}

	e.metricInc(MetricFamilyRevoked)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: now,
		EventType: AuditFamilyRevoked,
		UserID:    dead.UserID,
		FamilyID:  dead.FamilyID,
		IP:        device.IPAddress,
		Success:   true,
		Metadata:  map[string]string{"revoked_count": fmt.Sprintf("%d", count)},
	})
}

// RevokeRefreshTokens revokes by token ID, family, or user. Exactly one
// selector field must be set. Returns how many records changed state;
// revoking an already dead set is not an error.
func (e *Engine) RevokeRefreshTokens(ctx context.Context, sel RevokeSelector) (int, error) {
	if err := e.checkReady(); err != nil {
		return 0, err
	}
	if !oneSelectorSet(sel) {
		return 0, fmt.Errorf("%w: exactly one selector field must be set", ErrInvalidArgument)
	}

	now := time.Now()
	count, err := e.store.Revoke(ctx, refresh.Selector{
		TokenID:  sel.TokenID,
		FamilyID: sel.FamilyID,
		UserID:   sel.UserID,
	}, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if count > 0 && sel.TokenID == "" {
		e.metricInc(MetricFamilyRevoked)
		e.emitAudit(ctx, AuditEvent{
			Timestamp: now,
			EventType: AuditFamilyRevoked,
			UserID:    sel.UserID,
			FamilyID:  sel.FamilyID,
			IP:        clientIPFromContext(ctx),
			Success:   true,
			Metadata:  map[string]string{"revoked_count": fmt.Sprintf("%d", count)},
		})
	}
	return count, nil
}

// GetRefreshByID returns the introspection view of one refresh token record.
// The boolean reports whether the record exists.
func (e *Engine) GetRefreshByID(ctx context.Context, tokenID string) (*RefreshTokenInfo, bool, error) {
	if err := e.checkReady(); err != nil {
		return nil, false, err
	}
	if tokenID == "" {
		return nil, false, fmt.Errorf("%w: empty token ID", ErrInvalidArgument)
	}

	rec, err := e.store.GetByID(ctx, tokenID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if rec == nil {
		return nil, false, nil
	}

	return &RefreshTokenInfo{
		TokenID:     rec.ID,
		UserID:      rec.UserID,
		FamilyID:    rec.FamilyID,
		IssuedAt:    rec.IssuedAt,
		ExpiresAt:   rec.ExpiresAt,
		LastUsedAt:  rec.LastUsedAt,
		Revoked:     rec.Revoked,
		ReplacedBy:  rec.ReplacedBy,
		IPAddress:   rec.IPAddress,
		UserAgent:   rec.UserAgent,
		Fingerprint: rec.Fingerprint,
	}, true, nil
}

// PurgeExpiredTokens removes records past their retention window on stores
// that support explicit purging. Stores with native expiry return (0, nil).
func (e *Engine) PurgeExpiredTokens(ctx context.Context) (int, error) {
	if err := e.checkReady(); err != nil {
		return 0, err
	}
	purger, ok := e.store.(interface {
		PurgeExpired(ctx context.Context, now time.Time) (int, error)
	})
	if !ok {
		return 0, nil
	}
	count, err := purger.PurgeExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return count, nil
}

func (e *Engine) clampRefreshTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return e.config.Refresh.TTL
	}
	if ttl > e.config.Refresh.MaxTTL {
		return e.config.Refresh.MaxTTL
	}
	return ttl
}

func oneSelectorSet(sel RevokeSelector) bool {
	n := 0
	if sel.TokenID != "" {
		n++
	}
	if sel.FamilyID != "" {
		n++
	}
	if sel.UserID != "" {
		n++
	}
	return n == 1
}
