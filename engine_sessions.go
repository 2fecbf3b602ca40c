package goRefresh

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/goRefresh/refresh"
)

// ListUserSessions derives session summaries from the user's refresh token
// records, one summary per family, most recently used first. A session is
// active while its family still holds a live token.
func (e *Engine) ListUserSessions(ctx context.Context, userID string, opts ListSessionsOptions) ([]Session, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user ID", ErrInvalidArgument)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	records, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	sessions := summarizeSessions(records, now)
	if !opts.IncludeRevoked {
		active := sessions[:0]
		for _, s := range sessions {
			if s.Active {
				active = append(active, s)
			}
		}
		sessions = active
	}

	limit := e.clampSessionLimit(opts.Limit)
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}

	e.metricInc(MetricSessionsListed)
	return sessions, nil
}

// summarizeSessions folds token records into per-family summaries. The
// summary's device fields come from the most recently issued token, which is
// the device that last touched the session.
func summarizeSessions(records []refresh.Record, now time.Time) []Session {
	byFamily := make(map[string]*Session)
	newest := make(map[string]time.Time)

	for _, rec := range records {
		s, ok := byFamily[rec.FamilyID]
		if !ok {
			s = &Session{
				FamilyID:  rec.FamilyID,
				UserID:    rec.UserID,
				CreatedAt: rec.IssuedAt,
				ExpiresAt: rec.ExpiresAt,
			}
			byFamily[rec.FamilyID] = s
		}

		s.TokenCount++
		if rec.IssuedAt.Before(s.CreatedAt) {
			s.CreatedAt = rec.IssuedAt
		}
		if rec.ExpiresAt.After(s.ExpiresAt) {
			s.ExpiresAt = rec.ExpiresAt
		}

		used := rec.IssuedAt
		if rec.LastUsedAt.After(used) {
			used = rec.LastUsedAt
		}
		if used.After(s.LastUsedAt) {
			s.LastUsedAt = used
		}

		if rec.Live(now) {
			s.Active = true
		}

		if rec.IssuedAt.After(newest[rec.FamilyID]) || s.TokenCount == 1 {
			newest[rec.FamilyID] = rec.IssuedAt
			s.IPAddress = rec.IPAddress
			s.UserAgent = rec.UserAgent
		}
	}

	sessions := make([]Session, 0, len(byFamily))
	for _, s := range byFamily {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].LastUsedAt.Equal(sessions[j].LastUsedAt) {
			return sessions[i].LastUsedAt.After(sessions[j].LastUsedAt)
		}
		return sessions[i].FamilyID < sessions[j].FamilyID
	})
	return sessions
}

func (e *Engine) clampSessionLimit(limit int) int {
	if limit <= 0 {
		return e.config.Sessions.DefaultPageSize
	}
	if limit > e.config.Sessions.MaxPageSize {
		return e.config.Sessions.MaxPageSize
	}
	return limit
}
