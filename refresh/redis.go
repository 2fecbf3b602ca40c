package refresh

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordKeySegment = ":rt:"
	familyKeySegment = ":fam:"
	userKeySegment   = ":usr:"
	idKeySegment     = ":id:"
)

// Consume status codes returned by consumeScript.
const (
	consumeStatusMissing   = 0
	consumeStatusDead      = 1
	consumeStatusCollision = 2
	consumeStatusRotated   = 3
)

const insertScript = `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1], 'user_id', ARGV[2], 'family_id', ARGV[3],
  'issued_at', ARGV[4], 'expires_at', ARGV[5], 'last_used_at', ARGV[6],
  'revoked', ARGV[7], 'replaced_by', '',
  'ip', ARGV[8], 'ua', ARGV[9], 'fp', ARGV[10])
local ttl = tonumber(ARGV[11])
redis.call('PEXPIRE', KEYS[1], ttl)
redis.call('SET', KEYS[2], ARGV[12], 'PX', ttl)
redis.call('SADD', KEYS[3], ARGV[12])
if redis.call('PTTL', KEYS[3]) < ttl then
  redis.call('PEXPIRE', KEYS[3], ttl)
end
redis.call('SADD', KEYS[4], ARGV[12])
if redis.call('PTTL', KEYS[4]) < ttl then
  redis.call('PEXPIRE', KEYS[4], ttl)
end
return 1
`

var insertLua = redis.NewScript(insertScript)

// consumeScript is the rotation primitive. It revokes the presented record
// and installs the successor in one atomic step, copying user and family
// identity from the consumed record. Status codes:
//
//	{0}           presented hash unknown
//	{1, rec...}   record exists but is revoked or expired
//	{2}           successor hash collision, state untouched
//	{3, rec...}   rotated; rec is the consumed record before mutation
const consumeScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {0}
end
local old = redis.call('HMGET', KEYS[1],
  'id', 'user_id', 'family_id', 'issued_at', 'expires_at', 'last_used_at',
  'revoked', 'replaced_by', 'ip', 'ua', 'fp')
local now = tonumber(ARGV[1])
if old[7] == '1' or tonumber(old[5]) <= now then
  return {1, old[1], old[2], old[3], old[4], old[5], old[6], old[7], old[8], old[9], old[10], old[11]}
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return {2}
end
redis.call('HSET', KEYS[1], 'revoked', '1', 'last_used_at', ARGV[1], 'replaced_by', ARGV[2])
local ttl = tonumber(ARGV[3])
redis.call('HSET', KEYS[2],
  'id', ARGV[2], 'user_id', old[2], 'family_id', old[3],
  'issued_at', ARGV[4], 'expires_at', ARGV[5], 'last_used_at', '0',
  'revoked', '0', 'replaced_by', '',
  'ip', ARGV[6], 'ua', ARGV[7], 'fp', ARGV[8])
redis.call('PEXPIRE', KEYS[2], ttl)
redis.call('SET', KEYS[3], ARGV[9], 'PX', ttl)
local fam = ARGV[10] .. old[3]
redis.call('SADD', fam, ARGV[9])
if redis.call('PTTL', fam) < ttl then
  redis.call('PEXPIRE', fam, ttl)
end
local usr = ARGV[11] .. old[2]
redis.call('SADD', usr, ARGV[9])
if redis.call('PTTL', usr) < ttl then
  redis.call('PEXPIRE', usr, ttl)
end
return {3, old[1], old[2], old[3], old[4], old[5], old[6], old[7], old[8], old[9], old[10], old[11]}
`

var consumeLua = redis.NewScript(consumeScript)

const revokeSetScript = `
local members = redis.call('SMEMBERS', KEYS[1])
local count = 0
for _, h in ipairs(members) do
  local k = ARGV[1] .. h
  if redis.call('EXISTS', k) == 1 and redis.call('HGET', k, 'revoked') ~= '1' then
    redis.call('HSET', k, 'revoked', '1')
    count = count + 1
  end
end
return count
`

var revokeSetLua = redis.NewScript(revokeSetScript)

const revokeOneScript = `
local h = redis.call('GET', KEYS[1])
if not h then
  return 0
end
local k = ARGV[1] .. h
if redis.call('EXISTS', k) == 0 or redis.call('HGET', k, 'revoked') == '1' then
  return 0
end
redis.call('HSET', k, 'revoked', '1')
return 1
`

var revokeOneLua = redis.NewScript(revokeOneScript)

// RedisStore keeps refresh token records as Redis hashes keyed by the hex of
// the token hash, with family, user, and id indexes alongside. Record keys
// outlive their token expiry by the retention window so reuse of a rotated
// token is still recognizable as reuse rather than garbage.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore wraps client. prefix namespaces every key; retention is how
// long dead records stay queryable past expiry.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "grt"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{redis: client, prefix: prefix, retention: retention}
}

func (s *RedisStore) recordKey(hashHex string) string {
	return s.prefix + recordKeySegment + hashHex
}

func (s *RedisStore) familyKey(familyID string) string {
	return s.prefix + familyKeySegment + familyID
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + userKeySegment + userID
}

func (s *RedisStore) idKey(tokenID string) string {
	return s.prefix + idKeySegment + tokenID
}

func (s *RedisStore) recordTTL(expiresAt, now time.Time) int64 {
	ttl := expiresAt.Sub(now) + s.retention
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return ttl.Milliseconds()
}

// Insert stores rec. ErrHashExists signals a hash collision with an existing
// record, live or dead.
func (s *RedisStore) Insert(ctx context.Context, rec Record) error {
	hashHex := hex.EncodeToString(rec.TokenHash[:])
	now := time.Now()
	if !rec.IssuedAt.IsZero() {
		now = rec.IssuedAt
	}

	keys := []string{
		s.recordKey(hashHex),
		s.idKey(rec.ID),
		s.familyKey(rec.FamilyID),
		s.userKey(rec.UserID),
	}
	argv := []interface{}{
		rec.ID,
		rec.UserID,
		rec.FamilyID,
		strconv.FormatInt(rec.IssuedAt.UnixMilli(), 10),
		strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
		formatOptionalTime(rec.LastUsedAt),
		formatBool(rec.Revoked),
		rec.IPAddress,
		rec.UserAgent,
		rec.Fingerprint,
		s.recordTTL(rec.ExpiresAt, now),
		hashHex,
	}

	res, err := insertLua.Run(ctx, s.redis, keys, argv...).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if res == 0 {
		return ErrHashExists
	}
	return nil
}

// Consume atomically rotates the record identified by tokenHash into
// successor. See the Store interface for the contract.
func (s *RedisStore) Consume(ctx context.Context, tokenHash [32]byte, successor Record, now time.Time) (*Record, error) {
	oldHex := hex.EncodeToString(tokenHash[:])
	newHex := hex.EncodeToString(successor.TokenHash[:])

	keys := []string{
		s.recordKey(oldHex),
		s.recordKey(newHex),
		s.idKey(successor.ID),
	}
	argv := []interface{}{
		strconv.FormatInt(now.UnixMilli(), 10),
		successor.ID,
		s.recordTTL(successor.ExpiresAt, now),
		strconv.FormatInt(successor.IssuedAt.UnixMilli(), 10),
		strconv.FormatInt(successor.ExpiresAt.UnixMilli(), 10),
		successor.IPAddress,
		successor.UserAgent,
		successor.Fingerprint,
		newHex,
		s.prefix + familyKeySegment,
		s.prefix + userKeySegment,
	}

	raw, err := consumeLua.Run(ctx, s.redis, keys, argv...).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty consume reply", ErrStoreUnavailable)
	}

	status, ok := raw[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: malformed consume reply", ErrStoreUnavailable)
	}

	switch status {
	case consumeStatusMissing:
		return nil, ErrTokenMissing
	case consumeStatusCollision:
		return nil, ErrHashExists
	case consumeStatusDead, consumeStatusRotated:
		rec, err := recordFromReply(raw[1:], tokenHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if status == consumeStatusDead {
			return rec, ErrTokenDead
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: unknown consume status %d", ErrStoreUnavailable, status)
	}
}

// Revoke marks records matching sel as revoked and returns how many changed
// state. Already revoked records do not count, which makes repeated calls
// idempotent.
func (s *RedisStore) Revoke(ctx context.Context, sel Selector, now time.Time) (int, error) {
	if !sel.valid() {
		return 0, fmt.Errorf("%w: selector must set exactly one field", ErrStoreUnavailable)
	}

	recordPrefix := s.prefix + recordKeySegment

	var (
		count int
		err   error
	)
	switch {
	case sel.TokenID != "":
		count, err = revokeOneLua.Run(ctx, s.redis, []string{s.idKey(sel.TokenID)}, recordPrefix).Int()
	case sel.FamilyID != "":
		count, err = revokeSetLua.Run(ctx, s.redis, []string{s.familyKey(sel.FamilyID)}, recordPrefix).Int()
	default:
		count, err = revokeSetLua.Run(ctx, s.redis, []string{s.userKey(sel.UserID)}, recordPrefix).Int()
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// ListByUser returns every retained record for userID, dead ones included.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	members, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records := make([]Record, 0, len(members))
	for _, hashHex := range members {
		rec, err := s.loadRecord(ctx, hashHex)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

// GetByID resolves a token ID through the id index. Returns (nil, nil) when
// the record is unknown or already past retention.
func (s *RedisStore) GetByID(ctx context.Context, tokenID string) (*Record, error) {
	hashHex, err := s.redis.Get(ctx, s.idKey(tokenID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.loadRecord(ctx, hashHex)
}

// Ping verifies backend connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) loadRecord(ctx context.Context, hashHex string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(hashHex)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		// Index member outlived its record key.
		return nil, nil
	}

	hash, err := hex.DecodeString(hashHex)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("%w: corrupt record key", ErrStoreUnavailable)
	}

	rec := Record{
		ID:          fields["id"],
		UserID:      fields["user_id"],
		FamilyID:    fields["family_id"],
		Revoked:     fields["revoked"] == "1",
		ReplacedBy:  fields["replaced_by"],
		IPAddress:   fields["ip"],
		UserAgent:   fields["ua"],
		Fingerprint: fields["fp"],
	}
	copy(rec.TokenHash[:], hash)

	if rec.IssuedAt, err = parseMillis(fields["issued_at"]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if rec.ExpiresAt, err = parseMillis(fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if rec.LastUsedAt, err = parseMillis(fields["last_used_at"]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &rec, nil
}

func recordFromReply(reply []interface{}, tokenHash [32]byte) (*Record, error) {
	if len(reply) != 11 {
		return nil, fmt.Errorf("consume reply has %d fields", len(reply))
	}

	str := func(i int) string {
		s, _ := reply[i].(string)
		return s
	}

	rec := Record{
		ID:          str(0),
		UserID:      str(1),
		FamilyID:    str(2),
		Revoked:     str(6) == "1",
		ReplacedBy:  str(7),
		IPAddress:   str(8),
		UserAgent:   str(9),
		Fingerprint: str(10),
	}
	rec.TokenHash = tokenHash

	var err error
	if rec.IssuedAt, err = parseMillis(str(3)); err != nil {
		return nil, err
	}
	if rec.ExpiresAt, err = parseMillis(str(4)); err != nil {
		return nil, err
	}
	if rec.LastUsedAt, err = parseMillis(str(5)); err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseMillis(v string) (time.Time, error) {
	if v == "" || v == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q", v)
	}
	return time.UnixMilli(ms), nil
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
