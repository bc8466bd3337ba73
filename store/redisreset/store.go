// Package redisreset keeps password reset tokens in Redis.
//
// Tokens are never stored in clear text: the record key is derived from the
// SHA-256 of the token value. A secondary key maps the record id onto that
// digest so MarkResetTokenUsed can address a token by id. Records are kept
// until Retention elapses past their expiry; a zero Retention keeps them
// indefinitely.
package redisreset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	recordVersionV1 = 1
	maxRetries      = 4
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("reset redis unavailable")

var _ store.ResetTokenStore = (*Store)(nil)

// Config tunes key layout and record retention.
type Config struct {
	Prefix    string
	Retention time.Duration
}

// Store is a Redis-backed store.ResetTokenStore.
type Store struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

type record struct {
	ID        string
	AccountID string
	ExpiresAt int64
	CreatedAt int64
	Used      bool
}

// New returns a Store using client.
func New(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "authcore:reset"
	}
	return &Store{
		redis:  client,
		config: cfg,
		now:    time.Now,
	}
}

func (s *Store) tokenKey(digest string) string {
	return s.config.Prefix + ":tok:" + digest
}

func (s *Store) idKey(id string) string {
	return s.config.Prefix + ":id:" + id
}

func (s *Store) ttl(expiresAt time.Time) time.Duration {
	if s.config.Retention <= 0 {
		return 0
	}
	ttl := time.Until(expiresAt) + s.config.Retention
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

func (s *Store) CreateResetToken(ctx context.Context, accountID, token string, expiresAt time.Time) (store.ResetToken, error) {
	rec := &record{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ExpiresAt: expiresAt.UTC().UnixMilli(),
		CreatedAt: s.now().UTC().UnixMilli(),
	}
	encoded, err := encodeRecord(rec)
	if err != nil {
		return store.ResetToken{}, err
	}

	digest := digestToken(token)
	ttl := s.ttl(expiresAt)

	created, err := s.redis.SetNX(ctx, s.tokenKey(digest), encoded, ttl).Result()
	if err != nil {
		return store.ResetToken{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !created {
		return store.ResetToken{}, &store.ConflictError{Field: "token"}
	}
	if err := s.redis.Set(ctx, s.idKey(rec.ID), digest, ttl).Err(); err != nil {
		return store.ResetToken{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return rec.toToken(token), nil
}

func (s *Store) ResetTokenByValue(ctx context.Context, token string) (store.ResetToken, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(digestToken(token))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.ResetToken{}, store.ErrNotFound
		}
		return store.ResetToken{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return store.ResetToken{}, err
	}
	return rec.toToken(token), nil
}

func (s *Store) MarkResetTokenUsed(ctx context.Context, id string) error {
	digest, err := s.redis.Get(ctx, s.idKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	key := s.tokenKey(digest)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			rec, err := decodeRecord(data)
			if err != nil {
				return err
			}
			if rec.Used || rec.ID != id {
				return store.ErrNotFound
			}
			rec.Used = true
			updated, err := encodeRecord(rec)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, store.ErrNotFound):
				return store.ErrNotFound
			default:
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		return nil
	}

	// Every retry lost the race to a concurrent writer, which can only have
	// marked the token used.
	return store.ErrNotFound
}

func (r *record) toToken(token string) store.ResetToken {
	return store.ResetToken{
		ID:        r.ID,
		Token:     token,
		AccountID: r.AccountID,
		ExpiresAt: time.UnixMilli(r.ExpiresAt).UTC(),
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		Used:      r.Used,
	}
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func encodeRecord(r *record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	if r.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	for _, s := range []string{r.ID, r.AccountID} {
		if len(s) > 65535 {
			return nil, errors.New("reset record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}
	used, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	r := &record{Used: used == 1}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}

	fields := []*string{&r.ID, &r.AccountID}
	for _, f := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return nil, err
		}
		*f = string(b)
	}

	return r, nil
}
