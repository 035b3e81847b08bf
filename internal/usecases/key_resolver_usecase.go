package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/domain/repositories"
	"inferxgate.backend/pkg/crypto"
	"inferxgate.backend/pkg/logger"
	"inferxgate.backend/pkg/redis"
)

const (
	authCachePrefix    = "vk_auth:"
	authNegCachePrefix = "vk_auth_neg:"
	authCacheTTL       = 5 * time.Minute
	authNegCacheTTL    = time.Minute
)

// KeyResolver authenticates bearer keys against stored virtual keys.
// Verified keys are cached in Redis so the bcrypt comparison runs once
// per cache window, not once per request.
type KeyResolver struct {
	keyRepo repositories.VirtualKeyRepository
}

// NewKeyResolver creates a key resolver
func NewKeyResolver(keyRepo repositories.VirtualKeyRepository) *KeyResolver {
	return &KeyResolver{keyRepo: keyRepo}
}

// Resolve authenticates a bearer key and returns the matching virtual key.
// Lookup goes cache → indexed DB lookup → legacy full scan. The scan path
// backfills the lookup hash so the same key never scans twice.
func (r *KeyResolver) Resolve(ctx context.Context, bearer string) (*entities.VirtualKey, error) {
	if err := crypto.ValidateKeyFormat(bearer); err != nil {
		crypto.VerifyDummy(bearer)
		return nil, domainerrors.InvalidAPIKey()
	}

	lookupHash := crypto.LookupHash(bearer)

	if r.negativeCached(ctx, lookupHash) {
		crypto.VerifyDummy(bearer)
		return nil, domainerrors.InvalidAPIKey()
	}

	if key := r.cachedKey(ctx, lookupHash); key != nil {
		return r.checkStatus(key)
	}

	key, err := r.keyRepo.FindByLookupHash(ctx, lookupHash)
	if err == nil {
		if !crypto.VerifyKey(bearer, key.KeyHash) {
			r.cacheNegative(ctx, lookupHash)
			return nil, domainerrors.InvalidAPIKey()
		}
		r.cacheKey(ctx, lookupHash, key)
		r.touchLastUsed(key.ID)
		return r.checkStatus(key)
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.InternalError(err)
	}

	// Legacy keys predate the lookup hash, so identification falls back to
	// comparing bcrypt against every unindexed key.
	key, err = r.resolveLegacy(ctx, bearer, lookupHash)
	if err != nil {
		return nil, err
	}
	return r.checkStatus(key)
}

// Refresh replaces the cached record for a key, bounding budget staleness
// to the accounting write rather than the cache TTL
func (r *KeyResolver) Refresh(ctx context.Context, key *entities.VirtualKey) {
	if key.KeyLookupHash == nil {
		return
	}
	r.cacheKey(ctx, *key.KeyLookupHash, key)
}

// Invalidate drops the cached record, forcing the next request to hit the DB
func (r *KeyResolver) Invalidate(ctx context.Context, key *entities.VirtualKey) {
	if key.KeyLookupHash == nil || redis.GetClient() == nil {
		return
	}
	if err := redis.Del(ctx, authCachePrefix+*key.KeyLookupHash); err != nil {
		logger.Warn(ctx, "auth cache invalidation failed", zap.Error(err))
	}
}

func (r *KeyResolver) resolveLegacy(ctx context.Context, bearer, lookupHash string) (*entities.VirtualKey, error) {
	keys, err := r.keyRepo.FindAll(ctx)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}

	for _, key := range keys {
		if key.KeyLookupHash != nil {
			continue
		}
		if crypto.VerifyKey(bearer, key.KeyHash) {
			if err := r.keyRepo.BackfillLookupHash(ctx, key.ID, lookupHash); err != nil {
				logger.Warn(ctx, "lookup hash backfill failed", zap.String("key_id", key.ID.String()), zap.Error(err))
			} else {
				key.KeyLookupHash = &lookupHash
			}
			r.cacheKey(ctx, lookupHash, key)
			r.touchLastUsed(key.ID)
			return key, nil
		}
	}

	crypto.VerifyDummy(bearer)
	r.cacheNegative(ctx, lookupHash)
	return nil, domainerrors.InvalidAPIKey()
}

// checkStatus rejects blocked and expired keys after identification
func (r *KeyResolver) checkStatus(key *entities.VirtualKey) (*entities.VirtualKey, error) {
	if key.Blocked {
		return nil, domainerrors.KeyBlocked()
	}
	if key.IsExpired() {
		return nil, domainerrors.KeyExpired()
	}
	return key, nil
}

// authCacheEntry round-trips the hash fields the entity hides from its JSON
// form. Without them a cached key could not be refreshed or invalidated.
type authCacheEntry struct {
	Key        entities.VirtualKey `json:"key"`
	KeyHash    string              `json:"keyHash"`
	LookupHash string              `json:"lookupHash"`
}

func (r *KeyResolver) cachedKey(ctx context.Context, lookupHash string) *entities.VirtualKey {
	if redis.GetClient() == nil {
		return nil
	}
	raw, err := redis.Get(ctx, authCachePrefix+lookupHash)
	if err != nil {
		if err != goredis.Nil {
			logger.Warn(ctx, "auth cache read failed", zap.Error(err))
		}
		return nil
	}
	var entry authCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil
	}
	key := entry.Key
	key.KeyHash = entry.KeyHash
	key.KeyLookupHash = &entry.LookupHash
	return &key
}

func (r *KeyResolver) cacheKey(ctx context.Context, lookupHash string, key *entities.VirtualKey) {
	if redis.GetClient() == nil {
		return
	}
	raw, err := json.Marshal(&authCacheEntry{
		Key:        *key,
		KeyHash:    key.KeyHash,
		LookupHash: lookupHash,
	})
	if err != nil {
		return
	}
	if err := redis.Set(ctx, authCachePrefix+lookupHash, raw, authCacheTTL); err != nil {
		logger.Warn(ctx, "auth cache write failed", zap.Error(err))
	}
}

func (r *KeyResolver) negativeCached(ctx context.Context, lookupHash string) bool {
	if redis.GetClient() == nil {
		return false
	}
	_, err := redis.Get(ctx, authNegCachePrefix+lookupHash)
	return err == nil
}

func (r *KeyResolver) cacheNegative(ctx context.Context, lookupHash string) {
	if redis.GetClient() == nil {
		return
	}
	if err := redis.Set(ctx, authNegCachePrefix+lookupHash, "1", authNegCacheTTL); err != nil {
		logger.Warn(ctx, "auth negative cache write failed", zap.Error(err))
	}
}

var touchLastUsedAsync = true

// touchLastUsed best-effort stamps last_used_at off the request path
func (r *KeyResolver) touchLastUsed(id uuid.UUID) {
	update := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.keyRepo.UpdateLastUsed(ctx, id); err != nil {
			logger.Warn(ctx, "last_used_at update failed", zap.String("key_id", id.String()), zap.Error(err))
		}
	}
	if touchLastUsedAsync {
		go update()
		return
	}
	update()
}
