package usecases

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/infrastructure/metrics"
	"inferxgate.backend/pkg/logger"
	"inferxgate.backend/pkg/redis"
)

const (
	rateLimitKeyFormat = "ratelimit:%s:%s"

	limitTypeRequests = "requests"
	limitTypeTokens   = "tokens"

	// token estimate applied when a request carries no max_tokens
	defaultTokenEstimate = 1024
)

// Admission carries the outcome of the pre-flight checks, including the
// remaining capacity surfaced as response headers
type Admission struct {
	RequestsRemaining *int
	TokensRemaining   *int
	ResetAt           int64
	RetryAfter        int64
}

// AdmissionGuard runs the ordered pre-flight checks for a request:
// model allow-list, budget, then the sliding rate windows.
type AdmissionGuard struct {
	window time.Duration
}

// NewAdmissionGuard creates an admission guard with the given window size
func NewAdmissionGuard(window time.Duration) *AdmissionGuard {
	if window <= 0 {
		window = time.Minute
	}
	return &AdmissionGuard{window: window}
}

// Admit checks whether a request may proceed and reserves its window slots.
// maxTokens sizes the token reservation; zero applies the default estimate.
func (g *AdmissionGuard) Admit(ctx context.Context, key *entities.VirtualKey, model string, maxTokens int) (*Admission, error) {
	if !key.CanAccessModel(model) {
		return nil, domainerrors.ModelNotAllowed(model)
	}

	if key.IsOverBudget() {
		return nil, domainerrors.BudgetExceeded()
	}

	adm := &Admission{ResetAt: time.Now().Add(g.window).Unix()}

	if redis.GetClient() == nil {
		return adm, nil
	}

	if key.RateLimitRPM != nil {
		remaining, ok, err := g.reserve(ctx, key.ID, limitTypeRequests, *key.RateLimitRPM, 1)
		if err != nil {
			// the limiter degrades open on Redis failure
			logger.Warn(ctx, "rate limiter unavailable, admitting", zap.Error(err))
			return adm, nil
		}
		adm.RequestsRemaining = &remaining
		if !ok {
			metrics.RecordRateLimitExceeded(key.ID.String(), limitTypeRequests)
			return nil, g.reject(adm)
		}
	}

	if key.RateLimitTPM != nil {
		estimate := maxTokens
		if estimate <= 0 {
			estimate = defaultTokenEstimate
		}
		remaining, ok, err := g.reserve(ctx, key.ID, limitTypeTokens, *key.RateLimitTPM, estimate)
		if err != nil {
			logger.Warn(ctx, "rate limiter unavailable, admitting", zap.Error(err))
			return adm, nil
		}
		adm.TokensRemaining = &remaining
		if !ok {
			if key.RateLimitRPM != nil {
				// release the request slot taken above
				g.releaseLast(ctx, key.ID, limitTypeRequests)
			}
			metrics.RecordRateLimitExceeded(key.ID.String(), limitTypeTokens)
			return nil, g.reject(adm)
		}
	}

	return adm, nil
}

// RecordTokens reserves actual token usage discovered after completion,
// truing the window up beyond the pre-flight estimate
func (g *AdmissionGuard) RecordTokens(ctx context.Context, key *entities.VirtualKey, tokens int) {
	if redis.GetClient() == nil || key.RateLimitTPM == nil || tokens <= 0 {
		return
	}
	client := redis.GetClient()
	redisKey := fmt.Sprintf(rateLimitKeyFormat, key.ID, limitTypeTokens)
	now := time.Now()
	member := fmt.Sprintf("%d:%s:%d", now.UnixMicro(), uuid.NewString(), tokens)

	pipe := client.Pipeline()
	pipe.ZAdd(ctx, redisKey, goredis.Z{Score: float64(now.UnixMicro()), Member: member})
	pipe.Expire(ctx, redisKey, g.window+10*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn(ctx, "token window record failed", zap.Error(err))
	}
}

func (g *AdmissionGuard) reject(adm *Admission) error {
	adm.RetryAfter = adm.ResetAt - time.Now().Unix()
	if adm.RetryAfter < 1 {
		adm.RetryAfter = 1
	}
	err := domainerrors.RateLimitExceeded("rate limit exceeded, retry later")
	return &AdmissionError{AppError: err, Admission: adm}
}

// AdmissionError joins the rate limit error with the window state so the
// handler can attach Retry-After and X-RateLimit headers
type AdmissionError struct {
	*domainerrors.AppError
	Admission *Admission
}

func (e *AdmissionError) Unwrap() error {
	return e.AppError
}

// reserve adds a weighted member to the sliding window, then checks the
// window sum. On overflow the member is removed again, so concurrent
// callers are admitted exactly up to the limit.
func (g *AdmissionGuard) reserve(ctx context.Context, keyID uuid.UUID, limitType string, limit, weight int) (remaining int, ok bool, err error) {
	client := redis.GetClient()
	redisKey := fmt.Sprintf(rateLimitKeyFormat, keyID, limitType)

	now := time.Now()
	windowStart := now.Add(-g.window)
	member := fmt.Sprintf("%d:%s:%d", now.UnixMicro(), uuid.NewString(), weight)

	pipe := client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart.UnixMicro(), 10))
	pipe.ZAdd(ctx, redisKey, goredis.Z{Score: float64(now.UnixMicro()), Member: member})
	rangeCmd := pipe.ZRangeByScore(ctx, redisKey, &goredis.ZRangeBy{
		Min: strconv.FormatInt(windowStart.UnixMicro(), 10),
		Max: "+inf",
	})
	pipe.Expire(ctx, redisKey, g.window+10*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, err
	}

	total := 0
	for _, m := range rangeCmd.Val() {
		total += memberWeight(m)
	}

	if total > limit {
		if err := client.ZRem(ctx, redisKey, member).Err(); err != nil {
			logger.Warn(ctx, "rate limiter slot release failed", zap.Error(err))
		}
		remaining = limit - (total - weight)
		if remaining < 0 {
			remaining = 0
		}
		return remaining, false, nil
	}

	remaining = limit - total
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true, nil
}

// releaseLast drops the newest member of a window, undoing a reservation
// made earlier in the same admission
func (g *AdmissionGuard) releaseLast(ctx context.Context, keyID uuid.UUID, limitType string) {
	client := redis.GetClient()
	redisKey := fmt.Sprintf(rateLimitKeyFormat, keyID, limitType)
	if err := client.ZRemRangeByRank(ctx, redisKey, -1, -1).Err(); err != nil {
		logger.Warn(ctx, "rate limiter slot release failed", zap.Error(err))
	}
}

// memberWeight parses the weight suffix of a window member
func memberWeight(member string) int {
	idx := strings.LastIndexByte(member, ':')
	if idx < 0 {
		return 1
	}
	w, err := strconv.Atoi(member[idx+1:])
	if err != nil || w < 1 {
		return 1
	}
	return w
}
