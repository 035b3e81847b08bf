package usecases

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/pkg/redis"
)

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	redis.SetClient(client)
	t.Cleanup(func() {
		redis.SetClient(nil)
		_ = client.Close()
	})
	return mr
}

func limitedKey(rpm, tpm *int) *entities.VirtualKey {
	return &entities.VirtualKey{
		ID:           uuid.New(),
		Name:         "test-key",
		RateLimitRPM: rpm,
		RateLimitTPM: tpm,
	}
}

func TestAdmit_ModelNotAllowed(t *testing.T) {
	guard := NewAdmissionGuard(time.Minute)
	key := limitedKey(nil, nil)
	key.AllowedModels = []string{"gpt-5-mini"}

	_, err := guard.Admit(context.Background(), key, "claude-sonnet-4-5", 0)

	var appErr *domainerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, domainerrors.CodeModelNotAllowed, appErr.Code)
}

func TestAdmit_BudgetExceeded(t *testing.T) {
	guard := NewAdmissionGuard(time.Minute)
	budget := 10.0
	key := limitedKey(nil, nil)
	key.MaxBudget = &budget
	key.CurrentSpend = 10.0

	_, err := guard.Admit(context.Background(), key, "gpt-5-mini", 0)

	var appErr *domainerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, domainerrors.CodeBudgetExceeded, appErr.Code)
}

func TestAdmit_NoRedisAllows(t *testing.T) {
	redis.SetClient(nil)
	guard := NewAdmissionGuard(time.Minute)
	rpm := 1
	key := limitedKey(&rpm, nil)

	for i := 0; i < 5; i++ {
		adm, err := guard.Admit(context.Background(), key, "gpt-5-mini", 0)
		require.NoError(t, err)
		assert.Nil(t, adm.RequestsRemaining)
	}
}

func TestAdmit_RequestLimit(t *testing.T) {
	setupTestRedis(t)
	guard := NewAdmissionGuard(time.Minute)
	rpm := 2
	key := limitedKey(&rpm, nil)

	adm, err := guard.Admit(context.Background(), key, "gpt-5-mini", 0)
	require.NoError(t, err)
	require.NotNil(t, adm.RequestsRemaining)
	assert.Equal(t, 1, *adm.RequestsRemaining)

	adm, err = guard.Admit(context.Background(), key, "gpt-5-mini", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, *adm.RequestsRemaining)

	_, err = guard.Admit(context.Background(), key, "gpt-5-mini", 0)
	var admErr *AdmissionError
	require.ErrorAs(t, err, &admErr)
	assert.Equal(t, domainerrors.CodeRateLimitExceeded, admErr.Code)
	assert.GreaterOrEqual(t, admErr.Admission.RetryAfter, int64(1))

	var appErr *domainerrors.AppError
	assert.True(t, errors.As(err, &appErr))
}

func TestAdmit_ConcurrentRequestsAdmitExactlyLimit(t *testing.T) {
	setupTestRedis(t)
	guard := NewAdmissionGuard(time.Minute)
	rpm := 3
	key := limitedKey(&rpm, nil)

	const workers = 12
	var admitted, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := guard.Admit(context.Background(), key, "gpt-5-mini", 0)
			if err == nil {
				admitted.Add(1)
				return
			}
			var admErr *AdmissionError
			if errors.As(err, &admErr) {
				rejected.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	// add-then-check with self-removal on reject admits the limit exactly,
	// regardless of interleaving
	assert.Equal(t, int32(rpm), admitted.Load())
	assert.Equal(t, int32(workers-rpm), rejected.Load())
}

func TestAdmit_RejectedRequestReleasesSlot(t *testing.T) {
	setupTestRedis(t)
	guard := NewAdmissionGuard(time.Minute)
	rpm := 1
	key := limitedKey(&rpm, nil)

	_, err := guard.Admit(context.Background(), key, "gpt-5-mini", 0)
	require.NoError(t, err)

	// rejected attempts must not occupy window slots: a full window of
	// rejections still admits the next request once the window slides
	for i := 0; i < 3; i++ {
		_, err = guard.Admit(context.Background(), key, "gpt-5-mini", 0)
		require.Error(t, err)
	}

	client := redis.GetClient()
	count, err := client.ZCard(context.Background(), "ratelimit:"+key.ID.String()+":requests").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAdmit_TokenLimit(t *testing.T) {
	setupTestRedis(t)
	guard := NewAdmissionGuard(time.Minute)
	tpm := 100
	key := limitedKey(nil, &tpm)

	adm, err := guard.Admit(context.Background(), key, "gpt-5-mini", 60)
	require.NoError(t, err)
	require.NotNil(t, adm.TokensRemaining)
	assert.Equal(t, 40, *adm.TokensRemaining)

	_, err = guard.Admit(context.Background(), key, "gpt-5-mini", 60)
	var admErr *AdmissionError
	require.ErrorAs(t, err, &admErr)

	// a smaller request still fits the remaining capacity
	adm, err = guard.Admit(context.Background(), key, "gpt-5-mini", 40)
	require.NoError(t, err)
	assert.Equal(t, 0, *adm.TokensRemaining)
}

func TestAdmit_TokenRejectReleasesRequestSlot(t *testing.T) {
	setupTestRedis(t)
	guard := NewAdmissionGuard(time.Minute)
	rpm := 10
	tpm := 50
	key := limitedKey(&rpm, &tpm)

	_, err := guard.Admit(context.Background(), key, "gpt-5-mini", 50)
	require.NoError(t, err)

	_, err = guard.Admit(context.Background(), key, "gpt-5-mini", 50)
	require.Error(t, err)

	client := redis.GetClient()
	count, err := client.ZCard(context.Background(), "ratelimit:"+key.ID.String()+":requests").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAdmit_DefaultTokenEstimate(t *testing.T) {
	setupTestRedis(t)
	guard := NewAdmissionGuard(time.Minute)
	tpm := 2000
	key := limitedKey(nil, &tpm)

	adm, err := guard.Admit(context.Background(), key, "gpt-5-mini", 0)
	require.NoError(t, err)
	assert.Equal(t, 2000-defaultTokenEstimate, *adm.TokensRemaining)
}

func TestRecordTokens(t *testing.T) {
	setupTestRedis(t)
	guard := NewAdmissionGuard(time.Minute)
	tpm := 100
	key := limitedKey(nil, &tpm)

	guard.RecordTokens(context.Background(), key, 80)

	_, err := guard.Admit(context.Background(), key, "gpt-5-mini", 30)
	var admErr *AdmissionError
	require.ErrorAs(t, err, &admErr)
}

func TestMemberWeight(t *testing.T) {
	assert.Equal(t, 42, memberWeight("1234:abc:42"))
	assert.Equal(t, 1, memberWeight("no-suffix"))
	assert.Equal(t, 1, memberWeight("1234:abc:bad"))
	assert.Equal(t, 1, memberWeight("1234:abc:0"))
}
