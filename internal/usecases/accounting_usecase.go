package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"inferxgate.backend/internal/domain/entities"
	"inferxgate.backend/internal/domain/repositories"
	"inferxgate.backend/internal/infrastructure/metrics"
	"inferxgate.backend/internal/infrastructure/pricing"
	"inferxgate.backend/pkg/logger"
)

// Attempt describes one completion attempt for accounting
type Attempt struct {
	Key       *entities.VirtualKey
	Model     string
	Provider  string
	Usage     *entities.Usage
	Latency   time.Duration
	Cached    bool
	FailedErr error
}

// Accountant turns completion attempts into spend, usage records, and
// metrics. Cache hits and failed attempts are recorded at zero cost.
type Accountant struct {
	usageRepo repositories.UsageRepository
	keyRepo   repositories.VirtualKeyRepository
	resolver  *KeyResolver
	pricing   *pricing.Calculator
}

// NewAccountant creates an accountant
func NewAccountant(usageRepo repositories.UsageRepository, keyRepo repositories.VirtualKeyRepository, resolver *KeyResolver, calc *pricing.Calculator) *Accountant {
	return &Accountant{
		usageRepo: usageRepo,
		keyRepo:   keyRepo,
		resolver:  resolver,
		pricing:   calc,
	}
}

var persistUsageAsync = true

// Record accounts one attempt. Spend is written first so budget
// enforcement never trails a successful response; the usage record
// itself is best-effort.
func (a *Accountant) Record(ctx context.Context, attempt *Attempt) *entities.UsageRecord {
	record := a.buildRecord(attempt)

	if record.CostUSD > 0 && attempt.Key != nil {
		if err := a.keyRepo.IncrementSpend(ctx, attempt.Key.ID, record.CostUSD); err != nil {
			logger.Error(ctx, "spend increment failed",
				zap.String("key_id", attempt.Key.ID.String()),
				zap.Float64("cost_usd", record.CostUSD),
				zap.Error(err))
		} else {
			attempt.Key.CurrentSpend += record.CostUSD
			a.resolver.Refresh(ctx, attempt.Key)
		}
	}

	a.recordMetrics(record)

	persist := func() {
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.usageRepo.Create(pctx, record); err != nil {
			logger.Error(pctx, "usage record write failed",
				zap.String("model", record.Model),
				zap.Error(err))
		}
	}
	if persistUsageAsync {
		go persist()
	} else {
		persist()
	}

	return record
}

func (a *Accountant) buildRecord(attempt *Attempt) *entities.UsageRecord {
	record := &entities.UsageRecord{
		ID:        uuid.New(),
		Model:     attempt.Model,
		Provider:  attempt.Provider,
		LatencyMs: attempt.Latency.Milliseconds(),
		Cached:    attempt.Cached,
		CreatedAt: time.Now(),
	}
	if attempt.Key != nil {
		id := attempt.Key.ID
		record.KeyID = &id
	}
	if attempt.Usage != nil {
		record.PromptTokens = attempt.Usage.PromptTokens
		record.CompletionTokens = attempt.Usage.CompletionTokens
		record.TotalTokens = attempt.Usage.TotalTokens
	}
	if attempt.FailedErr != nil {
		msg := attempt.FailedErr.Error()
		record.Error = &msg
	}

	// cache hits and failures cost nothing
	if !attempt.Cached && attempt.FailedErr == nil {
		record.CostUSD = a.pricing.Cost(attempt.Model, record.PromptTokens, record.CompletionTokens)
	}
	return record
}

func (a *Accountant) recordMetrics(record *entities.UsageRecord) {
	metrics.RecordRequest(record.Model, record.Provider, record.Error == nil)
	if record.TotalTokens > 0 {
		metrics.RecordTokens(record.Model, record.Provider, record.PromptTokens, record.CompletionTokens)
	}
	if record.CostUSD > 0 {
		metrics.RecordCost(record.Model, record.Provider, record.CostUSD)
	}
	metrics.RecordLatency(record.Model, record.Provider, float64(record.LatencyMs)/1000)
}
