package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_requests_total",
		Help: "Total number of requests by model and provider",
	}, []string{"model", "provider", "status"})

	tokenCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_tokens_total",
		Help: "Total number of tokens processed by model and type",
	}, []string{"model", "provider", "token_type"})

	costCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_cost_usd_total",
		Help: "Total cost in USD by model and provider",
	}, []string{"model", "provider"})

	cacheCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_cache_total",
		Help: "Cache hits and misses",
	}, []string{"status"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_gateway_request_duration_seconds",
		Help:    "Request latency in seconds by model and provider",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"model", "provider"})

	activeRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "llm_gateway_active_requests",
		Help: "Number of active requests by provider",
	}, []string{"provider"})

	rateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_rate_limit_exceeded_total",
		Help: "Total number of requests that exceeded rate limits",
	}, []string{"key_id", "limit_type"})
)

// RecordRequest counts a completed request
func RecordRequest(model, provider string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	requestCounter.WithLabelValues(model, provider, status).Inc()
}

// RecordTokens counts prompt and completion tokens
func RecordTokens(model, provider string, promptTokens, completionTokens int) {
	tokenCounter.WithLabelValues(model, provider, "prompt").Add(float64(promptTokens))
	tokenCounter.WithLabelValues(model, provider, "completion").Add(float64(completionTokens))
}

// RecordCost accumulates spend
func RecordCost(model, provider string, costUSD float64) {
	costCounter.WithLabelValues(model, provider).Add(costUSD)
}

// RecordCacheHit counts a response cache hit
func RecordCacheHit() {
	cacheCounter.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a response cache miss
func RecordCacheMiss() {
	cacheCounter.WithLabelValues("miss").Inc()
}

// RecordLatency observes request duration
func RecordLatency(model, provider string, seconds float64) {
	requestLatency.WithLabelValues(model, provider).Observe(seconds)
}

// IncActiveRequests marks a request in flight
func IncActiveRequests(provider string) {
	activeRequests.WithLabelValues(provider).Inc()
}

// DecActiveRequests marks a request finished
func DecActiveRequests(provider string) {
	activeRequests.WithLabelValues(provider).Dec()
}

// RecordRateLimitExceeded counts an admission rejection
func RecordRateLimitExceeded(keyID, limitType string) {
	rateLimitExceeded.WithLabelValues(keyID, limitType).Inc()
}
