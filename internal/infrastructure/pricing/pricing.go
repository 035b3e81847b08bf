package pricing

// ModelPricing holds per-1M-token prices in USD
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Default prices applied when a model has no entry
const (
	defaultInputPerMillion  = 2.0
	defaultOutputPerMillion = 6.0
)

// Calculator computes request costs from token counts
type Calculator struct {
	pricing map[string]ModelPricing
}

// NewCalculator creates a calculator with the built-in price table
func NewCalculator() *Calculator {
	return &Calculator{
		pricing: map[string]ModelPricing{
			// Anthropic
			"claude-sonnet-4-5-20250929": {InputPerMillion: 3.0, OutputPerMillion: 15.0},
			"claude-haiku-4-5-20251001":  {InputPerMillion: 0.8, OutputPerMillion: 4.0},
			"claude-opus-4-1-20250805":   {InputPerMillion: 15.0, OutputPerMillion: 75.0},
			"claude-sonnet-4-20250514":   {InputPerMillion: 3.0, OutputPerMillion: 15.0},
			"claude-opus-4-20250514":     {InputPerMillion: 15.0, OutputPerMillion: 75.0},
			"claude-3-5-haiku-20241022":  {InputPerMillion: 0.8, OutputPerMillion: 4.0},
			"claude-3-opus-20240229":     {InputPerMillion: 15.0, OutputPerMillion: 75.0},
			"claude-3-sonnet-20240229":   {InputPerMillion: 3.0, OutputPerMillion: 15.0},
			"claude-3-haiku-20240307":    {InputPerMillion: 0.25, OutputPerMillion: 1.25},
			"claude-3-5-sonnet-20241022": {InputPerMillion: 3.0, OutputPerMillion: 15.0},

			// Google Gemini
			"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.0},
			"gemini-1.5-flash": {InputPerMillion: 0.075, OutputPerMillion: 0.3},
			"gemini-1.0-pro":   {InputPerMillion: 0.5, OutputPerMillion: 1.5},

			// Google Gemini 2.x+
			"gemini-2.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 10.0},
			"gemini-2.5-flash":      {InputPerMillion: 0.3, OutputPerMillion: 2.5},
			"gemini-2.5-flash-lite": {InputPerMillion: 0.1, OutputPerMillion: 0.4},
			"gemini-2.0-flash":      {InputPerMillion: 0.1, OutputPerMillion: 0.4},
			"gemini-2.0-flash-lite": {InputPerMillion: 0.075, OutputPerMillion: 0.3},

			// OpenAI
			"gpt-5":         {InputPerMillion: 1.25, OutputPerMillion: 10.0},
			"gpt-5-mini":    {InputPerMillion: 0.25, OutputPerMillion: 2.0},
			"gpt-5-nano":    {InputPerMillion: 0.05, OutputPerMillion: 0.4},
			"gpt-5-chat":    {InputPerMillion: 1.25, OutputPerMillion: 10.0},
			"gpt-4.1":       {InputPerMillion: 2.0, OutputPerMillion: 8.0},
			"gpt-4":         {InputPerMillion: 30.0, OutputPerMillion: 60.0},
			"gpt-4-turbo":   {InputPerMillion: 10.0, OutputPerMillion: 30.0},
			"gpt-3.5-turbo": {InputPerMillion: 0.5, OutputPerMillion: 1.5},
		},
	}
}

// Cost returns the USD cost for a completion. Unknown models fall back to
// the default prices.
func (c *Calculator) Cost(model string, promptTokens, completionTokens int) float64 {
	p, ok := c.pricing[model]
	if !ok {
		p = ModelPricing{InputPerMillion: defaultInputPerMillion, OutputPerMillion: defaultOutputPerMillion}
	}
	inputCost := float64(promptTokens) / 1_000_000.0 * p.InputPerMillion
	outputCost := float64(completionTokens) / 1_000_000.0 * p.OutputPerMillion
	return inputCost + outputCost
}

// Pricing returns the price entry for a model, if present
func (c *Calculator) Pricing(model string) (ModelPricing, bool) {
	p, ok := c.pricing[model]
	return p, ok
}
