package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"spendlens/internal/core"
	"spendlens/internal/metrics"
)

const systemPrompt = `You are an expert licensing analyst specializing in detailed invoice categorization for benchmark analysis.
Identify specific service types, MSP hidden costs and the proper benchmark category.
Respond with JSON only.`

const categorizationSchema = `{
  "type": "object",
  "required": ["primary_category", "subcategory"],
  "properties": {
    "primary_category": {"type": "string", "minLength": 1},
    "subcategory": {"type": "string", "minLength": 1},
    "service_type": {"type": "string"},
    "hidden_costs": {"type": "array", "items": {"type": "string"}},
    "msp_services": {"type": "array", "items": {"type": "string"}},
    "benchmark_category": {"type": "string"},
    "complexity_level": {"type": "string", "enum": ["simple", "moderate", "complex"]}
  }
}`

var categorizationSchemaLoader = gojsonschema.NewStringLoader(categorizationSchema)

// Categorization is the structured answer requested from the model.
type Categorization struct {
	PrimaryCategory   string   `json:"primary_category"`
	Subcategory       string   `json:"subcategory"`
	ServiceType       string   `json:"service_type"`
	HiddenCosts       []string `json:"hidden_costs"`
	MSPServices       []string `json:"msp_services"`
	BenchmarkCategory string   `json:"benchmark_category"`
	ComplexityLevel   string   `json:"complexity_level"`
	Fallback          bool     `json:"fallback,omitempty"`
}

// FallbackCategorization is used whenever the model cannot be reached or
// returns something unusable.
func FallbackCategorization() Categorization {
	return Categorization{
		PrimaryCategory:   "it_services",
		Subcategory:       "managed_services",
		ServiceType:       "service",
		HiddenCosts:       []string{},
		MSPServices:       []string{},
		BenchmarkCategory: "it_services.managed_services",
		ComplexityLevel:   "moderate",
		Fallback:          true,
	}
}

// Result carries a categorization with the cost of producing it. Err is set
// when the fallback was used.
type Result struct {
	Categorization
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
	Err     error   `json:"-"`
}

// systemCompleter is implemented by completers that accept a separate system prompt.
type systemCompleter interface {
	CompleteWithSystem(ctx context.Context, system, prompt string) (Completion, error)
}

// Categorizer asks a Completer to categorize invoices.
type Categorizer struct {
	completer Completer
	costPer1K float64
}

func NewCategorizer(c Completer, costPer1K float64) *Categorizer {
	return &Categorizer{completer: c, costPer1K: costPer1K}
}

// Categorize never fails: on any error it returns FallbackCategorization
// with Err set and logs a warning.
func (c *Categorizer) Categorize(ctx context.Context, inv core.Invoice) Result {
	prompt := BuildPrompt(inv)

	var (
		comp Completion
		err  error
	)
	if sc, ok := c.completer.(systemCompleter); ok {
		comp, err = sc.CompleteWithSystem(ctx, systemPrompt, prompt)
	} else {
		comp, err = c.completer.Complete(ctx, systemPrompt+"\n\n"+prompt)
	}
	if err != nil {
		return c.fallback(ctx, inv, fmt.Errorf("complete: %w", err), 0)
	}

	tokens := comp.Usage.Total()
	if tokens == 0 {
		tokens = EstimateTokens(prompt) + EstimateTokens(comp.Text)
	}

	cat, err := ParseCategorization(comp.Text)
	if err != nil {
		return c.fallback(ctx, inv, err, tokens)
	}

	cost := EstimateCost(tokens, c.costPer1K)
	metrics.LLMCalls.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.LLMCostUSD.Add(cost)
	slog.InfoContext(ctx, "LLM categorization completed",
		"vendor", inv.Vendor,
		"primary_category", cat.PrimaryCategory,
		"subcategory", cat.Subcategory,
		"tokens", tokens)
	return Result{Categorization: cat, Tokens: tokens, CostUSD: cost}
}

func (c *Categorizer) fallback(ctx context.Context, inv core.Invoice, err error, tokens int) Result {
	metrics.LLMCalls.WithLabelValues(metrics.OutcomeFallback).Inc()
	cost := EstimateCost(tokens, c.costPer1K)
	if cost > 0 {
		metrics.LLMCostUSD.Add(cost)
	}
	slog.WarnContext(ctx, "LLM categorization failed, using fallback",
		"vendor", inv.Vendor,
		"invoice_key", inv.Key,
		"error", err)
	return Result{Categorization: FallbackCategorization(), Tokens: tokens, CostUSD: cost, Err: err}
}

// ParseCategorization extracts, validates and decodes a categorization reply.
func ParseCategorization(text string) (Categorization, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Categorization{}, err
	}
	result, err := gojsonschema.Validate(categorizationSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Categorization{}, fmt.Errorf("validate categorization: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return Categorization{}, fmt.Errorf("invalid categorization: %s", strings.Join(msgs, "; "))
	}

	var cat Categorization
	if err := json.Unmarshal([]byte(raw), &cat); err != nil {
		return Categorization{}, fmt.Errorf("decode categorization: %w", err)
	}
	cat.Fallback = false
	if cat.BenchmarkCategory == "" {
		cat.BenchmarkCategory = cat.PrimaryCategory + "." + cat.Subcategory
	}
	if cat.HiddenCosts == nil {
		cat.HiddenCosts = []string{}
	}
	if cat.MSPServices == nil {
		cat.MSPServices = []string{}
	}
	return cat, nil
}

// BuildPrompt renders the categorization request for one invoice.
func BuildPrompt(inv core.Invoice) string {
	var items strings.Builder
	for _, li := range inv.LineItems {
		fmt.Fprintf(&items, "- %s: %s\n", li.Description, li.Total)
	}
	billTo := inv.BillTo
	if billTo == "" {
		billTo = "Unknown"
	}
	return fmt.Sprintf(`Categorize this invoice for precise benchmark analysis, especially identifying MSP hidden costs:

Vendor: %s
Total: %s
Bill To: %s
Line Items:
%s
Respond with JSON only:
{
  "primary_category": "it_services/development_tools/enterprise_software/cloud_services/security_software",
  "subcategory": "specific_subcategory",
  "service_type": "managed_services/consulting/support/license/subscription",
  "hidden_costs": ["cost1", "cost2"],
  "msp_services": ["service1", "service2"],
  "benchmark_category": "exact_benchmark_category",
  "complexity_level": "simple/moderate/complex"
}`, inv.Vendor, inv.Total, billTo, items.String())
}
