package analysis

import (
	"context"
	"encoding/json"
	"log/slog"

	"spendlens/internal/core"
	"spendlens/internal/costcontrol"
	"spendlens/internal/llm"
	logger "spendlens/internal/log"
)

// Categorized is an LLM categorization and what it cost.
type Categorized struct {
	llm.Categorization
	Cached  bool
	Tokens  int
	CostUSD float64
}

// Categorizer assigns an LLM categorization to one invoice.
type Categorizer interface {
	Categorize(ctx context.Context, inv core.Invoice) (Categorized, error)
}

// CostControlledCategorizer consults the cost-control cache before calling
// the model and stores successful answers for reuse. Fallback answers are
// returned but never stored.
type CostControlledCategorizer struct {
	costs *costcontrol.Manager
	model *llm.Categorizer
}

// NewCostControlledCategorizer wraps model with the cost-control manager.
// costs may be nil to call the model directly.
func NewCostControlledCategorizer(costs *costcontrol.Manager, model *llm.Categorizer) *CostControlledCategorizer {
	return &CostControlledCategorizer{costs: costs, model: model}
}

func (c *CostControlledCategorizer) Categorize(ctx context.Context, inv core.Invoice) (Categorized, error) {
	if c.costs == nil {
		r := c.model.Categorize(ctx, inv)
		return Categorized{Categorization: r.Categorization, Tokens: r.Tokens, CostUSD: r.CostUSD}, nil
	}

	var fresh *llm.Result
	data, cached, err := c.costs.GetOrCompute(ctx, inv, func(ctx context.Context) (costcontrol.Computed, error) {
		r := c.model.Categorize(ctx, inv)
		fresh = &r
		return costcontrol.Computed{
			Value:   r.Categorization,
			Tokens:  r.Tokens,
			CostUSD: r.CostUSD,
			NoStore: r.Fallback,
		}, nil
	})
	if err != nil {
		return Categorized{}, err
	}

	if fresh != nil {
		return Categorized{Categorization: fresh.Categorization, Tokens: fresh.Tokens, CostUSD: fresh.CostUSD}, nil
	}

	var cat llm.Categorization
	if err := json.Unmarshal(data, &cat); err != nil {
		slog.WarnContext(ctx, "Cached categorization unreadable, recomputing",
			logger.FieldComponent, logger.ComponentAnalysis,
			logger.FieldInvoiceKey, inv.Key,
			logger.FieldError, err)
		return c.recompute(ctx, inv), nil
	}
	return Categorized{Categorization: cat, Cached: cached}, nil
}

// recompute asks the model again and overwrites the stored record, so an
// unreadable entry is replaced by the next good answer.
func (c *CostControlledCategorizer) recompute(ctx context.Context, inv core.Invoice) Categorized {
	r := c.model.Categorize(ctx, inv)
	if !r.Fallback {
		if err := c.costs.Store(ctx, inv, r.Categorization, r.Tokens, r.CostUSD); err != nil {
			slog.WarnContext(ctx, "Could not replace cached categorization",
				logger.FieldComponent, logger.ComponentAnalysis,
				logger.FieldInvoiceKey, inv.Key,
				logger.FieldError, err)
		}
	}
	return Categorized{Categorization: r.Categorization, Tokens: r.Tokens, CostUSD: r.CostUSD}
}
