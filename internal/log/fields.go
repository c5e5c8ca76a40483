package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldRunID       = "run_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldVendor      = "vendor"
	FieldInvoiceKey  = "invoice_key"
	FieldHash        = "analysis_hash"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldTokens      = "tokens"
	FieldCostUSD     = "cost_usd"
	FieldCacheTier   = "cache_tier"
	FieldCacheHit    = "cache_hit"
	FieldAttempt     = "attempt"
	FieldCount       = "count"
	FieldFile        = "file"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentDataset     = "dataset"
	ComponentAnalysis    = "analysis"
	ComponentLLM         = "llm"
	ComponentCostControl = "cost_control"
	ComponentStorage     = "storage"
	ComponentCache       = "cache"
	ComponentReport      = "report"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentNotify      = "notify"
)

// Operations defines standard operation names
const (
	OpLoad       = "load"
	OpAnalyze    = "analyze"
	OpCategorize = "categorize"
	OpLookup     = "lookup"
	OpStore      = "store"
	OpEvict      = "evict"
	OpCleanup    = "cleanup"
	OpExport     = "export"
	OpRender     = "render"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// LogFields is a small builder for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithRunID(id string) LogFields {
	f[FieldRunID] = id
	return f
}

// WithInvoice adds the identifying fields of an invoice.
func (f LogFields) WithInvoice(key, vendor string, amountCents int64) LogFields {
	f[FieldInvoiceKey] = key
	f[FieldVendor] = vendor
	f[FieldAmountCents] = amountCents
	return f
}

// WithLLMUsage adds token and cost fields for one model call.
func (f LogFields) WithLLMUsage(tokens int, costUSD float64) LogFields {
	f[FieldTokens] = tokens
	f[FieldCostUSD] = costUSD
	return f
}

func (f LogFields) WithHTTPRequest(method, path string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts the fields to slog key/value pairs, sorted by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
