package dataset

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// recordSchema describes one entry of the invoice cache file. Amounts are
// accepted as numbers or strings because the extraction step emitted both.
const recordSchema = `{
  "type": "object",
  "required": ["vendor", "line_items"],
  "properties": {
    "vendor": {"type": "string"},
    "bill_to": {"type": ["string", "null"]},
    "invoice_date": {"type": ["string", "null"]},
    "line_items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "description": {"type": "string"},
          "quantity": {"type": ["number", "string", "null"]},
          "unit_price": {"type": ["number", "string", "null"]},
          "total_amount": {"type": ["number", "string", "null"]}
        }
      }
    }
  }
}`

var recordSchemaLoader = gojsonschema.NewStringLoader(recordSchema)

// validateRecord checks a decoded record against recordSchema and returns a
// single error listing every violation.
func validateRecord(record any) error {
	result, err := gojsonschema.Validate(recordSchemaLoader, gojsonschema.NewGoLoader(record))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = desc.String()
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(errs, "; "))
}
