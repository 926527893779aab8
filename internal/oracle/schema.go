package oracle

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/xeipuuv/gojsonschema"
)

// Schema returns the JSON Schema an observation for p must satisfy. Both
// vectors require exactly p's key set.
func Schema(p inventory.Profile) map[string]any {
	vector := func() map[string]any {
		props := make(map[string]any, len(p.Dimensions))
		for _, d := range p.Dimensions {
			props[d] = map[string]any{"type": "number"}
		}
		return map[string]any{
			"type":                 "object",
			"properties":           props,
			"required":             append([]string(nil), p.Dimensions...),
			"additionalProperties": false,
		}
	}
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]any{
			"scores":        vector(),
			"confidence":    vector(),
			"next_question": map[string]any{"type": "string"},
			"should_finish": map[string]any{"type": "boolean"},
		},
		"required": []string{"scores", "confidence", "next_question", "should_finish"},
	}
}

// Validate checks doc against Schema(p).
func Validate(doc []byte, p inventory.Profile) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(Schema(p)),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContract, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrContract, strings.Join(msgs, "; "))
}
