// Package recommend turns the final score vectors of every inventory into a
// career and study recommendation.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/llm"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/xeipuuv/gojsonschema"
)

const (
	maxEntries = 5
	maxReasons = 3
)

// FallbackMessage is shown when synthesis fails after the last inventory.
const FallbackMessage = "All assessments are complete. Thank you! We could not prepare your recommendation right now; your results have been saved."

// Profession is one suggested occupation.
type Profession struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MatchScore  float64  `json:"match_score"`
	Reasons     []string `json:"reasons"`
}

// Direction is one suggested field of university study.
type Direction struct {
	Name        string   `json:"name"`
	Code        string   `json:"code,omitempty"`
	Description string   `json:"description"`
	MatchScore  float64  `json:"match_score"`
	Reasons     []string `json:"reasons"`
}

// Recommendation is the synthesizer's structured answer.
type Recommendation struct {
	Summary              string       `json:"summary"`
	Professions          []Profession `json:"professions"`
	UniversityDirections []Direction  `json:"university_directions"`
}

// Synthesizer produces a recommendation from a textual profile summary.
type Synthesizer interface {
	Synthesize(ctx context.Context, profile string) (Recommendation, error)
}

// Summarize renders every inventory's final scores as text, in stage order.
func Summarize(profiles []inventory.Profile, scores map[inventory.ID]state.Vector) string {
	var b strings.Builder
	for _, p := range profiles {
		v, ok := scores[p.ID]
		if !ok {
			continue
		}
		title := p.Title
		if title == "" {
			title = string(p.ID)
		}
		fmt.Fprintf(&b, "%s: %s\n", title, FormatVector(p.Dimensions, v))
	}
	return strings.TrimSpace(b.String())
}

// FormatVector renders v as "k=0.00, ..." in the given key order.
func FormatVector(keys []string, v state.Vector) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, v[k]))
	}
	return strings.Join(parts, ", ")
}

// Render formats r for the user, keeping at most five entries per list and
// three reasons per entry.
func Render(r Recommendation) string {
	var b strings.Builder
	b.WriteString("All assessments are complete!\n\n")
	if s := strings.TrimSpace(r.Summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
	if len(r.Professions) > 0 {
		b.WriteString("\nRecommended professions:\n")
		for i, p := range r.Professions {
			if i == maxEntries {
				break
			}
			fmt.Fprintf(&b, "%d. %s (match %.0f%%)\n", i+1, p.Name, p.MatchScore*100)
			writeEntry(&b, p.Description, p.Reasons)
		}
	}
	if len(r.UniversityDirections) > 0 {
		b.WriteString("\nRecommended study directions:\n")
		for i, d := range r.UniversityDirections {
			if i == maxEntries {
				break
			}
			name := d.Name
			if d.Code != "" {
				name = fmt.Sprintf("%s [%s]", d.Name, d.Code)
			}
			fmt.Fprintf(&b, "%d. %s (match %.0f%%)\n", i+1, name, d.MatchScore*100)
			writeEntry(&b, d.Description, d.Reasons)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeEntry(b *strings.Builder, desc string, reasons []string) {
	if desc != "" {
		fmt.Fprintf(b, "   %s\n", desc)
	}
	for i, r := range reasons {
		if i == maxReasons {
			break
		}
		fmt.Fprintf(b, "   - %s\n", r)
	}
}

// #region llm-synthesizer

const systemPrompt = `You are a career guidance counsellor. From the assessment profile the user
provides (interests, skills, values, personality traits, learning style), recommend
professions and university study directions.

Return JSON strictly in this format:
{
  "summary": "string",
  "professions": [{"name": "string", "description": "string", "match_score": float, "reasons": ["string"]}],
  "university_directions": [{"name": "string", "code": "string", "description": "string", "match_score": float, "reasons": ["string"]}]
}
match_score ranges from 0.0 to 1.0. No text outside the JSON.`

var recommendationSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["summary", "professions", "university_directions"],
  "properties": {
    "summary": {"type": "string"},
    "professions": {"type": "array", "items": {"type": "object", "required": ["name"]}},
    "university_directions": {"type": "array", "items": {"type": "object", "required": ["name"]}}
  }
}`)

// LLMSynthesizer asks a chat model for the recommendation.
type LLMSynthesizer struct {
	completer llm.Completer
}

// NewLLMSynthesizer returns a synthesizer backed by c.
func NewLLMSynthesizer(c llm.Completer) *LLMSynthesizer {
	return &LLMSynthesizer{completer: c}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, profile string) (Recommendation, error) {
	raw, err := s.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: profile},
	})
	if err != nil {
		return Recommendation{}, fmt.Errorf("synthesize: %w", err)
	}
	doc, err := llm.ExtractJSON(raw)
	if err != nil {
		return Recommendation{}, fmt.Errorf("synthesize: %w", err)
	}
	result, err := gojsonschema.Validate(recommendationSchema, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return Recommendation{}, fmt.Errorf("validate recommendation: %w", err)
	}
	if !result.Valid() {
		return Recommendation{}, fmt.Errorf("invalid recommendation: %v", result.Errors())
	}
	var r Recommendation
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return Recommendation{}, fmt.Errorf("decode recommendation: %w", err)
	}
	return r, nil
}

var _ Synthesizer = (*LLMSynthesizer)(nil)

// #endregion llm-synthesizer
