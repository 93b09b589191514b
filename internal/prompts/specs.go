package prompts

import (
	"github.com/JaimeStill/insight/pkg/formatting"
)

const classifySpec = `Respond with a JSON object matching this exact structure:

{
  "data_source": "<coupa|baan|combined>",
  "confidence": <0-100>,
  "reasoning": "<explanation>",
  "key_terms": ["<term1>", "<term2>"],
  "analysis_type": "<spend_analysis|supplier_analysis|trend_analysis|risk_assessment|cost_optimization|general>"
}

Always respond with valid JSON, no markdown fencing.`

const reasoningSpec = `Respond with a JSON object matching this exact structure:

{
  "business_context": "<text>",
  "data_source_strategy": "<text>",
  "analytical_approach": "<text>",
  "expected_findings": "<text>",
  "value_proposition": "<text>"
}

Each field is two to four sentences. Always respond with valid JSON, no markdown fencing.`

const businessSpec = `Respond with plain prose paragraphs. No lists of code, no markdown code blocks.`

const synthesisSpec = "Respond with the statement inside a ```sql fenced block and nothing else."

const repairSpec = "Respond with the corrected statement inside a ```sql fenced block and nothing else."

const insightsSpec = `Respond with a JSON object matching this exact structure:

{
  "insights": [
    {"text": "<one sentence>", "category": "<financial|procurement|risk|performance|strategic>", "metric": "<quantified metric>"}
  ]
}

Provide four to six insights. Always respond with valid JSON, no markdown fencing.`

var specs = map[Stage]string{
	StageClassify:  classifySpec,
	StageRoute:     "Respond with one lowercase word.",
	StageReasoning: reasoningSpec,
	StageBusiness:  businessSpec,
	StageSynthesis: synthesisSpec,
	StageRepair:    repairSpec,
	StageInsights:  insightsSpec,
}

var schemas = map[Stage]formatting.Schema{
	StageClassify: {
		"type":     "object",
		"required": []any{"data_source", "confidence", "analysis_type"},
		"properties": map[string]any{
			"data_source":   map[string]any{"type": "string", "enum": []any{"coupa", "baan", "combined"}},
			"confidence":    map[string]any{"type": "number"},
			"reasoning":     map[string]any{"type": "string"},
			"key_terms":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"analysis_type": map[string]any{"type": "string"},
		},
	},
	StageReasoning: {
		"type": "object",
		"required": []any{
			"business_context", "data_source_strategy", "analytical_approach",
			"expected_findings", "value_proposition",
		},
		"properties": map[string]any{
			"business_context":     map[string]any{"type": "string", "minLength": 1},
			"data_source_strategy": map[string]any{"type": "string", "minLength": 1},
			"analytical_approach":  map[string]any{"type": "string", "minLength": 1},
			"expected_findings":    map[string]any{"type": "string", "minLength": 1},
			"value_proposition":    map[string]any{"type": "string", "minLength": 1},
		},
	},
	StageInsights: {
		"type":     "object",
		"required": []any{"insights"},
		"properties": map[string]any{
			"insights": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"text", "category"},
					"properties": map[string]any{
						"text": map[string]any{"type": "string", "minLength": 1},
						"category": map[string]any{
							"type": "string",
							"enum": []any{"financial", "procurement", "risk", "performance", "strategic"},
						},
						"metric": map[string]any{"type": "string"},
					},
				},
			},
		},
	},
}

// Spec returns the output contract for a stage.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}

// Schema returns the JSON schema a stage's structured output must satisfy,
// or nil when the stage produces free text.
func Schema(stage Stage) formatting.Schema {
	return schemas[stage]
}
