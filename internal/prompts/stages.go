// Package prompts holds the instructions and output contracts for every
// completion call the insight pipeline makes.
package prompts

import (
	"encoding/json"
	"slices"
)

// Stage identifies a completion call site in the pipeline.
type Stage string

// Pipeline stages that call the completion capability.
const (
	StageClassify  Stage = "classify"
	StageRoute     Stage = "route"
	StageReasoning Stage = "reasoning"
	StageBusiness  Stage = "business"
	StageSynthesis Stage = "synthesis"
	StageRepair    Stage = "repair"
	StageInsights  Stage = "insights"
)

var stages = []Stage{
	StageClassify,
	StageRoute,
	StageReasoning,
	StageBusiness,
	StageSynthesis,
	StageRepair,
	StageInsights,
}

// Stages returns the list of valid stages.
func Stages() []Stage {
	return stages
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStage validates a string as a known stage.
// Returns ErrInvalidStage if the value is not recognized.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
