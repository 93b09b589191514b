package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/insight/pkg/completion"
)

// Section is a titled block of prompt context.
type Section struct {
	Title string
	Body  any
}

// Compose builds a completion request for stage: instructions and the output
// contract become the system message, and each section is rendered into the
// prompt in order. String bodies are written verbatim; other values as indented JSON.
func Compose(stage Stage, sections ...Section) (completion.Request, error) {
	instr, err := Instructions(stage)
	if err != nil {
		return completion.Request{}, err
	}
	spec, err := Spec(stage)
	if err != nil {
		return completion.Request{}, err
	}

	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if s.Title != "" {
			sb.WriteString(s.Title)
			sb.WriteString(":\n")
		}

		switch body := s.Body.(type) {
		case string:
			sb.WriteString(body)
		default:
			data, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return completion.Request{}, fmt.Errorf("serialize %s: %w", s.Title, err)
			}
			sb.Write(data)
		}
	}

	return completion.Request{
		System: instr + "\n\n" + spec,
		Prompt: sb.String(),
	}, nil
}
