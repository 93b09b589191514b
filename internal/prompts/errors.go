package prompts

import "errors"

// ErrInvalidStage indicates a stage value outside the known set.
var ErrInvalidStage = errors.New("invalid stage")
