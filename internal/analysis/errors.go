package analysis

import (
	"errors"
	"fmt"
)

// Stage names a pipeline stage for failure attribution.
type Stage string

// Pipeline stages referenced in StageError values.
const (
	StageScreenshotCapture Stage = "screenshot_capture"
	StageHTMLFetch         Stage = "html_fetch"
	StageRuleAnalysis      Stage = "rule_analysis"
	StageVisionAnalysis    Stage = "vision_analysis"
	StageMasterAnalysis    Stage = "master_analysis"
	StageSheetsLogging     Stage = "sheets_logging"
)

// ErrorKind classifies a stage failure.
type ErrorKind string

// Failure classes. Validation failures are treated identically to dependency
// failures: a response that passes transport but fails semantic validation is
// indistinguishable in effect from no response.
const (
	KindInput      ErrorKind = "input"
	KindDependency ErrorKind = "dependency"
	KindValidation ErrorKind = "validation"
)

// PublicFailureMessage is the only failure text exposed to callers. Root
// causes stay in structured logs.
const PublicFailureMessage = "We're experiencing technical issues with our analysis service. Please try again later."

// StageError attributes a failure to a pipeline stage with a classified kind.
type StageError struct {
	Stage  Stage
	Kind   ErrorKind
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

// Unwrap exposes the wrapped cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError builds a StageError wrapping err.
func NewStageError(stage Stage, kind ErrorKind, reason string, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Reason: reason, Err: err}
}

// StageOf returns the stage recorded on err, or StageMasterAnalysis when err
// carries no stage attribution.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageMasterAnalysis
}

// IsInputError reports whether err is classified as caller input error.
func IsInputError(err error) bool {
	var se *StageError
	return errors.As(err, &se) && se.Kind == KindInput
}
