package credit

// Level classifies a balance against the fixed low-balance thresholds that
// drive purchase prompts in the presentation layer.
type Level string

const (
	LevelNormal  Level = "normal"
	LevelLow     Level = "low"
	LevelVeryLow Level = "very_low"
)

// Policy thresholds. These are constants, not derived values.
const (
	CVProcessingLowThreshold     = 100
	CVProcessingVeryLowThreshold = 5
	InterviewLowThreshold        = 50
	InterviewVeryLowThreshold    = 5
)

// ClassifyLevel maps a balance to its warning level for the given credit
// type. Pure function over the fixed thresholds.
func ClassifyLevel(balance int64, creditType Type) Level {
	low, veryLow := int64(CVProcessingLowThreshold), int64(CVProcessingVeryLowThreshold)
	if creditType == TypeInterview {
		low, veryLow = InterviewLowThreshold, InterviewVeryLowThreshold
	}

	switch {
	case balance <= veryLow:
		return LevelVeryLow
	case balance <= low:
		return LevelLow
	default:
		return LevelNormal
	}
}
