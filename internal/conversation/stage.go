package conversation

// Stage is the point a submission has reached.
type Stage int

// Submission stages
const (
	StageIdle Stage = iota
	StageTextRequested
	StageTextSucceeded
	StageTextFailed
	StageImageRequested
	StageImageSucceeded
	StageImageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageTextRequested:
		return "text_requested"
	case StageTextSucceeded:
		return "text_succeeded"
	case StageTextFailed:
		return "text_failed"
	case StageImageRequested:
		return "image_requested"
	case StageImageSucceeded:
		return "image_succeeded"
	case StageImageFailed:
		return "image_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a submission.
func (s Stage) Terminal() bool {
	switch s {
	case StageTextSucceeded, StageTextFailed, StageImageSucceeded, StageImageFailed:
		return true
	default:
		return false
	}
}
