package constants

// JobStatus is the canonical lifecycle state of a menu-digitization job.
type JobStatus string

// Stable values (published to the progress channel; never rename).
const (
	JobStatusQueued             JobStatus = "queued"              // accepted, not yet started
	JobStatusOCRRunning         JobStatus = "ocr_running"         // stage 1 in progress
	JobStatusStructuringRunning JobStatus = "structuring_running" // stage 2 in progress
	JobStatusCompleted          JobStatus = "completed"           // terminal success
	JobStatusFailed             JobStatus = "failed"              // terminal failure
)

// Checkpoint step labels reported alongside progress percentages.
const (
	StepQueued           = "queued"
	StepExtractingText   = "extracting_text"
	StepStructuringMenu  = "structuring_menu"
	StepSanitizingOutput = "sanitizing_output"
	StepCompleted        = "completed"
	StepFailed           = "failed"
)

// Progress checkpoints reported at each stage transition. Values for a
// given job are non-decreasing; 100 is reserved for completion.
const (
	ProgressQueued      = 0
	ProgressExtracting  = 10
	ProgressStructuring = 40
	ProgressSanitizing  = 90
	ProgressCompleted   = 100
)
