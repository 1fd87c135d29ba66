// Package progress implements the per-job progress channel: discrete
// checkpoints published during a digitization job and polled by clients.
// Entries expire after a bounded retention window so abandoned jobs cannot
// accumulate state.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound indicates an unknown or expired job id.
var ErrNotFound = errors.New("job not found")

// Checkpoint is one discrete progress report for a job. Progress is a
// percentage in 0..100. ErrorKind is set only on the terminal failure
// checkpoint; Result carries the digitized menu and is set only on the
// terminal completed checkpoint, so async callers collect their result
// from the same poll.
type Checkpoint struct {
	Progress  int             `json:"progress"`
	Step      string          `json:"step"`
	ErrorKind string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Publisher is the progress channel contract. Publish must reject
// regressions: checkpoints for one job arrive in non-decreasing progress
// order, and a lower value than the stored one is a caller bug.
type Publisher interface {
	Publish(ctx context.Context, jobID string, cp Checkpoint) error
	Get(ctx context.Context, jobID string) (Checkpoint, error)
}

func regressionError(jobID string, have, got int) error {
	return fmt.Errorf("progress regression for job %s: %d -> %d", jobID, have, got)
}
