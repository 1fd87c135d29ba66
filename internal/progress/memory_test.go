package progress

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tablecraft/menu-digitizer/constants"
)

func TestMemoryPublisherRoundTrip(t *testing.T) {
	p := NewMemoryPublisher(time.Minute)
	ctx := context.Background()

	if _, err := p.Get(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown job: want ErrNotFound, got %v", err)
	}

	cp := Checkpoint{Progress: constants.ProgressExtracting, Step: constants.StepExtractingText}
	if err := p.Publish(ctx, "job-1", cp); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := p.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, cp) {
		t.Errorf("got %+v, want %+v", got, cp)
	}
}

func TestMemoryPublisherKeepsResultPayload(t *testing.T) {
	p := NewMemoryPublisher(time.Minute)
	ctx := context.Background()

	result := json.RawMessage(`{"menu":[]}`)
	cp := Checkpoint{Progress: constants.ProgressCompleted, Step: constants.StepCompleted, Result: result}
	if err := p.Publish(ctx, "job-1", cp); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := p.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Result) != string(result) {
		t.Errorf("result = %s, want %s", got.Result, result)
	}
}

func TestMemoryPublisherRejectsRegression(t *testing.T) {
	p := NewMemoryPublisher(time.Minute)
	ctx := context.Background()

	steps := []Checkpoint{
		{Progress: constants.ProgressQueued, Step: constants.StepQueued},
		{Progress: constants.ProgressExtracting, Step: constants.StepExtractingText},
		{Progress: constants.ProgressStructuring, Step: constants.StepStructuringMenu},
	}
	for _, cp := range steps {
		if err := p.Publish(ctx, "job-1", cp); err != nil {
			t.Fatalf("publish %d: %v", cp.Progress, err)
		}
	}

	err := p.Publish(ctx, "job-1", Checkpoint{Progress: constants.ProgressExtracting, Step: constants.StepExtractingText})
	if err == nil {
		t.Fatal("expected regression to be rejected")
	}

	// the last accepted checkpoint survives
	got, err := p.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Progress != constants.ProgressStructuring {
		t.Errorf("progress = %d, want %d", got.Progress, constants.ProgressStructuring)
	}
}

func TestMemoryPublisherAllowsEqualProgress(t *testing.T) {
	p := NewMemoryPublisher(time.Minute)
	ctx := context.Background()

	if err := p.Publish(ctx, "job-1", Checkpoint{Progress: constants.ProgressStructuring, Step: constants.StepStructuringMenu}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// a failure checkpoint reuses the last reached progress
	fail := Checkpoint{Progress: constants.ProgressStructuring, Step: constants.StepFailed, ErrorKind: "STRUCTURING_ERROR"}
	if err := p.Publish(ctx, "job-1", fail); err != nil {
		t.Fatalf("equal-progress publish: %v", err)
	}

	got, _ := p.Get(ctx, "job-1")
	if got.Step != constants.StepFailed || got.ErrorKind != "STRUCTURING_ERROR" {
		t.Errorf("got %+v, want failed checkpoint", got)
	}
}

func TestMemoryPublisherExpiry(t *testing.T) {
	p := NewMemoryPublisher(time.Minute)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }

	if err := p.Publish(ctx, "job-1", Checkpoint{Progress: constants.ProgressCompleted, Step: constants.StepCompleted}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	p.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, err := p.Get(ctx, "job-1"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}

	p.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, err := p.Get(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after expiry: want ErrNotFound, got %v", err)
	}

	// an expired entry no longer blocks lower progress
	p.now = func() time.Time { return base.Add(2 * time.Minute) }
	if err := p.Publish(ctx, "job-1", Checkpoint{Progress: constants.ProgressQueued, Step: constants.StepQueued}); err != nil {
		t.Errorf("publish after expiry: %v", err)
	}
}
