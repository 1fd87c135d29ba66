package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecraft/menu-digitizer/constants"
	"github.com/tablecraft/menu-digitizer/internal/common"
	"github.com/tablecraft/menu-digitizer/internal/llm"
	"github.com/tablecraft/menu-digitizer/internal/ocr"
	"github.com/tablecraft/menu-digitizer/internal/progress"
)

func waitForTerminal(t *testing.T, pub progress.Publisher, jobID string) progress.Checkpoint {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal checkpoint")
		case <-time.After(5 * time.Millisecond):
		}
		cp, err := pub.Get(context.Background(), jobID)
		if err != nil {
			continue
		}
		if cp.Step == constants.StepCompleted || cp.Step == constants.StepFailed {
			return cp
		}
	}
}

func TestQueueSubmitAndComplete(t *testing.T) {
	img := tempImage(t)
	ext := &fakeExtractor{lines: []string{"Margherita Pizza $10"}}
	str := &fakeStructurer{out: `{"menu":[{"category":"Pizzas","dishes":[{"name":"Margherita Pizza","price":10,"description":null,"ai_suggested_description":null}]}]}`}
	pub := progress.NewMemoryPublisher(time.Minute)

	pipe := New(Config{}, ext, str, pub, nil)
	q := NewQueue(pipe, pub, nil, WithWorkers(1))
	defer q.Shutdown(context.Background())

	id, err := q.Submit(context.Background(), img)
	require.NoError(t, err)

	// the queued checkpoint is visible before the worker picks the job up
	cp, err := pub.Get(context.Background(), id.String())
	require.NoError(t, err, "poll right after submit must not see not-found")
	assert.GreaterOrEqual(t, cp.Progress, constants.ProgressQueued)

	final := waitForTerminal(t, pub, id.String())
	assert.Equal(t, constants.StepCompleted, final.Step)
	assert.Equal(t, constants.ProgressCompleted, final.Progress)
	assert.Empty(t, final.ErrorKind)

	// the terminal checkpoint delivers the digitized menu to the poller
	var menu llm.StructuredMenu
	require.NoError(t, json.Unmarshal(final.Result, &menu))
	require.Len(t, menu.Menu, 1)
	assert.Equal(t, "Margherita Pizza", menu.Menu[0].Dishes[0].Name)
}

func TestQueueJobFailurePublishesKind(t *testing.T) {
	img := tempImage(t)
	ext := &fakeExtractor{err: common.ExtractionError("tesseract exited 1", nil)}
	pub := progress.NewMemoryPublisher(time.Minute)

	pipe := New(Config{}, ext, &fakeStructurer{}, pub, nil)
	q := NewQueue(pipe, pub, nil, WithWorkers(1))
	defer q.Shutdown(context.Background())

	id, err := q.Submit(context.Background(), img)
	require.NoError(t, err)

	final := waitForTerminal(t, pub, id.String())
	assert.Equal(t, constants.StepFailed, final.Step)
	assert.Equal(t, common.KindExtraction, final.ErrorKind)
	assert.Less(t, final.Progress, constants.ProgressCompleted)
}

// gatedExtractor holds its job until release is closed.
type gatedExtractor struct {
	release chan struct{}
}

func (g *gatedExtractor) Extract(ctx context.Context, _ string) (ocr.ExtractionResult, error) {
	select {
	case <-g.release:
		return ocr.ExtractionResult{Lines: []string{"Chai 20"}}, nil
	case <-ctx.Done():
		return ocr.ExtractionResult{}, ctx.Err()
	}
}

func TestQueueSubmitFailsFastWhenFull(t *testing.T) {
	gate := make(chan struct{})
	ext := &gatedExtractor{release: gate}
	str := &fakeStructurer{out: `{"menu":[]}`}
	pub := progress.NewMemoryPublisher(time.Minute)

	pipe := New(Config{}, ext, str, pub, nil)
	q := NewQueue(pipe, pub, nil, WithWorkers(1), WithQueueSize(1))
	defer q.Shutdown(context.Background())

	// first job occupies the worker; wait until it is picked up
	id1, err := q.Submit(context.Background(), tempImage(t))
	require.NoError(t, err)
	deadline := time.After(2 * time.Second)
	for {
		cp, gerr := pub.Get(context.Background(), id1.String())
		if gerr == nil && cp.Progress >= constants.ProgressExtracting {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never picked up the first job")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// second job fills the single buffer slot
	id2, err := q.Submit(context.Background(), tempImage(t))
	require.NoError(t, err)

	// third must be rejected immediately rather than blocking the caller
	done := make(chan error, 1)
	go func() {
		_, serr := q.Submit(context.Background(), tempImage(t))
		done <- serr
	}()
	select {
	case serr := <-done:
		assert.True(t, errors.Is(serr, ErrQueueFull), "want ErrQueueFull, got %v", serr)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	// accepted jobs still run to completion once the gate opens
	close(gate)
	for _, id := range []string{id1.String(), id2.String()} {
		final := waitForTerminal(t, pub, id)
		assert.Equal(t, constants.StepCompleted, final.Step)
	}
}

func TestQueueRejectsSubmitAfterShutdown(t *testing.T) {
	pub := progress.NewMemoryPublisher(time.Minute)
	pipe := New(Config{}, &fakeExtractor{}, &fakeStructurer{out: `{"menu":[]}`}, pub, nil)
	q := NewQueue(pipe, pub, nil, WithWorkers(1))

	q.Shutdown(context.Background())

	_, err := q.Submit(context.Background(), "whatever.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueClosed))
}

func TestQueueDrainsInFlightJobsOnShutdown(t *testing.T) {
	pub := progress.NewMemoryPublisher(time.Minute)
	ext := &fakeExtractor{lines: []string{"Chai 20"}}
	str := &fakeStructurer{out: `{"menu":[{"category":"Drinks","dishes":[{"name":"Chai","price":20,"description":null,"ai_suggested_description":null}]}]}`}
	pipe := New(Config{}, ext, str, pub, nil)
	q := NewQueue(pipe, pub, nil, WithWorkers(2))

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := q.Submit(context.Background(), tempImage(t))
		require.NoError(t, err)
		ids = append(ids, id.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	for _, id := range ids {
		cp, err := pub.Get(context.Background(), id)
		require.NoError(t, err, "job %s lost", id)
		assert.Equal(t, constants.StepCompleted, cp.Step)
	}
}
