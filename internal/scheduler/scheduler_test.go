package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/flexiboard/internal/apperr"
)

type fakeService struct {
	mu        sync.Mutex
	boards    []string
	failBoard string
	gone      string
	calls     []string
	sweeps    atomic.Int32
}

func (f *fakeService) BoardIDs() ([]string, error) {
	f.sweeps.Add(1)
	return f.boards, nil
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeService) FireScheduled(_ context.Context, boardID string, _ time.Time) (int, error) {
	f.record("scheduled:" + boardID)
	switch boardID {
	case f.failBoard:
		return 0, errors.New("disk full")
	case f.gone:
		return 0, fmt.Errorf("board %s: %w", boardID, apperr.ErrNotFound)
	}
	return 1, nil
}

func (f *fakeService) FireDateArrivals(_ context.Context, boardID string, _ time.Time) (int, error) {
	f.record("dates:" + boardID)
	return 2, nil
}

func (f *fakeService) RunDueDeferred(_ context.Context, _ time.Time) (int, error) {
	f.record("deferred")
	return 3, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSweepVisitsEveryBoard(t *testing.T) {
	svc := &fakeService{boards: []string{"b1", "b2", "b3"}, failBoard: "b2", gone: "b3"}
	s := New(svc, time.Minute, WithLogger(quietLogger()))

	rep := s.Sweep(context.Background())
	want := Report{Boards: 3, Scheduled: 1, DateArrivals: 6, Deferred: 3, Errors: 1}
	if diff := cmp.Diff(want, rep); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	wantCalls := []string{"scheduled:b1", "dates:b1", "scheduled:b2", "dates:b2", "scheduled:b3", "dates:b3", "deferred"}
	if diff := cmp.Diff(wantCalls, svc.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepStopsVisitingBoardsOnCancel(t *testing.T) {
	svc := &fakeService{boards: []string{"b1", "b2"}}
	s := New(svc, time.Minute, WithLogger(quietLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := s.Sweep(ctx)
	if rep.Boards != 0 {
		t.Errorf("visited %d boards after cancel", rep.Boards)
	}
}

func TestRunSweepsOnInterval(t *testing.T) {
	svc := &fakeService{}
	s := New(svc, time.Second, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for svc.sweeps.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.sweeps.Load() == 0 {
		t.Error("no sweep ran within 5s")
	}
}
