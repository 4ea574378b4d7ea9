package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/metrics"
)

type mockStore struct {
	mu     sync.Mutex
	saved  []domain.Task
	SaveFn func(ctx context.Context, task *domain.Task) error
}

func (m *mockStore) SaveTask(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, *task)
	if m.SaveFn != nil {
		return m.SaveFn(ctx, task)
	}
	return nil
}

func (m *mockStore) last() domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[len(m.saved)-1]
}

func testDispatcher(t *testing.T, maxAttempts int) (*Dispatcher, *mockStore) {
	t.Helper()
	store := &mockStore{}
	d, err := NewDispatcher(Config{
		Workers:     2,
		MaxAttempts: maxAttempts,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}, store, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(d.Close)
	return d, store
}

func TestDispatcher_Success(t *testing.T) {
	d, store := testDispatcher(t, 3)

	done := make(chan struct{})
	task := &domain.Task{ID: "t1", FileID: "f1", Stage: domain.StageParse}
	err := d.Submit(context.Background(), task, func(ctx context.Context, task *domain.Task) error {
		defer close(done)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	<-done
	d.Close()

	got := store.last()
	if got.Status != domain.TaskSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.FinishedAt == 0 {
		t.Error("finished_at not set")
	}
}

func TestDispatcher_TransientErrorRetriesThenSucceeds(t *testing.T) {
	d, store := testDispatcher(t, 5)

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{})

	task := &domain.Task{ID: "t1", FileID: "f1", Stage: domain.StageEmbed}
	err := d.Submit(context.Background(), task, func(ctx context.Context, task *domain.Task) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			return domain.ErrProviderUnavailable
		}
		close(done)
		return nil
	}, func(ctx context.Context, task *domain.Task, err error) {
		t.Error("dead letter must not fire on eventual success")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not succeed in time")
	}
	d.Close()

	got := store.last()
	if got.Status != domain.TaskSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts)
	}
}

func TestDispatcher_FatalErrorDeadLettersWithoutRetry(t *testing.T) {
	d, store := testDispatcher(t, 5)

	dead := make(chan error, 1)
	task := &domain.Task{ID: "t1", FileID: "f1", Stage: domain.StageEmbed}
	err := d.Submit(context.Background(), task, func(ctx context.Context, task *domain.Task) error {
		return domain.ErrProviderAuth
	}, func(ctx context.Context, task *domain.Task, err error) {
		dead <- err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case cause := <-dead:
		if !errors.Is(cause, domain.ErrProviderAuth) {
			t.Errorf("cause = %v", cause)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dead letter not invoked")
	}
	d.Close()

	got := store.last()
	if got.Status != domain.TaskFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (fatal errors never retry)", got.Attempts)
	}
}

func TestDispatcher_RetryBudgetExhaustion(t *testing.T) {
	d, store := testDispatcher(t, 3)

	dead := make(chan struct{})
	task := &domain.Task{ID: "t1", FileID: "f1", Stage: domain.StageEmbed}
	err := d.Submit(context.Background(), task, func(ctx context.Context, task *domain.Task) error {
		return domain.ErrRateLimited
	}, func(ctx context.Context, task *domain.Task, err error) {
		close(dead)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-dead:
	case <-time.After(2 * time.Second):
		t.Fatal("dead letter not invoked after budget exhaustion")
	}
	d.Close()

	got := store.last()
	if got.Status != domain.TaskFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts)
	}
	if got.LastError == "" {
		t.Error("last error not recorded")
	}
}

// stageDurationSamples reads the histogram sample count for one stage label.
func stageDurationSamples(t *testing.T, stage domain.Stage) uint64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.PipelineStageDuration)
	fams, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range fams {
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "stage" && l.GetValue() == string(stage) {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func TestDispatcher_StageDurationObservedOncePerExecution(t *testing.T) {
	d, _ := testDispatcher(t, 3)

	before := stageDurationSamples(t, domain.StageChunk)

	done := make(chan struct{})
	task := &domain.Task{ID: "t1", FileID: "f1", Stage: domain.StageChunk}
	err := d.Submit(context.Background(), task, func(ctx context.Context, task *domain.Task) error {
		defer close(done)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	<-done
	d.Close()

	if got := stageDurationSamples(t, domain.StageChunk) - before; got != 1 {
		t.Errorf("duration samples per execution = %d, want exactly 1", got)
	}
}

func TestDispatcher_SubmitAfterClose(t *testing.T) {
	d, _ := testDispatcher(t, 3)
	d.Close()

	task := &domain.Task{ID: "t1", FileID: "f1", Stage: domain.StageParse}
	if err := d.Submit(context.Background(), task, nil, nil); err == nil {
		t.Error("submit after close must fail")
	}
}

func TestDispatcher_BackoffGrowsAndCaps(t *testing.T) {
	store := &mockStore{}
	d, err := NewDispatcher(Config{
		Workers:     1,
		MaxAttempts: 10,
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  30 * time.Second,
	}, store, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	within := func(got, want time.Duration) bool {
		lo := time.Duration(float64(want) * 0.8)
		hi := time.Duration(float64(want) * 1.2)
		return got >= lo && got <= hi
	}

	if got := d.backoff(1); !within(got, 500*time.Millisecond) {
		t.Errorf("backoff(1) = %v", got)
	}
	if got := d.backoff(3); !within(got, 2*time.Second) {
		t.Errorf("backoff(3) = %v", got)
	}
	if got := d.backoff(20); !within(got, 30*time.Second) {
		t.Errorf("backoff(20) = %v, want capped near 30s", got)
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	if _, err := NewDispatcher(Config{Workers: 0, MaxAttempts: 3}, &mockStore{}, zap.NewNop()); err == nil {
		t.Error("zero workers must fail")
	}
	if _, err := NewDispatcher(Config{Workers: 1, MaxAttempts: 0}, &mockStore{}, zap.NewNop()); err == nil {
		t.Error("zero max attempts must fail")
	}
}
