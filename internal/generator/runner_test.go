package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"povgallery/internal/entity"
	"povgallery/internal/gallery"
	"povgallery/internal/llm"
)

// scriptedSource 可编排的内容源：按批次序号决定成功、失败或空响应。
type scriptedSource struct {
	mu         sync.Mutex
	calls      int
	readyErr   error
	failAt     int   // 第 failAt 次调用返回错误（0 表示永不）
	emptyFrom  int   // 从第 emptyFrom 次调用起返回空批次（0 表示永不）
	gate       chan struct{} // 非 nil 时每次调用先等待放行
	started    chan struct{} // 非 nil 时每次调用开始先发信号
}

func (s *scriptedSource) Ready() error {
	return s.readyErr
}

func (s *scriptedSource) GenerateScenes(ctx context.Context, req llm.GenerateScenesRequest) ([]llm.SceneDraft, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	started := s.started
	gate := s.gate
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	if s.failAt > 0 && call >= s.failAt {
		return nil, errors.New("simulated network failure")
	}
	if s.emptyFrom > 0 && call >= s.emptyFrom {
		return nil, nil
	}

	drafts := make([]llm.SceneDraft, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		drafts = append(drafts, llm.SceneDraft{
			ID:          req.StartID + uint(i),
			Description: fmt.Sprintf("scripted scene %d", req.StartID+uint(i)),
			Category:    "Neon",
		})
	}
	return drafts, nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// eventRecorder 线程安全的事件记录器
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (e *eventRecorder) record(event string, payload map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *eventRecorder) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, recorded := range e.events {
		if recorded == event {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRunnerCompletesFullRun(t *testing.T) {
	col := gallery.NewCollection()
	source := &scriptedSource{}
	events := &eventRecorder{}

	r := NewRunner(col, source, nil)
	r.SetNotifyFunc(events.record)

	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return !r.Stats().IsGenerating
	})

	stats := r.Stats()
	if stats.TotalGenerated != entity.TotalGoal {
		t.Fatalf("expected %d generated, got %d", entity.TotalGoal, stats.TotalGenerated)
	}
	if col.Len() != entity.TotalGoal {
		t.Fatalf("expected collection length %d, got %d", entity.TotalGoal, col.Len())
	}
	if stats.CompletedBatches != entity.TotalGoal/entity.BatchSize {
		t.Fatalf("expected %d batches, got %d", entity.TotalGoal/entity.BatchSize, stats.CompletedBatches)
	}
	if got := events.count(EventGenerationCompleted); got != 1 {
		t.Fatalf("expected exactly one completion notice, got %d", got)
	}

	// ID 严格递增且连续
	for i, scene := range col.All() {
		if scene.ID != uint(i+1) {
			t.Fatalf("expected id %d at position %d, got %d", i+1, i, scene.ID)
		}
	}
}

func TestRunnerHaltsOnBatchFailure(t *testing.T) {
	col := gallery.NewCollection()
	source := &scriptedSource{failAt: 3}
	events := &eventRecorder{}

	r := NewRunner(col, source, nil)
	r.SetNotifyFunc(events.record)

	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return !r.Stats().IsGenerating
	})

	stats := r.Stats()
	if col.Len() != 2*entity.BatchSize {
		t.Fatalf("expected %d records from two batches, got %d", 2*entity.BatchSize, col.Len())
	}
	if stats.TotalGenerated != col.Len() {
		t.Fatalf("stats out of sync: %d vs %d", stats.TotalGenerated, col.Len())
	}
	if got := events.count(EventGenerationFailed); got != 1 {
		t.Fatalf("expected exactly one failure notice, got %d", got)
	}
	if got := events.count(EventGenerationCompleted); got != 0 {
		t.Fatalf("expected no completion notice, got %d", got)
	}
}

func TestRunnerStopAppliesInFlightBatch(t *testing.T) {
	col := gallery.NewCollection()
	source := &scriptedSource{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}

	r := NewRunner(col, source, nil)
	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// 等第一批进入在途状态后再停止
	<-source.started
	r.Stop()
	if r.Stats().IsGenerating {
		t.Fatal("expected stats frozen immediately after stop")
	}

	// 放行在途批次
	source.gate <- struct{}{}

	waitFor(t, 2*time.Second, func() bool {
		return col.Len() == entity.BatchSize
	})

	// 结果已入库，但不允许继续发起新批次
	time.Sleep(50 * time.Millisecond)
	if got := source.callCount(); got != 1 {
		t.Fatalf("expected no further batch after stop, got %d calls", got)
	}
	if r.Stats().TotalGenerated != entity.BatchSize {
		t.Fatalf("expected in-flight batch counted, got %d", r.Stats().TotalGenerated)
	}
}

func TestRunnerResumeContinuesNumbering(t *testing.T) {
	col := gallery.NewCollection()
	source := &scriptedSource{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}

	r := NewRunner(col, source, nil)
	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-source.started
	r.Stop()
	source.gate <- struct{}{}
	waitFor(t, 2*time.Second, func() bool {
		return col.Len() == entity.BatchSize
	})
	statsAfterStop := r.Stats()

	// 续跑：不清零计数，编号从当前长度继续
	source.mu.Lock()
	source.gate = nil
	source.started = nil
	source.mu.Unlock()

	if err := r.Start(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if r.Stats().TotalGenerated != statsAfterStop.TotalGenerated {
		t.Fatal("resume must not reset counters while collection is non-empty")
	}

	waitFor(t, 5*time.Second, func() bool {
		return !r.Stats().IsGenerating
	})

	if col.Len() != entity.TotalGoal {
		t.Fatalf("expected full collection after resume, got %d", col.Len())
	}
	scene, ok := col.Get(uint(entity.BatchSize) + 1)
	if !ok {
		t.Fatal("expected record right after the resume boundary")
	}
	if scene.ID != uint(entity.BatchSize)+1 {
		t.Fatalf("unexpected id %d", scene.ID)
	}
}

func TestRunnerStartRequiresCredential(t *testing.T) {
	col := gallery.NewCollection()
	source := &scriptedSource{readyErr: llm.ErrMissingCredential}

	r := NewRunner(col, source, nil)
	err := r.Start()
	if !errors.Is(err, llm.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if r.Stats().IsGenerating {
		t.Fatal("loop must not activate without a credential")
	}
}

func TestRunnerStartIsIdempotent(t *testing.T) {
	col := gallery.NewCollection()
	source := &scriptedSource{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}

	r := NewRunner(col, source, nil)
	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-source.started
	if err := r.Start(); err != nil {
		t.Fatalf("second start must be a no-op, got %v", err)
	}

	r.Stop()
	source.gate <- struct{}{}
	waitFor(t, 2*time.Second, func() bool {
		return source.callCount() == 1 && col.Len() == entity.BatchSize
	})
}

func TestRunnerHaltsOnRepeatedEmptyBatches(t *testing.T) {
	col := gallery.NewCollection()
	source := &scriptedSource{emptyFrom: 1}
	events := &eventRecorder{}

	r := NewRunner(col, source, nil)
	r.SetNotifyFunc(events.record)

	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return !r.Stats().IsGenerating
	})

	if col.Len() != 0 {
		t.Fatalf("expected empty collection, got %d", col.Len())
	}
	if got := source.callCount(); got != maxEmptyBatches {
		t.Fatalf("expected %d attempts before stalling out, got %d", maxEmptyBatches, got)
	}
	if got := events.count(EventGenerationFailed); got != 1 {
		t.Fatalf("expected exactly one failure notice, got %d", got)
	}
}

func TestRunnerResetsStatsOnFreshRun(t *testing.T) {
	col := gallery.NewCollection()
	source := &scriptedSource{}

	r := NewRunner(col, source, nil)
	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		return !r.Stats().IsGenerating
	})

	stats := r.Stats()
	if stats.StartedAt.IsZero() {
		t.Fatal("expected start timestamp recorded for a fresh run")
	}
	if stats.TotalGenerated != entity.TotalGoal {
		t.Fatalf("expected %d generated, got %d", entity.TotalGoal, stats.TotalGenerated)
	}
}
