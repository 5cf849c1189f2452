package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeFlusher records every batch handed to it instead of hitting Postgres.
type fakeFlusher struct {
	mu      sync.Mutex
	batches [][]*Row
	failN   int // fail this many calls before succeeding
}

func (f *fakeFlusher) FlushBatch(ctx context.Context, rows []*Row) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return 0, errors.New("simulated flush failure")
	}
	cp := make([]*Row, len(rows))
	copy(cp, rows)
	f.batches = append(f.batches, cp)
	return int64(len(rows)), nil
}

func (f *fakeFlusher) totalRows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func (f *fakeFlusher) numBatches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func testRow(routerAddr string) *Row {
	return &Row{
		EventID:    ComputeEventID([]byte(routerAddr)),
		RouterAddr: routerAddr,
		MsgType:    0,
		Raw:        []byte("raw-" + routerAddr),
	}
}

func newTestPipeline(f *fakeFlusher, batchSize int, flushInterval time.Duration) *Pipeline {
	return &Pipeline{
		writer:        f,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        zap.NewNop(),
		submit:        make(chan *Row, batchSize*4),
	}
}

func TestPipeline_FlushesOnBatchSize(t *testing.T) {
	f := &fakeFlusher{}
	p := newTestPipeline(f, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	for i := 0; i < 3; i++ {
		p.Submit(testRow("router-a"))
	}

	deadline := time.After(time.Second)
	for f.numBatches() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for size-triggered flush")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if got := f.totalRows(); got != 3 {
		t.Errorf("totalRows = %d, want 3", got)
	}

	cancel()
	<-done
}

func TestPipeline_FlushesOnTicker(t *testing.T) {
	f := &fakeFlusher{}
	p := newTestPipeline(f, 100, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	p.Submit(testRow("router-b"))

	deadline := time.After(time.Second)
	for f.numBatches() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ticker-triggered flush")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	<-done
}

func TestPipeline_FlushesRemainderOnShutdown(t *testing.T) {
	f := &fakeFlusher{}
	p := newTestPipeline(f, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	p.Submit(testRow("router-c"))
	p.Submit(testRow("router-d"))

	cancel()
	<-done

	if got := f.totalRows(); got != 2 {
		t.Errorf("totalRows after shutdown = %d, want 2", got)
	}
}

func TestPipeline_Submit_DropsWhenChannelFull(t *testing.T) {
	f := &fakeFlusher{}
	p := newTestPipeline(f, 1, time.Hour)
	// submit channel capacity is batchSize*4; fill it without a Run
	// loop draining it, then confirm one more Submit doesn't block.
	for i := 0; i < cap(p.submit); i++ {
		p.Submit(testRow("router-e"))
	}

	doneCh := make(chan struct{})
	go func() {
		p.Submit(testRow("router-overflow"))
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full channel")
	}
}

func TestPipeline_OversizedBatchDroppedAfterRepeatedFailures(t *testing.T) {
	f := &fakeFlusher{failN: 1000} // always fail
	p := newTestPipeline(f, 2, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	for i := 0; i < p.batchSize*11; i++ {
		p.Submit(testRow("router-f"))
	}

	// Give the pipeline time to observe the oversized batch and drop it;
	// this only asserts it doesn't deadlock or panic under sustained
	// flush failures, since the drop is logged rather than observable
	// through the fakeFlusher (which never receives a successful batch).
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if f.numBatches() != 0 {
		t.Errorf("expected no successful batches with failN always > 0, got %d", f.numBatches())
	}
}
