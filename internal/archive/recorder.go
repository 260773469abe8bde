package archive

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

const (
	defaultFlushInterval = 5 * time.Second
	defaultBuffer        = 64
	flushBatch           = 32
	flushTimeout         = 5 * time.Second
)

// RecorderConfig tunes the background recorder.
type RecorderConfig struct {
	// FlushInterval is how often buffered hands are written even when
	// the batch threshold is not reached. Zero means 5s.
	FlushInterval time.Duration

	// Buffer is the intake channel capacity. Record drops hands once
	// it is full. Zero means 64.
	Buffer int

	// Clock drives the flush ticker; tests inject a mock.
	Clock quartz.Clock

	Logger *log.Logger
}

// Recorder accepts completed hands and flushes them to the store from
// a background goroutine. Archive failures are logged and dropped,
// never surfaced to play.
type Recorder struct {
	logger   *log.Logger
	store    *Store
	clock    quartz.Clock
	interval time.Duration

	in       chan Hand
	flushReq chan chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRecorder starts a recorder writing to store.
func NewRecorder(store *Store, cfg RecorderConfig) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}

	r := &Recorder{
		logger:   logger.WithPrefix("archive"),
		store:    store,
		clock:    cfg.Clock,
		interval: cfg.FlushInterval,
		in:       make(chan Hand, cfg.Buffer),
		flushReq: make(chan chan struct{}),
		stop:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record queues a completed hand without blocking. When the buffer is
// full the hand is dropped with a warning; play must never stall on
// the archive.
func (r *Recorder) Record(h Hand) {
	select {
	case r.in <- h:
	default:
		r.logger.Warn("archive buffer full, dropping hand", "hand_id", h.ID)
	}
}

// Flush writes everything buffered so far and returns once the write
// has completed. Returns immediately if the recorder is stopped.
func (r *Recorder) Flush() {
	done := make(chan struct{})
	select {
	case r.flushReq <- done:
		<-done
	case <-r.stop:
	}
}

// Stop drains the buffer, flushes, and waits for the run loop to
// exit. Safe to call more than once.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()
	ticker := r.clock.NewTicker(r.interval, "archive", "flush")
	defer ticker.Stop()

	var pending []Hand
	for {
		select {
		case h := <-r.in:
			pending = append(pending, h)
			if len(pending) >= flushBatch {
				pending = r.flush(pending)
			}
		case <-ticker.C:
			pending = append(pending, r.drain()...)
			pending = r.flush(pending)
		case done := <-r.flushReq:
			pending = append(pending, r.drain()...)
			pending = r.flush(pending)
			close(done)
		case <-r.stop:
			pending = append(pending, r.drain()...)
			r.flush(pending)
			return
		}
	}
}

// drain empties the intake channel without blocking.
func (r *Recorder) drain() []Hand {
	var hands []Hand
	for {
		select {
		case h := <-r.in:
			hands = append(hands, h)
		default:
			return hands
		}
	}
}

// flush writes pending hands. A failed batch is dropped rather than
// retried so a broken store cannot grow the buffer without bound.
func (r *Recorder) flush(pending []Hand) []Hand {
	if len(pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := r.store.InsertHands(ctx, pending); err != nil {
		r.logger.Error("archive flush failed, dropping batch",
			"hands", len(pending), "error", err)
		return nil
	}
	r.logger.Debug("flushed hands", "count", len(pending))
	return nil
}
