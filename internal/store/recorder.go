package store

import (
	"log/slog"
	"sync"

	"zigbee-rgb-light/internal/events"
)

const defaultRecorderBuffer = 256

// Recorder appends bus events to a journal on its own goroutine. Handle
// never blocks the publisher: events are dropped while the queue is full.
type Recorder struct {
	journal Journal
	skip    func(events.Event) bool
	logger  *slog.Logger

	queue    chan events.Event
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRecorder starts a recorder writing to j. Events for which skip returns
// true are not journaled; skip may be nil. buffer <= 0 selects the default.
func NewRecorder(j Journal, buffer int, skip func(events.Event) bool, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = defaultRecorderBuffer
	}
	r := &Recorder{
		journal: j,
		skip:    skip,
		logger:  logger.With("component", "journal"),
		queue:   make(chan events.Event, buffer),
		done:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Handle queues e for the journal. It is an events.Handler.
func (r *Recorder) Handle(e events.Event) {
	if r.skip != nil && r.skip(e) {
		return
	}
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("journal queue full, dropping event", "type", e.Type)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-r.done:
			for {
				select {
				case e := <-r.queue:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e events.Event) {
	if _, err := r.journal.Append(e.Type, e.Time, e.Data); err != nil {
		r.logger.Error("journal append", "type", e.Type, "err", err)
	}
}

// Close stops accepting events, writes the ones already queued and waits.
// It does not close the journal.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}
