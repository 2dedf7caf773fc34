package can

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Frame is one received CAN frame as handed over by the driver.
type Frame struct {
	ID   uint32
	Len  uint8
	Data [8]byte
}

// Source delivers raw frames from a bus. The bridge only receives; there
// is no transmit path toward the BMS.
type Source interface {
	Receive(ctx context.Context) (Frame, error)
	Close() error
}

// Pump crosses frames from the driver into the single-threaded ingest
// actor through a bounded queue. The receive goroutine never blocks on a
// slow consumer: a full queue drops the frame and counts it.
type Pump struct {
	src     Source
	queue   chan Frame
	errC    chan error
	logger  *zap.Logger
	dropped atomic.Uint64
}

func NewPump(src Source, depth int, logger *zap.Logger) *Pump {
	if depth <= 0 {
		depth = 256
	}
	return &Pump{
		src:    src,
		queue:  make(chan Frame, depth),
		errC:   make(chan error, 1),
		logger: logger,
	}
}

// Dropped returns the number of frames lost to queue overflow.
func (p *Pump) Dropped() uint64 {
	return p.dropped.Load()
}

// Run receives until ctx is done, calling handle for each frame from a
// single goroutine. Each frame is handled to completion before the next
// is dequeued. A driver failure returns the error to the caller; the
// ingest actor never dies silently while the process stays up.
func (p *Pump) Run(ctx context.Context, handle func(Frame)) error {
	go p.receiveLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-p.errC:
			// Frames enqueued before the failure are still handled.
			for {
				select {
				case f := <-p.queue:
					handle(f)
				default:
					return err
				}
			}
		case f := <-p.queue:
			handle(f)
		}
	}
}

func (p *Pump) receiveLoop(ctx context.Context) {
	for {
		f, err := p.src.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("CAN receive failed", zap.Error(err))
			p.errC <- err
			return
		}
		select {
		case p.queue <- f:
		default:
			if n := p.dropped.Add(1); n%1000 == 1 {
				p.logger.Warn("Ingest queue full, dropping frame",
					zap.Uint32("can_id", f.ID),
					zap.Uint64("dropped_total", n))
			}
		}
	}
}
