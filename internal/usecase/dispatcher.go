package usecase

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

const telemetryTopic = "bms_telemetry"

// DataDispatcher decouples the ingest hot path from the MQ backends: the
// ingest actor enqueues without blocking, a worker pool drains toward the
// producer. A full channel drops the event; the register image is the
// source of truth, the queue is best-effort fan-out.
type DataDispatcher struct {
	dataChan    chan MQPayload
	producer    DataProducer
	logger      *zap.Logger
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewDataDispatcher(producer DataProducer, workerCount int, logger *zap.Logger) *DataDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &DataDispatcher{
		dataChan:    make(chan MQPayload, 10000),
		producer:    producer,
		workerCount: workerCount,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker pool.
func (d *DataDispatcher) Start() {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("DataDispatcher started", zap.Int("workers", d.workerCount))
}

// Stop signals the workers and waits for them to exit.
func (d *DataDispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	close(d.dataChan)
	d.logger.Info("DataDispatcher stopped")
}

// Dispatch enqueues without blocking; drops when the channel is full.
func (d *DataDispatcher) Dispatch(p MQPayload) {
	select {
	case d.dataChan <- p:
	default:
		d.logger.Warn("DataDispatcher channel full, dropping event",
			zap.Uint8("node", p.Node))
	}
}

func (d *DataDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case p := <-d.dataChan:
			d.process(p)
		}
	}
}

func (d *DataDispatcher) process(p MQPayload) {
	key := strconv.Itoa(int(p.Node))
	if err := d.producer.Produce(d.ctx, telemetryTopic, key, p); err != nil {
		d.logger.Error("DataDispatcher failed to send event",
			zap.Uint8("node", p.Node), zap.Error(err))
	}
}
