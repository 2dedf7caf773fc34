package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"bms-gateway/internal/can"
	"bms-gateway/internal/config"
	"bms-gateway/internal/infra/kafka"
	"bms-gateway/internal/infra/mq"
	"bms-gateway/internal/infra/rabbitmq"
	"bms-gateway/internal/modbus"
	"bms-gateway/internal/protocol/ifsbms"
	"bms-gateway/internal/server"
	"bms-gateway/internal/store"
	"bms-gateway/internal/usecase"
	handler "bms-gateway/internal/usecase/ifsbms"
)

func main() {
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		panic(err)
	}

	logger := buildLogger(cfg.Log)
	defer logger.Sync()

	// Infrastructure: MQ producer (or no-op when disabled).
	producer := buildProducer(cfg, logger)
	defer producer.Close()

	dispatcher := usecase.NewDataDispatcher(producer, 4, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Core: store, liveness windows, ingest pipeline, projection.
	st := store.New()
	timeouts := buildTimeouts(cfg.BMS)
	h := handler.NewHandler(st, dispatcher, logger)
	proj := modbus.NewProjection(st, timeouts)
	unit := modbus.NewUnit(proj, func() int64 { return time.Now().UnixMilli() })

	// CAN ingest.
	src, err := can.DialSocketCAN(cfg.CAN.Interface)
	if err != nil {
		logger.Fatal("Failed to open CAN interface",
			zap.String("interface", cfg.CAN.Interface), zap.Error(err))
	}
	defer src.Close()
	pump := can.NewPump(src, cfg.CAN.QueueDepth, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := pump.Run(ctx, func(f can.Frame) {
			_ = h.HandleFrame(f.ID, f.Data[:f.Len], time.Now().UnixMilli())
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("Ingest loop exited", zap.Error(err))
		}
	}()

	// Modbus-TCP front.
	srv := server.NewTCPServer(cfg, logger, unit)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()
	_ = srv.Stop(context.Background())
}

func buildLogger(cfg config.LogConfig) *zap.Logger {
	writeSyncer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	})
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zap.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		writeSyncer,
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core, zap.AddCaller())
}

func buildProducer(cfg *config.Config, logger *zap.Logger) mq.Producer {
	if !cfg.MessageQueue.Enabled {
		return mq.NewNoOpProducer()
	}
	switch cfg.MessageQueue.Type {
	case "kafka":
		p, err := kafka.NewKafkaProducer(cfg.MessageQueue.Kafka, logger)
		if err != nil {
			logger.Error("Failed to initialize Kafka producer, telemetry disabled", zap.Error(err))
			return mq.NewNoOpProducer()
		}
		return p
	case "rabbitmq":
		p, err := rabbitmq.NewRabbitMQProducer(cfg.MessageQueue.RabbitMQ, logger)
		if err != nil {
			logger.Error("Failed to initialize RabbitMQ producer, telemetry disabled", zap.Error(err))
			return mq.NewNoOpProducer()
		}
		return p
	default:
		logger.Warn("Unknown message queue type, telemetry disabled",
			zap.String("type", cfg.MessageQueue.Type))
		return mq.NewNoOpProducer()
	}
}

func buildTimeouts(cfg config.BMSConfig) store.Timeouts {
	t := store.DefaultTimeouts()
	if cfg.NodeTimeoutMs > 0 {
		t.NodeMs = cfg.NodeTimeoutMs
	}
	for _, ft := range ifsbms.FrameTypes {
		if ms, ok := cfg.FrameTimeoutMs[ft.String()]; ok && ms > 0 {
			t.FrameMs[ft] = ms
		}
	}
	return t
}
