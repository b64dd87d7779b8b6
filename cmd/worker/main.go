package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jade-labs/atomgraph/internal/provider"
	"github.com/jade-labs/atomgraph/internal/queue"
	"github.com/jade-labs/atomgraph/internal/util"
	"github.com/jade-labs/atomgraph/pkg/ai"
	"github.com/jade-labs/atomgraph/pkg/leaselock"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/logger/console"
	vectorpgx "github.com/jade-labs/atomgraph/pkg/vector/pgx"
)

const usageReportInterval = 5 * time.Minute

func main() {
	util.LoadEnv()
	cfg := util.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		JSON:   cfg.JSONLog,
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	st, err := provider.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal("[Worker] Unable to connect to database", "err", err)
	}
	defer st.Close()

	embedder, err := provider.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal("[Worker] Could not create embedding client", "err", err)
	}
	if r, ok := embedder.(ai.UsageReporter); ok {
		go ai.ReportUsage(ctx, r, usageReportInterval)
	}

	hostname, _ := os.Hostname()
	indexer := queue.NewIndexer(queue.NewIndexerParams{
		Store:    st,
		Embedder: embedder,
		Index:    vectorpgx.NewIndex(st.Pool),
		Locker: leaselock.New(st.Pool,
			leaselock.WithWait(250*time.Millisecond, 100*time.Millisecond),
			leaselock.WithHolderPrefix(hostname+":"),
		),
		Tries:   3,
		Backoff: time.Second,
	})

	conn, err := queue.Init(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("[Worker] Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Worker] Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.ReindexQueue}); err != nil {
		logger.Fatal("[Worker] Failed to declare queues", "err", err)
	}

	// Prefetch one message at a time.
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("[Worker] Failed to set QoS", "err", err)
	}

	msgs, err := ch.Consume(
		queue.ReindexQueue,
		queue.ReindexQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("[Worker] Failed to start consuming", "queue", queue.ReindexQueue, "err", err)
	}

	logger.Info("[Worker] Listening for messages", "queue", queue.ReindexQueue)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Worker] Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Worker] Message channel closed", "queue", queue.ReindexQueue)
				return
			}

			start := time.Now()
			if err := indexer.ProcessReindexMessage(ctx, msg.Body); err != nil {
				logger.Error("[Worker] Error processing message", "queue", queue.ReindexQueue, "err", err)
				target, err := queue.HandleProcessingError(ctx, ch, msg, queue.ReindexQueue)
				if err != nil {
					logger.Error("[Worker] Failed to reroute message", "target", target, "err", err)
				} else {
					logger.Info("[Worker] Message rerouted", "target", target)
				}
				continue
			}
			if err := msg.Ack(false); err != nil {
				logger.Error("[Worker] Failed to ack message", "err", err)
			}
			logger.Debug("[Worker] Message processed", "duration", time.Since(start))
		}
	}
}
