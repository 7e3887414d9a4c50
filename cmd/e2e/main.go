// Command e2e drives a full produce/consume round trip against the
// in-memory hub transport: one producer and one consumer per partition,
// batch delivery, ordering and completeness checks, and a Prometheus
// endpoint exposing consumer metrics while the run is in flight.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	streamhub "github.com/streamhub-io/streamhub-go-sdk"
	"github.com/streamhub-io/streamhub-go-sdk/credentials"
	"github.com/streamhub-io/streamhub-go-sdk/internal/memhub"
)

type config struct {
	Endpoint           string        `env:"HUB_ENDPOINT" envDefault:"e2e.hub.local"`
	Partitions         int           `env:"PARTITIONS" envDefault:"4"`
	EventsPerPartition int           `env:"EVENTS_PER_PARTITION" envDefault:"5000"`
	BatchSize          int           `env:"BATCH_SIZE" envDefault:"100"`
	BatchMaxWait       time.Duration `env:"BATCH_MAX_WAIT" envDefault:"250ms"`
	ProduceDelay       time.Duration `env:"PRODUCE_DELAY" envDefault:"0"`
	MetricsAddr        string        `env:"METRICS_ADDR" envDefault:":9090"`
	Timeout            time.Duration `env:"RUN_TIMEOUT" envDefault:"2m"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "e2e: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	hub := memhub.New(cfg.Endpoint)
	tokens := credentials.NewAccessTokenCredentials("e2e-token")

	logger.Info("starting run",
		zap.Int("partitions", cfg.Partitions),
		zap.Int("events_per_partition", cfg.EventsPerPartition),
		zap.Int("batch_size", cfg.BatchSize),
	)

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(reg)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	started := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for p := 0; p < cfg.Partitions; p++ {
		partition := strconv.Itoa(p)

		g.Go(func() error {
			return produce(ctx, hub, partition, cfg)
		})
		g.Go(func() error {
			return consume(ctx, hub, tokens, reg, logger, partition, cfg)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("run complete",
		zap.Int("events_total", cfg.Partitions*cfg.EventsPerPartition),
		zap.Duration("elapsed", time.Since(started)),
	)

	return nil
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux
}

func produce(ctx context.Context, hub *memhub.Hub, partition string, cfg config) error {
	for i := 0; i < cfg.EventsPerPartition; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		hub.Append(partition, "key-"+partition, []byte(strconv.Itoa(i)), map[string]string{
			"ordinal": strconv.Itoa(i),
		})

		if cfg.ProduceDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.ProduceDelay):
			}
		}
	}

	return nil
}

// consume reads one partition until every produced event arrived, checking
// that sequence numbers come back gapless and in order.
func consume(
	ctx context.Context,
	hub *memhub.Hub,
	tokens streamhub.TokenProvider,
	reg prometheus.Registerer,
	logger *zap.Logger,
	partition string,
	cfg config,
) error {
	var (
		received int
		nextSeq  int64
		orderErr error
	)

	consumer, err := streamhub.NewPartitionConsumer(
		streamhub.PartitionAddress{
			Endpoint:      cfg.Endpoint,
			Source:        "hub/ConsumerGroups/$default/Partitions/" + partition,
			Partition:     partition,
			ConsumerGroup: "$default",
		},
		hub,
		hub,
		tokens,
		streamhub.WithLogger(logger),
		streamhub.WithMetricsRegisterer(reg),
		streamhub.WithTrackLastEnqueued(true),
		streamhub.WithIdleTimeout(50*time.Millisecond),
		streamhub.WithBatchHandler(func(events []*streamhub.Event) {
			for _, event := range events {
				if event.SequenceNumber != nextSeq && orderErr == nil {
					orderErr = fmt.Errorf(
						"partition %s: sequence %d arrived, expected %d",
						partition, event.SequenceNumber, nextSeq,
					)
				}
				nextSeq = event.SequenceNumber + 1
				received++
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("partition %s: create consumer: %w", partition, err)
	}
	defer func() { _ = consumer.Close(context.Background()) }()

	for received < cfg.EventsPerPartition {
		if err := consumer.Receive(ctx, streamhub.ReceiveOptions{
			Batch:        true,
			MaxBatchSize: cfg.BatchSize,
			MaxWait:      cfg.BatchMaxWait,
		}); err != nil {
			return fmt.Errorf("partition %s: receive: %w", partition, err)
		}
		if orderErr != nil {
			return orderErr
		}
	}

	logger.Info("partition drained",
		zap.String("partition", partition),
		zap.Int("events", received),
	)

	return nil
}
