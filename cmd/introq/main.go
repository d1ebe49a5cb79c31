package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tandser/introq/directory"
	"github.com/tandser/introq/internal/config"
	"github.com/tandser/introq/internal/rabbitmq"
	"github.com/tandser/introq/messaging"
	amqptransport "github.com/tandser/introq/transports/rabbitmq"
)

var (
	version = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:     "introq",
		Short:   "Producer/consumer demo over RabbitMQ",
		Long:    "introq runs a producer and a consumer sharing one broker connection and one named queue, logging a fingerprint record per message.",
		Version: version,
	}

	var verbose bool
	rootCmd.PersistentFlags().StringVarP(&cfg.BrokerURL, "url", "u", cfg.BrokerURL, "broker connection URL")
	rootCmd.PersistentFlags().StringVarP(&cfg.Queue, "queue", "q", cfg.Queue, "destination queue name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the producer/consumer demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cfg, newLogger(verbose))
		},
	}
	runCmd.Flags().IntVarP(&cfg.Count, "count", "n", cfg.Count, "number of messages to send and expect")
	runCmd.Flags().StringVar(&cfg.AckMode, "ack", cfg.AckMode, "acknowledgment mode: transacted, auto, client, dups-ok")
	runCmd.Flags().StringVar(&cfg.DeliveryMode, "delivery", cfg.DeliveryMode, "delivery mode: non-persistent, persistent")
	runCmd.Flags().DurationVar(&cfg.WaitTimeout, "wait", cfg.WaitTimeout, "deadline for the consumer to receive every message")
	runCmd.Flags().BoolVar(&cfg.DeclareQueue, "declare", cfg.DeclareQueue, "declare the queue before running")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check broker reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkBroker(cmd.Context(), cfg, newLogger(verbose))
		},
	}

	rootCmd.AddCommand(runCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// runDemo wires both roles onto one shared connection, runs them, waits for
// the consumer's completion signal, then tears everything down. The original
// design slept a fixed duration instead of waiting for completion; the
// explicit Done signal replaces that, with the wait flag as the deadline.
func runDemo(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	registry := directory.NewRegistry()
	registry.Register(directory.ConnectionFactoryName, cfg.BrokerURL)
	registry.Register(directory.QueueName, cfg.Queue)

	manager := rabbitmq.NewConnectionManager(registry, rabbitmq.WithLogger(logger))
	transport := amqptransport.NewTransport(manager, amqptransport.WithTransportLogger(logger))
	defer transport.Close()

	if cfg.DeclareQueue {
		durable := cfg.ParsedDeliveryMode() == messaging.Persistent
		if err := transport.DeclareQueue(ctx, cfg.Queue, durable); err != nil {
			return fmt.Errorf("declare queue %q: %w", cfg.Queue, err)
		}
	}

	records := messaging.NewRecordLog(os.Stdout)

	consumer, err := messaging.NewConsumer(transport, registry, cfg.Count,
		messaging.WithConsumerAckMode(cfg.ParsedAckMode()),
		messaging.WithConsumerRecords(records),
		messaging.WithConsumerLogger(logger),
	)
	if err != nil {
		return err
	}
	defer consumer.Close()

	producer, err := messaging.NewProducer(transport, registry, cfg.Count,
		messaging.WithAckMode(cfg.ParsedAckMode()),
		messaging.WithDeliveryMode(cfg.ParsedDeliveryMode()),
		messaging.WithProducerRecords(records),
		messaging.WithProducerLogger(logger),
	)
	if err != nil {
		return err
	}

	if err := consumer.Run(ctx); err != nil {
		return err
	}
	if err := producer.Run(ctx); err != nil {
		return err
	}

	select {
	case <-consumer.Done():
		logger.Info("all messages received", "count", consumer.Received())
	case <-time.After(cfg.WaitTimeout):
		logger.Warn("deadline reached before every message arrived",
			"received", consumer.Received(),
			"expected", cfg.Count)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := consumer.Err(); err != nil {
		return err
	}
	return nil
}

// checkBroker dials the broker once and reports the result
func checkBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := directory.NewRegistry()
	registry.Register(directory.ConnectionFactoryName, cfg.BrokerURL)

	manager := rabbitmq.NewConnectionManager(registry,
		rabbitmq.WithLogger(logger),
		rabbitmq.WithDialTimeout(10*time.Second),
	)
	defer manager.Close()

	if _, err := manager.GetOrCreate(ctx); err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}

	fmt.Println("broker reachable")
	return nil
}
