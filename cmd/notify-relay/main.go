// notify-relay consumes swap notification events from Kafka and stores
// them in Firestore for the external dispatcher. Without a Firebase
// project it logs events instead.
//
// It reads the same configuration as the server: KAFKA_BROKERS,
// KAFKA_TOPIC, KAFKA_DLQ_TOPIC, KAFKA_GROUP_ID and the FIREBASE_* settings.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/config"
	"github.com/jredh-dev/greenswap/internal/firebaseapp"
	"github.com/jredh-dev/greenswap/internal/notify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notify-relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fb, err := firebaseapp.Open(ctx, firebaseapp.FromConfig(cfg.Firebase))
	if err != nil {
		return err
	}
	defer fb.Close()

	var sink notify.Sink = notify.LogSink{Log: log}
	if fb != nil {
		sink = notify.NewFirestoreSink(fb.Firestore, notify.Collection)
	} else {
		log.Warn("no firebase project configured, relaying to log")
	}

	relay := notify.NewRelay(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.DLQTopic, cfg.Kafka.GroupID, sink, log)
	defer func() {
		if err := relay.Close(); err != nil {
			log.Warn("close relay", zap.Error(err))
		}
	}()

	log.Info("notify-relay starting",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic))
	if err := relay.Run(ctx); err != nil {
		return err
	}
	log.Info("notify-relay shutdown complete")
	return nil
}
