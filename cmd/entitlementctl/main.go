package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Dhoini/Entitlement-microservice/config"
	"github.com/Dhoini/Entitlement-microservice/internal/kafka"
	"github.com/Dhoini/Entitlement-microservice/internal/repository/postgres"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func main() {
	// .env is optional for local use
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	if err := newRootCmd(postgresOpener(v)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// postgresOpener подключается к базе из --dsn или DATABASE_DSN. При заданном
// KAFKA_BROKERS изменения публикуются так же, как из сервиса.
func postgresOpener(v *viper.Viper) backendOpener {
	return func(ctx context.Context, dsn string, log *logger.Logger) (*backend, error) {
		if dsn == "" {
			dsn = v.GetString("DATABASE_DSN")
		}
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (--dsn or DATABASE_DSN)")
		}

		pool, err := postgres.NewConnection(ctx, dsn, 10*time.Second, log)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}

		var producer kafka.Producer = kafka.NoopProducer{}
		if brokers := v.GetString("KAFKA_BROKERS"); brokers != "" {
			producer, err = kafka.NewKafkaProducer(config.SplitList(brokers), v.GetString("KAFKA_TOPIC"), log)
			if err != nil {
				pool.Close()
				return nil, err
			}
		}

		return &backend{
			repo:   postgres.NewEntitlementRepository(pool, log),
			events: producer,
			close: func() {
				_ = producer.Close()
				pool.Close()
			},
		}, nil
	}
}
