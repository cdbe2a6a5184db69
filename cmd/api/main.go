package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/learnlog/internal/api"
	"example.com/learnlog/internal/config"
	"example.com/learnlog/internal/domain"
	"example.com/learnlog/internal/events"
	"example.com/learnlog/internal/persistence"
	filestore "example.com/learnlog/internal/persistence/file"
	mongostore "example.com/learnlog/internal/persistence/mongo"
	pgstore "example.com/learnlog/internal/persistence/postgres"
	httptransport "example.com/learnlog/internal/transport/http"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s storage: %v", cfg.StorageBackend, err)
	}
	defer closeBlobs()
	adapter := persistence.NewAdapter(blobs, cfg.StorageBackend, persistence.WithTimeout(cfg.StorageTimeout))

	opts := []domain.Option{
		domain.WithLocation(loc),
		domain.WithEmailDomain(cfg.StudentEmailDomain),
	}
	if cfg.EventsEnabled() {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, events.WithTopic(cfg.EventsTopic))
		defer publisher.Close()
		opts = append(opts, domain.WithNotifier(publisher))
		log.Printf("publishing learning events to %s via %v", cfg.EventsTopic, cfg.KafkaBrokers)
	}

	store, err := domain.NewStore(ctx, adapter, opts...)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	if cfg.SeedSampleData {
		if _, err := store.SeedSample(ctx); err != nil {
			log.Printf("sample data not fully saved: %v", err)
		}
	}

	handler := api.NewHandler(store, api.WithTrendDays(cfg.TrendDays))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	requestLog := log.New(log.Writer(), "[http] ", log.LstdFlags)
	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Chain(mux, httptransport.RequestLogger(requestLog), httptransport.CORS(cfg.CORSAllowedOrigin)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("learnlog api listening on %s (storage=%s)", cfg.HTTPAddress, cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// openBlobStore connects the configured backend. The returned func releases
// its connections.
func openBlobStore(ctx context.Context, cfg config.Config) (persistence.BlobStore, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.StorageTimeout)
	defer cancel()

	switch cfg.StorageBackend {
	case config.BackendMemory:
		return persistence.NewMemoryStore(), func() {}, nil
	case config.BackendFile:
		return filestore.NewStore(cfg.StorageFile), func() {}, nil
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		blobs := pgstore.NewStore(pool)
		if err := blobs.EnsureSchema(connectCtx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return blobs, pool.Close, nil
	case config.BackendMongo:
		client, err := mongostore.Connect(connectCtx, cfg.MongoURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("mongo disconnect: %v", err)
			}
		}
		return mongostore.NewStore(client.Database(cfg.MongoDatabase)), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.StorageBackend)
	}
}
