package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"firewatch-cloud/internal/audit"
	"firewatch-cloud/internal/auth"
	"firewatch-cloud/internal/codes"
	codesrepo "firewatch-cloud/internal/codes/infrastructure/postgres"
	datalogapp "firewatch-cloud/internal/datalog/application"
	datalogrepo "firewatch-cloud/internal/datalog/infrastructure/postgres"
	dataloghttp "firewatch-cloud/internal/datalog/interfaces/http"
	deviceapp "firewatch-cloud/internal/devices/application"
	devicerepo "firewatch-cloud/internal/devices/infrastructure/postgres"
	"firewatch-cloud/internal/eventing"
	firehistoryapp "firewatch-cloud/internal/firehistory/application"
	firehistoryrepo "firewatch-cloud/internal/firehistory/infrastructure/postgres"
	firehistoryhttp "firewatch-cloud/internal/firehistory/interfaces/http"
	"firewatch-cloud/internal/ingest"
	ingesthttp "firewatch-cloud/internal/ingest/interfaces/http"
	ingestmqtt "firewatch-cloud/internal/ingest/interfaces/mqtt"
	"firewatch-cloud/internal/marketstatus"
	marketstatushttp "firewatch-cloud/internal/marketstatus/interfaces/http"
	"firewatch-cloud/internal/marketstatus/statuscache"
	"firewatch-cloud/internal/observability/metrics"

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	marketRepo := devicerepo.NewMarketRepository(db)
	receiverRepo := devicerepo.NewReceiverRepository(db)
	repeaterRepo := devicerepo.NewRepeaterRepository(db)
	detectorRepo := devicerepo.NewDetectorRepository(db)

	identity, err := deviceapp.NewIdentity(marketRepo, receiverRepo, repeaterRepo, detectorRepo)
	if err != nil {
		logger.Fatalf("identity service error: %v", err)
	}

	registryOpts := []codes.RegistryOption{}
	if cfg.CodeSeedPath != "" {
		seed, err := codes.LoadSeed(cfg.CodeSeedPath)
		if err != nil {
			logger.Fatalf("code seed error: %v", err)
		}
		registryOpts = append(registryOpts, seed.RegistryOptions()...)
	}
	registry := codes.NewRegistry(logger, registryOpts...)
	if err := registry.Load(context.Background(), codesrepo.NewCodeRepository(db)); err != nil {
		if !errors.Is(err, codes.ErrRegistryUnavailable) {
			logger.Fatalf("code registry error: %v", err)
		}
		// Degraded mode: raw codes pass through, classification continues.
		logger.Printf("code registry degraded: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	bus.Subscribe(eventing.EventTypeOf[eventing.EventClassified](), func(_ context.Context, event any) error {
		classified, ok := event.(eventing.EventClassified)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		if classified.Severity == "fire" {
			logger.Printf("fire classified: market=%s receiver=%s ledger=%d", classified.MarketName, classified.ReceiverMAC, classified.LedgerID)
		}
		return nil
	})

	statusBroker := marketstatushttp.NewSSEBroker()
	notifiers := []marketstatus.Notifier{statusBroker, marketstatus.NotifierFunc(func(ctx context.Context, event marketstatus.StatusEvent) {
		_ = bus.Publish(ctx, eventing.MarketStatusChanged{
			EventID:    eventing.NewEventID(),
			MarketID:   event.MarketID,
			MarketName: event.MarketName,
			Status:     string(event.Status),
			Severity:   event.Severity,
			OccurredAt: event.At,
		})
	})}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		notifiers = append(notifiers, statuscache.NewMirror(client, cfg.StatusCacheTTL, logger))
	}
	aggregator := marketstatus.NewAggregator(logger,
		marketstatus.WithStatusWriter(marketRepo),
		marketstatus.WithNotifier(marketstatus.NewMultiNotifier(notifiers...)),
	)

	ledgerService, err := firehistoryapp.NewService(firehistoryrepo.NewRepository(db), logger)
	if err != nil {
		logger.Fatalf("fire history service error: %v", err)
	}
	datalogService, err := datalogapp.NewService(datalogrepo.NewRepository(db), logger,
		datalogapp.WithRetention(cfg.ReceptionRetention))
	if err != nil {
		logger.Fatalf("data reception service error: %v", err)
	}
	if cfg.SweepInterval > 0 {
		go datalogService.RunSweeper(context.Background(), cfg.SweepInterval)
	}

	ingestService, err := ingest.NewService(identity, registry, ledgerService, datalogService, aggregator, logger,
		ingest.WithPublisher(bus))
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}

	if cfg.MQTTBroker != "" {
		consumer, err := ingestmqtt.NewConsumer(ingestmqtt.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Topic:    cfg.MQTTTopic,
			QoS:      1,
		}, ingestService, logger)
		if err != nil {
			logger.Fatalf("mqtt consumer error: %v", err)
		}
		defer consumer.Close()
		if err := consumer.Start(context.Background()); err != nil {
			logger.Fatalf("mqtt subscribe error: %v", err)
		}
	}

	ingestHandler, err := ingesthttp.NewIngestHandler(ingestService, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	auditRepo := audit.NewRepository(db)
	historyHandler, err := firehistoryhttp.NewHandler(ledgerService, auditRepo)
	if err != nil {
		logger.Fatalf("fire history handler error: %v", err)
	}
	receptionHandler, err := dataloghttp.NewHandler(datalogService, auditRepo)
	if err != nil {
		logger.Fatalf("data reception handler error: %v", err)
	}
	statusHandler, err := marketstatushttp.NewHandler(aggregator)
	if err != nil {
		logger.Fatalf("market status handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/ingest", ingestHandler)
	mux.Handle("/api/v1/fire-history", historyHandler)
	mux.Handle("/api/v1/fire-history/", historyHandler)
	mux.Handle("/api/v1/data-reception", receptionHandler)
	mux.Handle("/api/v1/data-reception/", receptionHandler)
	mux.Handle("/api/v1/markets/", statusHandler)
	mux.Handle("/api/v1/markets/status", statusHandler)
	mux.Handle("/api/v1/markets/status/stream", marketstatushttp.NewStreamHandler(statusBroker))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	registrarMiddleware := auth.NewRegistrarMiddleware([]byte(cfg.JWTSecret))
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(registrarMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	RedisAddr          string
	RedisPassword      string
	StatusCacheTTL     time.Duration
	MQTTBroker         string
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTTopic          string
	JWTSecret          string
	CodeSeedPath       string
	ReceptionRetention time.Duration
	SweepInterval      time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		RedisAddr:          getenvDefault("REDIS_ADDR", ""),
		RedisPassword:      getenvDefault("REDIS_PASSWORD", ""),
		StatusCacheTTL:     getenvDuration("STATUS_CACHE_TTL", 5*time.Minute),
		MQTTBroker:         getenvDefault("MQTT_BROKER", ""),
		MQTTClientID:       getenvDefault("MQTT_CLIENT_ID", "firewatch-ingest"),
		MQTTUsername:       getenvDefault("MQTT_USERNAME", ""),
		MQTTPassword:       getenvDefault("MQTT_PASSWORD", ""),
		MQTTTopic:          getenvDefault("MQTT_TOPIC", ingestmqtt.DefaultTopic),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		CodeSeedPath:       getenvDefault("CODE_SEED_PATH", ""),
		ReceptionRetention: getenvDuration("RECEPTION_RETENTION", 7*24*time.Hour),
		SweepInterval:      getenvDuration("RECEPTION_SWEEP_INTERVAL", time.Hour),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
