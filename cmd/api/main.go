package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatecitu/cadastro-prestador/internal/admin"
	"github.com/fatecitu/cadastro-prestador/internal/broker"
	"github.com/fatecitu/cadastro-prestador/internal/config"
	"github.com/fatecitu/cadastro-prestador/internal/db"
	"github.com/fatecitu/cadastro-prestador/internal/handlers"
	"github.com/fatecitu/cadastro-prestador/internal/middleware"
	"github.com/fatecitu/cadastro-prestador/internal/repository"
)

// cmd/api/main.go
func main() {
	cfg := config.Load() // .env

	// Logger JSON "global" - permite usar slog.Info/slog.Error/Warn em qualquer lugar
	_ = config.InitLogger(cfg.LogLevel)
	slog.Info("starting", "port", cfg.Port, "mongo_db", cfg.MongoDB)

	// HOOK: admin job (one-off)
	task := flag.String("task", "", "admin task: seed")
	flag.Parse()
	if *task != "" {
		switch *task {
		case "seed":
			// conecta somente o necessário para o seed
			client, err := db.NewMongoClient(cfg.MongoURI)
			if err != nil {
				slog.Error("mongo_connect_error", "err", err)
				os.Exit(1)
			}
			defer func() { _ = client.Disconnect(context.Background()) }()

			repo := repository.NewPrestadorRepository(client.Database(cfg.MongoDB))
			if err := repo.EnsureIndexes(context.Background()); err != nil {
				slog.Error("ensure_indexes_error", "err", err)
				os.Exit(1)
			}
			if err := admin.SeedPrestadores(context.Background(), repo, slog.Default()); err != nil {
				slog.Error("seed_failed", "err", err)
				os.Exit(1)
			}
			slog.Info("seed_done")
			return // encerra o processo sem subir HTTP
		default:
			slog.Error("unknown_admin_task", "task", *task)
			os.Exit(2)
		}
	}

	// conecta Mongo
	client, err := db.NewMongoClient(cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongo connect error: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := repository.NewPrestadorRepository(client.Database(cfg.MongoDB))

	// o índice único de cnpj é o árbitro final da corrida checagem/escrita
	if err := repo.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("ensure indexes error: %v", err)
	}

	// publisher (Rabbit)
	pub, err := broker.NewPublisher(cfg.RabbitURI, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbitmq connect error: %v", err)
	}
	defer pub.Close()

	h := handlers.NewPrestadorHandler(repo, pub, cfg.StoreTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/api", h.APIInfo)
	mux.HandleFunc("/api/prestadores", h.Prestadores)
	mux.HandleFunc("/api/prestadores/", h.PrestadorSubroutes)
	mux.HandleFunc("/api/", h.NotFound) // qualquer outra rota da API
	mux.Handle("/", handlers.NewStatic(cfg.PublicDir, http.HandlerFunc(h.NotFound)))

	limiter := middleware.NewLimiterStore(cfg.RateRPS, cfg.RateBurst)
	go func() {
		for range time.Tick(2 * time.Minute) {
			limiter.Cleanup()
		}
	}()
	handler := middleware.RequestLog(
		middleware.CORS(
			middleware.RateLimit(limiter)(mux),
		),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	// start server
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown error", "err", err)
	}
}
