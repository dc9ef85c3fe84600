// Executável principal da API: carrega a configuração, inicializa dependências e sobe HTTP + websocket.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/marcelojr/zelda-votos/internal/app/httpapi"
	"github.com/marcelojr/zelda-votos/internal/app/realtime"
	"github.com/marcelojr/zelda-votos/internal/app/voting"
	"github.com/marcelojr/zelda-votos/internal/app/web"
	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/antifraude"
	"github.com/marcelojr/zelda-votos/internal/platform/broadcast"
	"github.com/marcelojr/zelda-votos/internal/platform/clock"
	"github.com/marcelojr/zelda-votos/internal/platform/config"
	"github.com/marcelojr/zelda-votos/internal/platform/health"
	"github.com/marcelojr/zelda-votos/internal/platform/ids"
	"github.com/marcelojr/zelda-votos/internal/platform/logger"
	"github.com/marcelojr/zelda-votos/internal/platform/migrations"
	postgresstorage "github.com/marcelojr/zelda-votos/internal/platform/storage/postgres"
	redisstorage "github.com/marcelojr/zelda-votos/internal/platform/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuracao invalida", "err", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	// Mantemos a conexão compartilhada em todo o ciclo para reaproveitar pool e checar readiness.
	db, err := postgresstorage.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("falha ao conectar no postgres", "err", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("falha ao resgatar sql.DB", "err", err)
	}
	defer sqlDB.Close()

	if cfg.AutoMigrate {
		if err := migrations.Run(db); err != nil {
			logger.Fatal("falha na migracao automatica", "err", err)
		}
	}

	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("falha ao conectar no redis", "err", err)
	}
	defer redisClient.Close()

	barramento, err := broadcast.Open(cfg, redisClient, logger.L())
	if err != nil {
		logger.Fatal("falha ao abrir barramento de eventos", "backend", cfg.BroadcastBackend, "err", err)
	}
	defer func() {
		if err := barramento.Close(); err != nil {
			logger.Error("falha ao fechar barramento", "err", err)
		}
	}()

	dbVoto := postgresstorage.NewVotoRepository(db)
	contador := redisstorage.NewContador(redisClient, cfg.VersionKeyPrefix)

	// Sem VOTE_ASYNC a própria API grava e publica; com ele o worker termina o trabalho.
	var fila domain.Fila
	if cfg.VoteAsync {
		fila = redisstorage.NewFila(redisClient, cfg.FilaKeyPrefix)
	}

	var antifraudeSvc domain.Antifraude = antifraude.NewNoop()
	if cfg.RateLimitEnabled {
		window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
		antifraudeSvc = antifraude.NewRedisRateLimiter(redisClient, cfg.RateLimitMaxActions, window, cfg.RateLimitKeyPrefix)
	}

	servico := voting.NewService(
		dbVoto,
		contador,
		fila,
		barramento.Canal,
		antifraudeSvc,
		clock.NewSystemClock(),
		ids.NewGenerator(),
		logger.L(),
	)

	hub := realtime.NewHub(realtime.DefaultConfig(), logger.L())

	mux := http.NewServeMux()
	checker := health.NewChecker(health.SQLCheck(sqlDB), health.RedisCheck(redisClient), barramento.Check)

	api := httpapi.New(servico, logger.L())
	api.Register(mux)
	frontend, err := web.New(servico, cfg.VoteSyncStaleGuard)
	if err != nil {
		logger.Fatal("erro ao carregar templates", "err", err)
	}
	frontend.Register(mux)
	mux.Handle("/ws", hub)
	mux.HandleFunc("/readyz", checker.ReadyHandler())
	mux.Handle("/metrics", promhttp.Handler())

	// O catálogo roda em outra origem e chama GET/POST /votes direto do browser.
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           c.Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		// Toda réplica assina o barramento para entregar também votos gravados por outras.
		err := barramento.Canal.Assinar(gctx, hub.Broadcast)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("api ouvindo", "addr", cfg.HTTPAddress, "assincrono", servico.Assincrono(), "broadcast", cfg.BroadcastBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("erro no servidor", "err", err)
	}
	logger.Info("api finalizada")
}
