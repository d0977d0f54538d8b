package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/op/go-logging"

	"github.com/iliyamo/movie-tracker/internal/config"
	"github.com/iliyamo/movie-tracker/internal/database"
	"github.com/iliyamo/movie-tracker/internal/handler"
	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/queue"
	"github.com/iliyamo/movie-tracker/internal/repository"
	"github.com/iliyamo/movie-tracker/internal/router"
	"github.com/iliyamo/movie-tracker/internal/service"
	"github.com/iliyamo/movie-tracker/internal/store"
	"github.com/iliyamo/movie-tracker/internal/tracker"
)

var log = logging.MustGetLogger("movie-tracker")

func main() {
	v := config.NewViper()
	cfg, err := config.LoadFrom(v)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := config.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("log level %q: %v", cfg.LogLevel, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Accounts
	dsn := database.SQLiteDSN(cfg.DBPath)
	if cfg.DBDriver == "mysql" {
		dsn = database.MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	db, err := database.Open(cfg.DBDriver, dsn)
	if err != nil {
		log.Fatalf("open %s: %v", cfg.DBDriver, err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db, cfg.DBDriver); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// Movies
	var backend store.Backend
	switch cfg.StoreDriver {
	case "mongo":
		m, err := store.OpenMongo(cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer m.Close(context.Background())
		if err := m.EnsureIndexes(ctx); err != nil {
			log.Warningf("mongo indexes: %v", err)
		}
		backend = m
	default:
		log.Warning("STORE_DRIVER=memory: movies are lost on restart")
		backend = store.NewMemoryBackend()
	}

	var opts []tracker.Option
	if cfg.EventsEnabled {
		pub := service.NewPublisher(cfg.RabbitURL)
		defer pub.Close()
		opts = append(opts, tracker.WithNotifier(pub))
		go func() {
			if err := queue.StartActivityConsumer(ctx, cfg.RabbitURL, "logs"); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("activity consumer stopped: %v", err)
			}
		}()
	}
	genres := model.NewGenres(cfg.Genres)
	registry := tracker.NewRegistry(backend, genres, opts...)

	rdb := config.NewRedisClient(v)
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig(v)
	rlCfg := config.LoadRateLimitConfig(v)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	authH := handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db))
	movieH := handler.NewMovieHandler(registry, rdb, cacheCfg)
	router.RegisterRoutes(e, movieH)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterMovies(e, movieH, cfg.JWTSecret, rdb, cacheCfg, rlCfg)

	addr := ":" + cfg.Port
	go func() {
		log.Infof("listening on %s (env=%s, store=%s, genres=%d)", addr, cfg.Env, cfg.StoreDriver, len(genres))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
