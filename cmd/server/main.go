package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/scriptorium-io/scriptorium/migrations"
	"github.com/scriptorium-io/scriptorium/modules/catalog/infrastructure/index"
	"github.com/scriptorium-io/scriptorium/modules/catalog/infrastructure/persistence"
	"github.com/scriptorium-io/scriptorium/modules/catalog/presentation/controllers"
	"github.com/scriptorium-io/scriptorium/modules/catalog/services"
	"github.com/scriptorium-io/scriptorium/pkg/configuration"
	"github.com/scriptorium-io/scriptorium/pkg/eventbus"
	"github.com/scriptorium-io/scriptorium/pkg/httpapi"
	"github.com/scriptorium-io/scriptorium/pkg/metrics"
	"github.com/scriptorium-io/scriptorium/pkg/middleware"
	"github.com/scriptorium-io/scriptorium/pkg/repair"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
	"github.com/scriptorium-io/scriptorium/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	if conf.MigrationsEnabled {
		if err := migrations.Up(ctx, conf.Database.Opts); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}

	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		log.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     conf.Index.URL,
		Password: conf.Index.Password,
		DB:       conf.Index.DB,
	})
	driver := index.NewRedisDriver(redisClient, conf.Index.KeyPrefix)

	subdata := persistence.NewSubdataRepository()
	keywords := persistence.NewKeywordRepository(subdata)
	persons := persistence.NewPersonRepository(subdata)
	manuscripts := persistence.NewManuscriptRepository(subdata, keywords, persons)
	managements := persistence.NewManagementRepository(subdata)
	revisions := persistence.NewRevisionRepository()

	indexer := services.NewIndexer(driver, pool, keywords, persons, manuscripts, managements)
	resolver := services.NewDependencyResolver(keywords, manuscripts, managements)
	deps := services.Deps{
		Pool:      pool,
		Revisions: revisions,
		Subdata:   subdata,
		Indexer:   indexer,
		Resolver:  resolver,
		Repairs:   repair.NewStore(),
		Bus:       eventbus.NewEventPublisher(logger),
		Logger:    logger.WithField("component", "catalog"),
	}
	keywordService := services.NewKeywordService(deps, keywords)
	personService := services.NewPersonService(deps, persons)
	manuscriptService := services.NewManuscriptService(deps, manuscripts)
	managementService := services.NewManagementService(deps, managements)
	revisionService := services.NewRevisionService(pool, revisions)

	if conf.Repair.RelayEnabled {
		relay, err := repair.NewRelay(pool, indexer, repair.RelayOptions{
			PollInterval:    conf.Repair.RelayPollInterval,
			BatchSize:       conf.Repair.RelayBatchSize,
			LockTTL:         conf.Repair.RelayLockTTL,
			MaxAttempts:     conf.Repair.RelayMaxAttempts,
			SingleActive:    conf.Repair.RelaySingleActive,
			LastErrorMaxLen: conf.Repair.LastErrorMaxBytes,
			Logger:          logger.WithField("component", "repair"),
		})
		if err != nil {
			log.Fatalf("failed to create repair relay: %v", err)
		}
		go func() {
			err := relay.Run(context.Background())
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("repair relay stopped")
			}
		}()
	}

	apiControllers := []server.Controller{
		controllers.NewKeywordController(keywordService, revisionService),
		controllers.NewPersonController(personService, revisionService),
		controllers.NewManuscriptController(manuscriptService, revisionService),
		controllers.NewManagementController(managementService, revisionService),
	}
	if conf.Prometheus.Enabled {
		apiControllers = append(apiControllers, metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{conf.Origin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", conf.ActorIDHeader, conf.RequestIDHeader},
	})
	srv := server.NewHTTPServer(
		apiControllers,
		[]mux.MiddlewareFunc{
			corsHandler.Handler,
			middleware.WithPool(pool),
			middleware.WithLogger(logger),
			middleware.WithActor(),
		},
		notFoundHandler(),
		methodNotAllowedHandler(),
	)

	log.Printf("Listening on: %s\n", conf.Origin)
	if err := srv.Start(conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, serrors.CodeNotFound, "route not found", nil)
	})
}

func methodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, serrors.CodeBadRequest, "method not allowed", nil)
	})
}
