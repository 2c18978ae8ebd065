package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"mesh-map-sync/internal/api"
	"mesh-map-sync/internal/config"
	"mesh-map-sync/internal/database/influx"
	"mesh-map-sync/internal/database/postgres"
	"mesh-map-sync/internal/database/postgres/listeners"
	"mesh-map-sync/internal/database/postgres/repositories"
	"mesh-map-sync/internal/device"
	"mesh-map-sync/internal/logger"
	"mesh-map-sync/internal/mq"
	"mesh-map-sync/internal/mq/handlers"
	"mesh-map-sync/internal/server"
	"mesh-map-sync/internal/services"
	"mesh-map-sync/internal/websocket"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type Application struct {
	config *config.Config

	registry  *prometheus.Registry
	apiClient *api.Client
	evaluator *device.Evaluator

	postgresDB     *postgres.PostgresDB
	influxDB       *influx.InfluxDB
	nodeRepository *repositories.NodeRepository
	listenerMgr    *listeners.ListenerManager

	hub         *websocket.Hub
	nodeService *services.NodeService
	pollService *services.PollService

	mqttClient   *mq.Client
	topicManager *mq.TopicManager
	nodeHandler  *handlers.NodeHandler

	httpServer *http.Server

	wg           sync.WaitGroup
	shutdownChan chan os.Signal
	ctx          context.Context
	cancelFunc   context.CancelFunc
}

func main() {
	app := &Application{}

	if err := app.initialize(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if err := app.run(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run application")
	}
}

func (app *Application) initialize() error {
	var err error

	app.config, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.NewLogger(app.config.Logger)
	log.Info().
		Str("component", "main").
		Str("version", app.config.Service.Version).
		Msg("Setting up service...")

	app.ctx, app.cancelFunc = context.WithCancel(context.Background())
	app.shutdownChan = make(chan os.Signal, 1)
	signal.Notify(app.shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.apiClient = api.NewClient(app.config.API, logger.GetLogger("api-client"), api.WithRegisterer(app.registry))
	app.evaluator = device.NewEvaluator(app.config.Device)

	if err := app.initializeDatabases(); err != nil {
		return fmt.Errorf("error while initialize databases: %w", err)
	}

	if err := app.initializeMQTT(); err != nil {
		return fmt.Errorf("error while initializing MQTT: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return fmt.Errorf("error while initializing services: %w", err)
	}

	if err := app.setupTopicHandlers(); err != nil {
		return fmt.Errorf("error while setting up topic handlers: %w", err)
	}

	if err := app.initializeListeners(); err != nil {
		return fmt.Errorf("error while initializing table listeners: %w", err)
	}

	app.initializeHTTP()

	log.Info().Msg("Successfully initialized application")
	return nil
}

func (app *Application) initializeDatabases() error {
	var err error

	if app.config.Postgres.Enabled {
		app.postgresDB, err = postgres.NewConnection(app.config.Postgres, logger.GetLogger("postgres"))
		if err != nil {
			return fmt.Errorf("could not connect to PostgreSQL: %w", err)
		}
		app.nodeRepository = repositories.NewNodeRepository(app.postgresDB.GetDB())
	}

	if app.config.InfluxDB.Enabled {
		app.influxDB, err = influx.NewConnection(&app.config.InfluxDB, logger.GetLogger("influxdb"))
		if err != nil {
			return fmt.Errorf("could not connect to InfluxDB: %w", err)
		}
	}

	log.Info().
		Str("component", "main").
		Bool("postgres", app.postgresDB != nil).
		Bool("influxdb", app.influxDB != nil).
		Msg("Successfully initialized databases")
	return nil
}

func (app *Application) initializeMQTT() error {
	if !app.config.MQTT.Enabled {
		return nil
	}

	var err error

	app.topicManager = mq.NewTopicManager(app.config.MQTT.BaseTopic)

	app.mqttClient, err = mq.NewClient(&app.config.MQTT, logger.GetLogger("mq-client"))
	if err != nil {
		return fmt.Errorf("could not create MQTT client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(app.ctx, 30*time.Second)
	defer cancel()

	if err := app.mqttClient.Connect(connectCtx); err != nil {
		return fmt.Errorf("could not connect to MQTT broker: %w", err)
	}

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized MQTT client")

	return nil
}

func (app *Application) initializeServices() error {
	app.hub = websocket.NewHub(logger.GetLogger("websocket-hub"))

	opts := []services.NodeServiceOption{
		services.WithBroadcaster(app.hub),
		services.WithIngestDebounce(app.config.Service.IngestDebounce),
	}
	if app.nodeRepository != nil {
		opts = append(opts, services.WithNodeStore(app.nodeRepository))
	}
	if app.influxDB != nil {
		opts = append(opts, services.WithFactsWriter(
			influx.NewFactsWriter(app.influxDB.GetWriteAPI(), logger.GetLogger("facts-writer")),
		))
	}
	if app.mqttClient != nil {
		opts = append(opts, services.WithBroadcaster(mq.NewFactsPublisher(app.mqttClient, app.topicManager)))
	}

	app.nodeService = services.NewNodeService(app.evaluator, logger.GetLogger("node-service"), opts...)

	app.pollService = services.NewPollService(
		app.apiClient,
		app.nodeService,
		app.nodeService,
		app.config.Service.PollNodeIDs,
		app.config.Service.PollInterval,
		app.config.Service.PollRateLimit,
		logger.GetLogger("poll-service"),
	)

	log.Info().
		Str("component", "main").
		Int("poll_nodes", len(app.config.Service.PollNodeIDs)).
		Msg("Successfully initialized services")
	return nil
}

func (app *Application) setupTopicHandlers() error {
	if app.mqttClient == nil {
		return nil
	}

	app.nodeHandler = handlers.NewNodeHandler(
		app.topicManager,
		app.nodeService,
		logger.GetLogger("node-handler"),
	)

	if err := app.mqttClient.Subscribe(app.topicManager.GetNodeTopic(), app.nodeHandler.HandleMessage); err != nil {
		return fmt.Errorf("error subscribing to node topic: %w", err)
	}

	return nil
}

func (app *Application) initializeListeners() error {
	if app.postgresDB == nil || !app.config.Postgres.ListenChanges {
		return nil
	}

	app.listenerMgr = listeners.NewListenerManager(
		app.postgresDB.GetDB(),
		app.config.Postgres.Dsn,
		logger.GetLogger("listener-manager"),
	)
	app.listenerMgr.RegisterListener(listeners.NewNodeTableListener(
		"nodes",
		app.hub,
		logger.GetLogger("node-listener"),
	))

	return app.listenerMgr.Initialize()
}

func (app *Application) initializeHTTP() {
	deps := server.Dependencies{
		Name:      app.config.Service.Name,
		Version:   app.config.Service.Version,
		Telemetry: app.apiClient,
		Collector: app.pollService,
		Evaluator: app.evaluator,
		Hub:       app.hub.ServeWS,
		Gatherer:  app.registry,
		Logger:    logger.GetLogger("http"),
	}
	if app.nodeRepository != nil {
		deps.Nodes = app.nodeRepository
	}

	app.httpServer = &http.Server{
		Addr:              app.config.Service.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (app *Application) run() error {
	app.wg.Add(3)

	go func() {
		defer app.wg.Done()
		app.hub.Run(app.ctx)
	}()

	go func() {
		defer app.wg.Done()
		app.pollService.Run(app.ctx)
	}()

	if app.listenerMgr != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.listenerMgr.Run(app.ctx)
		}()
	}

	go func() {
		defer app.wg.Done()
		log.Info().Str("addr", app.httpServer.Addr).Msg("HTTP server listening")
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			app.cancelFunc()
		}
	}()

	select {
	case sig := <-app.shutdownChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-app.ctx.Done():
		log.Info().Msg("context cancelled, shutting down application")
	}

	return app.shutdown()
}

func (app *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	if app.mqttClient != nil {
		app.mqttClient.Disconnect()
	}

	app.nodeService.Stop()
	app.cancelFunc()
	app.wg.Wait()

	if app.listenerMgr != nil {
		if err := app.listenerMgr.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing table listener")
		}
	}

	if app.influxDB != nil {
		app.influxDB.Close()
	}

	if app.postgresDB != nil {
		if err := app.postgresDB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing PostgreSQL connection")
		}
	}

	log.Info().Msg("Shutdown complete")
	return nil
}
