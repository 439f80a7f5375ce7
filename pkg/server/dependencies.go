package server

import (
	"context"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"

	"github.com/AudioList/clover/config"
	"github.com/AudioList/clover/internal/repositories/listing"
	"github.com/AudioList/clover/internal/repositories/matchdecision"
	"github.com/AudioList/clover/internal/repositories/product"
	"github.com/AudioList/clover/pkg/database"
	"github.com/AudioList/clover/pkg/events"
	"github.com/AudioList/clover/pkg/kafka"
	"github.com/AudioList/clover/pkg/matching"
	"github.com/AudioList/clover/pkg/processor"
	"github.com/AudioList/clover/pkg/routes/health"
	"github.com/AudioList/clover/pkg/tracing"
)

// Version is stamped at build time via -ldflags
var Version = "dev"

// Dependencies holds the long-lived infrastructure the service runs on.
type Dependencies struct {
	Config   *config.Config
	Logger   ectologger.Logger
	DB       database.DB
	Producer *kafka.Producer
	Consumer *kafka.Consumer
	Checker  *health.Checker

	ProductRepo  *product.Repository
	ListingRepo  *listing.Repository
	DecisionRepo *matchdecision.Repository

	Reconciler       *processor.Reconciler
	VariantProcessor *processor.VariantProcessor

	tracingShutdown func(context.Context) error
}

// Build connects to Postgres, runs migrations, assembles the reconciliation
// pipeline, and registers the request-scoped dependencies into the default
// DI container so route handlers can resolve them from the request context.
func Build(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*Dependencies, error) {
	var tracingShutdown func(context.Context) error
	if cfg.TracingEnabled {
		shutdown, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
			ServiceName: cfg.AppName,
			Endpoint:    cfg.TracingEndpoint,
			Protocol:    cfg.TracingProtocol,
			Insecure:    cfg.TracingInsecure,
		})
		if err != nil {
			return nil, err
		}
		tracingShutdown = shutdown
	}

	db, err := database.Connect(ctx, database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if instance, ok := db.(*database.DatabaseInstance); ok {
		migrations := database.NewMigrationService(logger, &database.MigrationConfig{
			MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
			Version:             uint(cfg.DatabaseMigrationVersion),
			Force:               cfg.DatabaseMigrationForce,
		})
		if err := migrations.Migrate(cfg.DatabaseName, instance.DB); err != nil {
			return nil, err
		}
	}

	productRepo := product.NewRepository(db, logger)
	listingRepo := listing.NewRepository(db, logger)
	decisionRepo := matchdecision.NewRepository(db, logger)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)

	emitter := events.NewEmitter(producer, logger)

	reconciler := processor.NewReconciler(productRepo, listingRepo, decisionRepo, emitter, processor.Config{
		Policy: matching.Policy{
			AutoApproveThreshold:   cfg.AutoApproveThreshold,
			PendingReviewThreshold: cfg.PendingReviewThreshold,
		},
		CategoryWorkers:   cfg.CategoryWorkerCount,
		ListingBatchSize:  cfg.ListingBatchSize,
		PersistRetryCount: cfg.PersistRetryCount,
	}, logger)

	variantProcessor := processor.NewVariantProcessor(productRepo, emitter, cfg.PersistRetryCount, logger)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		ingestor := processor.NewIngestor(listingRepo, logger)
		consumer = kafka.NewConsumer(*cfg, logger, ingestor.HandleMessage)
	}

	var consumerHealth health.ConsumerHealth
	if consumer != nil {
		consumerHealth = consumer
	}
	checker := health.NewChecker(db, consumerHealth, Version)

	deps := &Dependencies{
		Config:           cfg,
		Logger:           logger,
		DB:               db,
		Producer:         producer,
		Consumer:         consumer,
		Checker:          checker,
		ProductRepo:      productRepo,
		ListingRepo:      listingRepo,
		DecisionRepo:     decisionRepo,
		Reconciler:       reconciler,
		VariantProcessor: variantProcessor,
		tracingShutdown:  tracingShutdown,
	}

	if err := deps.registerContainer(); err != nil {
		return nil, err
	}

	return deps, nil
}

func (d *Dependencies) registerContainer() error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[*product.Repository](container, d.ProductRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*listing.Repository](container, d.ListingRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*matchdecision.Repository](container, d.DecisionRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*processor.Reconciler](container, d.Reconciler); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*processor.VariantProcessor](container, d.VariantProcessor); err != nil {
		return err
	}

	return nil
}

// Start launches the background workers, currently the Kafka consumer.
func (d *Dependencies) Start(ctx context.Context) error {
	if d.Consumer != nil {
		return d.Consumer.Start(ctx)
	}
	return nil
}

// Close releases infrastructure connections in reverse dependency order.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.Consumer != nil {
		if err := d.Consumer.Stop(); err != nil {
			d.Logger.WithError(err).Error("Failed to stop Kafka consumer")
		}
	}
	if d.Producer != nil {
		if err := d.Producer.Close(); err != nil {
			d.Logger.WithError(err).Error("Failed to close Kafka producer")
		}
	}
	if d.tracingShutdown != nil {
		if err := d.tracingShutdown(ctx); err != nil {
			d.Logger.WithError(err).Error("Failed to flush tracing spans")
		}
	}
	return d.DB.Close()
}
