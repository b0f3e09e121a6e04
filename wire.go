package main

import (
	"context"
	"fmt"
	"log"

	"vinted/internal/config"
	"vinted/internal/credentials"
	"vinted/internal/models"
	"vinted/internal/query"
	"vinted/internal/repositories"
	"vinted/internal/server"
	"vinted/internal/services"
	"vinted/pkg/imagehost"
	"vinted/pkg/lock"
	"vinted/pkg/payment"
	"vinted/pkg/rabbitmq"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stores bundles the repositories of the configured backend.
type stores struct {
	Accounts repositories.AccountRepository
	Listings repositories.ListingRepository
	close    func()
}

func (s *stores) Close() {
	if s.close != nil {
		s.close()
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case "mongo":
		return openMongo(ctx, cfg)
	case "sqlite", "postgres":
		db, err := openGORM(cfg.StoreDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return &stores{
			Accounts: repositories.NewGORMAccountRepository(db),
			Listings: repositories.NewGORMListingRepository(db),
			close: func() {
				if sqlDB, err := db.DB(); err == nil {
					sqlDB.Close()
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openGORM(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.Listing{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*stores, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.MongoDB)
	accounts := repositories.NewMongoAccountRepository(db)
	listings := repositories.NewMongoListingRepository(db)
	if err := accounts.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	if err := listings.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return &stores{
		Accounts: accounts,
		Listings: listings,
		close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		},
	}, nil
}

func newImageHost(ctx context.Context, cfg *config.Config) (services.ImageHost, error) {
	if cfg.ImageHost == "s3" {
		return imagehost.NewS3(ctx, imagehost.S3Config{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3Endpoint,
			PublicURL:    cfg.S3PublicURL,
		})
	}
	return imagehost.NewMinio(ctx, imagehost.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MinioPublicURL,
	})
}

func newLocker(ctx context.Context, cfg *config.Config) (services.Locker, func(), error) {
	if cfg.LockBackend != "redis" {
		return lock.NewKeyedMutex(), func() {}, nil
	}
	rdb, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedisLocker(rdb, cfg.LockTTL), func() { rdb.Close() }, nil
}

func newPaymentProvider(cfg *config.Config) services.PaymentProvider {
	if cfg.StripeSecret == "" {
		log.Println("Warning: STRIPE_API_SECRET is empty, every charge will be refused by the provider")
	}
	return payment.NewStripe(cfg.StripeSecret)
}

// newEventPublisher returns nil when events are disabled or the broker is
// unreachable.
func newEventPublisher(cfg *config.Config) (services.EventPublisher, func()) {
	if cfg.RabbitMQURL == "" {
		return nil, func() {}
	}
	client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange})
	if err != nil {
		log.Printf("Warning: events disabled: %v", err)
		return nil, func() {}
	}
	return client, func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing RabbitMQ client: %v", err)
		}
	}
}

func newDeps(cfg *config.Config, st *stores, images services.ImageHost, provider services.PaymentProvider,
	locker services.Locker, events services.EventPublisher) server.Deps {
	hasher, err := credentials.HasherByName(cfg.Hasher)
	if err != nil {
		log.Printf("Warning: %v, falling back to sha256", err)
		hasher = credentials.SHA256Hasher{}
	}

	authOpts := []services.AuthOption{services.WithAuthTimeout(cfg.ExternalTimeout)}
	if cfg.LockoutEnabled {
		authOpts = append(authOpts, services.WithLockout(&credentials.AttemptLockout{
			MaxAttempts: cfg.LockoutMaxAttempts,
			LockFor:     cfg.LockoutDuration,
		}))
	}

	listingOpts := []services.ListingOption{
		services.WithFolderPrefix(cfg.ImageFolder),
		services.WithMaxPictures(cfg.MaxPictures),
		services.WithListingTimeout(cfg.ExternalTimeout),
	}
	paymentOpts := []services.PaymentOption{
		services.WithCurrency(cfg.Currency),
		services.WithFees(services.Fees{Protection: cfg.FeeProtection, Shipping: cfg.FeeShipping}),
		services.WithPaymentTimeout(cfg.ExternalTimeout),
	}
	if events != nil {
		listingOpts = append(listingOpts, services.WithEvents(events))
		paymentOpts = append(paymentOpts, services.WithPaymentEvents(events))
	}

	compiler := query.NewCompiler(query.ListingSchema, query.Options{
		DefaultLimit: cfg.QueryDefaultLimit,
		MaxLimit:     cfg.QueryMaxLimit,
	})

	return server.Deps{
		Auth:      services.NewAuthService(st.Accounts, credentials.NewManager(hasher), authOpts...),
		Listings:  services.NewListingService(st.Listings, compiler, images, listingOpts...),
		Payments:  services.NewPaymentService(st.Listings, st.Accounts, provider, locker, paymentOpts...),
		BodyLimit: cfg.BodyLimit,
	}
}
