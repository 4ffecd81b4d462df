package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketplace-service/handlers"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/cart"
	"marketplace-service/internal/consul"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/orders"
	"marketplace-service/internal/otp"
	"marketplace-service/internal/products"
	"marketplace-service/internal/proximity"
	"marketplace-service/internal/stores/kafka"
	"marketplace-service/internal/stores/postgres"
	"marketplace-service/internal/users"
	"marketplace-service/pkg/logkey"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/joho/godotenv"
)

const serviceName = "marketplace-service"

func main() {
	setupSlog()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	if err := startApp(); err != nil {
		slog.Error("service startup failed", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func setupSlog() {
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)
}

func startApp() error {

	slog.Info("migrating database")
	db, err := postgres.OpenDB()
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	if err := postgres.RunMigrations(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	keys, err := loadKeys()
	if err != nil {
		return err
	}

	usersConf, err := users.NewConf(db)
	if err != nil {
		return fmt.Errorf("initializing users: %w", err)
	}
	productsConf, err := products.NewConf(db)
	if err != nil {
		return fmt.Errorf("initializing products: %w", err)
	}
	cartConf, err := cart.NewConf(db)
	if err != nil {
		return fmt.Errorf("initializing cart: %w", err)
	}
	ordersConf, err := orders.NewConf(db)
	if err != nil {
		return fmt.Errorf("initializing orders: %w", err)
	}
	notifyConf, err := notify.NewConf(db)
	if err != nil {
		return fmt.Errorf("initializing notifications: %w", err)
	}

	otpStore, err := otp.NewStore(os.Getenv("REDIS_URL"))
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer otpStore.Close()

	brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
	producer, err := kafka.NewConf(brokers)
	if err != nil {
		return fmt.Errorf("connecting kafka producer: %w", err)
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumerConf(brokers, kafka.TopicOrderStatusChanged, kafka.ConsumerGroupNotifications)
	if err != nil {
		return fmt.Errorf("connecting kafka consumer: %w", err)
	}
	defer consumer.Close()

	consulClient, err := consul.NewClient()
	if err != nil {
		slog.Warn("consul unavailable, skipping registration", slog.String(logkey.ERROR, err.Error()))
		consulClient = nil
	}

	matcher := proximity.NewMatcher(usersConf, proximityStrategy(consulClient))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notifications are decoupled from the order flow: the consumer turns
	// committed status events into stored notifications at its own pace.
	go consumer.ConsumeMessages(ctx, notifyConf.HandleStatusEvent)

	port, err := consul.ServicePort()
	if err != nil {
		return err
	}
	if consulClient != nil {
		if err := consul.RegisterService(consulClient, serviceName, os.Getenv("SERVICE_HOST"), port); err != nil {
			slog.Warn("consul registration failed", slog.String(logkey.ERROR, err.Error()))
		}
	}

	api, err := handlers.API(handlers.Deps{
		Users:    usersConf,
		Products: productsConf,
		Cart:     cartConf,
		Orders:   ordersConf,
		Notify:   notifyConf,
		Matcher:  matcher,
		OTP:      otpStore,
		Kafka:    producer,
		Keys:     keys,
	})
	if err != nil {
		return fmt.Errorf("building API: %w", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.Int("Port", port))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

func loadKeys() (*auth.Keys, error) {
	privatePath := os.Getenv("JWT_PRIVATE_KEY_FILE")
	if privatePath == "" {
		privatePath = "private.pem"
	}
	publicPath := os.Getenv("JWT_PUBLIC_KEY_FILE")
	if publicPath == "" {
		publicPath = "pubkey.pem"
	}

	privatePEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	publicPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return auth.NewKeys(privatePEM, publicPEM)
}

// proximityStrategy picks how vendor coverage is decided. Straight-line
// haversine by default; a routing distance service when configured, either
// by URL or by consul service name.
func proximityStrategy(consulClient *consulapi.Client) proximity.Strategy {
	if service := os.Getenv("DISTANCE_MATRIX_SERVICE"); service != "" && consulClient != nil {
		host, port, err := consul.GetServiceAddress(consulClient, service)
		if err != nil {
			slog.Warn("resolving distance service failed, falling back",
				slog.String("Service", service), slog.String(logkey.ERROR, err.Error()))
		} else {
			baseURL := fmt.Sprintf("http://%s:%d", host, port)
			return proximity.NewDistanceMatrix(baseURL, os.Getenv("DISTANCE_MATRIX_API_KEY"))
		}
	}
	if baseURL := os.Getenv("DISTANCE_MATRIX_URL"); baseURL != "" {
		return proximity.NewDistanceMatrix(baseURL, os.Getenv("DISTANCE_MATRIX_API_KEY"))
	}
	return proximity.Haversine{}
}
