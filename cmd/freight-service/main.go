package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	driverapi "freightflow/internal/driver/api"
	driverapp "freightflow/internal/driver/app"
	driverrepo "freightflow/internal/driver/repo"
	matchingapp "freightflow/internal/matching/app"
	"freightflow/internal/notify"
	podapi "freightflow/internal/pod/api"
	podapp "freightflow/internal/pod/app"
	poddomain "freightflow/internal/pod/domain"
	podrepo "freightflow/internal/pod/repo"
	"freightflow/internal/pod/vision"
	"freightflow/internal/shared/config"
	"freightflow/internal/shared/db"
	"freightflow/internal/shared/middleware"
	"freightflow/internal/shared/mq"
	"freightflow/internal/shared/util"
	shipmentapi "freightflow/internal/shipment/api"
	shipmentapp "freightflow/internal/shipment/app"
	shipmentdomain "freightflow/internal/shipment/domain"
	shipmentrepo "freightflow/internal/shipment/repo"
	walletapi "freightflow/internal/wallet/api"
	walletapp "freightflow/internal/wallet/app"
	walletrepo "freightflow/internal/wallet/repo"
)

const (
	withdrawalPollInterval = 30 * time.Second
	withdrawalHoldPeriod   = 5 * time.Minute
)

// shipmentGateway adapts the shipment component to the POD verifier's view:
// unrestricted reads plus the delivered transition.
type shipmentGateway struct {
	repo    shipmentdomain.Repository
	service *shipmentapp.ShipmentService
}

func (g *shipmentGateway) Get(ctx context.Context, shipmentID string) (*shipmentdomain.Shipment, error) {
	return g.repo.GetByID(ctx, shipmentID)
}

func (g *shipmentGateway) MarkDelivered(ctx context.Context, shipmentID string) error {
	return g.service.MarkDelivered(ctx, shipmentID)
}

var _ poddomain.ShipmentGateway = (*shipmentGateway)(nil)

func main() {
	logger := util.New()
	instance := "main"

	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal(instance, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.ConnectToDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal(instance, err)
	}
	defer pool.Close()

	rmqConn, rmqCh, err := mq.ConnectToRMQ(&cfg.RabbitMQ)
	if err != nil {
		logger.Fatal(instance, err)
	}
	defer rmqConn.Close()
	defer rmqCh.Close()

	if err := mq.DeclareExchange(rmqCh); err != nil {
		logger.Fatal(instance, err)
	}

	dispatcher := notify.NewDispatcher(mq.NewPublisher(rmqCh), logger)

	driverRepo := driverrepo.NewDriverRepo(pool)
	walletRepo := walletrepo.NewWalletRepo(pool)
	shipmentRepo := shipmentrepo.NewShipmentRepo(pool)
	podRepo := podrepo.NewPodRepo(pool)

	driverService := driverapp.NewDriverService(driverRepo, logger)
	walletService := walletapp.NewWalletService(walletRepo, driverService, dispatcher, logger)
	shipmentService := shipmentapp.NewShipmentService(shipmentRepo, driverService, walletService, dispatcher, logger)

	matcher := matchingapp.NewEngine(shipmentRepo, driverRepo, shipmentService, logger, matchingapp.DefaultWeights())

	visionClient := vision.NewClient(cfg.Vision.URL, time.Duration(cfg.Vision.TimeoutSeconds)*time.Second)
	podService := podapp.NewPodService(podRepo, visionClient,
		&shipmentGateway{repo: shipmentRepo, service: shipmentService},
		logger, podapp.DefaultPolicy())

	worker := walletapp.NewWithdrawalWorker(walletRepo, logger, withdrawalPollInterval, withdrawalHoldPeriod)
	go worker.Start(ctx)

	secret := []byte(cfg.Auth.JWTSecret)

	protected := http.NewServeMux()
	shipmentapi.NewHandler(shipmentService, matcher, logger).RegisterRoutes(protected)
	walletapi.NewHandler(walletService, logger).RegisterRoutes(protected)
	podapi.NewHandler(podService, driverService, logger).RegisterRoutes(protected)

	driverHandler := driverapi.NewHandler(driverService, secret, logger)
	driverHandler.RegisterRoutes(protected)

	root := http.NewServeMux()
	root.Handle("/", middleware.Auth(secret)(protected))
	root.HandleFunc("/ws/drivers", driverHandler.LocationStreamHandler)
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	server := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: root,
	}

	go func() {
		logger.Info(instance, "freight-service listening on :"+cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(instance, err)
		}
	}()

	<-ctx.Done()
	logger.Info(instance, "shutting down freight-service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal(instance, err)
	}
	logger.OK(instance, "freight-service stopped gracefully")
}
