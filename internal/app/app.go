package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crashfeed/reporter/internal/connectivity"
	"github.com/crashfeed/reporter/internal/dal/interfaces/ireportrepo"
	"github.com/crashfeed/reporter/internal/dal/postgres"
	reportrepo "github.com/crashfeed/reporter/internal/dal/repositories/report/postgres"
	"github.com/crashfeed/reporter/internal/delivery"
	"github.com/crashfeed/reporter/internal/otel"
	"github.com/crashfeed/reporter/internal/service/services/reportersvc"
	httptransport "github.com/crashfeed/reporter/internal/transport/http"
	"github.com/crashfeed/reporter/internal/worker/dispatch"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	reporterSvc    *reportersvc.Service
	transport      *httptransport.HTTPTransport
	postgresClient *postgres.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()

	reportRepository := reportrepo.NewReportRepository(postgresClient)
	connSignal := connectivity.NewSignal()

	worker := dispatch.NewWorker(
		func() (ireportrepo.IReportRepository, error) { return reportRepository, nil },
		func() dispatch.DeliveryClient { return delivery.NewClient() },
		connSignal,
	)

	reporterSvc, err := reportersvc.Start(worker, reportersvc.Config{
		Endpoint:           viper.GetString("reporter.endpoint"),
		APIKey:             os.Getenv("REPORTER_API_KEY"),
		PersistenceEnabled: viper.GetBool("reporter.persistence_enabled"),
	})
	if err != nil {
		panic(err)
	}

	transport := httptransport.NewHTTPTransport(reporterSvc)
	transport.RegisterRoutes()

	return &App{
		reporterSvc:    reporterSvc,
		transport:      transport,
		postgresClient: postgresClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	a.gracefulShutdown()
}

// gracefulShutdown shuts down components sequentially: HTTP server,
// reporter service (final drain), PostgreSQL, and OpenTelemetry.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.reporterSvc.Dispose()
	slog.Info("Reporter service disposed")

	if err := a.postgresClient.Close(); err != nil {
		slog.Error("Database connection close error", "error", err)
	} else {
		slog.Info("Database connection closed gracefully")
	}

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("OpenTelemetry shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
