package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/clinic-api/internal/authz"
	"github.com/clinicore/clinic-api/internal/config"
	appointmenthandler "github.com/clinicore/clinic-api/internal/handler/appointment"
	authhandler "github.com/clinicore/clinic-api/internal/handler/auth"
	healthhandler "github.com/clinicore/clinic-api/internal/handler/health"
	patienthandler "github.com/clinicore/clinic-api/internal/handler/patient"
	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/router"
	appointmentservice "github.com/clinicore/clinic-api/internal/service/appointment"
	auditservice "github.com/clinicore/clinic-api/internal/service/audit"
	authservice "github.com/clinicore/clinic-api/internal/service/auth"
	patientservice "github.com/clinicore/clinic-api/internal/service/patient"
	"github.com/clinicore/clinic-api/pkg/auth"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/metrics"
	"github.com/clinicore/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.New("clinic")

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	patientRepo := postgres.NewPatientRepository(base)
	doctorRepo := postgres.NewDoctorRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	hasher := security.NewBcryptHasher(0)
	tokens := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	auditor := auditservice.NewRecorder(auditRepo, log, m.AuditWriteFailures)
	patientSvc := patientservice.NewService(patientRepo, userRepo, outboxRepo, auditor, hasher, log)
	appointmentSvc := appointmentservice.NewService(appointmentRepo, doctorRepo, patientRepo, m.BookingConflicts)
	authSvc := authservice.NewService(userRepo, tokens, hasher)

	authorizer := authz.NewAuthorizer(patientRepo, doctorRepo, appointmentRepo)

	r := router.New(cfg, router.Handlers{
		Auth:        authhandler.NewHandler(authSvc),
		Patient:     patienthandler.NewHandler(patientSvc),
		Appointment: appointmenthandler.NewHandler(appointmentSvc),
		Health:      healthhandler.NewHandler(db),
		AuthMW:      middleware.NewAuthMiddleware(tokens),
		Authorizer:  authorizer,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGraceTime)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
