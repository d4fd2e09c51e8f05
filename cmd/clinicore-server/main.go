package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/appointments"
	"github.com/clinicore/clinicore/internal/domain/doctors"
	"github.com/clinicore/clinicore/internal/domain/medicalrecords"
	"github.com/clinicore/clinicore/internal/domain/patients"
	"github.com/clinicore/clinicore/internal/domain/users"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/middleware"
	"github.com/clinicore/clinicore/internal/platform/mutation"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "clinicore-server",
		Short: "Clinicore administration API server",
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDatabase loads configuration and connects the pool. Callers own the
// returned pool.
func openDatabase(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "./migrations", "path to the migrations directory")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			fmt.Printf("applied %d migration(s) from %s\n", count, dir)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("migrate status: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
			for _, s := range statuses {
				state, when := "pending", ""
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						when = s.AppliedAt.Format(time.DateTime)
					}
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, state, when)
			}
			return w.Flush()
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("rollbacks are not supported; write a forward migration or restore from a backup")
			return nil
		},
	}

	cmd.AddCommand(up, status, down)
	return cmd
}

// seedAccount describes one development login plus the clinical profile that
// goes with its role.
type seedAccount struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	License   string // doctors only
	Specialty string // doctors only
	MRN       string // patients only
	BloodType string // patients only
}

// seedAccounts returns the fixed development logins: one admin, one doctor
// with a profile, one patient with a profile. Seeding is idempotent; accounts
// that already exist are left untouched.
func seedAccounts() []seedAccount {
	return []seedAccount{
		{
			Email:     "admin@clinicore.dev",
			Password:  "admin-dev-password",
			FirstName: "Alice",
			LastName:  "Reyes",
			Role:      auth.RoleAdmin,
		},
		{
			Email:     "dr.chen@clinicore.dev",
			Password:  "doctor-dev-password",
			FirstName: "Wei",
			LastName:  "Chen",
			Role:      auth.RoleDoctor,
			License:   "MD-100001",
			Specialty: "Cardiology",
		},
		{
			Email:     "pat.okafor@clinicore.dev",
			Password:  "patient-dev-password",
			FirstName: "Ngozi",
			LastName:  "Okafor",
			Role:      auth.RolePatient,
			MRN:       "MRN-2024-0001",
			BloodType: "O+",
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample development accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			engine := auth.NewDefaultEngine()
			issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())

			userRepo := users.NewRepoPG(pool)
			doctorRepo := doctors.NewRepoPG(pool)
			patientRepo := patients.NewRepoPG(pool)

			userSvc := users.NewService(userRepo, engine, issuer)
			doctorSvc := doctors.NewService(doctorRepo, userRepo, engine)
			patientSvc := patients.NewService(patientRepo, userRepo, doctorRepo, engine)

			// Seeding acts as a bootstrap administrator.
			admin := auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}

			for _, acc := range seedAccounts() {
				u, err := userSvc.Create(ctx, admin, users.CreateInput{
					Email:     acc.Email,
					Password:  acc.Password,
					FirstName: acc.FirstName,
					LastName:  acc.LastName,
					Role:      acc.Role,
				})
				switch {
				case err == nil:
					fmt.Printf("created %s user %s\n", acc.Role, acc.Email)
				case errors.Is(err, mutation.ErrConflict):
					fmt.Printf("user %s already exists, skipping\n", acc.Email)
					if u, err = userRepo.GetByEmail(ctx, acc.Email); err != nil {
						return err
					}
				default:
					return err
				}

				switch acc.Role {
				case auth.RoleDoctor:
					_, err = doctorSvc.Create(ctx, admin, doctors.CreateInput{
						UserID:            u.ID,
						LicenseNumber:     acc.License,
						Specialization:    acc.Specialty,
						YearsOfExperience: 12,
					})
				case auth.RolePatient:
					bloodType := acc.BloodType
					_, err = patientSvc.Create(ctx, admin, patients.CreateInput{
						UserID:              u.ID,
						MedicalRecordNumber: acc.MRN,
						BloodType:           &bloodType,
					})
				default:
					continue
				}
				if err != nil && !errors.Is(err, mutation.ErrConflict) {
					return err
				}

				fmt.Printf("  login: %s / %s (user id %s)\n", acc.Email, acc.Password, u.ID)
			}

			fmt.Println("Done. In development mode, authenticate with the X-User-ID and X-User-Role headers.")
			return nil
		},
	}
}

// rateLimitFromConfig builds the token-bucket settings for /api/v1, falling
// back to the package defaults when the configured rate is unset or invalid.
func rateLimitFromConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return rl
}

// newLogger writes JSON to stdout; development gets the console writer. ENV
// is read directly because the logger must exist before config loads.
func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// buildServer wires middleware, auth, and every domain package onto a fresh
// Echo instance. ctx bounds background work started here, such as the cache
// sweeper.
func buildServer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth enabled: identity comes from request headers")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.Authenticate(issuer))
	}
	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitFromConfig(cfg)))
	apiV1.Use(middleware.ETagMiddleware(middleware.DefaultCacheConfig()))

	// Response cache for the anonymous surface (the public doctor directory).
	// Authenticated requests bypass it, so scoped data is never shared.
	cacheStore := middleware.NewInMemoryCacheStore()
	cacheStore.StartCleanup(ctx, time.Minute)
	apiV1.Use(middleware.PublicCache(cacheStore, 30*time.Second))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	registerDomains(apiV1, pool, issuer)
	return e
}

// registerDomains builds each domain's repo/service/handler stack on the
// shared pool and policy engine and mounts its routes.
func registerDomains(api *echo.Group, pool *pgxpool.Pool, issuer *auth.TokenIssuer) {
	engine := auth.NewDefaultEngine()

	userRepo := users.NewRepoPG(pool)
	doctorRepo := doctors.NewRepoPG(pool)
	patientRepo := patients.NewRepoPG(pool)

	users.NewHandler(users.NewService(userRepo, engine, issuer)).RegisterRoutes(api)
	doctors.NewHandler(doctors.NewService(doctorRepo, userRepo, engine)).RegisterRoutes(api)
	patients.NewHandler(patients.NewService(patientRepo, userRepo, doctorRepo, engine)).RegisterRoutes(api)

	apptSvc := appointments.NewService(appointments.NewRepoPG(pool), doctorRepo, patientRepo, engine)
	appointments.NewHandler(apptSvc).RegisterRoutes(api)

	recordSvc := medicalrecords.NewService(medicalrecords.NewRepoPG(pool), doctorRepo, patientRepo, engine)
	medicalrecords.NewHandler(recordSvc).RegisterRoutes(api)
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("configuration rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()
	logger.Info().Msg("database connected")

	e := buildServer(ctx, cfg, pool, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().
			Str("addr", addr).
			Str("auth_mode", cfg.ResolvedAuthMode()).
			Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
