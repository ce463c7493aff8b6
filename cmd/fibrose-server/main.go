package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fibrose/fibrose/internal/config"
	"github.com/fibrose/fibrose/internal/domain/audit"
	"github.com/fibrose/fibrose/internal/domain/clinician"
	"github.com/fibrose/fibrose/internal/domain/diagnostic"
	"github.com/fibrose/fibrose/internal/domain/patient"
	"github.com/fibrose/fibrose/internal/domain/stats"
	"github.com/fibrose/fibrose/internal/platform/auth"
	"github.com/fibrose/fibrose/internal/platform/blobstore"
	"github.com/fibrose/fibrose/internal/platform/db"
	"github.com/fibrose/fibrose/internal/platform/middleware"
	"github.com/fibrose/fibrose/internal/platform/predict"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fibrose-server",
		Short: "Liver fibrosis clinical records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// seedUsers are the demo accounts. Seeding is skipped entirely once any user
// exists, so re-running is safe.
var seedUsers = []struct {
	name, email, password string
	role                  auth.Role
}{
	{"Dr. Martin Dubois", "martin.dubois@hopital.fr", "password123", auth.RoleClinician},
	{"Dr. Sophie Laurent", "sophie.laurent@hopital.fr", "password123", auth.RoleClinician},
	{"Admin Système", "admin@hopital.fr", "admin123", auth.RoleAdmin},
	{"Super Admin", "superadmin@hopital.fr", "super123", auth.RoleSuperAdmin},
}

// seedPatients are demo records split between the two demo clinicians so the
// scoping rules are visible right after seeding.
var seedPatients = []struct {
	lastName, firstName, birthDate string
	sex                            patient.Sex
	phone, email, address          string
	ownerEmail                     string
}{
	{"Dupont", "Jean", "1975-05-15", patient.SexMale, "01 23 45 67 89",
		"jean.dupont@email.fr", "123 Rue de la Santé, 75014 Paris", "martin.dubois@hopital.fr"},
	{"Martin", "Marie", "1982-09-22", patient.SexFemale, "01 98 76 54 32",
		"marie.martin@email.fr", "456 Avenue du Bien-être, 69001 Lyon", "martin.dubois@hopital.fr"},
	{"Bernard", "Pierre", "1968-12-10", patient.SexMale, "04 56 78 90 12",
		"", "", "sophie.laurent@hopital.fr"},
	{"Leroy", "Anne", "1990-03-08", patient.SexFemale, "02 34 56 78 90",
		"anne.leroy@email.fr", "789 Boulevard de la Santé, 13001 Marseille", "sophie.laurent@hopital.fr"},
}

// seedDiagnostics reference seedPatients by index; the signing clinician is
// always the patient's owner.
var seedDiagnostics = []struct {
	patientIdx int
	modelName  string
	stage      int
	confidence float64
	notes      string
}{
	{0, "Vision Transformer v2.1", 1, 0.87, "Fibrose légère détectée"},
	{1, "Vision Transformer v2.1", 0, 0.92, "Pas de fibrose détectée"},
	{2, "Vision Transformer v2.0", 3, 0.74, "Fibrose sévère - suivi rapproché recommandé"},
	{3, "Vision Transformer v2.1", 2, 0.81, "Fibrose modérée détectée"},
}

// seedImage is a 1x1 transparent PNG stored as the scan behind each demo
// diagnostic, so the image download route works out of the box.
var seedImage = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create demo users, patients and diagnostics if the database is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := clinician.NewService(clinician.NewRepoPG(pool))
			count, err := svc.Count(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				fmt.Println("Database already has users, skipping seed.")
				return nil
			}

			owners := make(map[string]uuid.UUID, len(seedUsers))
			for _, u := range seedUsers {
				user, err := svc.Register(ctx, u.name, u.email, u.password, u.role)
				if err != nil {
					return fmt.Errorf("seed user %s: %w", u.email, err)
				}
				owners[u.email] = user.ID
				fmt.Printf("Created %s (%s)\n", u.email, u.role)
			}

			blobs, err := blobstore.NewFSStore(cfg.UploadDir)
			if err != nil {
				return fmt.Errorf("open upload dir: %w", err)
			}
			patientRepo := patient.NewRepoPG(pool)
			diagnosticRepo := diagnostic.NewRepoPG(pool)

			patients := make([]*patient.Patient, len(seedPatients))
			for i, sp := range seedPatients {
				birth, err := time.Parse("2006-01-02", sp.birthDate)
				if err != nil {
					return fmt.Errorf("seed patient %s: %w", sp.lastName, err)
				}
				p := &patient.Patient{
					LastName:          sp.lastName,
					FirstName:         sp.firstName,
					BirthDate:         birth,
					Sex:               sp.sex,
					OwningClinicianID: owners[sp.ownerEmail],
				}
				if sp.phone != "" {
					p.Phone = &sp.phone
				}
				if sp.email != "" {
					p.Email = &sp.email
				}
				if sp.address != "" {
					p.Address = &sp.address
				}
				if err := patientRepo.Create(ctx, p); err != nil {
					return fmt.Errorf("seed patient %s: %w", sp.lastName, err)
				}
				patients[i] = p
				fmt.Printf("Created patient %s %s\n", sp.firstName, sp.lastName)
			}

			for _, sd := range seedDiagnostics {
				locator, err := blobs.Store(ctx, seedImage, ".png")
				if err != nil {
					return fmt.Errorf("seed diagnostic image: %w", err)
				}
				p := patients[sd.patientIdx]
				notes := sd.notes
				d := &diagnostic.Diagnostic{
					PatientID:    p.ID,
					ClinicianID:  p.OwningClinicianID,
					ModelName:    sd.modelName,
					Stage:        sd.stage,
					Confidence:   sd.confidence,
					ImageLocator: locator,
					Notes:        &notes,
				}
				if err := diagnosticRepo.Create(ctx, d); err != nil {
					return fmt.Errorf("seed diagnostic for %s: %w", p.LastName, err)
				}
			}
			fmt.Printf("Created %d demo diagnostics\n", len(seedDiagnostics))
			return nil
		},
	}
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	blobs, err := blobstore.NewFSStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("failed to open upload dir")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	// Largest legitimate request is an image upload; allow slack for the
	// multipart framing.
	e.Use(middleware.BodyLimit(blobstore.MaxBlobSize + 1<<20))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Shared collaborators
	transactor := db.NewTransactor(pool)
	auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)

	// Domain services
	clinicianSvc := clinician.NewService(clinician.NewRepoPG(pool))
	diagnosticRepo := diagnostic.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	patientSvc := patient.NewService(patientRepo, diagnosticRepo, blobs, auditSvc, transactor, logger)
	diagnosticSvc := diagnostic.NewService(diagnosticRepo, patientRepo, blobs, predict.Simulated{},
		auditSvc, transactor, cfg.DefaultModel, logger)
	statsSvc := stats.NewService(stats.NewRepoPG(pool))

	clinicianHandler := clinician.NewHandler(clinicianSvc, []byte(cfg.JWTSecret))

	// Public routes
	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	clinicianHandler.RegisterPublicRoutes(e.Group(""))

	// Authenticated API
	api := e.Group("/api/v1")
	if cfg.IsDev() && cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET unset, using dev auth (every request is super-admin)")
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret)))
	}
	api.Use(audit.SourceAddrMiddleware())

	clinicianHandler.RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	diagnostic.NewHandler(diagnosticSvc).RegisterRoutes(api)
	stats.NewHandler(statsSvc).RegisterRoutes(api)
	audit.NewHandler(auditSvc).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
