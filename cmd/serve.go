package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/visionid/visionid/internal/config"
	"github.com/visionid/visionid/internal/database/postgres"
	"github.com/visionid/visionid/internal/detector"
	"github.com/visionid/visionid/internal/enroll"
	"github.com/visionid/visionid/internal/gallery"
	"github.com/visionid/visionid/internal/recognition"
	"github.com/visionid/visionid/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recognition API server",
	Long: `Start the VisionID API server.
The server exposes recognition, registration and attendance endpoints and
needs a running face detection server and a PostgreSQL database.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// initLookalikeIndex seeds the approximate similarity index from the gallery.
func initLookalikeIndex(ctx context.Context, identityRepo *postgres.IdentityRepository, dim int) *gallery.LookalikeIndex {
	index := gallery.NewLookalikeIndex()

	snap, err := gallery.Load(ctx, identityRepo, dim)
	if err != nil {
		fmt.Printf("Warning: failed to build lookalike index: %v\n", err)
		fmt.Printf("Similar-identity queries will be unavailable until restart\n")
		return index
	}
	index.Rebuild(snap.Entries())
	fmt.Printf("Lookalike index built with %d identities\n", index.Size())
	return index
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	identityRepo := postgres.NewIdentityRepository(pool)
	attendanceRepo := postgres.NewAttendanceRepository(pool)
	recognitionRepo := postgres.NewRecognitionRepository(pool)

	detectorClient := detector.New(cfg.Detector.URL, time.Duration(cfg.Detector.Timeout)*time.Second)

	lookalike := initLookalikeIndex(context.Background(), identityRepo, cfg.Recognition.Dim)

	// Two recognition pipelines over the same gallery: the recognize
	// endpoints only write history, the attendance mark flow also marks.
	historySvc := recognition.NewService(detectorClient, identityRepo,
		recognition.NewHistoryRecorder(recognitionRepo), &cfg.Recognition)
	markerSvc := recognition.NewService(detectorClient, identityRepo,
		recognition.NewPersistingRecorder(attendanceRepo, recognitionRepo), &cfg.Recognition)
	enrollSvc := enroll.NewService(detectorClient, identityRepo, lookalike, cfg.Recognition.Dim)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(host, port, web.Deps{
		Recognition:      historySvc,
		AttendanceMarker: markerSvc,
		Enroll:           enrollSvc,
		Identities:       identityRepo,
		Attendance:       attendanceRepo,
		History:          recognitionRepo,
		Lookalike:        lookalike,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting VisionID API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
