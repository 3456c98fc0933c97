package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/visionid/visionid/internal/config"
	"github.com/visionid/visionid/internal/database/postgres"
	"github.com/visionid/visionid/internal/detector"
	"github.com/visionid/visionid/internal/enroll"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image...]",
	Short: "Enroll identities from image files",
	Long: `Enroll one or more identities from image files.

With --name, a single image is enrolled under that name. Without it, each
image is enrolled under its base file name (alice.jpg becomes "alice"), which
makes a directory of named portraits a one-command gallery import:

  visionid enroll --name "Alice Smith" alice.jpg
  visionid enroll portraits/*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Identity name (single image only)")
	enrollCmd.Flags().Bool("keep-going", false, "Continue after per-image failures")
}

// imageExtensions are the file types accepted for enrollment.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func enrollOne(ctx context.Context, svc *enroll.Service, name, path string) error {
	imageData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	identity, replaced, err := svc.Enroll(ctx, name, imageData, path, "")
	if err != nil {
		return fmt.Errorf("enroll %s: %w", path, err)
	}

	verb := "enrolled"
	if replaced {
		verb = "re-enrolled"
	}
	fmt.Printf("%s %q (%s)\n", verb, identity.Name, identity.ID)
	return nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	keepGoing := mustGetBool(cmd, "keep-going")

	if name != "" && len(args) > 1 {
		return errors.New("--name can only be used with a single image")
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	identityRepo := postgres.NewIdentityRepository(pool)
	detectorClient := detector.New(cfg.Detector.URL, time.Duration(cfg.Detector.Timeout)*time.Second)
	svc := enroll.NewService(detectorClient, identityRepo, nil, cfg.Recognition.Dim)

	ctx := context.Background()

	if name != "" {
		return enrollOne(ctx, svc, name, args[0])
	}

	var images []string
	for _, arg := range args {
		if !imageExtensions[strings.ToLower(filepath.Ext(arg))] {
			fmt.Printf("skipping %s: not an image file\n", arg)
			continue
		}
		images = append(images, arg)
	}
	if len(images) == 0 {
		return errors.New("no image files to enroll")
	}

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
	)

	var failures []error
	for _, path := range images {
		if err := enrollOne(ctx, svc, nameFromPath(path), path); err != nil {
			if !keepGoing {
				fmt.Println()
				return err
			}
			failures = append(failures, err)
		}
		bar.Add(1)
	}
	fmt.Println()

	if len(failures) > 0 {
		for _, err := range failures {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return fmt.Errorf("%d of %d images failed", len(failures), len(images))
	}
	fmt.Printf("Enrolled %d identities\n", len(images))
	return nil
}
