package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visionid/visionid/internal/config"
	"github.com/visionid/visionid/internal/database/postgres"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Manage enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	RunE:  runIdentitiesList,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)

	identitiesListCmd.Flags().Int("limit", 100, "Maximum identities to list")
	identitiesListCmd.Flags().Int("offset", 0, "Pagination offset")
}

func openIdentityRepo() (*postgres.IdentityRepository, *postgres.Pool, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return postgres.NewIdentityRepository(pool), pool, nil
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	repo, pool, err := openIdentityRepo()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	identities, err := repo.List(ctx, mustGetInt(cmd, "limit"), mustGetInt(cmd, "offset"))
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting identities: %w", err)
	}

	if len(identities) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	for _, identity := range identities {
		fmt.Printf("%s  %-20s  dim=%d  enrolled=%s\n",
			identity.ID, identity.Name, identity.Dim,
			identity.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\n%d of %d identities\n", len(identities), total)
	return nil
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	repo, pool, err := openIdentityRepo()
	if err != nil {
		return err
	}
	defer pool.Close()

	deleted, err := repo.Delete(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	if !deleted {
		return fmt.Errorf("identity %s not found", args[0])
	}
	fmt.Printf("Deleted identity %s\n", args[0])
	return nil
}
