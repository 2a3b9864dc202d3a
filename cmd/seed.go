package cmd

import (
	"fmt"

	"github.com/dani-ai/dani/internal/model"
	"github.com/dani-ai/dani/internal/util"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

const demoOwner = "00000000-0000-4000-8000-000000000001"

var seedOwner string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := uuid.Parse(seedOwner)
		if err != nil {
			return fmt.Errorf("invalid --owner: %w", err)
		}

		sqlDB, err := openMySQL()
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		fmt.Fprintln(cmd.OutOrStdout(), ">> Seeding demo api keys...")

		if err := seedKeys(sqlDB, owner.String()); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), ">> Seed completed")
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOwner, "owner", demoOwner, "owner account id (UUID) for the demo keys")
}

// seedKeys inserts deterministic demo keys (idempotent on value).
func seedKeys(dbx *sqlx.DB, owner string) error {
	keys := []model.APIKey{
		{Name: "git", Value: "dani-demo000000001", Usage: 3, RequestLimit: 1000},
		{Name: "ci", Value: "dani-demo000000002", Usage: 0, RequestLimit: 100},
		{Name: "exhausted", Value: "dani-demo000000003", Usage: 5, RequestLimit: 5},
	}

	const q = "INSERT INTO api_key (id, name, value, `usage`, request_limit, user_id) VALUES (?, ?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE name = VALUES(name), `usage` = VALUES(`usage`), request_limit = VALUES(request_limit), user_id = VALUES(user_id)"

	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, k := range keys {
		if _, err := tx.Exec(q, util.NewID(), k.Name, k.Value, k.Usage, k.RequestLimit, owner); err != nil {
			return fmt.Errorf("insert api key %q: %w", k.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit api keys: %w", err)
	}
	return nil
}
