package main

import (
	"errors"
	"fmt"

	"github.com/bassista/snapgram/internal/config"
	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote/docstore"
	"github.com/bassista/snapgram/internal/remote/docstore/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd(confPath *string) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQLite document store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sqlitePath(*confPath, dbPath)
			if err != nil {
				return err
			}
			db, err := docstore.OpenSQLite(path)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.MigrateUp(db); err != nil {
				return err
			}
			version, dirty, err := migrations.Version(db)
			if err != nil {
				return err
			}
			logger.WithComponent("migrate").Infof("%s at schema version %d", path, version)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file; defaults to remote.documents.sqlite_path")
	return cmd
}

func sqlitePath(confPath, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := loadConfig(confPath)
	if err != nil {
		return "", err
	}
	if cfg.Remote.Documents.Type != config.DocumentStoreSQLite {
		return "", errors.New("document store is not sqlite; pass --db")
	}
	return cfg.Remote.Documents.SQLitePath, nil
}
