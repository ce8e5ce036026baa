package cli

import (
	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/spf13/cobra"
)

var migrateDBPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := migrateDBPath
		if path == "" {
			config.LoadConfig()
			logger.InitLogger(config.Cfg.LogLevel)
			path = config.Cfg.DatabasePath
		}
		db, err := database.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.Migrate(db)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVarP(&migrateDBPath, "db", "d", "", "SQLite path (defaults to DATABASE_PATH)")
}
