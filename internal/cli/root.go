// Package cli defines the cobra command tree for gatectl.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"estategate/internal/database"
	"estategate/pkg/config"
	"estategate/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var flagFormat string

// openDB 默认连接配置中的PostgreSQL，测试中替换为sqlite
var openDB = func() (*gorm.DB, func(), error) {
	cfg := config.GetConfig()
	if err := logger.Initialize(cfg); err != nil {
		return nil, nil, err
	}
	if err := database.Initialize(cfg); err != nil {
		return nil, nil, err
	}
	return database.GetDB(), func() { _ = database.Close() }, nil
}

// NewRootCmd 创建 gatectl 根命令
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gatectl",
		Short:         "EstateGate maintenance commands",
		Long:          "Operational commands for the EstateGate visitor service: schema migration, visitor code expiry and account bootstrap.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")

	root.AddCommand(
		newMigrateCmd(),
		newExpireCmd(),
		newEstateCmd(),
		newUserCmd(),
	)

	return root
}

func isJSON() bool {
	return flagFormat == "json"
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func withDB(fn func(db *gorm.DB) error) error {
	db, closeFn, err := openDB()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeFn()
	return fn(db)
}
