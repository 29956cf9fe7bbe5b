package cli

import (
	"fmt"
	"time"

	"estategate/internal/services"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newExpireCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Mark overdue visitor codes as expired",
		Long:  "Run one expiry sweep. Safe to run repeatedly, e.g. from an external cron, when the in-process scheduler is disabled.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at value %q: expected RFC3339", at)
				}
				now = parsed.UTC()
			}

			return withDB(func(db *gorm.DB) error {
				svc := services.NewVisitorCodeService(
					services.NewGormVisitorCodeStore(db),
					services.NewActivityService(db),
					nil,
					services.SystemClock{},
				)
				count, err := svc.SweepExpired(cmd.Context(), now)
				if err != nil {
					return err
				}

				if isJSON() {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"expired": count,
						"at":      now.Format(time.RFC3339),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d visitor code(s) expired.\n", count)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "reference time in RFC3339 (default: now)")
	return cmd
}
