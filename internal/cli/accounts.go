package cli

import (
	"fmt"

	"estategate/internal/models"
	"estategate/internal/services"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newEstateCmd() *cobra.Command {
	estate := &cobra.Command{
		Use:   "estate",
		Short: "Manage estates",
	}

	var name, code, address string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an estate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB) error {
				e, err := services.NewEstateService(db).Create(name, code, address)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), e)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Estate #%d (%s) created.\n", e.ID, e.Code)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "estate name")
	create.Flags().StringVar(&code, "code", "", "unique estate code")
	create.Flags().StringVar(&address, "address", "", "postal address")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("code")

	estate.AddCommand(create)
	return estate
}

func newUserCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var (
		estateCode string
		params     services.CreateUserParams
		role       string
		unit       string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user in an estate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB) error {
				estate, err := services.NewEstateService(db).GetByCode(estateCode)
				if err != nil {
					return fmt.Errorf("estate %q not found", estateCode)
				}

				params.EstateID = estate.ID
				params.Role = models.UserRole(role)
				if unit != "" {
					params.ApartmentUnit = &unit
				}

				u, err := services.NewUserService(db).Create(params)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), u)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User #%d (%s, %s) created.\n", u.ID, u.Username, u.Role)
				return nil
			})
		},
	}
	create.Flags().StringVar(&estateCode, "estate", "", "estate code")
	create.Flags().StringVar(&params.Username, "username", "", "login name")
	create.Flags().StringVar(&params.Email, "email", "", "email address")
	create.Flags().StringVar(&params.Password, "password", "", "initial password")
	create.Flags().StringVar(&params.Name, "name", "", "display name")
	create.Flags().StringVar(&role, "role", string(models.RoleResident), "role (admin|maintainer|resident|installer|vendor|user)")
	create.Flags().StringVar(&unit, "unit", "", "apartment unit for residents")
	for _, f := range []string{"estate", "username", "email", "password", "name"} {
		_ = create.MarkFlagRequired(f)
	}

	user.AddCommand(create)
	return user
}
