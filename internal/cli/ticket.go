package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quizroom-service/internal/auth"
	"quizroom-service/internal/config"
)

// NewTicketCmd mints a websocket ticket for local testing.
func NewTicketCmd(configPath *string) *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Mint a websocket ticket for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tickets, err := auth.NewTicketService(cfg.Auth.TicketSecret, config.TTLDuration(cfg.Auth.TicketTTL, time.Minute))
			if err != nil {
				return err
			}
			ticket, err := tickets.Issue(userID, name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ticket)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id carried by the ticket")
	cmd.Flags().StringVar(&name, "name", "", "display name carried by the ticket")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
