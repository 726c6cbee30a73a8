package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	appmw "github.com/shinyyama/directchat/internal/middleware"
	"github.com/shinyyama/directchat/internal/service"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		id  service.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <uid>",
		Short: "Mint an HS256 token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			id.UID = args[0]
			tok, err := appmw.IssueToken(secret, id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.Name, "name", "", "display name claim")
	cmd.Flags().StringVar(&id.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&id.Picture, "picture", "", "profile picture URL claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
