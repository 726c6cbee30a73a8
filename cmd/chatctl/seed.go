package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/db"
	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/repository"
	"github.com/shinyyama/directchat/internal/service"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type seedUser struct {
	ID    string
	Name  string
	Email string
}

var seedUsers = []seedUser{
	{ID: "demo-alice", Name: "Alice Demo", Email: "alice@example.com"},
	{ID: "demo-bob", Name: "Bob Demo", Email: "bob@example.com"},
	{ID: "demo-carol", Name: "Carol Demo", Email: "carol@example.com"},
}

type seedMessage struct {
	From, To, Text string
}

var seedMessages = []seedMessage{
	{From: "demo-alice", To: "demo-bob", Text: "Hey Bob, did you get the slides?"},
	{From: "demo-bob", To: "demo-alice", Text: "Yes, looking at them now."},
	{From: "demo-carol", To: "demo-alice", Text: "Lunch tomorrow?"},
}

func newSeedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo users and a few conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := openDB()
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return seed(cmd.Context(), conn, force, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "seed even if messages already exist")
	return cmd
}

func seed(ctx context.Context, conn *gorm.DB, force bool, out io.Writer) error {
	var existing int64
	if err := conn.WithContext(ctx).Model(&model.Message{}).Count(&existing).Error; err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	if existing > 0 && !force {
		fmt.Fprintln(out, "messages already exist; skipping seed (use --force to override)")
		return nil
	}

	users := repository.NewUserRepository(conn)
	userSvc := service.NewUserService(users, nil, zerolog.Nop())
	for _, u := range seedUsers {
		if _, err := userSvc.Ensure(ctx, service.Identity{UID: u.ID, Name: u.Name, Email: u.Email}); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}

	msgSvc := service.NewMessageService(repository.NewMessageRepository(conn), users, nil, nil, nil, zerolog.Nop())
	for _, m := range seedMessages {
		if _, err := msgSvc.Send(ctx, service.SendInput{SenderID: m.From, ReceiverID: m.To, Text: m.Text}); err != nil {
			return fmt.Errorf("seed message %s->%s: %w", m.From, m.To, err)
		}
	}
	fmt.Fprintf(out, "seeded %d users and %d messages\n", len(seedUsers), len(seedMessages))
	return nil
}
