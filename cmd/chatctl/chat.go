package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/shinyyama/directchat/internal/chatclient"
	"github.com/shinyyama/directchat/internal/model"
	"github.com/spf13/cobra"
)

const chatHelp = `commands:
  <text>            send a message
  /reply <id> <text>
  /delete <id>
  /hide, /show      toggle visibility (seen reports only while shown)
  /users            list conversations
  /quit`

func newChatCmd() *cobra.Command {
	var server, token, with string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open a conversation in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("CHAT_TOKEN")
			}
			if token == "" || with == "" {
				return errors.New("--token (or CHAT_TOKEN) and --with are required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runChat(ctx, chatclient.NewClient(server, token), with, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "chat server base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&with, "with", "", "user id to chat with")
	return cmd
}

func runChat(ctx context.Context, client *chatclient.Client, with string, in io.Reader, out io.Writer) error {
	me, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("who am i: %w", err)
	}
	state := chatclient.NewState(client, me.ID)
	if err := state.Open(ctx, with); err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	for _, m := range state.Messages() {
		printMessage(out, me.ID, m)
	}

	stream, err := chatclient.Dial(ctx, client.StreamURL())
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer stream.Close()
	go func() {
		_ = stream.Run(ctx, state, func(ev chatclient.Event, err error) {
			renderEvent(out, me.ID, state.Counterpart(), ev, err)
		})
	}()

	fmt.Fprintln(out, chatHelp)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handleLine(ctx, state, line, out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
	return scanner.Err()
}

func handleLine(ctx context.Context, state *chatclient.State, line string, out io.Writer) error {
	if !strings.HasPrefix(line, "/") {
		_, err := state.Send(ctx, chatclient.SendRequest{Text: line})
		return err
	}
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit":
		return io.EOF
	case "/hide":
		return state.SetVisible(ctx, false)
	case "/show":
		return state.SetVisible(ctx, true)
	case "/delete":
		return state.Delete(ctx, strings.TrimSpace(rest))
	case "/reply":
		id, text, ok := strings.Cut(strings.TrimSpace(rest), " ")
		if !ok {
			return errors.New("usage: /reply <id> <text>")
		}
		_, err := state.Send(ctx, chatclient.SendRequest{Text: text, ReplyTo: id})
		return err
	case "/users":
		if err := state.RefreshUsers(ctx); err != nil {
			return err
		}
		for _, u := range state.Users() {
			mark := " "
			if u.Online || state.IsOnline(u.ID) {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %-20s unread=%d\n", mark, u.ID, u.UnreadCount)
		}
		return nil
	default:
		fmt.Fprintln(out, chatHelp)
		return nil
	}
}

// renderEvent prints one pushed event. New messages from anyone other than
// the open counterpart are not shown.
func renderEvent(out io.Writer, me, counterpart string, ev chatclient.Event, err error) {
	if err != nil {
		fmt.Fprintf(out, "! %s: %v\n", ev.Type, err)
		return
	}
	switch ev.Type {
	case model.EventNewMessage:
		var m model.Message
		if err := json.Unmarshal(ev.Payload, &m); err != nil || m.SenderID != counterpart {
			return
		}
		printMessage(out, me, m)
	case model.EventMessagesSeen:
		fmt.Fprintln(out, "(seen)")
	case model.EventMessageDeleted:
		fmt.Fprintln(out, "(a message was deleted)")
	}
}

func printMessage(out io.Writer, me string, m model.Message) {
	who := m.SenderID
	if who == me {
		who = "you"
	}
	body := "[deleted]"
	switch {
	case m.IsDeleted:
	case m.Text != nil:
		body = *m.Text
	case m.Image != nil:
		body = "[image] " + *m.Image
	case m.Video != nil:
		body = "[video] " + *m.Video
	}
	status := ""
	if m.SenderID == me && m.Seen {
		status = " ✓✓"
	}
	fmt.Fprintf(out, "%s %s: %s%s  (%s)\n", m.CreatedAt.Format("15:04"), who, body, status, m.ID)
}
