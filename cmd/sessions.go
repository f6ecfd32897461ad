package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/session"
	"github.com/querygenie/querygenie/internal/transcript"
	"github.com/querygenie/querygenie/internal/tui"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"chats"},
		Short:   "List and manage saved chats",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	cmd.AddCommand(newSessionsRenameCmd())
	cmd.AddCommand(newSessionsExportCmd())
	return cmd
}

// openSessionStore builds the reconciliation store for the logged-in user
// and loads the session list, falling back to the local mirror when the
// server is unreachable.
func openSessionStore(ctx context.Context) (*session.Store, func(), error) {
	cfg := initConfig()
	client := api.New(cfg.Server.BaseURL)

	local, err := openLocal(cfg)
	if err != nil {
		return nil, nil, err
	}
	user, err := requireUser(local)
	if err != nil {
		local.Close()
		return nil, nil, err
	}

	store := session.NewStore(client, local, user.ID)
	if _, err := store.Load(ctx); err != nil {
		if !api.IsUnreachable(err) {
			local.Close()
			return nil, nil, err
		}
		fmt.Fprintln(os.Stderr, "server unreachable, using cached chats")
		if _, cerr := store.LoadCached(); cerr != nil {
			local.Close()
			return nil, nil, cerr
		}
	}
	return store, func() { local.Close() }, nil
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved chats, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := openSessionStore(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			sessions := store.Sessions()
			if len(sessions) == 0 {
				fmt.Println("no chats yet")
				return nil
			}

			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					strconv.FormatInt(s.ID, 10),
					s.Title,
					s.UpdatedAt.Local().Format("2006-01-02 15:04"),
					strconv.Itoa(len(s.Messages)),
				})
			}
			fmt.Println(transcript.Grid([]string{"ID", "TITLE", "UPDATED", "MESSAGES"}, rows))
			return nil
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one chat transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			store, done, err := openSessionStore(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			s := store.Get(id)
			if s == nil {
				return fmt.Errorf("no chat with id %d", id)
			}

			fmt.Printf("%s (updated %s)\n\n", s.Title, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
			for _, m := range s.Messages {
				switch m.Type {
				case session.MessageUser:
					fmt.Println("You: " + m.Content)
				case session.MessageError:
					fmt.Println("Error: " + m.Content)
				default:
					fmt.Println(tui.RenderPlain(m.Content, false))
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			store, done, err := openSessionStore(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("chat %d kept: %w", id, err)
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

func newSessionsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			store, done, err := openSessionStore(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			title := strings.Join(args[1:], " ")
			if err := store.Rename(cmd.Context(), id, title); err != nil {
				return err
			}
			fmt.Println("renamed")
			return nil
		},
	}
}

func newSessionsExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a chat transcript as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			store, done, err := openSessionStore(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			s := store.Get(id)
			if s == nil {
				return fmt.Errorf("no chat with id %d", id)
			}

			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func parseSessionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid chat id %q", arg)
	}
	return id, nil
}
