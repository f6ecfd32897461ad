package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/connect"
	"github.com/querygenie/querygenie/internal/transcript"
	"github.com/querygenie/querygenie/internal/tui"
)

func newAskCmd() *cobra.Command {
	var host, user, password, database string
	var port int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question non-interactively",
		Example: `  querygenie ask "how many orders were placed today?"
  querygenie ask --database shop "list the five most expensive products"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			conn := connDefaults(cfg)
			if host != "" {
				conn.Host = host
			}
			if port != 0 {
				conn.Port = port
			}
			if user != "" {
				conn.User = user
			}
			if cmd.Flags().Changed("password") {
				conn.Password = password
			}
			if database != "" {
				conn.Database = database
			}
			return askOnce(strings.Join(args, " "), conn, cfg.Server.BaseURL)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "database host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "database port (overrides config)")
	cmd.Flags().StringVar(&user, "user", "", "database user (overrides config)")
	cmd.Flags().StringVar(&password, "password", "", "database password (overrides config)")
	cmd.Flags().StringVar(&database, "database", "", "database name (overrides config)")

	return cmd
}

// askOnce connects, asks one question with no prior context and prints the
// rendered answer. Destructive statements are never auto-approved here; the
// held statement is cancelled and reported instead.
func askOnce(question string, conn api.ConnectionConfig, serverURL string) error {
	if errs := connect.Validate(conn); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "error:", e.Error())
		}
		return fmt.Errorf("incomplete connection settings; pass flags or run: querygenie init")
	}

	client := api.New(serverURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := client.Connect(ctx, conn); err != nil {
		adv := connect.Classify(err)
		return fmt.Errorf("%s %s: %s", adv.Icon, adv.Title, adv.Message)
	}
	defer client.Disconnect(context.Background())

	raw, err := client.Chat(ctx, question, nil)
	if err != nil {
		return err
	}

	color := term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Println(tui.RenderPlain(raw, color))

	// A confirmation_required answer holds a destructive statement
	// server-side. One-shot mode declines it explicitly.
	if p, ok := transcript.Parse(raw).Payload.(transcript.ConfirmationResult); ok {
		if _, err := client.ConfirmSQL(ctx, 0, p.SQL, false); err == nil {
			fmt.Fprintln(os.Stderr, "statement not executed; rerun in chat mode to confirm")
		}
	}
	return nil
}
