package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/chat"
	"github.com/querygenie/querygenie/internal/config"
	"github.com/querygenie/querygenie/internal/connect"
	"github.com/querygenie/querygenie/internal/session"
	"github.com/querygenie/querygenie/internal/tui"
)

// runChat starts the interactive chat mode.
func runChat() error {
	cfg := initConfig()
	client := api.New(cfg.Server.BaseURL)

	local, err := openLocal(cfg)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer local.Close()

	user, err := requireUser(local)
	if err != nil {
		return err
	}

	store := session.NewStore(client, local, user.ID)
	ctrl := chat.NewController(client, store)

	if useTUI {
		dataDir, err := cfg.DefaultDataDir()
		if err != nil {
			return err
		}
		return tui.Run(tui.Options{
			Client:     client,
			Controller: ctrl,
			Store:      store,
			User:       user,
			Conn:       connDefaults(cfg),
			DataDir:    dataDir,
			Version:    appVersion,
		})
	}

	return runPlainChat(client, ctrl, cfg)
}

// runPlainChat is the line-oriented fallback for piped input and terminals
// without raw-mode support. The config's connection section is used to
// connect up front when it validates.
func runPlainChat(client *api.Client, ctrl *chat.Controller, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	conn := connDefaults(cfg)
	if len(connect.Validate(conn)) == 0 {
		if err := client.Connect(ctx, conn); err != nil {
			adv := connect.Classify(err)
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", adv.Icon, adv.Title, adv.Message)
		} else {
			ctrl.SetConnected(true)
			fmt.Printf("connected to %s@%s\n", conn.Database, conn.Host)
			defer client.Disconnect(context.Background())
		}
	} else {
		fmt.Println("no usable connection defaults in config; answers will fail until one is set")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		turn, err := ctrl.Send(ctx, line)
		if err != nil {
			if errors.Is(err, chat.ErrStaleReply) {
				continue
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		printTurn(turn)

		if pending := ctrl.Pending(); pending != nil {
			fmt.Print("run this statement? [y/N] ")
			var answer string
			fmt.Scanln(&answer)
			approve := strings.EqualFold(strings.TrimSpace(answer), "y")
			outcome, err := ctrl.Confirm(ctx, approve)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				continue
			}
			printTurn(outcome)
		}
	}
}

func printTurn(turn *chat.Turn) {
	if turn.Reply.Type == session.MessageError {
		fmt.Fprintln(os.Stderr, "error:", turn.Reply.Content)
		return
	}
	fmt.Println(tui.RenderPlain(turn.Reply.Content, false))
	if turn.SaveErr != nil {
		fmt.Fprintln(os.Stderr, "warning: chat not saved:", turn.SaveErr)
	}
}
