package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/querygenie/querygenie/internal/api"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in, log out and manage your account",
	}
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newSignupCmd())
	cmd.AddCommand(newWhoamiCmd())
	return cmd
}

func newLoginCmd() *cobra.Command {
	var identifier string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with your email or username",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			client := api.New(cfg.Server.BaseURL)

			reader := bufio.NewReader(os.Stdin)
			var err error
			if identifier == "" {
				identifier, err = prompt(reader, "email or username")
				if err != nil {
					return err
				}
			}
			password, err := promptPassword("password")
			if err != nil {
				return err
			}

			user, err := client.Login(context.Background(), identifier, password)
			if err != nil {
				return err
			}

			local, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer local.Close()
			if err := local.SaveUser(user); err != nil {
				return err
			}

			fmt.Printf("Welcome back %s %s!\n", user.FirstName, user.LastName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&identifier, "user", "u", "", "email or username")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and drop the locally cached chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := openLocal(initConfig())
			if err != nil {
				return err
			}
			defer local.Close()
			if err := local.ClearUser(); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := openLocal(initConfig())
			if err != nil {
				return err
			}
			defer local.Close()
			user, err := requireUser(local)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s <%s> (username: %s)\n", user.FirstName, user.LastName, user.Email, user.Username)
			return nil
		},
	}
}

func newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account (email verification via OTP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			client := api.New(cfg.Server.BaseURL)
			ctx := context.Background()
			reader := bufio.NewReader(os.Stdin)

			var req api.SignupRequest
			var err error
			if req.FirstName, err = prompt(reader, "first name"); err != nil {
				return err
			}
			if req.LastName, err = prompt(reader, "last name"); err != nil {
				return err
			}
			if req.Username, err = prompt(reader, "username"); err != nil {
				return err
			}
			if req.Email, err = prompt(reader, "email"); err != nil {
				return err
			}
			if req.Phone, err = prompt(reader, "phone (optional)"); err != nil {
				return err
			}
			if req.Gender, err = prompt(reader, "gender (optional)"); err != nil {
				return err
			}
			if req.Password, err = promptPassword("password"); err != nil {
				return err
			}

			msg, err := client.SendOTP(ctx, req.Email)
			if err != nil {
				return err
			}
			if msg != "" {
				fmt.Println(msg)
			}
			if req.OTP, err = prompt(reader, "verification code"); err != nil {
				return err
			}

			if err := client.Signup(ctx, req); err != nil {
				return err
			}
			fmt.Println("account created; run: querygenie auth login")
			return nil
		},
	}
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
