package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/auth"
	"github.com/zulandar/floorboard/internal/store"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Dashboard account commands",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserRoleCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		email      string
		role       string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dashboard account",
		Long: `Creates an active account. Without --password the password is read from
the terminal without echo, or from the first line of stdin when piped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
				password = pw
			}
			return runUserCreate(cmd, configPath, store.NewUser{Name: name, Email: email, Role: role}, password)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&role, "role", access.RoleWorker, "role id; admin bypasses all permission checks")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	return cmd
}

// readPassword prompts on a terminal, otherwise reads one line from in.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r\n"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return "", fmt.Errorf("read password: no input")
}

func runUserCreate(cmd *cobra.Command, configPath string, nu store.NewUser, password string) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	nu.PasswordHash = hash
	u, err := e.store.CreateUser(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s, role %s)\n", u.ID, u.Email, u.Role)
	return nil
}

func newUserListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dashboard accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			users, err := e.store.ListUsers(context.Background())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", u.ID, u.Name, u.Email, u.Role, u.Active)
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newUserRoleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "role <user-id> <role>",
		Short: "Change a user's role",
		Long:  "Changes a user's role. Running dashboards apply it on the user's next request.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := context.Background()
			if args[1] != access.RoleAdmin {
				if _, err := e.store.RoleConfig(ctx, args[1]); err != nil {
					return err
				}
			}
			if err := e.store.SetUserRole(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s now has role %s\n", args[0], args[1])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
