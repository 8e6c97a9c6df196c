package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/access"
)

func newRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Role permission commands",
	}

	cmd.AddCommand(newRoleListCmd())
	cmd.AddCommand(newRoleShowCmd())
	cmd.AddCommand(newRoleGrantCmd(true))
	cmd.AddCommand(newRoleGrantCmd(false))
	return cmd
}

func newRoleListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			roles, err := e.store.ListRoles(context.Background())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODULES")
			fmt.Fprintf(w, "%s\t%s\t%s\n", access.RoleAdmin, "Administrator", "all (built in)")
			for _, rc := range roles {
				fmt.Fprintf(w, "%s\t%s\t%d\n", rc.ID, rc.Name, len(rc.Permissions))
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newRoleShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <role>",
		Short: "Show a role's permission table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			if args[0] == access.RoleAdmin {
				fmt.Fprintln(cmd.OutOrStdout(), "admin bypasses every permission check.")
				return nil
			}
			rc, err := e.store.RoleConfig(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printPermissions(cmd, rc)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// printPermissions lists every module, marking the levels the role holds.
// Modules absent from the table are denied.
func printPermissions(cmd *cobra.Command, rc *access.RoleConfig) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Role %s (%s)\n\n", rc.ID, rc.Name)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tVIEW\tEDIT")
	for _, m := range access.AllModules() {
		p := rc.Lookup(m)
		fmt.Fprintf(w, "%s\t%s\t%s\n", m, yesNo(p.View), yesNo(p.Edit))
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func newRoleGrantCmd(grant bool) *cobra.Command {
	var configPath string

	use, short := "grant", "Grant a role view or edit on a module"
	if !grant {
		use, short = "revoke", "Revoke a role's view or edit on a module"
	}

	cmd := &cobra.Command{
		Use:   use + " <role> <module> <view|edit>",
		Short: short,
		Long: short + `.

Levels are independent: edit does not imply view and revoking view leaves
edit as stored. Running dashboards apply the change on the next request.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleGrant(cmd, configPath, args[0], args[1], args[2], grant)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runRoleGrant(cmd *cobra.Command, configPath, roleID, module, level string, grant bool) error {
	if roleID == access.RoleAdmin {
		return fmt.Errorf("role %s is built in and cannot be changed", access.RoleAdmin)
	}
	key, err := access.ParseModuleKey(module)
	if err != nil {
		return err
	}
	var lvl access.Level
	switch level {
	case "view":
		lvl = access.View
	case "edit":
		lvl = access.Edit
	default:
		return fmt.Errorf("unknown level %q (want view or edit)", level)
	}

	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := context.Background()
	rc, err := e.store.SetPermission(ctx, roleID, key, lvl, grant)
	if err != nil {
		return err
	}
	e.forgetRole(ctx, roleID)
	return printPermissions(cmd, rc)
}
