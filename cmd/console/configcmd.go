package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/t77yq/roma-console/internal/model"
)

func (c *console) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and update backend configuration",
	}
	cmd.AddCommand(
		c.newConfigProfilesCmd(),
		c.newConfigProfileCmd(),
		c.newConfigUpdateCmd(),
	)
	return cmd
}

func (c *console) newConfigProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List configuration profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			profiles, err := c.client.ListProfiles(ctx)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(profiles)
			}

			for _, p := range profiles {
				fmt.Fprintf(c.out, "%s %s", bullet, p.Name)
				if p.Description != "" {
					fmt.Fprintf(c.out, "  %s", mutedStyle.Sprint(p.Description))
				}
				fmt.Fprintln(c.out)
			}
			return nil
		},
	}
}

func (c *console) newConfigProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <name>",
		Short: "Show a configuration profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			profile, err := c.client.GetProfile(ctx, args[0])
			if err != nil {
				return err
			}
			return c.printJSON(profile)
		},
	}
}

func (c *console) newConfigUpdateCmd() *cobra.Command {
	var (
		profile   string
		overrides map[string]string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Apply a profile and/or overrides on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile == "" && len(overrides) == 0 {
				return fmt.Errorf("nothing to update: pass --profile or --set")
			}

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			result, err := c.client.UpdateConfig(ctx, model.ConfigUpdate{
				Profile:   profile,
				Overrides: parseValues(overrides),
			})
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(result)
			}
			if result.Message != "" {
				fmt.Fprintln(c.out, result.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "profile to apply")
	cmd.Flags().StringToStringVar(&overrides, "set", nil, "override key=value (repeatable)")
	return cmd
}
