package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newActionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List available actions",
		Long:  `List the registered action kinds and whether they require confirmation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			policy := rt.cfg.ExecutionPolicy()
			for _, kind := range rt.registry.Kinds() {
				if policy.RequiresConfirmation(kind) {
					fmt.Printf("%s (requires confirmation)\n", kind)
				} else {
					fmt.Println(kind)
				}
			}
			return nil
		},
	}

	return cmd
}

func newPoliciesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List loaded policies",
		Long:  `List the compiled policy gate rules, builtin and loaded from the policy directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown()

			for _, p := range rt.gate.Policies() {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Printf("%s [%s, %s]", p.Name, p.Severity, state)
				if p.Description != "" {
					fmt.Printf(" - %s", p.Description)
				}
				fmt.Println()
			}
			return nil
		},
	}

	return cmd
}
