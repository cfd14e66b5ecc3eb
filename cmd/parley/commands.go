package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parley/internal/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(context.Background(), false)
		if err != nil {
			return err
		}
		defer a.close()

		printSessions(a.engine)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the point balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(context.Background(), false)
		if err != nil {
			return err
		}
		defer a.close()

		printBalance(a.engine.Balance())
		return nil
	},
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Manage personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(context.Background(), false)
		if err != nil {
			return err
		}
		defer a.close()

		for _, p := range a.engine.Personas() {
			fmt.Printf("%s %s (%s)\n", p.Icon, p.Name, p.ID)
		}
		return nil
	},
}

var personaAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Create or update a persona",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(context.Background(), false)
		if err != nil {
			return err
		}
		defer a.close()

		p := types.Persona{ID: args[0], Name: args[1], Icon: personaIcon, DirectiveOverride: personaDirective}
		if personaDirectiveFile != "" {
			data, err := os.ReadFile(personaDirectiveFile)
			if err != nil {
				return err
			}
			p.DirectiveOverride = string(data)
		}
		return a.engine.SavePersona(p)
	},
}

var personaRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(context.Background(), false)
		if err != nil {
			return err
		}
		defer a.close()

		return a.engine.DeletePersona(args[0])
	},
}

var (
	personaIcon          string
	personaDirective     string
	personaDirectiveFile string
)

func init() {
	personaAddCmd.Flags().StringVar(&personaIcon, "icon", "", "persona icon")
	personaAddCmd.Flags().StringVar(&personaDirective, "directive", "", "directive override text")
	personaAddCmd.Flags().StringVar(&personaDirectiveFile, "directive-file", "", "file containing the directive override")

	personasCmd.AddCommand(personaAddCmd)
	personasCmd.AddCommand(personaRemoveCmd)
}
