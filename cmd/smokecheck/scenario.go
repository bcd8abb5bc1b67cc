package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dev/bravebird/ui-smokecheck/pkg/config"
	"dev/bravebird/ui-smokecheck/pkg/scenario"
)

func newScenarioCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Inspect and validate scenarios",
	}

	catalog := func(c *cobra.Command) (scenario.Catalog, error) {
		cfg, err := config.Load(*configFile, c.Flags())
		if err != nil {
			return scenario.Catalog{}, err
		}
		return scenario.Catalog{Dir: cfg.ScenarioDir}, nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in and catalog scenarios",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cat, err := catalog(c)
			if err != nil {
				return err
			}
			names, err := cat.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(c.OutOrStdout(), name)
			}
			return nil
		},
	}

	printCmd := &cobra.Command{
		Use:   "print [name]",
		Short: "Print a scenario as YAML, the built-in one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			name := scenario.DefaultName
			if len(args) == 1 {
				name = args[0]
			}
			if name == scenario.DefaultName {
				_, err := c.OutOrStdout().Write(scenario.DefaultYAML())
				return err
			}

			cat, err := catalog(c)
			if err != nil {
				return err
			}
			sc, err := cat.Load(name)
			if err != nil {
				return err
			}
			data, err := scenario.Marshal(sc)
			if err != nil {
				return err
			}
			_, err = c.OutOrStdout().Write(data)
			return err
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check scenario files without running a browser",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				sc, err := scenario.LoadFile(path)
				if err != nil {
					fmt.Fprintf(c.OutOrStdout(), "FAIL %s\n", path)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(c.OutOrStdout(), "ok   %s (%s, %d steps)\n", path, sc.Name, len(sc.Steps))
			}
			return errors.Join(errs...)
		},
	}

	for _, sub := range []*cobra.Command{listCmd, printCmd} {
		sub.Flags().String("scenario-dir", "", "Directory of *.yaml scenarios")
	}
	cmd.AddCommand(listCmd, printCmd, validateCmd)
	return cmd
}
