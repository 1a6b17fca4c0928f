package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kasiski/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigValidateCmd(a), newConfigInitCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, environment overrides included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.Marshal(format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "output format: toml, json, yaml")
	return cmd
}

func newConfigValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := a.cfg.Validate()

			var verrs config.ValidationErrors
			if errors.As(err, &verrs) {
				for _, e := range verrs {
					fmt.Fprintf(out, "  %s: %s\n", e.Field, e.Message)
				}
				return fmt.Errorf("%s: %d problem(s)", a.resolvedConfigPath(), len(verrs))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: ok\n", a.resolvedConfigPath())
			return nil
		},
	}
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.resolvedConfigPath()
			out := cmd.OutOrStdout()

			if force {
				cfg := config.DefaultConfig()
				if err := cfg.Save(path); err != nil {
					return err
				}
				if err := cfg.EnsureDirectories(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s\n", path)
				return nil
			}

			cfg, created, err := config.LoadOrCreate(path)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			if created {
				fmt.Fprintf(out, "Wrote %s\n", path)
			} else {
				fmt.Fprintf(out, "%s already exists (use --force to overwrite)\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
