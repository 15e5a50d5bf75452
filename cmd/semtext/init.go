package main

import (
	"fmt"
	"os"

	"github.com/c360studio/semtext/config"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Init writes a starter ` + config.ProjectConfigFile + ` with the default
configuration into the current directory. With --user it creates the
user-level config under ~/.config/semtext/ instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flagLogLevel)

			if user {
				return config.NewLoader(logger).EnsureUserConfig()
			}

			if _, err := os.Stat(config.ProjectConfigFile); err == nil {
				return fmt.Errorf("%s already exists", config.ProjectConfigFile)
			}

			cfg := config.DefaultConfig()
			if err := cfg.SaveToFile(config.ProjectConfigFile); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote %s\n", config.ProjectConfigFile)
			fmt.Println("Set ingest.root to the directory you want annotated.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Create the user-level config instead of a project one")

	return cmd
}
