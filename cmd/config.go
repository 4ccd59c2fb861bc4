package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SideneiSilva/editor-po-barry/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Annotations: map[string]string{
		skipConfig: "true",
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default settings",
	Long: `Write a configuration file with the default settings. The path defaults
to config.yaml in the working directory. An existing file is never
overwritten.`,
	Args: cobra.MaximumNArgs(1),
	Annotations: map[string]string{
		skipConfig: "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = config.ExpandPath(args[0])
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
