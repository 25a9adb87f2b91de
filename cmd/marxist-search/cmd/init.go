package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/configs"
	"github.com/domwxyz/marxist-search/internal/config"
)

var initForceFlag bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the data directory's config.yaml template",
	RunE:  runInit,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "User configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the user config template to ~/.config/marxist-search/config.yaml",
	RunE:  runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForceFlag, "force", false, "overwrite an existing config file")
	configInitCmd.Flags().BoolVar(&initForceFlag, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(cfg.Paths.DataDir, "config.yaml")
	return writeTemplate(path, configs.ProjectConfigTemplate)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	return writeTemplate(config.GetUserConfigPath(), configs.UserConfigTemplate)
}

func writeTemplate(path, template string) error {
	if _, err := os.Stat(path); err == nil && !initForceFlag {
		out.Warningf("%s already exists (use --force to overwrite)", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("write config template: %w", err)
	}
	out.Successf("wrote %s", path)
	return nil
}
