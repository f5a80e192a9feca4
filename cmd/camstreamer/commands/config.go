package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CamStreamer configuration",
	Long:  `View CamStreamer configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current CamStreamer configuration, flag overrides included.`,
	Example: `  # Show configuration as YAML (default)
  camstreamer config show

  # Show configuration as JSON
  camstreamer config show --format json`,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	cfg := configMgr.Get()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Println(configMgr.GetConfigPath())
	return nil
}
