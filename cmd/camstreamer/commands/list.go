package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available cameras",
	Long: `List all cameras exposed by the configured backend together with
their mount angle and native capture resolutions.`,
	Example: `  # List cameras in table format (default)
  camstreamer list

  # List cameras in JSON format
  camstreamer list --format json`,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

type cameraInfo struct {
	camera.Descriptor
	Capabilities []camera.Capability `json:"capabilities"`
	Error        string              `json:"error,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	manager, err := newCameraManager(configMgr.Get())
	if err != nil {
		return err
	}

	descriptors := camera.List(manager)
	infos := make([]cameraInfo, 0, len(descriptors))
	for _, d := range descriptors {
		info := cameraInfo{Descriptor: d}
		caps, err := manager.QueryCapabilities(d.ID)
		if err != nil {
			info.Error = err.Error()
		}
		info.Capabilities = caps
		infos = append(infos, info)
	}

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	case "table":
		if len(infos) == 0 {
			fmt.Println("No cameras found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tMOUNT\tRESOLUTIONS")
		for _, info := range infos {
			res := make([]string, 0, len(info.Capabilities))
			for _, c := range info.Capabilities {
				res = append(res, c.String())
			}
			if info.Error != "" {
				res = append(res, "("+info.Error+")")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", info.ID, info.Name, info.Provider, info.MountAngle, strings.Join(res, " "))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}
