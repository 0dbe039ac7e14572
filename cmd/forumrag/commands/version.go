// ABOUTME: Version command reporting build metadata
// ABOUTME: Honors --format json for scripted checks
package commands

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo is stamped at build time through SetVersion
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

var versionInfo = VersionInfo{Version: "dev", Commit: "none", Date: "unknown"}

// SetVersion records the build metadata passed in from main
func SetVersion(version, commit, date string) {
	versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Print the forumrag release, the commit it was built from and the build date.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo
			info.GoVersion = runtime.Version()

			out := cmd.OutOrStdout()
			if outputFormat == "json" {
				data, err := json.Marshal(info)
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintf(out, "%s\n", data)
				return nil
			}
			fmt.Fprintf(out, "forumrag %s (%s)\n", info.Version, info.GoVersion)
			fmt.Fprintf(out, "Commit: %s\n", info.Commit)
			fmt.Fprintf(out, "Built:  %s\n", info.Date)
			return nil
		},
	}
}
