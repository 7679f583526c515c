package cli

import (
	"fmt"

	"github.com/sequentry/sequentry/pkg/version"
	"github.com/spf13/cobra"
)

// VersionCmd returns the version command
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Printf("sequentry version %s\n", info.Version)
			fmt.Printf("commit: %s\n", info.CommitHash)
			fmt.Printf("built: %s\n", info.BuildDate)
		},
	}
}
