package cli

import (
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sequentry",
		Short: "Sequentry circuit enforcement and orchestration engine",
	}

	root.AddCommand(
		ServeCmd(),
		ConfigCmd(),
		VersionCmd(),
	)

	return root
}
