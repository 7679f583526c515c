//	@title			Sequentry API
//	@version		1.0
//	@description	Sequentry is a circuit enforcement and multi-channel orchestration engine for AI-driven workflows
//	@termsOfService	https://github.com/sequentry/sequentry

//	@contact.name	Sequentry Support
//	@contact.url	https://github.com/sequentry/sequentry
//	@contact.email	support@sequentry.dev

//	@license.name	MIT
//	@license.url	https://github.com/sequentry/sequentry/blob/main/LICENSE

//	@BasePath	/api/v0

//	@tag.name			workflows
//	@tag.description	Workflow submission and execution operations

//	@tag.name			strategies
//	@tag.description	Strategy health and lifecycle operations

//	@tag.name			Operations
//	@tag.description	Operational endpoints for monitoring and health

package main

import (
	"os"

	"github.com/sequentry/sequentry/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		// Exit with error code 1 if command execution fails
		os.Exit(1)
	}
}
