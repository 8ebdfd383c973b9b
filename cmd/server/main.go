/*
main.go - Application entry point

PURPOSE:
  Builds the lumina command tree. The same policy document drives the
  HTTP server and the offline inspection commands.

COMMANDS:
  serve                      Run the HTTP API
  access check ROLE MOD MODE Answer one entitlement question
  access describe ROLE       Print a role's permissions and visible modules
  access matrix              Print the full role x module matrix
  leave quote START END      Count working days and check eligibility

CONFIGURATION:
  Defaults, then --config FILE, then LUMINA_* environment variables,
  then flags. See config/config.go for the keys.

EXAMPLES:
  # Run with a file database and a custom policy
  lumina serve --db=./data/lumina.db --policy-file=./policy.yaml

  # In-memory database preloaded with the dashboard data
  lumina serve --scenario=lumina-demo

  # Offline checks against the built-in policy
  lumina access check "HR Manager" payDetails write
  lumina leave quote 2024-05-20 2024-05-24 --type Annual --available 4

SEE ALSO:
  - serve.go: Server startup and graceful shutdown
  - inspect.go: access and leave subcommands
  - config/config.go: Configuration keys
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lumina/policy-engine/config"
	"github.com/lumina/policy-engine/factory"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is shared by every subcommand.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "lumina",
		Short:         "Lumina HR policy and entitlement engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("policy-file", "", "policy document; empty uses the built-in policy")
	flags.String("log-level", "info", "debug, info, warn or error")
	_ = a.v.BindPFlag("policy_file", flags.Lookup("policy-file"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(newServeCmd(a), newAccessCmd(a), newLeaveCmd(a))
	return root
}

// policy loads the configured document, falling back to the built-in one.
func (a *app) policy() (*factory.Policy, error) {
	return factory.LoadFile(a.cfg.PolicyFile)
}
