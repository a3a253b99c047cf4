// arrowlogctl is a small operator CLI around the storage, recordbuf,
// and notify packages: produce records into a storage file, consume
// them back out from an offset, or dump a file's contents for manual
// inspection. It exists for manual operation and smoke testing; the
// library itself has no CLI, network protocol, or daemon (the storage
// and record formats are a local, in-process building block, not a
// service).
package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/flashdb/arrowlog/internal/config"
	"github.com/flashdb/arrowlog/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

// newRootCmd builds the command tree. It reads --config ahead of cobra's
// own flag parsing, the same way flashdb's main.go resolved settings
// before constructing its server: the config file only supplies
// defaults, every subcommand flag still overrides it when set
// explicitly.
func newRootCmd() *cobra.Command {
	var logLevel, configPath string

	cfgPath := configPathFromArgs()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
	}
	logLevel = cfg.LogLevel

	cmd := &cobra.Command{
		Use:   "arrowlogctl",
		Short: "Operate an arrowlog storage file",
		Long: `arrowlogctl produces sequenced records into a storage file,
consumes them back out, or dumps a file's contents for inspection.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				level = log.InfoLevel
			}
			log.SetLevel(level)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", cfgPath, "path to a JSON config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	cmd.AddCommand(newProduceCmd(cfg))
	cmd.AddCommand(newConsumeCmd(cfg))
	cmd.AddCommand(newDumpCmd(cfg))

	return cmd
}

// configPathFromArgs scans os.Args for --config before cobra parses
// flags, so the config file's own values can seed flag defaults.
func configPathFromArgs() string {
	args := os.Args[1:]
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return "arrowlogctl.json"
}
