// Command cookiescan runs the Dynamic Cookie Scanning Service: the cron
// dispatcher, HTTP API, and progress SSE stream (serve), or one of the
// operator utility subcommands (scan, sync-schedules). Flag parsing and
// startup sequencing follow the single flat main() style, one file per
// subcommand.
package main

import (
	"flag"
	"fmt"
	"os"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func main() {
	if len(os.Args) > 1 && !isFlag(os.Args[1]) {
		subcommand := os.Args[1]
		os.Args = append(os.Args[:1], os.Args[2:]...)

		switch subcommand {
		case "serve":
			runServe()
			return
		case "scan":
			runScan()
			return
		case "sync-schedules":
			runSyncSchedules()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown subcommand %q (want serve, scan, sync-schedules)\n", subcommand)
			os.Exit(1)
		}
	}

	// No subcommand given: default to serve, for operators used to a
	// flat single-binary entrypoint.
	runServe()
}

func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

// configFlag registers the repeatable -config/-c flag on fs and returns
// the slice it will populate once fs.Parse runs.
func configFlag(fs *flag.FlagSet) *configPaths {
	var paths configPaths
	fs.Var(&paths, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	fs.Var(&paths, "c", "Configuration file path (shorthand)")
	return &paths
}

// discoverConfig falls back to the well-known config file locations when
// no -config flag was given.
func discoverConfig(configFiles configPaths) configPaths {
	if len(configFiles) > 0 {
		return configFiles
	}
	if _, err := os.Stat("cookiescan.toml"); err == nil {
		return configPaths{"cookiescan.toml"}
	}
	if _, err := os.Stat("deployments/local/cookiescan.toml"); err == nil {
		return configPaths{"deployments/local/cookiescan.toml"}
	}
	return configFiles
}
