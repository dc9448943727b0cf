package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/antoniostano/npctalk/internal/config"
	"github.com/antoniostano/npctalk/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:   "npctalk",
		Short: "Scripted NPC dialog server",
		Long: `npctalk runs NPC conversation scripts for connected players.

Players open a session over HTTP, then exchange binary dialog frames on the
session websocket. Each NPC script lives in SCRIPT_DIR/npc/<npc id>.js.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newCheckScriptsCommand(), newSeedCatalogCommand(), newBenchCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "npctalk: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and configures logging from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}
