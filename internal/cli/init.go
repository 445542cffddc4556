package cli

import (
	"fmt"

	"github.com/lukasberz/nse/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an NSE data directory",
	Long:  `Create the data directory with a default configuration, the stores tree, and an empty index.`,
	Run:   runInit,
}

func runInit(cmd *cobra.Command, args []string) {
	cfg, err := config.Initialize(dataDir)
	if err != nil {
		exitError("%v", err)
	}

	fmt.Printf("Initialized NSE data directory at %s\n", cfg.DataDir())
	fmt.Printf("Edit %s/%s to adjust the nix binary, registry, or listen address.\n", cfg.DataDir(), config.ConfigFile)
}
