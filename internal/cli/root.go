// Package cli implements the command-line interface for NSE.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lukasberz/nse/internal/config"
	"github.com/lukasberz/nse/internal/index"
	"github.com/lukasberz/nse/internal/nix"
	"github.com/lukasberz/nse/internal/service"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	userName string
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config  *config.Config
	Index   *index.Index
	Service *service.Service
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Index != nil {
		c.Index.Close()
	}
}

// initContext loads config, opens the index, and builds the service
func initContext() *cmdContext {
	cfg, err := config.LoadOrInit(dataDir)
	if err != nil {
		exitError("%v", err)
	}

	idx, err := index.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to open index: %v", err)
	}
	if err := idx.Initialize(); err != nil {
		idx.Close()
		exitError("failed to initialize index: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := nix.NewClient(nix.NewExecRunner(cfg.NixBinary), cfg.Registry, cfg.StrictDeleteStderr)
	svc := service.New(cfg.StoresBase(), idx.Stores(), idx.Packages(), client, logger)

	return &cmdContext{Config: cfg, Index: idx, Service: svc}
}

// ownerID resolves the --user flag to a principal id
func (c *cmdContext) ownerID() int64 {
	if userName == "" {
		exitError("--user is required")
	}

	user, err := c.Index.GetUserByName(context.Background(), userName)
	if err != nil {
		exitError("failed to look up user: %v", err)
	}
	if user == nil {
		exitError("user %s does not exist (create it with 'nse user add %s')", userName, userName)
	}
	return user.ID
}

var rootCmd = &cobra.Command{
	Use:   "nse",
	Short: "Nix Store Explorer",
	Long: `NSE (Nix Store Explorer) provisions isolated, per-user nix package
stores, installs and removes packages inside them, and compares stores
and packages by their dependency closures.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", envOrDefault("NSE_DATA_DIR", "/var/lib/nse"), "Data directory")
	rootCmd.PersistentFlags().StringVar(&userName, "user", os.Getenv("NSE_USER"), "Act as this user")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(pkgCmd)
	rootCmd.AddCommand(diffCmd)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
