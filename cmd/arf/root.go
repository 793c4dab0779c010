package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/maxvdec/avery-toolchain/internal/config"
	"github.com/maxvdec/avery-toolchain/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	logFile string
	logger  *slog.Logger
)

// rootCmd is the base command when arf is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "arf",
	Short: "Translate ELF objects into ARF/ARL binary containers",
	Long: `arf translates a position-dependent ELF object file into the flat
ARF (executable) or ARL (library) container format the kernel's own loader
understands, and inspects or patches containers already on disk.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.arfconfig.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	cobra.OnInitialize(config.BindInitializer(&cfgFile, ".arfconfig"), initLogger)
}

func initLogger() {
	opts := logging.Options{Debug: debug}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "arf: opening log file: %v\n", err)
			os.Exit(1)
		}
		opts.JSONWriter = f
	}
	logger = logging.New(opts)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
