package main

import (
	"log/slog"
	"os"

	"github.com/maxvdec/avery-toolchain/internal/config"
	"github.com/maxvdec/avery-toolchain/internal/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	logger  *slog.Logger
	fs      afero.Fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "drvpack",
	Short: "Package a compiled driver executable into a loadable driver package",
	Long: `drvpack wraps a compiled driver executable (typically an ARF/ARL
container produced by arf translate) together with the identifying
metadata the kernel's driver loader needs: manufacturer/device IDs,
subsystem class, version, and an integrity hash.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.drvpackconfig.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "enable debug logging")
	cobra.OnInitialize(config.BindInitializer(&cfgFile, ".drvpackconfig"), func() {
		logger = logging.New(logging.Options{Debug: debug})
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
