// Package config carries the shared viper setup for both CLI fronts,
// generalizing the single root-command initConfig the teacher repo wires
// once at startup into a per-binary helper.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Init wires a viper instance against an explicit config file (from
// --config) or, failing that, a dotfile named configName in the user's
// home directory. It mirrors the teacher's cmd/root.go initConfig,
// generalized to take the name and an explicit file rather than a single
// hardcoded ".cucaracha".
func Init(cfgFile, configName string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(configName)
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
	return nil
}

// BindInitializer returns a cobra.OnInitialize-compatible closure that
// calls Init and reports a fatal error through cobra.CheckErr, matching
// the teacher's cobra.OnInitialize(initConfig) wiring.
func BindInitializer(cfgFile *string, configName string) func() {
	return func() {
		cobra.CheckErr(Init(*cfgFile, configName))
	}
}
