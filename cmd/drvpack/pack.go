package main

import (
	"fmt"
	"os"

	"github.com/maxvdec/avery-toolchain/internal/driver"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	packOutput         string
	packName           string
	packManufacturer   uint16
	packDevice         uint16
	packSubsystem      string
	packDescription    string
	packVersion        string
	packNonInteractive bool
)

var subsystemNames = map[string]driver.DeviceClass{
	"storage":    driver.ClassStorage,
	"network":    driver.ClassNetwork,
	"display":    driver.ClassDisplay,
	"input":      driver.ClassInput,
	"audio":      driver.ClassAudio,
	"peripheral": driver.ClassPeripheral,
}

var packCmd = &cobra.Command{
	Use:   "pack <executable>",
	Short: "Package a compiled driver executable",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		execPath := args[0]

		execBytes, err := afero.ReadFile(fs, execPath)
		if err != nil {
			logger.Error("reading executable", "path", execPath, "error", err)
			os.Exit(1)
		}

		opts, err := resolveOptions()
		if err != nil {
			logger.Error("resolving package metadata", "error", err)
			os.Exit(1)
		}

		f, err := driver.Build(opts, execBytes)
		if err != nil {
			logger.Error("building driver package", "error", err)
			os.Exit(1)
		}

		out := packOutput
		if out == "" {
			out = opts.Name + ".drv"
		}

		if err := afero.WriteFile(fs, out, driver.Emit(f), 0o644); err != nil {
			logger.Error("writing driver package", "path", out, "error", err)
			os.Exit(1)
		}

		logger.Info("packaged driver", "output", out, "name", f.Name, "hash", f.Hash)
	},
}

// resolveOptions gathers metadata either from flags (--non-interactive)
// or the interactive form.
func resolveOptions() (driver.Options, error) {
	if packNonInteractive {
		return optionsFromFlags()
	}
	return runForm()
}

func optionsFromFlags() (driver.Options, error) {
	class, ok := subsystemNames[packSubsystem]
	if !ok && packSubsystem != "" {
		return driver.Options{}, fmt.Errorf("unknown subsystem %q", packSubsystem)
	}

	major, minor, patch, err := parseVersion(packVersion)
	if err != nil {
		return driver.Options{}, err
	}

	return driver.Options{
		Name:         packName,
		Manufacturer: packManufacturer,
		Device:       packDevice,
		Subsystem:    class,
		Description:  packDescription,
		Version:      driver.Version{Major: major, Minor: minor, Patch: patch},
	}, nil
}

func parseVersion(s string) (major, minor, patch byte, err error) {
	if s == "" {
		return 0, 0, 0, nil
	}
	var maj, min, pat int
	n, scanErr := fmt.Sscanf(s, "%d.%d.%d", &maj, &min, &pat)
	if scanErr != nil || n != 3 {
		return 0, 0, 0, fmt.Errorf("invalid version %q, want MAJOR.MINOR.PATCH", s)
	}
	return byte(maj), byte(min), byte(pat), nil
}

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output package path (default: <name>.drv)")
	packCmd.Flags().StringVar(&packName, "name", "", "driver name")
	packCmd.Flags().Uint16Var(&packManufacturer, "manufacturer", 0, "manufacturer ID")
	packCmd.Flags().Uint16Var(&packDevice, "device", 0, "device ID")
	packCmd.Flags().StringVar(&packSubsystem, "subsystem", "", "subsystem class (storage, network, display, input, audio, peripheral)")
	packCmd.Flags().StringVar(&packDescription, "description", "", "driver description")
	packCmd.Flags().StringVar(&packVersion, "driver-version", "", "driver version, MAJOR.MINOR.PATCH")
	packCmd.Flags().BoolVar(&packNonInteractive, "non-interactive", false, "skip the interactive form and use flags only")
}
