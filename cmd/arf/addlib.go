package main

import (
	"os"

	"github.com/maxvdec/avery-toolchain/internal/arf/codec"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	addlibPath   string
	addlibOutput string
)

var addlibCmd = &cobra.Command{
	Use:   "addlib <container.arf> <library-name>",
	Short: "Record a resolved library path in an ARF/ARL container",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		containerPath, name := args[0], args[1]

		data, err := afero.ReadFile(fs, containerPath)
		if err != nil {
			logger.Error("reading container", "path", containerPath, "error", err)
			os.Exit(1)
		}

		patched, err := codec.AddLib(data, name, addlibPath)
		if err != nil {
			logger.Error("adding library", "path", containerPath, "library", name, "error", err)
			os.Exit(1)
		}

		out := addlibOutput
		if out == "" {
			out = containerPath
		}

		if err := afero.WriteFile(fs, out, patched, 0o644); err != nil {
			logger.Error("writing container", "path", out, "error", err)
			os.Exit(1)
		}

		logger.Info("recorded library", "container", out, "library", name, "resolved-path", addlibPath)
	},
}

func init() {
	rootCmd.AddCommand(addlibCmd)
	addlibCmd.Flags().StringVarP(&addlibPath, "path", "p", "", "resolved on-disk path of the library")
	addlibCmd.Flags().StringVarP(&addlibOutput, "output", "o", "", "output path (default: overwrite the input container)")
	addlibCmd.MarkFlagRequired("path")
}
