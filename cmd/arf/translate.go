package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/maxvdec/avery-toolchain/internal/arf"
	"github.com/maxvdec/avery-toolchain/internal/arf/codec"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var fs afero.Fs = afero.NewOsFs()

var (
	translateOutput           string
	translateDescriptor       string
	translateLibrary          bool
	translateLegacyDescriptor bool
)

var translateCmd = &cobra.Command{
	Use:   "translate <object.o>",
	Short: "Translate an ELF object file into an ARF/ARL container",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input := args[0]

		data, err := afero.ReadFile(fs, input)
		if err != nil {
			logger.Error("reading object file", "path", input, "error", err)
			os.Exit(1)
		}

		built, err := arf.Build(translateLibrary, data, translateDescriptor, translateLegacyDescriptor)
		if err != nil {
			logger.Error("translating object file", "path", input, "error", err)
			os.Exit(1)
		}

		out := translateOutput
		if out == "" {
			out = defaultOutputName(input, built.Header.Library())
		}

		if err := afero.WriteFile(fs, out, codec.Emit(built), 0o644); err != nil {
			logger.Error("writing container", "path", out, "error", err)
			os.Exit(1)
		}

		logger.Info("translated object file", "input", input, "output", out,
			"sections", len(built.Sections), "symbols", len(built.Symbols),
			"libraries", len(built.Libraries), "fixes", len(built.Fixes))
	},
}

func defaultOutputName(input string, library bool) string {
	base := strings.TrimSuffix(input, ".o")
	if library {
		return fmt.Sprintf("%s.arl", base)
	}
	return fmt.Sprintf("%s.arf", base)
}

func init() {
	rootCmd.AddCommand(translateCmd)
	translateCmd.Flags().StringVarP(&translateOutput, "output", "o", "", "output container path (default derived from input name)")
	translateCmd.Flags().StringVarP(&translateDescriptor, "descriptor", "d", "", "optional .ad/.ad.yaml capability descriptor")
	translateCmd.Flags().BoolVarP(&translateLibrary, "library", "l", false, "target the library (ARL) container instead of ARF")
	translateCmd.Flags().BoolVar(&translateLegacyDescriptor, "legacy-descriptor", false, "parse --descriptor as the legacy .ad.yaml format instead of plain .ad text")
}
