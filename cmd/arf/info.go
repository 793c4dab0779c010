package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/maxvdec/avery-toolchain/internal/arf"
	"github.com/maxvdec/avery-toolchain/internal/arf/codec"
	"github.com/maxvdec/avery-toolchain/pkg/utils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	colorHeader = color.New(color.FgWhite, color.Bold, color.Underline)
	colorLabel  = color.New(color.FgCyan)
	colorValue  = color.New(color.FgGreen)
	colorWarn   = color.New(color.FgYellow, color.Bold)
)

var infoCmd = &cobra.Command{
	Use:   "info <container.arf>",
	Short: "Print a human-readable summary of an ARF/ARL container",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := afero.ReadFile(fs, args[0])
		if err != nil {
			logger.Error("reading container", "path", args[0], "error", err)
			os.Exit(1)
		}

		f, err := codec.Parse(data)
		if err != nil {
			logger.Error("parsing container", "path", args[0], "error", err)
			os.Exit(1)
		}

		printInfo(f)
	},
}

func printInfo(f *arf.ArfFile) {
	colorHeader.Println("Header")
	printField("version tag", f.Header.VersionTag)
	printField("architecture", f.Header.Architecture.String())
	printField("host architecture", f.Header.HostArchitecture.String())
	printField("entry point", utils.FormatUintHex(uint64(f.Header.EntryPoint), 8))
	printField("library", fmt.Sprintf("%v", f.Header.Library()))

	colorHeader.Printf("\nSections (%d)\n", len(f.Sections))
	for _, s := range f.Sections {
		printField(s.Name, fmt.Sprintf("offset=%s perms=0x%02x", utils.FormatUintHex(uint64(s.Offset), 8), s.Permissions))
	}

	colorHeader.Printf("\nSymbols (%d)\n", len(f.Symbols))
	for _, s := range f.Symbols {
		printField(s.Name, fmt.Sprintf("addr=%s resolution=%d type=%d", utils.FormatUintHex(uint64(s.Address), 8), s.Resolution, s.Type))
	}

	colorHeader.Printf("\nLibraries (%d)\n", len(f.Libraries))
	for _, l := range f.Libraries {
		if l.Availability == arf.LibraryResolved {
			printField(l.Name, l.Path)
		} else {
			colorWarn.Printf("  %-24s unresolved\n", l.Name)
		}
	}

	colorHeader.Printf("\nFixes (%d)\n", len(f.Fixes))
	for _, fx := range f.Fixes {
		printField(fx.Name, fmt.Sprintf("offset=%s", utils.FormatUintHex(uint64(fx.Offset), 8)))
	}

	colorHeader.Printf("\nRequests (%d)\n", len(f.Requests))
	for _, r := range f.Requests {
		printField(arf.ExtensionName(r), fmt.Sprintf("0x%02x", byte(r)))
	}

	colorHeader.Println("\nData")
	printField("size", fmt.Sprintf("%d bytes", len(f.Data)))
}

func printField(label, value string) {
	colorLabel.Printf("  %-24s", label)
	colorValue.Println(value)
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
