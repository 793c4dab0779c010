// Package descriptor reads the optional .ad text sidecar that declares a
// driver image's kernel-extension capability requests and library flag.
//
// Line handling follows the original translator's parse_ad_file: trim,
// skip blanks and ';' comments, recognize the decorative [kernextensions]
// header and the [library] flag, and reject anything outside the closed
// extension table as a fatal UnknownExtension.
package descriptor

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/maxvdec/avery-toolchain/internal/arf"
	"github.com/maxvdec/avery-toolchain/pkg/utils"
	"github.com/samber/lo"
	yamlv2 "gopkg.in/yaml.v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Result is the parsed descriptor: the capability requests in file order,
// and whether the [library] flag was set.
type Result struct {
	Requests []arf.Request
	Library  bool
}

// Parse reads a .ad descriptor from r. It returns arf.ErrUnknownExtension,
// wrapped with the offending name, on any line that isn't a comment, a
// recognized section header, or a name from arf.Extensions.
func Parse(r io.Reader) (Result, error) {
	table := arf.Extensions
	var res Result

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ";"):
			continue
		case line == "[kernextensions]":
			continue
		case line == "[library]":
			res.Library = true
			continue
		case line == "[capabilities]":
			// A [capabilities] override block (SPEC_FULL §4.7) lets an
			// operator extend the closed table with a YAML block of
			// extra name -> byte mappings, without a rebuild.
			overrides, err := readCapabilityOverrides(scanner)
			if err != nil {
				return Result{}, err
			}
			table = mergeExtensions(table, overrides)
			continue
		default:
			req, ok := table[line]
			if !ok {
				return Result{}, fmt.Errorf("%w: %q (known: %s)", arf.ErrUnknownExtension, line, utils.FormatSlice(utils.Keys(table), ", "))
			}
			res.Requests = append(res.Requests, req)
		}
	}

	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: reading descriptor: %v", arf.ErrIO, err)
	}

	return res, nil
}

// readCapabilityOverrides consumes indented YAML "name: 0xNN" lines
// following a [capabilities] header, stopping at the first line that
// isn't indented.
func readCapabilityOverrides(scanner *bufio.Scanner) (map[string]arf.Request, error) {
	var block strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			break
		}
		block.WriteString(strings.TrimSpace(line))
		block.WriteByte('\n')
	}

	raw := map[string]int{}
	if err := yamlv3.Unmarshal([]byte(block.String()), &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing [capabilities] block: %v", arf.ErrMalformedInput, err)
	}

	out := make(map[string]arf.Request, len(raw))
	for name, val := range raw {
		out[name] = arf.Request(byte(val))
	}
	return out, nil
}

func mergeExtensions(base map[string]arf.Request, overrides map[string]arf.Request) map[string]arf.Request {
	return lo.Assign(base, overrides)
}

// LegacyDescriptor is the single-document .ad.yaml shape read with
// gopkg.in/yaml.v2 (SPEC_FULL §4.9, DESIGN.md Open Question 4) — an
// alternate descriptor format for older driver-build pipelines that
// predate the plain-text .ad format.
type LegacyDescriptor struct {
	Library    bool     `yaml:"library"`
	Extensions []string `yaml:"extensions"`
}

// ParseLegacy reads the .ad.yaml variant, translating extension names
// through the same closed table Parse uses.
func ParseLegacy(r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading legacy descriptor: %v", arf.ErrIO, err)
	}

	var legacy LegacyDescriptor
	if err := yamlv2.Unmarshal(data, &legacy); err != nil {
		return Result{}, fmt.Errorf("%w: parsing legacy descriptor: %v", arf.ErrMalformedInput, err)
	}

	res := Result{Library: legacy.Library}
	for _, name := range legacy.Extensions {
		req, ok := arf.Extensions[name]
		if !ok {
			return Result{}, fmt.Errorf("%w: %q", arf.ErrUnknownExtension, name)
		}
		res.Requests = append(res.Requests, req)
	}
	return res, nil
}
