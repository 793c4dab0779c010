// Package arf implements the ARF/ARL translator: the logical ArfFile data
// model and the builder that constructs one from a parsed ELF object.
//
// The data model mirrors the cucaracha machine-code package's
// ProgramFileContents shape — ordered slices of named entities plus a
// handful of scalar header fields — generalized to the sections, symbols,
// libraries, fixes, and requests spec.md §3 requires.
package arf

import (
	"fmt"
	"sort"
)

// Architecture is the target/host CPU family, serialized as one byte.
// Zero is deliberately invalid; ArchUnknown exists only to catch that case.
type Architecture byte

const (
	ArchUnknown Architecture = 0
	ArchX86     Architecture = 1
	ArchX86_64  Architecture = 2
	ArchARMv7   Architecture = 3
	ArchAarch64 Architecture = 4
)

func (a Architecture) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX86_64:
		return "x86_64"
	case ArchARMv7:
		return "armv7"
	case ArchAarch64:
		return "aarch64"
	default:
		return fmt.Sprintf("unknown(%d)", byte(a))
	}
}

// Version tags, per spec.md §3 — ARF003 for executables, ARL003 for
// libraries. These are the only variants this translator targets; the
// repo's original source also carries an incomplete ARF001, which this
// implementation never emits or recognizes (spec.md §9).
const (
	VersionExecutable = "ARF003"
	VersionLibrary    = "ARL003"
)

// Permission bits for Section.Permissions. The wire format only ever sets
// PermExecutable and PermUnknownFlags (spec.md §3, §9) — PermAllocated and
// PermWritable are reserved bit positions kept for a future loader that
// wants them, but the builder always emits them as 0 to match the
// observed wire behavior.
const (
	PermAllocated    byte = 0x01
	PermWritable     byte = 0x02
	PermExecutable   byte = 0x04
	PermUnknownFlags byte = 0x10
)

// Symbol resolution codes.
const (
	ResolutionDefined  byte = 0
	ResolutionExternal byte = 1
	ResolutionCommon   byte = 2
)

// Symbol type/binding codes.
const (
	SymbolLocal  byte = 0
	SymbolGlobal byte = 1
	SymbolWeak   byte = 2
)

// Library availability codes.
const (
	LibraryUnknown  byte = 0x00
	LibraryResolved byte = 0xFF
)

// Request is a single capability extension byte from the closed table
// below.
type Request byte

const (
	RequestConsole     Request = 0x00
	RequestFramebuffer Request = 0x01
	RequestFilesystem  Request = 0x02
)

// Extensions is the closed capability-extension name table shared by the
// descriptor parser and the `arf info` CLI front.
var Extensions = map[string]Request{
	"console":     RequestConsole,
	"framebuffer": RequestFramebuffer,
	"filesystem":  RequestFilesystem,
}

// ExtensionName returns the descriptor name for a request byte, or
// "unknown" when the byte isn't in the closed table (spec.md §6).
func ExtensionName(r Request) string {
	for name, val := range Extensions {
		if val == r {
			return name
		}
	}
	return "unknown"
}

// Header is the fixed-size leading region of an ARF/ARL container.
type Header struct {
	VersionTag       string // always 6 bytes: VersionExecutable or VersionLibrary
	Architecture     Architecture
	HostArchitecture Architecture
	EntryPoint       uint32
}

// Library returns whether the header's version tag marks an ARL (library)
// container, derived from the "ARL" prefix as spec.md §3 requires.
func (h Header) Library() bool {
	return len(h.VersionTag) >= 3 && h.VersionTag[:3] == "ARL"
}

// Section describes one section of the source ELF carried into the image.
type Section struct {
	Name        string
	Offset      uint32 // the section's ELF virtual address
	Permissions byte
}

// Symbol describes one static symbol, rebased into the emitted image's
// coordinate system (spec.md §4.3, property 7).
type Symbol struct {
	Name       string
	Resolution byte
	Type       byte
	Address    uint32
}

// Library is one DT_NEEDED dependency, optionally resolved to a path by
// the `addlib` operation.
type Library struct {
	Name         string
	Availability byte
	Path         string // only meaningful when Availability == LibraryResolved
}

// Fix records an unresolved relocation against an external symbol.
type Fix struct {
	Name   string
	Offset uint32
}

// ArfFile is the complete logical container: header plus the five named
// entity lists plus the concatenated data image.
type ArfFile struct {
	Header    Header
	Sections  []Section
	Symbols   []Symbol
	Libraries []Library
	Fixes     []Fix
	Requests  []Request
	Data      []byte
}

// namedSet tracks first-occurrence-wins name membership in O(1) per
// insert, replacing the O(n^2) linear scan the original translator used
// (spec.md §9's redesign note).
type namedSet struct {
	seen map[string]struct{}
}

func newNamedSet() namedSet {
	return namedSet{seen: make(map[string]struct{})}
}

// add returns true if name was not already present, recording it either way.
func (s namedSet) add(name string) bool {
	if _, ok := s.seen[name]; ok {
		return false
	}
	s.seen[name] = struct{}{}
	return true
}

// addSection appends a section unless its name is empty or already present.
func (a *ArfFile) addSection(sec Section, seen namedSet) {
	if sec.Name == "" || !seen.add(sec.Name) {
		return
	}
	a.Sections = append(a.Sections, sec)
}

// SectionOffset returns the recorded offset of a named section, or 0 if
// no such section was recorded — used to rebase symbol addresses.
func (a *ArfFile) SectionOffset(name string) uint32 {
	for _, s := range a.Sections {
		if s.Name == name {
			return s.Offset
		}
	}
	return 0
}

// AppendLibrary adds a resolved library entry, as the `addlib` CLI
// operation does. It does not check for duplicate names: a driver image
// may legitimately gain the same library twice across repeated `addlib`
// invocations pointing at different paths, and the original translator's
// add_library never rejected that either.
func (a *ArfFile) AppendLibrary(name, path string) {
	a.Libraries = append(a.Libraries, Library{
		Name:         name,
		Availability: LibraryResolved,
		Path:         path,
	})
}

// sortFixes sorts and deduplicates the fix list by (name, offset), per
// spec.md §4.3 and testable property 3.
func sortFixes(fixes []Fix) []Fix {
	sort.Slice(fixes, func(i, j int) bool {
		if fixes[i].Name != fixes[j].Name {
			return fixes[i].Name < fixes[j].Name
		}
		return fixes[i].Offset < fixes[j].Offset
	})

	out := fixes[:0:0]
	for i, f := range fixes {
		if i > 0 && f == fixes[i-1] {
			continue
		}
		out = append(out, f)
	}
	return out
}
