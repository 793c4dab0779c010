package arf

import (
	"debug/elf"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/maxvdec/avery-toolchain/internal/arf/descriptor"
	"github.com/maxvdec/avery-toolchain/internal/arf/elfview"
	"github.com/maxvdec/avery-toolchain/pkg/utils"
)

// machineTable maps ELF e_machine values, and runtime.GOARCH names, to
// Architecture. Used both for the target (from the ELF header) and the
// host (from the running toolchain).
var machineTable = []struct {
	machine elf.Machine
	goarch  string
	arch    Architecture
}{
	{elf.EM_386, "386", ArchX86},
	{elf.EM_X86_64, "amd64", ArchX86_64},
	{elf.EM_ARM, "arm", ArchARMv7},
	{elf.EM_AARCH64, "arm64", ArchAarch64},
}

func architectureFromMachine(m elf.Machine) (Architecture, error) {
	for _, row := range machineTable {
		if row.machine == m {
			return row.arch, nil
		}
	}
	return ArchUnknown, fmt.Errorf("%w: e_machine %v", ErrUnsupportedArchitecture, m)
}

func architectureFromHost() (Architecture, error) {
	for _, row := range machineTable {
		if row.goarch == runtime.GOARCH {
			return row.arch, nil
		}
	}
	return ArchUnknown, fmt.Errorf("%w: host arch %q", ErrUnsupportedArchitecture, runtime.GOARCH)
}

// Build constructs an ArfFile from an ELF object, per spec.md §4.3.
// descriptorPath, when non-empty, is a sidecar overriding the requests
// list and the library flag: the plain .ad text format by default, or
// the legacy .ad.yaml format when legacyDescriptor is set.
func Build(libraryHint bool, elfBytes []byte, descriptorPath string, legacyDescriptor bool) (*ArfFile, error) {
	ef, err := elfview.Open(elfBytes)
	if err != nil {
		return nil, err
	}

	targetArch, err := architectureFromMachine(ef.Machine())
	if err != nil {
		return nil, err
	}
	hostArch, err := architectureFromHost()
	if err != nil {
		return nil, err
	}

	out := &ArfFile{
		Header: Header{
			VersionTag:       versionTag(libraryHint),
			Architecture:     targetArch,
			HostArchitecture: hostArch,
			EntryPoint:       uint32(ef.Entry()),
		},
		Requests: defaultRequests(),
	}

	if err := buildSections(out, ef); err != nil {
		return nil, err
	}
	if err := buildSymbols(out, ef); err != nil {
		return nil, err
	}
	if err := buildLibraries(out, ef); err != nil {
		return nil, err
	}
	if err := buildFixes(out, ef); err != nil {
		return nil, err
	}
	if err := buildData(out, ef); err != nil {
		return nil, err
	}

	if descriptorPath != "" {
		if err := applyDescriptor(out, descriptorPath, legacyDescriptor); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func versionTag(library bool) string {
	if library {
		return VersionLibrary
	}
	return VersionExecutable
}

// defaultRequests is the request list used when no descriptor is supplied
// (the wire format always emits at least the 0xBB sentinel; an empty
// request list is a perfectly valid ArfFile, so this is simply nil).
func defaultRequests() []Request {
	return nil
}

func applyDescriptor(out *ArfFile, path string, legacy bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening descriptor %q: %v", ErrIO, path, err)
	}
	defer f.Close()

	var res descriptor.Result
	if legacy {
		res, err = descriptor.ParseLegacy(f)
	} else {
		res, err = descriptor.Parse(f)
	}
	if err != nil {
		return err
	}

	out.Requests = res.Requests
	out.Header.VersionTag = versionTag(res.Library)
	return nil
}

// buildSections walks the ELF section headers in file order, recording
// one Section per distinct non-empty name (first occurrence wins) with
// its permission byte computed from SHF_* flags.
func buildSections(out *ArfFile, ef *elfview.File) error {
	seen := newNamedSet()
	for _, sh := range ef.Sections() {
		var perms byte
		if sh.Flags&elf.SHF_EXECINSTR != 0 {
			perms |= PermExecutable
		}
		const knownMask = elf.SHF_ALLOC | elf.SHF_WRITE | elf.SHF_EXECINSTR
		if sh.Flags&^knownMask != 0 {
			perms |= PermUnknownFlags
		}

		out.addSection(Section{
			Name:        sh.Name,
			Offset:      uint32(sh.Addr),
			Permissions: perms,
		}, seen)
	}
	return nil
}

// buildSymbols walks the static symbol table, skipping empty/duplicate
// names and symbols whose binding is not local, global or weak, and rebasing
// each defined symbol's address into the emitted image's coordinate
// system (spec.md §4.3, property 7).
func buildSymbols(out *ArfFile, ef *elfview.File) error {
	syms, err := ef.Symbols()
	if err != nil {
		return err
	}

	seen := newNamedSet()
	for _, s := range syms {
		if s.Name == "" || !seen.add(s.Name) {
			continue
		}

		var typ byte
		switch s.Bind {
		case elf.STB_LOCAL:
			typ = SymbolLocal
		case elf.STB_GLOBAL:
			typ = SymbolGlobal
		case elf.STB_WEAK:
			typ = SymbolWeak
		default:
			continue
		}

		var resolution byte
		switch s.Shndx {
		case elf.SHN_UNDEF:
			resolution = ResolutionExternal
		case elf.SHN_COMMON:
			resolution = ResolutionCommon
		default:
			resolution = ResolutionDefined
		}

		sectionOffset := out.SectionOffset(s.Section)
		out.Symbols = append(out.Symbols, Symbol{
			Name:       s.Name,
			Resolution: resolution,
			Type:       typ,
			Address:    uint32(s.Value) + sectionOffset,
		})
	}
	return nil
}

// buildLibraries reads DT_NEEDED entries; the library list is empty when
// the object has no .dynamic/.dynstr pair.
func buildLibraries(out *ArfFile, ef *elfview.File) error {
	names, err := ef.NeededLibraries()
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		out.Libraries = append(out.Libraries, Library{Name: name, Availability: LibraryUnknown})
	}
	return nil
}

// buildFixes collects unresolved relocations (those against an
// SHN_UNDEF, named symbol) from every REL and RELA section, then sorts
// and deduplicates per spec.md's testable property 3.
func buildFixes(out *ArfFile, ef *elfview.File) error {
	syms, err := ef.Symbols()
	if err != nil {
		return err
	}

	rels, err := ef.RelSections()
	if err != nil {
		return err
	}
	relas, err := ef.RelaSections()
	if err != nil {
		return err
	}

	var fixes []Fix
	collect := func(symIdx uint32, offset uint32) {
		// ef.Symbols() already drops the all-zero symtab entry at raw
		// index 0 (debug/elf does this for us), so a relocation's r_sym
		// is one higher than its index into syms.
		if symIdx == 0 || int(symIdx)-1 >= len(syms) {
			return
		}
		s := syms[symIdx-1]
		if s.Shndx == elf.SHN_UNDEF && s.Name != "" {
			fixes = append(fixes, Fix{Name: s.Name, Offset: offset})
		}
	}

	for _, entries := range rels {
		for _, r := range entries {
			collect(r.Sym, uint32(r.Offset))
		}
	}
	for _, entries := range relas {
		for _, r := range entries {
			collect(r.Sym, uint32(r.Offset))
		}
	}

	out.Fixes = sortFixes(fixes)
	return nil
}

type candidateSection struct {
	addr uint64
	size uint64
	data []byte
	name string
}

// buildData assembles the contiguous data image from candidate sections,
// preserving vaddr gaps as zero padding and right-padding the whole blob
// to a multiple of 16 (spec.md §4.3 step "Data image").
func buildData(out *ArfFile, ef *elfview.File) error {
	var candidates []candidateSection
	for _, sh := range ef.Sections() {
		if sh.Flags&elf.SHF_ALLOC == 0 || sh.Size == 0 || sh.Type == elf.SHT_NOBITS {
			continue
		}
		if strings.HasPrefix(sh.Name, ".debug") || strings.HasPrefix(sh.Name, ".comment") {
			continue
		}
		if sh.Name == ".shstrtab" || sh.Name == ".strtab" || sh.Name == ".symtab" {
			continue
		}

		data, err := sh.Data()
		if err != nil {
			return err
		}
		candidates = append(candidates, candidateSection{addr: sh.Addr, size: sh.Size, data: data, name: sh.Name})
	}

	if len(candidates) == 0 {
		out.Data = nil
		return nil
	}

	minVaddr := utils.Min(utils.Map(candidates, func(c candidateSection) uint64 { return c.addr }))

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].addr < candidates[j].addr })

	var data []byte
	var currentOffset uint64
	for _, c := range candidates {
		target := c.addr - minVaddr
		if target > currentOffset {
			data = append(data, make([]byte, target-currentOffset)...)
			currentOffset = target
		}
		// target < currentOffset: overlapping sections. Continue from the
		// current offset rather than rewinding (spec.md §4.3 step 4).

		data = append(data, c.data...)
		if c.size > uint64(len(c.data)) {
			data = append(data, make([]byte, c.size-uint64(len(c.data)))...)
		}
		currentOffset += c.size
	}

	if rem := len(data) % 16; rem != 0 {
		data = append(data, make([]byte, 16-rem)...)
	}

	out.Data = data
	return nil
}
