package arf

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalELF assembles a small ELF32 relocatable object with a
// .text section, one exported symbol, one external (undefined) symbol
// referenced by a relocation, and a DT_NEEDED dynamic entry — enough to
// exercise every builder step once.
func buildMinimalELF(t *testing.T, machine elf.Machine) []byte {
	t.Helper()

	text := []byte{0x90, 0x90, 0x90, 0x90}

	strtab := []byte{0, 'e', 'x', 't', 'e', 'r', 'n', 0, 'l', 'o', 'c', 'a', 'l', 0}
	// offsets: "extern" at 1, "local" at 8
	symtab := make([]byte, 0, 48)
	symtab = append(symtab, make([]byte, 16)...) // null symbol
	// symbol 1: "extern", undefined, global
	externSym := make([]byte, 16)
	binary.LittleEndian.PutUint32(externSym[0:], 1)
	externSym[12] = byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_NOTYPE)
	binary.LittleEndian.PutUint16(externSym[14:], uint16(elf.SHN_UNDEF))
	symtab = append(symtab, externSym...)
	// symbol 2: "local", defined in .text at offset 0, global
	localSym := make([]byte, 16)
	binary.LittleEndian.PutUint32(localSym[0:], 8)
	binary.LittleEndian.PutUint32(localSym[4:], 0)
	localSym[12] = byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_FUNC)
	binary.LittleEndian.PutUint16(localSym[14:], 1) // section 1 = .text
	symtab = append(symtab, localSym...)

	dynstr := []byte{0, 'l', 'i', 'b', 'c', '.', 's', 'o', 0}
	dynamic := make([]byte, 0, 16)
	needed := make([]byte, 8)
	binary.LittleEndian.PutUint32(needed[0:], uint32(elf.DT_NEEDED))
	binary.LittleEndian.PutUint32(needed[4:], 1)
	dynamic = append(dynamic, needed...)
	null := make([]byte, 8)
	binary.LittleEndian.PutUint32(null[0:], uint32(elf.DT_NULL))
	dynamic = append(dynamic, null...)

	relText := make([]byte, 8)
	binary.LittleEndian.PutUint32(relText[0:], 0)
	binary.LittleEndian.PutUint32(relText[4:], uint32(1)<<8) // r_sym=1 ("extern")

	type sec struct {
		name    string
		data    []byte
		typ     uint32
		flags   uint32
		entsize uint32
		link    uint32
	}
	secs := []sec{
		{name: ""},
		{name: ".text", data: text, typ: uint32(elf.SHT_PROGBITS), flags: uint32(elf.SHF_ALLOC | elf.SHF_EXECINSTR)},
		{name: ".strtab", data: strtab, typ: uint32(elf.SHT_STRTAB)},
		{name: ".symtab", data: symtab, typ: uint32(elf.SHT_SYMTAB), entsize: 16, link: 2},
		{name: ".dynstr", data: dynstr, typ: uint32(elf.SHT_STRTAB)},
		{name: ".dynamic", data: dynamic, typ: uint32(elf.SHT_DYNAMIC), entsize: 8},
		{name: ".rel.text", data: relText, typ: uint32(elf.SHT_REL), entsize: 8},
		{name: ".shstrtab", typ: uint32(elf.SHT_STRTAB)},
	}

	shstrtab := []byte{0}
	nameOffsets := make([]uint32, len(secs))
	for i, s := range secs {
		if s.name != "" {
			nameOffsets[i] = uint32(len(shstrtab))
			shstrtab = append(shstrtab, []byte(s.name)...)
			shstrtab = append(shstrtab, 0)
		}
	}
	for i, s := range secs {
		if s.name == ".shstrtab" {
			secs[i].data = shstrtab
		}
	}

	header := make([]byte, 52)
	copy(header[0:4], "\x7fELF")
	header[4] = 1
	header[5] = 1
	header[6] = 1
	binary.LittleEndian.PutUint16(header[16:], uint16(elf.ET_REL))
	binary.LittleEndian.PutUint16(header[18:], uint16(machine))
	binary.LittleEndian.PutUint32(header[20:], 1)
	binary.LittleEndian.PutUint16(header[40:], 52)
	binary.LittleEndian.PutUint16(header[46:], 40)
	binary.LittleEndian.PutUint16(header[48:], uint16(len(secs)))
	binary.LittleEndian.PutUint16(header[50:], uint16(len(secs)-1))

	var out []byte
	out = append(out, header...)
	offsets := make([]uint32, len(secs))
	for i, s := range secs {
		offsets[i] = uint32(len(out))
		out = append(out, s.data...)
	}
	for len(out)%4 != 0 {
		out = append(out, 0)
	}

	shoff := uint32(len(out))
	binary.LittleEndian.PutUint32(out[32:36], shoff)

	for i, s := range secs {
		sh := make([]byte, 40)
		binary.LittleEndian.PutUint32(sh[0:], nameOffsets[i])
		binary.LittleEndian.PutUint32(sh[4:], s.typ)
		binary.LittleEndian.PutUint32(sh[8:], s.flags)
		binary.LittleEndian.PutUint32(sh[16:], offsets[i])
		binary.LittleEndian.PutUint32(sh[20:], uint32(len(s.data)))
		binary.LittleEndian.PutUint32(sh[24:], s.link)
		binary.LittleEndian.PutUint32(sh[32:], 1)
		binary.LittleEndian.PutUint32(sh[36:], s.entsize)
		out = append(out, sh...)
	}

	return out
}

func hostMachine(t *testing.T) elf.Machine {
	t.Helper()
	switch runtime.GOARCH {
	case "amd64":
		return elf.EM_X86_64
	case "386":
		return elf.EM_386
	case "arm64":
		return elf.EM_AARCH64
	case "arm":
		return elf.EM_ARM
	default:
		t.Skipf("no machine mapping for host arch %q", runtime.GOARCH)
		return 0
	}
}

func TestBuild_SectionsSymbolsLibrariesFixes(t *testing.T) {
	machine := hostMachine(t)
	data := buildMinimalELF(t, machine)

	f, err := Build(false, data, "", false)
	require.NoError(t, err)

	assert.Equal(t, VersionExecutable, f.Header.VersionTag)
	assert.Equal(t, f.Header.Architecture, f.Header.HostArchitecture)

	require.Len(t, f.Sections, 7, "every named section header is recorded, .text first")
	assert.Equal(t, ".text", f.Sections[0].Name)
	assert.NotZero(t, f.Sections[0].Permissions&PermExecutable)

	require.Len(t, f.Symbols, 2)
	names := map[string]Symbol{}
	for _, s := range f.Symbols {
		names[s.Name] = s
	}
	require.Contains(t, names, "extern")
	assert.Equal(t, ResolutionExternal, names["extern"].Resolution)
	require.Contains(t, names, "local")
	assert.Equal(t, ResolutionDefined, names["local"].Resolution)
	assert.Equal(t, uint32(0), names["local"].Address, "rebased by .text's offset (0)")

	require.Len(t, f.Libraries, 1)
	assert.Equal(t, "libc.so", f.Libraries[0].Name)
	assert.Equal(t, LibraryUnknown, f.Libraries[0].Availability)

	require.Len(t, f.Fixes, 1)
	assert.Equal(t, "extern", f.Fixes[0].Name)

	assert.Len(t, f.Data, 16, "4-byte .text padded up to a 16-byte boundary")
}

func TestBuild_LibraryHintSetsARLTag(t *testing.T) {
	machine := hostMachine(t)
	data := buildMinimalELF(t, machine)

	f, err := Build(true, data, "", false)
	require.NoError(t, err)
	assert.Equal(t, VersionLibrary, f.Header.VersionTag)
	assert.True(t, f.Header.Library())
}

func TestBuild_UnsupportedArchitecture(t *testing.T) {
	data := buildMinimalELF(t, elf.EM_68K)
	_, err := Build(false, data, "", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedArchitecture)
}

func TestBuild_AppliesDescriptor(t *testing.T) {
	machine := hostMachine(t)
	data := buildMinimalELF(t, machine)

	dir := t.TempDir()
	path := filepath.Join(dir, "driver.ad")
	require.NoError(t, os.WriteFile(path, []byte("console\nframebuffer\n"), 0o644))

	f, err := Build(false, data, path, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Request{RequestConsole, RequestFramebuffer}, f.Requests)
}

func TestBuild_AppliesLegacyDescriptor(t *testing.T) {
	machine := hostMachine(t)
	data := buildMinimalELF(t, machine)

	dir := t.TempDir()
	path := filepath.Join(dir, "driver.ad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("library: true\nextensions:\n  - console\n"), 0o644))

	f, err := Build(false, data, path, true)
	require.NoError(t, err)
	assert.Equal(t, VersionLibrary, f.Header.VersionTag)
	assert.ElementsMatch(t, []Request{RequestConsole}, f.Requests)
}

func TestSortFixes_DedupesAndOrders(t *testing.T) {
	in := []Fix{
		{Name: "b", Offset: 4},
		{Name: "a", Offset: 8},
		{Name: "a", Offset: 8},
		{Name: "a", Offset: 0},
	}
	out := sortFixes(in)
	require.Len(t, out, 3)
	assert.Equal(t, Fix{Name: "a", Offset: 0}, out[0])
	assert.Equal(t, Fix{Name: "a", Offset: 8}, out[1])
	assert.Equal(t, Fix{Name: "b", Offset: 4}, out[2])
}
