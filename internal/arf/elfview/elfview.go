// Package elfview provides a thin read-only view over a parsed ELF object,
// exposing only the bits the ARF builder needs: machine type, entry point,
// endianness, class, sections (with name resolution), the static symbol
// table, the dynamic table, and REL/RELA relocation iterators.
//
// It does not reimplement ELF parsing; it wraps debug/elf, the same way
// the cucaracha machine-code backend wraps debug/elf to recover its own
// instruction stream from a .o file.
package elfview

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// ErrMalformed wraps any debug/elf parsing failure into the single
// "malformed ELF" condition the builder treats as fatal.
var ErrMalformed = fmt.Errorf("malformed ELF")

// File is a read-only view over an ELF object.
type File struct {
	raw *elf.File
}

// Open parses ELF bytes already read into memory.
func Open(data []byte) (*File, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &File{raw: f}, nil
}

// Machine returns the ELF e_machine value.
func (f *File) Machine() elf.Machine {
	return f.raw.Machine
}

// Entry returns the ELF entry point address.
func (f *File) Entry() uint64 {
	return f.raw.Entry
}

// Class returns the ELF file class (32/64-bit).
func (f *File) Class() elf.Class {
	return f.raw.Class
}

// Data returns the ELF endianness tag.
func (f *File) Data() elf.Data {
	return f.raw.Data
}

// Section is a named section header with its raw flags and data accessor.
type Section struct {
	Name  string
	Addr  uint64
	Size  uint64
	Flags elf.SectionFlag
	Type  elf.SectionType
	raw   *elf.Section
}

// Data returns the section's raw bytes, or nil for SHT_NOBITS sections.
func (s Section) Data() ([]byte, error) {
	if s.Type == elf.SHT_NOBITS {
		return nil, nil
	}
	data, err := s.raw.Data()
	if err != nil {
		return nil, fmt.Errorf("%w: section %q: %v", ErrMalformed, s.Name, err)
	}
	return data, nil
}

// Sections returns every section header in file order, name-resolved
// against the section header string table.
func (f *File) Sections() []Section {
	out := make([]Section, 0, len(f.raw.Sections))
	for _, sh := range f.raw.Sections {
		out = append(out, Section{
			Name:  sh.Name,
			Addr:  sh.Addr,
			Size:  sh.Size,
			Flags: sh.Flags,
			Type:  sh.Type,
			raw:   sh,
		})
	}
	return out
}

// Section looks up a section by exact name, nil if absent.
func (f *File) Section(name string) *Section {
	for _, sh := range f.Sections() {
		if sh.Name == name {
			return &sh
		}
	}
	return nil
}

// Symbol is a static symbol table entry.
type Symbol struct {
	Name    string
	Bind    elf.SymBind
	Type    elf.SymType
	Shndx   elf.SectionIndex
	Value   uint64
	Size    uint64
	Section string // name of the section Shndx refers to, "" if none
}

// Symbols returns the static symbol table (.symtab), not the dynamic
// symbol table (.dynsym). Returns an empty slice, not an error, when the
// object carries no static symbol table (e.g. a stripped binary).
func (f *File) Symbols() ([]Symbol, error) {
	raw, err := f.raw.Symbols()
	if err != nil {
		if err == elf.ErrNoSymbols {
			return nil, nil
		}
		// debug/elf reports an empty symbol table as a plain string error;
		// treat it the same as ErrNoSymbols.
		if err.Error() == "symbol section is empty" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: symbols: %v", ErrMalformed, err)
	}

	out := make([]Symbol, 0, len(raw))
	for _, s := range raw {
		sectionName := ""
		if int(s.Section) < len(f.raw.Sections) {
			sectionName = f.raw.Sections[s.Section].Name
		}
		out = append(out, Symbol{
			Name:    s.Name,
			Bind:    elf.ST_BIND(s.Info),
			Type:    elf.ST_TYPE(s.Info),
			Shndx:   s.Section,
			Value:   s.Value,
			Size:    s.Size,
			Section: sectionName,
		})
	}
	return out, nil
}

// NeededLibraries returns the DT_NEEDED entries of the .dynamic table,
// resolved against .dynstr. Returns nil (not an error) when the object
// carries no .dynamic/.dynstr pair — e.g. a statically linked object.
func (f *File) NeededLibraries() ([]string, error) {
	dynstr := f.Section(".dynstr")
	if f.Section(".dynamic") == nil || dynstr == nil {
		return nil, nil
	}
	offsets, err := f.raw.DynValue(elf.DT_NEEDED)
	if err != nil {
		return nil, fmt.Errorf("%w: reading DT_NEEDED: %v", ErrMalformed, err)
	}
	strs, err := dynstr.Data()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(offsets))
	for _, off := range offsets {
		if off >= uint64(len(strs)) {
			return nil, fmt.Errorf("%w: DT_NEEDED offset %d outside .dynstr", ErrMalformed, off)
		}
		names = append(names, string(bytes.SplitN(strs[off:], []byte{0}, 2)[0]))
	}
	return names, nil
}

// RelEntry is a REL-style relocation (no addend).
type RelEntry struct {
	Offset uint64
	Sym    uint32
}

// RelaEntry is a RELA-style relocation (explicit addend).
type RelaEntry struct {
	Offset uint64
	Sym    uint32
	Addend int64
}

// RelSections returns every SHT_REL section alongside its decoded entries.
func (f *File) RelSections() (map[string][]RelEntry, error) {
	out := make(map[string][]RelEntry)
	for _, sh := range f.Sections() {
		if sh.Type != elf.SHT_REL {
			continue
		}
		data, err := sh.Data()
		if err != nil {
			return nil, err
		}
		out[sh.Name] = f.decodeRel(data)
	}
	return out, nil
}

// RelaSections returns every SHT_RELA section alongside its decoded entries.
func (f *File) RelaSections() (map[string][]RelaEntry, error) {
	out := make(map[string][]RelaEntry)
	for _, sh := range f.Sections() {
		if sh.Type != elf.SHT_RELA {
			continue
		}
		data, err := sh.Data()
		if err != nil {
			return nil, err
		}
		out[sh.Name] = f.decodeRela(data)
	}
	return out, nil
}

// byteOrder returns the binary.ByteOrder implied by the ELF's data encoding.
func (f *File) byteOrder() binary.ByteOrder {
	if f.Data() == elf.ELFDATA2MSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (f *File) decodeRel(data []byte) []RelEntry {
	order := f.byteOrder()
	var out []RelEntry
	if f.Class() == elf.ELFCLASS64 {
		const sz = 16
		for off := 0; off+sz <= len(data); off += sz {
			offset := order.Uint64(data[off : off+8])
			info := order.Uint64(data[off+8 : off+16])
			out = append(out, RelEntry{Offset: offset, Sym: uint32(info >> 32)})
		}
	} else {
		const sz = 8
		for off := 0; off+sz <= len(data); off += sz {
			offset := uint64(order.Uint32(data[off : off+4]))
			info := order.Uint32(data[off+4 : off+8])
			out = append(out, RelEntry{Offset: offset, Sym: info >> 8})
		}
	}
	return out
}

func (f *File) decodeRela(data []byte) []RelaEntry {
	order := f.byteOrder()
	var out []RelaEntry
	if f.Class() == elf.ELFCLASS64 {
		const sz = 24
		for off := 0; off+sz <= len(data); off += sz {
			offset := order.Uint64(data[off : off+8])
			info := order.Uint64(data[off+8 : off+16])
			addend := int64(order.Uint64(data[off+16 : off+24]))
			out = append(out, RelaEntry{Offset: offset, Sym: uint32(info >> 32), Addend: addend})
		}
	} else {
		const sz = 12
		for off := 0; off+sz <= len(data); off += sz {
			offset := uint64(order.Uint32(data[off : off+4]))
			info := order.Uint32(data[off+4 : off+8])
			addend := int64(int32(order.Uint32(data[off+8 : off+12])))
			out = append(out, RelaEntry{Offset: offset, Sym: info >> 8, Addend: addend})
		}
	}
	return out
}
