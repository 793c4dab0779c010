package codec

import (
	"testing"

	"github.com/maxvdec/avery-toolchain/internal/arf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFile() *arf.ArfFile {
	return &arf.ArfFile{
		Header: arf.Header{
			VersionTag:       arf.VersionExecutable,
			Architecture:     arf.ArchX86_64,
			HostArchitecture: arf.ArchX86_64,
			EntryPoint:       0x1000,
		},
		Sections: []arf.Section{
			{Name: ".text", Offset: 0, Permissions: arf.PermExecutable},
			{Name: ".data", Offset: 16, Permissions: 0},
		},
		Symbols: []arf.Symbol{
			{Name: "main", Resolution: arf.ResolutionDefined, Type: arf.SymbolGlobal, Address: 0},
		},
		Libraries: []arf.Library{
			{Name: "libc.so", Availability: arf.LibraryUnknown},
		},
		Fixes: []arf.Fix{
			{Name: "printf", Offset: 4},
		},
		Requests: []arf.Request{arf.RequestConsole, arf.RequestFilesystem},
		Data:     []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
	}
}

func TestEmitParse_RoundTrip(t *testing.T) {
	f := sampleFile()
	encoded := Emit(f)

	decoded, err := Parse(encoded)
	require.NoError(t, err)

	assert.Equal(t, f.Header, decoded.Header)
	assert.Equal(t, f.Sections, decoded.Sections)
	assert.Equal(t, f.Symbols, decoded.Symbols)
	assert.Equal(t, f.Libraries, decoded.Libraries)
	assert.Equal(t, f.Fixes, decoded.Fixes)
	assert.Equal(t, f.Requests, decoded.Requests)
	assert.Equal(t, f.Data, decoded.Data)
}

func TestEmit_IsByteIdempotent(t *testing.T) {
	f := sampleFile()
	first := Emit(f)
	decoded, err := Parse(first)
	require.NoError(t, err)
	second := Emit(decoded)
	assert.Equal(t, first, second)
}

func TestParse_RewritesNonCanonicalVersionTag(t *testing.T) {
	f := sampleFile()
	f.Header.VersionTag = "ARF001"
	decoded, err := Parse(Emit(f))
	require.NoError(t, err)
	assert.Equal(t, arf.VersionExecutable, decoded.Header.VersionTag)
}

func TestParse_DataRunsToEndOfInput(t *testing.T) {
	// The data blob has no length prefix; it is everything after the
	// 0xFF data sentinel. Bytes appended past a valid encoding become
	// part of Data, not a parse error.
	f := sampleFile()
	encoded := append(Emit(f), 0xAB, 0xCD)
	decoded, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, f.Data...), 0xAB, 0xCD), decoded.Data)
}

func TestParse_TruncatedInputRejected(t *testing.T) {
	f := sampleFile()
	encoded := Emit(f)
	// 0, 1, 6, 10: cut within the fixed-size header. 15: cut mid-name,
	// 2 bytes into ".text" with no terminating NUL before EOF. The data
	// blob itself can't be "truncated" into an error since it has no
	// length prefix — it simply reads as a shorter blob.
	for _, cut := range []int{0, 1, 6, 10, 15} {
		_, err := Parse(encoded[:cut])
		assert.Error(t, err, "truncating to %d bytes should fail", cut)
		assert.ErrorIs(t, err, arf.ErrMalformedInput)
	}
}

func TestEmit_EmptyRegionsContributeNoBytes(t *testing.T) {
	f := &arf.ArfFile{
		Header: arf.Header{
			VersionTag:       arf.VersionExecutable,
			Architecture:     arf.ArchX86_64,
			HostArchitecture: arf.ArchX86_64,
			EntryPoint:       0,
		},
	}
	encoded := Emit(f)
	// header (12) + requests sentinel (1) + data sentinel (1), nothing else.
	assert.Equal(t, 14, len(encoded))
	assert.Equal(t, byte(sentinelRequests), encoded[12])
	assert.Equal(t, byte(sentinelData), encoded[13])

	decoded, err := Parse(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded.Sections)
	assert.Empty(t, decoded.Symbols)
	assert.Empty(t, decoded.Libraries)
	assert.Empty(t, decoded.Fixes)
	assert.Empty(t, decoded.Requests)
	assert.Empty(t, decoded.Data)
}

func TestParse_BadSentinelRejected(t *testing.T) {
	f := sampleFile()
	encoded := Emit(f)
	// The first sentinel sits right after the 12-byte header.
	encoded[12] = 0xAA
	_, err := Parse(encoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, arf.ErrMalformedInput)
}

func TestAddLib_AppendsResolvedLibrary(t *testing.T) {
	f := sampleFile()
	encoded := Emit(f)

	patched, err := AddLib(encoded, "libm.so", "/lib/libm.so")
	require.NoError(t, err)

	decoded, err := Parse(patched)
	require.NoError(t, err)
	require.Len(t, decoded.Libraries, 2)
	assert.Equal(t, "libm.so", decoded.Libraries[1].Name)
	assert.Equal(t, arf.LibraryResolved, decoded.Libraries[1].Availability)
	assert.Equal(t, "/lib/libm.so", decoded.Libraries[1].Path)
}

func TestEmit_NamesAreNulTerminated(t *testing.T) {
	f := sampleFile()
	encoded := Emit(f)
	// Sanity: the first section name starts right after its own sentinel.
	nameStart := 12 + 1
	nameEnd := nameStart + len(".text")
	assert.Equal(t, []byte(".text"), encoded[nameStart:nameEnd])
	assert.Equal(t, byte(0), encoded[nameEnd])
}
