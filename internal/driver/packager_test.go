package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOptions() Options {
	return Options{
		Name:         "e1000",
		Manufacturer: 0x8086,
		Device:       0x100E,
		Subsystem:    ClassNetwork,
		Description:  "Intel e1000 gigabit ethernet driver",
		Version:      Version{Major: 1, Minor: 2, Patch: 3},
	}
}

func TestBuild_ComputesHash(t *testing.T) {
	exec := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f, err := Build(sampleOptions(), exec)
	require.NoError(t, err)
	assert.Equal(t, computeHash("e1000", 0x8086, exec), f.Hash)
	assert.Len(t, f.Hash, 64, "sha-256 hex digest is 64 characters")
}

func TestBuild_RejectsMissingName(t *testing.T) {
	opts := sampleOptions()
	opts.Name = ""
	_, err := Build(opts, []byte{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestBuild_RejectsEmptyExecutable(t *testing.T) {
	_, err := Build(sampleOptions(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestEmitParse_RoundTrip(t *testing.T) {
	exec := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	f, err := Build(sampleOptions(), exec)
	require.NoError(t, err)

	decoded, err := Parse(Emit(f))
	require.NoError(t, err)

	assert.Equal(t, f.Name, decoded.Name)
	assert.Equal(t, f.Manufacturer, decoded.Manufacturer)
	assert.Equal(t, f.Device, decoded.Device)
	assert.Equal(t, f.Subsystem, decoded.Subsystem)
	assert.Equal(t, f.Description, decoded.Description)
	assert.Equal(t, f.Version, decoded.Version)
	assert.Equal(t, f.Hash, decoded.Hash)
	assert.Equal(t, f.Exec, decoded.Exec)
}

func TestVerify_DetectsTamperedExecutable(t *testing.T) {
	f, err := Build(sampleOptions(), []byte{1, 2, 3})
	require.NoError(t, err)

	require.NoError(t, Verify(f))

	f.Exec[0] ^= 0xFF
	err = Verify(f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestParse_RejectsBadMagic(t *testing.T) {
	_, err := Parse([]byte("not a driver package at all"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_RejectsTruncatedInput(t *testing.T) {
	f, err := Build(sampleOptions(), []byte{1, 2, 3, 4})
	require.NoError(t, err)
	encoded := Emit(f)

	_, err = Parse(encoded[:len(magic)+2])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestComputeHash_DiffersByManufacturer(t *testing.T) {
	h1 := computeHash("same-name", 1, []byte{1, 2, 3})
	h2 := computeHash("same-name", 2, []byte{1, 2, 3})
	assert.NotEqual(t, h1, h2)
}
