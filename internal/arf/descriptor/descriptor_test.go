package descriptor

import (
	"strings"
	"testing"

	"github.com/maxvdec/avery-toolchain/internal/arf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BasicExtensions(t *testing.T) {
	src := `; a comment
[kernextensions]
console
framebuffer
`
	res, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []arf.Request{arf.RequestConsole, arf.RequestFramebuffer}, res.Requests)
	assert.False(t, res.Library)
}

func TestParse_LibraryFlag(t *testing.T) {
	res, err := Parse(strings.NewReader("[library]\nconsole\n"))
	require.NoError(t, err)
	assert.True(t, res.Library)
	assert.Equal(t, []arf.Request{arf.RequestConsole}, res.Requests)
}

func TestParse_UnknownExtensionIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader("bogus\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, arf.ErrUnknownExtension)
}

func TestParse_CapabilitiesOverrideExtendsTable(t *testing.T) {
	src := "[capabilities]\n  usb: 3\n\nusb\n"
	res, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, res.Requests, 1)
	assert.Equal(t, arf.Request(3), res.Requests[0])
}

func TestParseLegacy_MapsExtensionsByName(t *testing.T) {
	src := "library: true\nextensions:\n  - console\n  - filesystem\n"
	res, err := ParseLegacy(strings.NewReader(src))
	require.NoError(t, err)
	assert.True(t, res.Library)
	assert.Equal(t, []arf.Request{arf.RequestConsole, arf.RequestFilesystem}, res.Requests)
}

func TestParseLegacy_UnknownExtensionIsFatal(t *testing.T) {
	_, err := ParseLegacy(strings.NewReader("extensions:\n  - bogus\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, arf.ErrUnknownExtension)
}

func TestParse_BlankAndCommentLinesIgnored(t *testing.T) {
	res, err := Parse(strings.NewReader("\n; comment\n\nconsole\n"))
	require.NoError(t, err)
	assert.Equal(t, []arf.Request{arf.RequestConsole}, res.Requests)
}
