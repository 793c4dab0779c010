package driver

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"unicode/utf8"

	"github.com/maxvdec/avery-toolchain/pkg/utils"
)

// magic identifies a serialized driver package, per DESIGN.md's Open
// Question 1 on the on-disk layout.
var magic = [8]byte{'A', 'V', 'D', 'R', 'I', 'V', '0', '1'}

// packageType is the single format-revision byte following the magic.
// There is only one revision today; the field exists so the loader can
// reject a future incompatible layout instead of misreading it.
const packageType = 0x01

var order = binary.LittleEndian

// Build validates options, computes the integrity hash, and returns the
// assembled File. execBytes is the already-compiled driver executable
// (an ARF/ARL container or a raw flat binary, opaque to this package).
func Build(opts Options, execBytes []byte) (*File, error) {
	if opts.Name == "" {
		return nil, utils.MakeError(ErrMissingField, "name")
	}
	if len(execBytes) == 0 {
		return nil, utils.MakeError(ErrMissingField, "executable bytes")
	}

	f := &File{
		Name:         opts.Name,
		Manufacturer: opts.Manufacturer,
		Device:       opts.Device,
		Subsystem:    opts.Subsystem,
		Description:  opts.Description,
		Version:      opts.Version,
		Exec:         execBytes,
	}
	f.Hash = computeHash(f.Name, f.Manufacturer, f.Exec)
	return f, nil
}

// computeHash is the integrity contract: SHA-256 over
// name || manufacturer (little-endian u16) || exec, returned as lowercase
// hex (spec.md's driver-packager supplement).
func computeHash(name string, manufacturer uint16, exec []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	var manuf [2]byte
	order.PutUint16(manuf[:], manufacturer)
	h.Write(manuf[:])
	h.Write(exec)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the integrity hash and compares it against the
// stored one, returning ErrHashMismatch on any difference.
func Verify(f *File) error {
	want := computeHash(f.Name, f.Manufacturer, f.Exec)
	if want != f.Hash {
		return utils.MakeError(ErrHashMismatch, "stored %s, computed %s", f.Hash, want)
	}
	return nil
}

// Emit serializes a File into its on-disk layout: magic, type, numeric
// identity fields, three length-prefixed UTF-8 strings (name,
// description, hash), the three version bytes, then the raw executable.
func Emit(f *File) []byte {
	var buf bytes.Buffer

	buf.Write(magic[:])
	buf.WriteByte(packageType)
	writeU16(&buf, f.Manufacturer)
	writeU16(&buf, f.Device)
	buf.WriteByte(byte(f.Subsystem))

	writeString(&buf, f.Name)
	writeString(&buf, f.Description)
	writeString(&buf, f.Hash)

	buf.WriteByte(f.Version.Major)
	buf.WriteByte(f.Version.Minor)
	buf.WriteByte(f.Version.Patch)

	buf.Write(f.Exec)

	return buf.Bytes()
}

// Parse decodes a serialized driver package, validating the magic,
// length prefixes, and UTF-8 well-formedness without ever panicking on
// truncated input.
func Parse(data []byte) (*File, error) {
	r := &cursor{data: data}

	gotMagic, err := r.bytes(len(magic))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(gotMagic, magic[:]) {
		return nil, utils.MakeError(ErrMalformed, "bad magic")
	}

	typ, err := r.byte_()
	if err != nil {
		return nil, err
	}
	if typ != packageType {
		return nil, utils.MakeError(ErrMalformed, "unsupported package type %d", typ)
	}

	manufacturer, err := r.u16()
	if err != nil {
		return nil, err
	}
	device, err := r.u16()
	if err != nil {
		return nil, err
	}
	subsystem, err := r.byte_()
	if err != nil {
		return nil, err
	}

	name, err := r.string_()
	if err != nil {
		return nil, err
	}
	description, err := r.string_()
	if err != nil {
		return nil, err
	}
	hash, err := r.string_()
	if err != nil {
		return nil, err
	}

	major, err := r.byte_()
	if err != nil {
		return nil, err
	}
	minor, err := r.byte_()
	if err != nil {
		return nil, err
	}
	patch, err := r.byte_()
	if err != nil {
		return nil, err
	}

	exec := r.rest()

	return &File{
		Name:         name,
		Manufacturer: manufacturer,
		Device:       device,
		Subsystem:    DeviceClass(subsystem),
		Description:  description,
		Version:      Version{Major: major, Minor: minor, Patch: patch},
		Hash:         hash,
		Exec:         exec,
	}, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	order.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeU16(buf, uint16(len(s)))
	buf.WriteString(s)
}

// cursor is a bounds-checked reader over packaged-driver bytes.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) need(n int) error {
	if c.remaining() < n {
		return utils.MakeError(ErrMalformed, "need %d byte(s), have %d", n, c.remaining())
	}
	return nil
}

func (c *cursor) byte_() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := order.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.data[c.pos:c.pos+n])
	c.pos += n
	return out, nil
}

func (c *cursor) string_() (string, error) {
	length, err := c.u16()
	if err != nil {
		return "", err
	}
	raw, err := c.bytes(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", utils.MakeError(ErrMalformed, "invalid utf-8 string")
	}
	return string(raw), nil
}

func (c *cursor) rest() []byte {
	out := make([]byte, c.remaining())
	copy(out, c.data[c.pos:])
	c.pos = len(c.data)
	return out
}
