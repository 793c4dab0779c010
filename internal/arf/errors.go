package arf

import "errors"

// Error taxonomy (spec.md §7). Fatal conditions raised by the builder,
// codec and descriptor parser wrap one of these sentinels via
// fmt.Errorf("%w: detail", Sentinel); ELF decoding failures surface as
// elfview.ErrMalformed instead. Wrapping follows
// the cucaracha pkg/utils.MakeError convention, so callers can
// errors.Is against a stable value while the message still carries detail.
var (
	ErrIO                      = errors.New("io error")
	ErrMalformedInput          = errors.New("malformed input")
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")
	ErrUnknownExtension        = errors.New("unknown extension")
	ErrTrailingBytes           = errors.New("trailing bytes after data blob")
	ErrIntegerOverflow         = errors.New("integer overflow")
	ErrInvalidUTF8             = errors.New("invalid utf-8")
)
