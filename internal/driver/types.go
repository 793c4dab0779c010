// Package driver implements the kernel driver-package container: a small
// self-describing envelope wrapping a compiled driver executable with the
// metadata the hobby OS's driver loader needs to identify and trust it.
package driver

// DeviceClass is the coarse hardware subsystem a driver targets.
type DeviceClass byte

const (
	ClassUnknown    DeviceClass = 0
	ClassStorage    DeviceClass = 1
	ClassNetwork    DeviceClass = 2
	ClassDisplay    DeviceClass = 3
	ClassInput      DeviceClass = 4
	ClassAudio      DeviceClass = 5
	ClassPeripheral DeviceClass = 6
)

// Version is a three-component driver version, each component a single
// byte (spec.md's driver-package supplement, DESIGN.md Open Question 1).
type Version struct {
	Major byte
	Minor byte
	Patch byte
}

// Options carries the metadata an operator supplies when packaging a
// driver, gathered either from CLI flags or the interactive form.
type Options struct {
	Name         string
	Manufacturer uint16
	Device       uint16
	Subsystem    DeviceClass
	Description  string
	Version      Version
}

// File is the fully assembled driver package: metadata plus the raw
// executable bytes and its integrity hash.
type File struct {
	Name         string
	Manufacturer uint16
	Device       uint16
	Subsystem    DeviceClass
	Description  string
	Version      Version
	Hash         string // lowercase hex SHA-256, see computeHash in packager.go
	Exec         []byte
}
