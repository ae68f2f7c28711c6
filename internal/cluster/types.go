package cluster

import (
	"errors"
	"fmt"
	"strconv"
)

// DiskInfo identifies one disk endpoint as the coordinator reports it:
// a unique name plus the address and command port the driver dials for
// block transfers.
type DiskInfo struct {
	Name    string // Unique disk name
	Addr    string // IPv4 address or hostname
	CmdPort int    // Command server port for block operations
}

// CmdAddr returns the dialable host:port of the disk's command server.
func (d DiskInfo) CmdAddr() string {
	return fmt.Sprintf("%s:%d", d.Addr, d.CmdPort)
}

// Topology is the coordinator's answer to an operation-initiating request:
// the array parameters plus the ordered disk list. Disks[i] holds slot i of
// every stripe.
type Topology struct {
	Array        string     // Array name (empty for fail/decommission replies)
	FileSize     int64      // File size in bytes (copy/read replies only)
	N            int        // Number of disks in the array
	StripingUnit int        // Block size in bytes
	Disks        []DiskInfo // Array disk-order
}

// ErrBadTopology is returned when a coordinator reply cannot be parsed as
// the expected topology layout.
var ErrBadTopology = errors.New("cluster: malformed topology reply")

// AppendDiskFields appends each disk as a (name, address, command-port)
// triple, in order, to a wire field list.
func AppendDiskFields(fields []string, disks []DiskInfo) []string {
	for _, d := range disks {
		fields = append(fields, d.Name, d.Addr, strconv.Itoa(d.CmdPort))
	}
	return fields
}

// ParseDiskFields parses count (name, address, command-port) triples from
// fields, which must contain exactly 3*count entries.
func ParseDiskFields(fields []string, count int) ([]DiskInfo, error) {
	if len(fields) != 3*count {
		return nil, ErrBadTopology
	}
	disks := make([]DiskInfo, 0, count)
	for i := 0; i < count; i++ {
		port, err := strconv.Atoi(fields[3*i+2])
		if err != nil {
			return nil, ErrBadTopology
		}
		disks = append(disks, DiskInfo{
			Name:    fields[3*i],
			Addr:    fields[3*i+1],
			CmdPort: port,
		})
	}
	return disks, nil
}

// ParseTopology parses the result fields of a copy, read, disk-failure or
// decommission-dss reply. The layouts differ only in their leading fields:
//
//	copy:              array size n unit count (triples...)
//	read:              size n unit count (triples...)
//	failure/decommission: n unit count (triples...)
//
// withArray and withSize select which leading fields are present.
func ParseTopology(fields []string, withArray, withSize bool) (Topology, error) {
	var t Topology
	i := 0
	next := func() (string, error) {
		if i >= len(fields) {
			return "", ErrBadTopology
		}
		f := fields[i]
		i++
		return f, nil
	}
	nextInt := func() (int, error) {
		f, err := next()
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return 0, ErrBadTopology
		}
		return v, nil
	}

	var err error
	if withArray {
		if t.Array, err = next(); err != nil {
			return Topology{}, err
		}
	}
	if withSize {
		size, err := nextInt()
		if err != nil {
			return Topology{}, err
		}
		t.FileSize = int64(size)
	}
	if t.N, err = nextInt(); err != nil {
		return Topology{}, err
	}
	if t.StripingUnit, err = nextInt(); err != nil {
		return Topology{}, err
	}
	count, err := nextInt()
	if err != nil {
		return Topology{}, err
	}
	t.Disks, err = ParseDiskFields(fields[i:], count)
	if err != nil {
		return Topology{}, err
	}
	return t, nil
}
