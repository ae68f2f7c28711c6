package client

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/strata/internal/cluster"
	"github.com/dreamware/strata/internal/stripe"
	"github.com/dreamware/strata/internal/wire"
)

// Driver performs the user-side operations against one coordinator.
type Driver struct {
	User      string // Registered user name; read ownership checks use it
	CoordAddr string // Coordinator command address
	Addr      string // This process's address, reported on registration
	MgmtPort  int
	CmdPort   int
}

// coord sends one command to the coordinator and fails unless the reply
// carries the success token.
func (d *Driver) coord(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	resp, err := cluster.Call(ctx, d.CoordAddr, cmd, args...)
	if err != nil {
		return nil, err
	}
	if !wire.IsSuccess(resp) {
		return nil, fmt.Errorf("%s rejected by coordinator", cmd)
	}
	return resp, nil
}

// Register announces the user to the coordinator.
func (d *Driver) Register(ctx context.Context) error {
	_, err := d.coord(ctx, wire.CmdRegisterUser,
		d.User, d.Addr, strconv.Itoa(d.MgmtPort), strconv.Itoa(d.CmdPort))
	return err
}

// Deregister withdraws the user.
func (d *Driver) Deregister(ctx context.Context) error {
	_, err := d.coord(ctx, wire.CmdDeregisterUser, d.User)
	return err
}

// ConfigureArray asks the coordinator to configure a new array.
func (d *Driver) ConfigureArray(ctx context.Context, array string, n, unit int) error {
	_, err := d.coord(ctx, wire.CmdConfigureDSS, array, strconv.Itoa(n), strconv.Itoa(unit))
	return err
}

// List fetches and parses the directory listing.
func (d *Driver) List(ctx context.Context) ([]cluster.ArrayListing, error) {
	resp, err := d.coord(ctx, wire.CmdList)
	if err != nil {
		return nil, err
	}
	_, body, _ := strings.Cut(string(resp), "\n")
	return cluster.ParseListing(body)
}

// Copy stripes data into the cluster as file name. The file becomes visible
// only after every stripe lands and the coordinator acknowledges the
// completion report. Returns the target array's name.
func (d *Driver) Copy(ctx context.Context, file string, data []byte) (string, error) {
	resp, err := d.coord(ctx, wire.CmdCopy,
		file, strconv.Itoa(len(data)), d.User)
	if err != nil {
		return "", err
	}
	t, err := cluster.ParseTopology(wire.Fields(resp), true, true)
	if err != nil {
		return "", fmt.Errorf("copy %s: %w", file, err)
	}

	engine := stripe.NewEngine(t.StripingUnit, peersFor(t.Disks))
	if err := engine.Write(ctx, t.Array, file, data); err != nil {
		return "", err
	}

	_, err = d.coord(ctx, wire.CmdCopyComplete,
		t.Array, file, d.User, strconv.Itoa(len(data)))
	if err != nil {
		return "", err
	}
	return t.Array, nil
}

// Read fetches a file back. opts selects the plain or verified path; the
// completion report is advisory either way.
func (d *Driver) Read(ctx context.Context, array, file string, opts stripe.ReadOptions) ([]byte, error) {
	resp, err := d.coord(ctx, wire.CmdRead, array, file, d.User)
	if err != nil {
		return nil, err
	}
	t, err := cluster.ParseTopology(wire.Fields(resp), false, true)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", array, file, err)
	}

	engine := stripe.NewEngine(t.StripingUnit, peersFor(t.Disks))
	data, err := engine.Read(ctx, array, file, t.FileSize, opts)
	if err != nil {
		return nil, err
	}

	_, _ = d.coord(ctx, wire.CmdReadComplete, array, file, d.User)
	return data, nil
}

// FailAndRecover simulates losing one disk of an array and rebuilds it:
//
//  1. fetch the array topology;
//  2. fail one disk, picked uniformly at random from rng;
//  3. enumerate the array's visible files from the directory listing;
//  4. restore the failed disk so it accepts writes again;
//  5. rebuild every file's blocks at the failed slot from the survivors;
//  6. report recovery-complete.
//
// Returns the name of the disk that was failed and rebuilt.
func (d *Driver) FailAndRecover(ctx context.Context, array string, rng *rand.Rand) (string, error) {
	resp, err := d.coord(ctx, wire.CmdDiskFailure, array)
	if err != nil {
		return "", err
	}
	t, err := cluster.ParseTopology(wire.Fields(resp), false, false)
	if err != nil {
		return "", fmt.Errorf("disk-failure %s: %w", array, err)
	}

	failed := rng.Intn(t.N)
	victim := t.Disks[failed]
	if err := failDisk(ctx, victim.CmdAddr()); err != nil {
		return "", fmt.Errorf("fail disk %s: %w", victim.Name, err)
	}

	files, err := d.arrayFiles(ctx, array)
	if err != nil {
		return "", err
	}

	// The failed node rejects everything until restored, recovery writes
	// included. Restore first; the rebuild never reads the failed slot.
	if err := restoreDisk(ctx, victim.CmdAddr()); err != nil {
		return "", fmt.Errorf("restore disk %s: %w", victim.Name, err)
	}

	engine := stripe.NewEngine(t.StripingUnit, peersFor(t.Disks))
	for _, f := range files {
		if err := engine.Rebuild(ctx, array, f.Name, f.Size, failed); err != nil {
			return "", err
		}
	}

	if _, err := d.coord(ctx, wire.CmdRecoveryComplete, array, victim.Name); err != nil {
		return "", err
	}
	return victim.Name, nil
}

// arrayFiles enumerates one array's visible files via the directory listing.
func (d *Driver) arrayFiles(ctx context.Context, array string) ([]cluster.FileEntry, error) {
	listings, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(listings, func(l cluster.ArrayListing) bool { return l.Array == array })
	if idx < 0 {
		return nil, fmt.Errorf("array %q not in listing", array)
	}
	return listings[idx].Files, nil
}

// Decommission deletes an array's contents from every disk, then reports
// completion, which frees the disks and drops the configuration.
func (d *Driver) Decommission(ctx context.Context, array string) error {
	resp, err := d.coord(ctx, wire.CmdDecommissionDSS, array)
	if err != nil {
		return err
	}
	t, err := cluster.ParseTopology(wire.Fields(resp), false, false)
	if err != nil {
		return fmt.Errorf("decommission %s: %w", array, err)
	}

	for _, disk := range t.Disks {
		if err := deleteArray(ctx, disk.CmdAddr(), array); err != nil {
			return err
		}
	}

	_, err = d.coord(ctx, wire.CmdDecommissionComplete, array)
	return err
}
