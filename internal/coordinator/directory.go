package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/dreamware/strata/internal/cluster"
)

// maxUserNameLen bounds registered user names.
const maxUserNameLen = 15

// Striping unit bounds in bytes.
const (
	MinStripingUnit = 128
	MaxStripingUnit = 1 << 20
)

// Directory error taxonomy. Every operation either succeeds or returns one
// of these (possibly wrapped); no failure mutates state.
var (
	// ErrAlreadyRegistered rejects a duplicate user, disk, or array name.
	ErrAlreadyRegistered = errors.New("name already registered")
	// ErrUnknownName rejects a lookup of an unregistered user, disk, array,
	// or file.
	ErrUnknownName = errors.New("name not registered")
	// ErrInvalidArgument rejects a policy violation: bad n, bad striping
	// unit, over-long user name.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientDisks rejects an array configuration that needs more
	// Free disks than exist.
	ErrInsufficientDisks = errors.New("not enough free disks")
	// ErrAccessDenied rejects a read by anyone but the file's owner.
	ErrAccessDenied = errors.New("access denied")
)

// DiskState is a registered disk's membership state.
type DiskState string

const (
	// DiskFree means the disk is available for array configuration.
	DiskFree DiskState = "Free"
	// DiskInArray means the disk holds a slot in some array's disk order.
	DiskInArray DiskState = "InArray"
)

// endpoint is a registered process's contact information.
type endpoint struct {
	addr     string
	mgmtPort int
	cmdPort  int
}

// diskRecord is one registered disk.
type diskRecord struct {
	endpoint
	state DiskState
}

// fileRecord is one visible file in an array's namespace.
type fileRecord struct {
	size  int64
	owner string
}

// arrayRecord is one configured array: immutable parameters, the fixed disk
// order, and the file directory opened for it.
type arrayRecord struct {
	n         int
	unit      int
	diskOrder []string
	files     *treemap.Map // file name -> *fileRecord, sorted for listings
}

// Directory is the coordinator's cluster directory. One mutex guards every
// operation; see the package documentation for the consistency argument.
//
// Disks and arrays keep registration/creation order (linked hash maps):
// array configuration picks the first n Free disks in registration order,
// and copy targets the first configured array.
type Directory struct {
	mu     sync.Mutex
	users  map[string]endpoint
	disks  *linkedhashmap.Map // disk name -> *diskRecord, registration order
	arrays *linkedhashmap.Map // array name -> *arrayRecord, creation order
}

// NewDirectory creates an empty cluster directory.
func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[string]endpoint),
		disks:  linkedhashmap.New(),
		arrays: linkedhashmap.New(),
	}
}

// RegisterUser records a user process. Fails on a duplicate or over-long
// name.
func (d *Directory) RegisterUser(name, addr string, mgmtPort, cmdPort int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(name) > maxUserNameLen {
		return fmt.Errorf("user %q: %w: name exceeds %d characters", name, ErrInvalidArgument, maxUserNameLen)
	}
	if _, ok := d.users[name]; ok {
		return fmt.Errorf("user %q: %w", name, ErrAlreadyRegistered)
	}
	d.users[name] = endpoint{addr: addr, mgmtPort: mgmtPort, cmdPort: cmdPort}
	return nil
}

// DeregisterUser removes a user record.
func (d *Directory) DeregisterUser(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[name]; !ok {
		return fmt.Errorf("user %q: %w", name, ErrUnknownName)
	}
	delete(d.users, name)
	return nil
}

// RegisterDisk records a disk process in state Free.
func (d *Directory) RegisterDisk(name, addr string, mgmtPort, cmdPort int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.disks.Get(name); ok {
		return fmt.Errorf("disk %q: %w", name, ErrAlreadyRegistered)
	}
	d.disks.Put(name, &diskRecord{
		endpoint: endpoint{addr: addr, mgmtPort: mgmtPort, cmdPort: cmdPort},
		state:    DiskFree,
	})
	return nil
}

// DeregisterDisk removes a disk record. Arrays already configured with the
// disk are unaffected.
func (d *Directory) DeregisterDisk(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.disks.Get(name); !ok {
		return fmt.Errorf("disk %q: %w", name, ErrUnknownName)
	}
	d.disks.Remove(name)
	return nil
}

// DiskState reports a registered disk's membership state.
func (d *Directory) DiskState(name string) (DiskState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.disks.Get(name)
	if !ok {
		return "", fmt.Errorf("disk %q: %w", name, ErrUnknownName)
	}
	return v.(*diskRecord).state, nil
}

// Disks returns every registered disk's info, in registration order.
func (d *Directory) Disks() []cluster.DiskInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]cluster.DiskInfo, 0, d.disks.Size())
	it := d.disks.Iterator()
	for it.Next() {
		rec := it.Value().(*diskRecord)
		infos = append(infos, cluster.DiskInfo{
			Name:    it.Key().(string),
			Addr:    rec.addr,
			CmdPort: rec.cmdPort,
		})
	}
	return infos
}

// ConfigureArray creates an array: n >= 3, striping unit a power of two in
// [MinStripingUnit, MaxStripingUnit], and at least n Free disks. On success
// the first n Free disks (registration order) become the array's fixed disk
// order, atomically flipping to InArray, and an empty file directory opens.
func (d *Directory) ConfigureArray(name string, n, unit int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n < 3 {
		return fmt.Errorf("array %q: %w: n=%d < 3", name, ErrInvalidArgument, n)
	}
	if unit < MinStripingUnit || unit > MaxStripingUnit || unit&(unit-1) != 0 {
		return fmt.Errorf("array %q: %w: striping unit %d", name, ErrInvalidArgument, unit)
	}
	if _, ok := d.arrays.Get(name); ok {
		return fmt.Errorf("array %q: %w", name, ErrAlreadyRegistered)
	}

	var order []string
	it := d.disks.Iterator()
	for it.Next() && len(order) < n {
		if it.Value().(*diskRecord).state == DiskFree {
			order = append(order, it.Key().(string))
		}
	}
	if len(order) < n {
		return fmt.Errorf("array %q: %w: need %d, have %d", name, ErrInsufficientDisks, n, len(order))
	}

	for _, diskName := range order {
		v, _ := d.disks.Get(diskName)
		v.(*diskRecord).state = DiskInArray
	}
	d.arrays.Put(name, &arrayRecord{
		n:         n,
		unit:      unit,
		diskOrder: order,
		files:     treemap.NewWith(utils.StringComparator),
	})
	return nil
}

// topology assembles an array's wire topology under the held lock.
func (d *Directory) topology(name string, rec *arrayRecord) cluster.Topology {
	disks := make([]cluster.DiskInfo, 0, len(rec.diskOrder))
	for _, diskName := range rec.diskOrder {
		v, _ := d.disks.Get(diskName)
		dr := v.(*diskRecord)
		disks = append(disks, cluster.DiskInfo{Name: diskName, Addr: dr.addr, CmdPort: dr.cmdPort})
	}
	return cluster.Topology{
		Array:        name,
		N:            rec.n,
		StripingUnit: rec.unit,
		Disks:        disks,
	}
}

// CopyInitiate validates a copy request and returns the target array's
// topology. The default policy targets the first configured array. The file
// directory is not touched: the file stays invisible until CopyComplete.
func (d *Directory) CopyInitiate(file string, size int64, owner string) (cluster.Topology, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it := d.arrays.Iterator()
	if !it.Next() {
		return cluster.Topology{}, fmt.Errorf("copy %q: %w: no array configured", file, ErrUnknownName)
	}
	t := d.topology(it.Key().(string), it.Value().(*arrayRecord))
	t.FileSize = size
	return t, nil
}

// CopyComplete records a file in the array's directory: the sole point
// where a file becomes visible. Re-copying overwrites the prior entry.
func (d *Directory) CopyComplete(array, file, owner string, size int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.arrays.Get(array)
	if !ok {
		return fmt.Errorf("copy-complete %s/%s: %w", array, file, ErrUnknownName)
	}
	v.(*arrayRecord).files.Put(file, &fileRecord{size: size, owner: owner})
	return nil
}

// ReadInitiate validates file existence and ownership, then returns the
// array topology with the file's recorded size.
func (d *Directory) ReadInitiate(array, file, user string) (cluster.Topology, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.arrays.Get(array)
	if !ok {
		return cluster.Topology{}, fmt.Errorf("read %s/%s: array: %w", array, file, ErrUnknownName)
	}
	rec := v.(*arrayRecord)
	fv, ok := rec.files.Get(file)
	if !ok {
		return cluster.Topology{}, fmt.Errorf("read %s/%s: file: %w", array, file, ErrUnknownName)
	}
	fr := fv.(*fileRecord)
	if fr.owner != user {
		return cluster.Topology{}, fmt.Errorf("read %s/%s by %q: %w", array, file, user, ErrAccessDenied)
	}
	t := d.topology(array, rec)
	t.Array = "" // read replies carry no array field
	t.FileSize = fr.size
	return t, nil
}

// FailInitiate returns an array's topology so the driver can pick a disk to
// fail and later rebuild it. No directory state changes.
func (d *Directory) FailInitiate(array string) (cluster.Topology, error) {
	return d.bareTopology("disk-failure", array)
}

// DecommissionInitiate returns an array's topology so the driver can
// instruct its disks to delete the array's contents. No directory state
// changes until DecommissionComplete.
func (d *Directory) DecommissionInitiate(array string) (cluster.Topology, error) {
	return d.bareTopology("decommission", array)
}

func (d *Directory) bareTopology(op, array string) (cluster.Topology, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.arrays.Get(array)
	if !ok {
		return cluster.Topology{}, fmt.Errorf("%s %q: %w", op, array, ErrUnknownName)
	}
	t := d.topology(array, v.(*arrayRecord))
	t.Array = ""
	return t, nil
}

// DecommissionComplete frees every disk in the array's disk order and drops
// the array configuration and its file directory. Not idempotent: an
// unknown array fails.
func (d *Directory) DecommissionComplete(array string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.arrays.Get(array)
	if !ok {
		return fmt.Errorf("decommission-complete %q: %w", array, ErrUnknownName)
	}
	for _, diskName := range v.(*arrayRecord).diskOrder {
		if dv, ok := d.disks.Get(diskName); ok {
			dv.(*diskRecord).state = DiskFree
		}
	}
	d.arrays.Remove(array)
	return nil
}

// ListFiles returns every array's listing with its visible files. Fails when
// no array is configured. The whole listing is one locked snapshot.
func (d *Directory) ListFiles() ([]cluster.ArrayListing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.arrays.Empty() {
		return nil, fmt.Errorf("ls: %w: no array configured", ErrUnknownName)
	}
	listings := make([]cluster.ArrayListing, 0, d.arrays.Size())
	it := d.arrays.Iterator()
	for it.Next() {
		rec := it.Value().(*arrayRecord)
		l := cluster.ArrayListing{
			Array:        it.Key().(string),
			N:            rec.n,
			StripingUnit: rec.unit,
			Disks:        append([]string(nil), rec.diskOrder...),
		}
		fit := rec.files.Iterator()
		for fit.Next() {
			fr := fit.Value().(*fileRecord)
			l.Files = append(l.Files, cluster.FileEntry{
				Name:  fit.Key().(string),
				Size:  fr.size,
				Owner: fr.owner,
			})
		}
		listings = append(listings, l)
	}
	return listings, nil
}
