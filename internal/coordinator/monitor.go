package coordinator

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/dreamware/strata/internal/cluster"
)

// DiskHealth tracks the observed reachability of one registered disk's
// command server.
type DiskHealth struct {
	LastCheck        time.Time // Last probe attempt
	LastHealthy      time.Time // Last successful probe
	Disk             string    // Disk name
	Status           string    // "healthy", "unhealthy", "unknown"
	ConsecutiveFails int       // Failed probes in a row
}

// DiskMonitor periodically probes every registered disk's command address.
// It is advisory: a disk that stops answering is reported, never removed.
// Membership only changes through explicit deregistration or decommission,
// and a deliberately failed disk must stay in its array so recovery can
// rebuild onto it.
type DiskMonitor struct {
	disks       map[string]*DiskHealth
	checkFunc   func(addr string) error
	onUnhealthy func(disk string)
	ctx         context.Context
	cancel      context.CancelFunc
	interval    time.Duration
	timeout     time.Duration
	mu          sync.RWMutex
	wg          sync.WaitGroup
	maxFailures int
}

// NewDiskMonitor creates a monitor probing each disk every interval.
// A disk is reported unhealthy after 3 consecutive failed probes.
func NewDiskMonitor(interval time.Duration) *DiskMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &DiskMonitor{
		disks:       make(map[string]*DiskHealth),
		interval:    interval,
		timeout:     2 * time.Second,
		maxFailures: 3,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetOnUnhealthy registers a callback invoked (once per transition) when a
// disk crosses the failure threshold.
func (m *DiskMonitor) SetOnUnhealthy(callback func(disk string)) {
	m.onUnhealthy = callback
}

// SetCheckFunction overrides the default TCP-dial probe, mainly for tests.
func (m *DiskMonitor) SetCheckFunction(checkFunc func(addr string) error) {
	m.checkFunc = checkFunc
}

// Start probes all disks returned by diskProvider until the context or the
// monitor is cancelled. Blocks; run it in its own goroutine.
func (m *DiskMonitor) Start(ctx context.Context, diskProvider func() []cluster.DiskInfo) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}
	if m.checkFunc == nil {
		m.checkFunc = m.dialCheck
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.checkAll(diskProvider())
	for {
		select {
		case <-ticker.C:
			m.checkAll(diskProvider())
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		}
	}
}

// Stop cancels the monitor and waits for the probe loop to exit.
func (m *DiskMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// checkAll probes every current disk and drops records of deregistered ones.
func (m *DiskMonitor) checkAll(disks []cluster.DiskInfo) {
	current := make(map[string]bool, len(disks))
	for _, d := range disks {
		current[d.Name] = true
		m.check(d)
	}

	m.mu.Lock()
	for name := range m.disks {
		if !current[name] {
			delete(m.disks, name)
		}
	}
	m.mu.Unlock()
}

// check probes one disk and updates its record.
func (m *DiskMonitor) check(d cluster.DiskInfo) {
	m.mu.Lock()
	health, ok := m.disks[d.Name]
	if !ok {
		health = &DiskHealth{Disk: d.Name, Status: "unknown", LastHealthy: time.Now()}
		m.disks[d.Name] = health
	}
	m.mu.Unlock()

	err := m.checkFunc(d.CmdAddr())

	m.mu.Lock()
	defer m.mu.Unlock()

	health.LastCheck = time.Now()
	if err != nil {
		health.ConsecutiveFails++
		if health.ConsecutiveFails >= m.maxFailures && health.Status != "unhealthy" {
			health.Status = "unhealthy"
			log.Printf("coordinator: disk %s unreachable after %d probes: %v",
				d.Name, health.ConsecutiveFails, err)
			if m.onUnhealthy != nil {
				go m.onUnhealthy(d.Name)
			}
		}
		return
	}
	if health.Status == "unhealthy" {
		log.Printf("coordinator: disk %s reachable again", d.Name)
	}
	health.Status = "healthy"
	health.ConsecutiveFails = 0
	health.LastHealthy = time.Now()
}

// dialCheck is the default probe: a bounded TCP dial of the disk's command
// address. No command is sent, so a probe never interleaves with block
// traffic.
func (m *DiskMonitor) dialCheck(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, m.timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Health returns a copy of one disk's record, or nil if unmonitored.
func (m *DiskMonitor) Health(disk string) *DiskHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.disks[disk]
	if !ok {
		return nil
	}
	out := *h
	return &out
}

// IsHealthy reports whether a disk's last probes succeeded.
func (m *DiskMonitor) IsHealthy(disk string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.disks[disk]
	return ok && h.Status == "healthy"
}
