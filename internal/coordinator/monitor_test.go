package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/strata/internal/cluster"
)

func TestNewDiskMonitor(t *testing.T) {
	monitor := NewDiskMonitor(5 * time.Second)
	defer monitor.Stop()

	assert.Equal(t, 5*time.Second, monitor.interval)
	assert.Equal(t, 2*time.Second, monitor.timeout)
	assert.Equal(t, 3, monitor.maxFailures)
	assert.Len(t, monitor.disks, 0)
}

func TestDiskMonitorProbes(t *testing.T) {
	monitor := NewDiskMonitor(50 * time.Millisecond)
	defer monitor.Stop()

	var mu sync.Mutex
	probes := 0
	monitor.SetCheckFunction(func(addr string) error {
		mu.Lock()
		probes++
		mu.Unlock()
		return nil
	})

	diskProvider := func() []cluster.DiskInfo {
		return []cluster.DiskInfo{
			{Name: "d1", Addr: "127.0.0.1", CmdPort: 9001},
			{Name: "d2", Addr: "127.0.0.1", CmdPort: 9002},
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx, diskProvider)

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	calls := probes
	mu.Unlock()
	assert.GreaterOrEqual(t, calls, 4, "expected at least two cycles over two disks")

	assert.True(t, monitor.IsHealthy("d1"))
	assert.True(t, monitor.IsHealthy("d2"))
	assert.False(t, monitor.IsHealthy("d9"), "unmonitored disk is not healthy")

	h := monitor.Health("d1")
	require.NotNil(t, h)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 0, h.ConsecutiveFails)
	assert.Nil(t, monitor.Health("d9"))
}

// TestDiskMonitorFailureThreshold verifies the unhealthy transition: three
// consecutive failed probes flip the status and fire the callback exactly
// once, and a later success recovers the disk.
func TestDiskMonitorFailureThreshold(t *testing.T) {
	monitor := NewDiskMonitor(time.Hour) // ticks never fire; probes are manual
	defer monitor.Stop()

	var mu sync.Mutex
	failing := true
	monitor.SetCheckFunction(func(addr string) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return fmt.Errorf("connection refused")
		}
		return nil
	})

	var unhealthy []string
	var cbWG sync.WaitGroup
	monitor.SetOnUnhealthy(func(disk string) {
		defer cbWG.Done()
		mu.Lock()
		unhealthy = append(unhealthy, disk)
		mu.Unlock()
	})

	disk := cluster.DiskInfo{Name: "d1", Addr: "127.0.0.1", CmdPort: 9001}

	// Two failures: still below the threshold.
	monitor.check(disk)
	monitor.check(disk)
	assert.False(t, monitor.IsHealthy("d1"))
	h := monitor.Health("d1")
	require.NotNil(t, h)
	assert.Equal(t, "unknown", h.Status)
	assert.Equal(t, 2, h.ConsecutiveFails)

	// Third failure crosses it.
	cbWG.Add(1)
	monitor.check(disk)
	cbWG.Wait()
	assert.Equal(t, "unhealthy", monitor.Health("d1").Status)

	// Further failures do not re-fire the callback.
	monitor.check(disk)
	mu.Lock()
	assert.Equal(t, []string{"d1"}, unhealthy)
	failing = false
	mu.Unlock()

	// One success recovers.
	monitor.check(disk)
	assert.True(t, monitor.IsHealthy("d1"))
	assert.Equal(t, 0, monitor.Health("d1").ConsecutiveFails)
}

// TestDiskMonitorDropsDeregistered verifies that records of disks no longer
// in the provider snapshot are discarded.
func TestDiskMonitorDropsDeregistered(t *testing.T) {
	monitor := NewDiskMonitor(time.Hour)
	defer monitor.Stop()
	monitor.SetCheckFunction(func(addr string) error { return nil })

	d1 := cluster.DiskInfo{Name: "d1", Addr: "127.0.0.1", CmdPort: 9001}
	d2 := cluster.DiskInfo{Name: "d2", Addr: "127.0.0.1", CmdPort: 9002}

	monitor.checkAll([]cluster.DiskInfo{d1, d2})
	assert.True(t, monitor.IsHealthy("d1"))
	assert.True(t, monitor.IsHealthy("d2"))

	monitor.checkAll([]cluster.DiskInfo{d1})
	assert.True(t, monitor.IsHealthy("d1"))
	assert.Nil(t, monitor.Health("d2"))
}

// TestDiskMonitorDialCheck exercises the default TCP probe against a real
// listener and a closed port.
func TestDiskMonitorDialCheck(t *testing.T) {
	monitor := NewDiskMonitor(time.Hour)
	defer monitor.Stop()

	srv := NewServer(NewDirectory())
	go func() { _ = srv.ListenAndServe("127.0.0.1:0") }()
	defer srv.Close()
	for srv.Addr() == nil {
		time.Sleep(5 * time.Millisecond)
	}

	assert.NoError(t, monitor.dialCheck(srv.Addr().String()))
	assert.Error(t, monitor.dialCheck("127.0.0.1:1"))
}
