package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDisks() []DiskInfo {
	return []DiskInfo{
		{Name: "d1", Addr: "10.0.0.1", CmdPort: 9001},
		{Name: "d2", Addr: "10.0.0.2", CmdPort: 9002},
		{Name: "d3", Addr: "10.0.0.3", CmdPort: 9003},
	}
}

func TestDiskFieldsRoundTrip(t *testing.T) {
	disks := sampleDisks()
	fields := AppendDiskFields(nil, disks)
	require.Len(t, fields, 9)
	assert.Equal(t, []string{"d1", "10.0.0.1", "9001"}, fields[:3])

	got, err := ParseDiskFields(fields, 3)
	require.NoError(t, err)
	assert.Equal(t, disks, got)

	_, err = ParseDiskFields(fields[:8], 3)
	assert.ErrorIs(t, err, ErrBadTopology)
}

func TestParseTopology(t *testing.T) {
	disks := sampleDisks()

	t.Run("copy layout", func(t *testing.T) {
		fields := append([]string{"A", "1000", "3", "256", "3"}, AppendDiskFields(nil, disks)...)
		topo, err := ParseTopology(fields, true, true)
		require.NoError(t, err)
		assert.Equal(t, "A", topo.Array)
		assert.Equal(t, int64(1000), topo.FileSize)
		assert.Equal(t, 3, topo.N)
		assert.Equal(t, 256, topo.StripingUnit)
		assert.Equal(t, disks, topo.Disks)
	})

	t.Run("read layout", func(t *testing.T) {
		fields := append([]string{"1000", "3", "256", "3"}, AppendDiskFields(nil, disks)...)
		topo, err := ParseTopology(fields, false, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), topo.FileSize)
		assert.Equal(t, disks, topo.Disks)
	})

	t.Run("failure layout", func(t *testing.T) {
		fields := append([]string{"3", "256", "3"}, AppendDiskFields(nil, disks)...)
		topo, err := ParseTopology(fields, false, false)
		require.NoError(t, err)
		assert.Equal(t, 3, topo.N)
		assert.Equal(t, 256, topo.StripingUnit)
		assert.Equal(t, disks, topo.Disks)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseTopology([]string{"3", "x", "0"}, false, false)
		assert.ErrorIs(t, err, ErrBadTopology)
		_, err = ParseTopology(nil, false, false)
		assert.ErrorIs(t, err, ErrBadTopology)
		_, err = ParseTopology([]string{"3", "256", "2", "d1", "10.0.0.1", "9001"}, false, false)
		assert.ErrorIs(t, err, ErrBadTopology)
	})
}

func TestListingRoundTrip(t *testing.T) {
	listings := []ArrayListing{
		{
			Array:        "A",
			N:            4,
			StripingUnit: 256,
			Disks:        []string{"d1", "d2", "d3", "d4"},
			Files: []FileEntry{
				{Name: "report.txt", Size: 1000, Owner: "alice"},
				{Name: "song.mp3", Size: 123456, Owner: "bob"},
			},
		},
		{
			Array:        "B",
			N:            3,
			StripingUnit: 1024,
			Disks:        []string{"d5", "d6", "d7"},
		},
	}

	s := FormatListing(listings)
	assert.Contains(t, s, "A: Disk array with n=4 (d1, d2, d3, d4) with striping-unit 256 B.")
	assert.Contains(t, s, "\n  report.txt 1000 B alice")

	got, err := ParseListing(s)
	require.NoError(t, err)
	assert.Equal(t, listings, got)
}

func TestParseListingRejectsGarbage(t *testing.T) {
	_, err := ParseListing("  orphan 12 B alice")
	assert.Error(t, err)

	_, err = ParseListing("not a descriptor line")
	assert.Error(t, err)

	_, err = ParseListing("A: Disk array with n=x (d1) with striping-unit 256 B.")
	assert.Error(t, err)
}

func TestCmdAddr(t *testing.T) {
	d := DiskInfo{Name: "d1", Addr: "10.0.0.1", CmdPort: 9001}
	assert.Equal(t, "10.0.0.1:9001", d.CmdAddr())
}
