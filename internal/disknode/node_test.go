package disknode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/strata/internal/storage"
	"github.com/dreamware/strata/internal/wire"
)

func TestExecStoreAndRead(t *testing.T) {
	n := NewNode("d1", storage.NewMemoryStore())
	payload := []byte("0123456789abcdef")

	res := n.Exec(wire.CmdStoreBlock, []string{"A", "f", "0", "data", "16"}, payload)
	assert.True(t, wire.IsSuccess(res.frame))
	assert.Nil(t, res.raw)

	res = n.Exec(wire.CmdReadBlock, []string{"A", "f", "0"}, nil)
	require.True(t, wire.IsSuccess(res.frame))
	assert.Equal(t, []string{"16", "data"}, wire.Fields(res.frame))
	assert.Equal(t, payload, res.raw)

	res = n.Exec(wire.CmdGetStripe, []string{"A", "f", "0"}, nil)
	require.True(t, wire.IsSuccess(res.frame))
	assert.Equal(t, []string{"data", "16"}, wire.Fields(res.frame))
	assert.Nil(t, res.raw, "get-stripe carries no payload")

	stats := n.Stats()
	assert.Equal(t, uint64(1), stats.Stores)
	assert.Equal(t, uint64(1), stats.Reads)
}

func TestExecParityBlock(t *testing.T) {
	n := NewNode("d1", storage.NewMemoryStore())

	res := n.Exec(wire.CmdStoreBlock, []string{"A", "f", "2", "parity", "4"}, []byte{1, 2, 3, 4})
	require.True(t, wire.IsSuccess(res.frame))

	res = n.Exec(wire.CmdReadBlock, []string{"A", "f", "2"}, nil)
	require.True(t, wire.IsSuccess(res.frame))
	assert.Equal(t, []string{"4", "parity"}, wire.Fields(res.frame))
}

func TestExecRejectsMalformedArgs(t *testing.T) {
	n := NewNode("d1", storage.NewMemoryStore())

	cases := []struct {
		name string
		cmd  string
		args []string
	}{
		{"negative stripe", wire.CmdReadBlock, []string{"A", "f", "-1"}},
		{"non-numeric stripe", wire.CmdStoreBlock, []string{"A", "f", "two", "data", "4"}},
		{"bad block type", wire.CmdStoreBlock, []string{"A", "f", "0", "blob", "4"}},
		{"unknown command", "scrub", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := n.Exec(tc.cmd, tc.args, nil)
			assert.Equal(t, wire.StatusFailure, string(res.frame))
		})
	}
}

func TestExecReadMissing(t *testing.T) {
	n := NewNode("d1", storage.NewMemoryStore())
	res := n.Exec(wire.CmdReadBlock, []string{"A", "f", "7"}, nil)
	assert.False(t, wire.IsSuccess(res.frame))
}

func TestExecDeleteArray(t *testing.T) {
	n := NewNode("d1", storage.NewMemoryStore())
	require.True(t, wire.IsSuccess(n.Exec(wire.CmdStoreBlock, []string{"A", "f", "0", "data", "1"}, []byte{9}).frame))
	require.True(t, wire.IsSuccess(n.Exec(wire.CmdStoreBlock, []string{"B", "g", "0", "data", "1"}, []byte{9}).frame))

	assert.True(t, wire.IsSuccess(n.Exec(wire.CmdDeleteArray, []string{"A"}, nil).frame))

	assert.False(t, wire.IsSuccess(n.Exec(wire.CmdReadBlock, []string{"A", "f", "0"}, nil).frame))
	assert.True(t, wire.IsSuccess(n.Exec(wire.CmdReadBlock, []string{"B", "g", "0"}, nil).frame),
		"delete-array must not touch other arrays")

	// Idempotent: deleting an absent array still succeeds.
	assert.True(t, wire.IsSuccess(n.Exec(wire.CmdDeleteArray, []string{"A"}, nil).frame))
}

// TestFailedStateMachine checks the Active/Failed transitions: fail answers
// FAIL-COMPLETE, a Failed node answers FAIL to everything but restore, and
// restore returns it to Active with its blocks intact.
func TestFailedStateMachine(t *testing.T) {
	n := NewNode("d1", storage.NewMemoryStore())
	require.True(t, wire.IsSuccess(n.Exec(wire.CmdStoreBlock, []string{"A", "f", "0", "data", "1"}, []byte{7}).frame))

	res := n.Exec(wire.CmdFail, nil, nil)
	assert.Equal(t, wire.StatusFailComplete, string(res.frame))
	assert.True(t, n.Failed())

	for _, cmd := range []string{wire.CmdReadBlock, wire.CmdGetStripe} {
		res = n.Exec(cmd, []string{"A", "f", "0"}, nil)
		assert.Equal(t, wire.StatusFail, string(res.frame), cmd)
	}
	res = n.Exec(wire.CmdStoreBlock, []string{"A", "f", "1", "data", "1"}, []byte{8})
	assert.Equal(t, wire.StatusFail, string(res.frame))
	res = n.Exec(wire.CmdDeleteArray, []string{"A"}, nil)
	assert.Equal(t, wire.StatusFail, string(res.frame))

	// A second fail is also rejected: only restore gets through.
	res = n.Exec(wire.CmdFail, nil, nil)
	assert.Equal(t, wire.StatusFail, string(res.frame))

	assert.Equal(t, uint64(5), n.Stats().Rejected)

	res = n.Exec(wire.CmdRestore, nil, nil)
	assert.True(t, wire.IsSuccess(res.frame))
	assert.False(t, n.Failed())

	res = n.Exec(wire.CmdReadBlock, []string{"A", "f", "0"}, nil)
	require.True(t, wire.IsSuccess(res.frame))
	assert.Equal(t, []byte{7}, res.raw, "blocks survive a fail/restore cycle")
}
