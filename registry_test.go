package kvhop

import (
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvhop/kvhop/kvhoptest"
)

func pingOnly(cmd string, args ...string) interface{} {
	if cmd == "PING" {
		return kvhoptest.Simple("PONG")
	}
	return kvhoptest.Error("ERR unexpected command " + cmd)
}

func TestNewRegistryAllReachable(t *testing.T) {
	a := kvhoptest.StartNode(t, pingOnly)
	defer a.Close()
	b := kvhoptest.StartNode(t, pingOnly)
	defer b.Close()

	reg := testRegistry(t, a.Addr, b.Addr)
	defer reg.Close()

	var addrs []string
	reg.EachNode(func(n *Node) {
		addrs = append(addrs, n.Addr().String())
		assert.True(t, reg.Healthy(n), "node healthy after init")
	})
	assert.Equal(t, []string{a.Addr, b.Addr}, addrs, "nodes in configuration order")
}

func TestNewRegistryPartialFailure(t *testing.T) {
	a := kvhoptest.StartNode(t, pingOnly)
	defer a.Close()
	dead := deadAddr(t)

	reg := testRegistry(t, a.Addr, dead)
	defer reg.Close()

	// the dead node keeps its handle but is not eligible for Pick
	n := reg.Lookup(mustAddr(t, dead))
	require.NotNil(t, n, "dead node handle retained")
	assert.False(t, reg.Healthy(n), "dead node unhealthy")

	got, err := reg.Pick()
	require.NoError(t, err, "Pick")
	assert.Equal(t, a.Addr, got.Addr().String(), "pick skips the dead node")
}

func TestNewRegistryNoReachableNodes(t *testing.T) {
	_, err := NewRegistry([]Addr{mustAddr(t, deadAddr(t))}, time.Second, testOpts())
	require.Error(t, err, "NewRegistry")
	assert.True(t, errorx.IsOfType(err, ErrNoReachableNodes), "ErrNoReachableNodes")
}

func TestRegistryPickRoundRobin(t *testing.T) {
	a := kvhoptest.StartNode(t, pingOnly)
	defer a.Close()
	b := kvhoptest.StartNode(t, pingOnly)
	defer b.Close()
	c := kvhoptest.StartNode(t, pingOnly)
	defer c.Close()

	reg := testRegistry(t, a.Addr, b.Addr, c.Addr)
	defer reg.Close()

	var picked []string
	for i := 0; i < 6; i++ {
		n, err := reg.Pick()
		require.NoError(t, err, "Pick %d", i)
		picked = append(picked, n.Addr().String())
	}
	assert.Equal(t, []string{a.Addr, b.Addr, c.Addr, a.Addr, b.Addr, c.Addr}, picked, "deterministic rotation")
}

func TestRegistryPickSkipsUnhealthy(t *testing.T) {
	a := kvhoptest.StartNode(t, pingOnly)
	defer a.Close()
	b := kvhoptest.StartNode(t, pingOnly)
	defer b.Close()

	reg := testRegistry(t, a.Addr, b.Addr)
	defer reg.Close()

	nb := reg.Lookup(mustAddr(t, b.Addr))
	require.NotNil(t, nb, "Lookup b")
	reg.MarkUnhealthy(nb)

	for i := 0; i < 4; i++ {
		n, err := reg.Pick()
		require.NoError(t, err, "Pick %d", i)
		assert.Equal(t, a.Addr, n.Addr().String(), "only healthy node picked")
	}

	reg.MarkHealthy(nb)
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		n, err := reg.Pick()
		require.NoError(t, err, "Pick %d", i)
		seen[n.Addr().String()] = true
	}
	assert.True(t, seen[b.Addr], "b back in rotation after MarkHealthy")
}

func TestRegistryPickAllUnhealthy(t *testing.T) {
	a := kvhoptest.StartNode(t, pingOnly)
	defer a.Close()

	reg := testRegistry(t, a.Addr)
	defer reg.Close()

	na := reg.Lookup(mustAddr(t, a.Addr))
	reg.MarkUnhealthy(na)

	_, err := reg.Pick()
	require.Error(t, err, "Pick")
	assert.True(t, errorx.IsOfType(err, ErrNoReachableNodes), "ErrNoReachableNodes")
}

func TestRegistryLookupUnknown(t *testing.T) {
	a := kvhoptest.StartNode(t, pingOnly)
	defer a.Close()

	reg := testRegistry(t, a.Addr)
	defer reg.Close()

	assert.Nil(t, reg.Lookup(Addr{Host: "10.9.9.9", Port: 7777}), "unknown address")
}

func TestRegistryDuplicateAddresses(t *testing.T) {
	a := kvhoptest.StartNode(t, pingOnly)
	defer a.Close()

	reg := testRegistry(t, a.Addr, a.Addr)
	defer reg.Close()

	count := 0
	reg.EachNode(func(*Node) { count++ })
	assert.Equal(t, 1, count, "duplicates collapse to one handle")
}
