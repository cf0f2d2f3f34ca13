package kvhop

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testOpts() *Opts {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Opts{Logger: l}
}

func testRegistry(t *testing.T, addrs ...string) *Registry {
	parsed := make([]Addr, len(addrs))
	for i, s := range addrs {
		a, err := ParseAddr(s)
		require.NoError(t, err, "ParseAddr %q", s)
		parsed[i] = a
	}
	reg, err := NewRegistry(parsed, time.Second, testOpts())
	require.NoError(t, err, "NewRegistry")
	return reg
}

func testRouter(t *testing.T, reg *Registry, aliases AliasTable, cfg *Config) *Router {
	r, err := NewRouter(reg, aliases, cfg, testOpts())
	require.NoError(t, err, "NewRouter")
	return r
}

// deadAddr returns an address that refuses connections: the port of a
// listener that was just closed.
func deadAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "listen")
	addr := l.Addr().String()
	require.NoError(t, l.Close(), "close listener")
	return addr
}

func mustAddr(t *testing.T, s string) Addr {
	a, err := ParseAddr(s)
	require.NoError(t, err, "ParseAddr %q", s)
	return a
}
