package kvhop

import (
	"net"
	"strconv"
)

// Addr identifies a cluster node by host and port. It is a value type,
// two Addrs are equal iff host and port are equal.
type Addr struct {
	Host string
	Port int
}

// ParseAddr parses an "host:port" string into an Addr.
func ParseAddr(s string) (Addr, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, ErrBadAddress.Wrap(err, "invalid node address %q", s)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return Addr{}, ErrBadAddress.Wrap(err, "invalid port in node address %q", s)
	}
	return Addr{Host: host, Port: n}, nil
}

// String returns the address in "host:port" form.
func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// AliasTable maps the node identifiers that the cluster reports in
// redirect payloads to externally dialable addresses. Clusters running
// in containers or behind NAT commonly announce internal hostnames that
// the client cannot reach directly; the table is the seam between what
// the cluster says and what the client can dial.
//
// Keys are the exact "host:port" strings as they appear in redirect
// payloads. A redirect target missing from the table fails resolution,
// it is never guessed.
type AliasTable map[string]Addr

// IdentityAliases builds an AliasTable that maps each address to itself,
// for clusters that report directly dialable addresses.
func IdentityAliases(addrs []Addr) AliasTable {
	t := make(AliasTable, len(addrs))
	for _, a := range addrs {
		t[a.String()] = a
	}
	return t
}
