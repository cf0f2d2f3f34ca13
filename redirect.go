package kvhop

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gomodule/redigo/redis"
)

// RedirectKind is the kind of redirect signal carried by a node error.
type RedirectKind int

const (
	// RedirectNone - the error is not a redirect.
	RedirectNone RedirectKind = iota
	// RedirectMoved - permanent redirect, the key's slot now lives on
	// the target node.
	RedirectMoved
	// RedirectAsk - transient redirect, valid for the immediately
	// following command only. The target must be primed with ASKING
	// before the command is retried.
	RedirectAsk
)

// String returns the protocol marker for the kind.
func (k RedirectKind) String() string {
	switch k {
	case RedirectMoved:
		return "MOVED"
	case RedirectAsk:
		return "ASK"
	}
	return "NONE"
}

// Redirect is a redirect signal parsed from a node's error reply. It is
// derived transiently from a single failed attempt and never stored.
type Redirect struct {
	Kind   RedirectKind
	Slot   int
	Target string // raw identifier as reported, resolved via AliasTable
}

// ParseRedirect inspects err and returns the redirect signal it carries,
// or nil if err is not a redirect. Only error replies reported by a node
// are inspected; transport errors never classify as redirects.
//
// Exact "MOVED <slot> <addr>" and "ASK <slot> <addr>" markers are always
// recognized. With loose set, an unmarked reply of the form
// "<slot> <host:port>" is treated as a MOVED-equivalent redirect; some
// cluster implementations omit the marker. Loose matching misclassifies
// error text that happens to contain a number and an address, so it is
// off unless configured.
func ParseRedirect(err error, loose bool) *Redirect {
	var re redis.Error
	if !errors.As(err, &re) {
		return nil
	}

	parts := strings.Fields(string(re))
	switch {
	case len(parts) == 3 && (parts[0] == "MOVED" || parts[0] == "ASK"):
		slot, perr := strconv.Atoi(parts[1])
		if perr != nil {
			return nil
		}
		kind := RedirectMoved
		if parts[0] == "ASK" {
			kind = RedirectAsk
		}
		return &Redirect{Kind: kind, Slot: slot, Target: parts[2]}

	case loose && len(parts) == 2 && strings.Contains(parts[1], ":"):
		slot, perr := strconv.Atoi(parts[0])
		if perr != nil {
			return nil
		}
		return &Redirect{Kind: RedirectMoved, Slot: slot, Target: parts[1]}
	}
	return nil
}

// resolveTarget translates a redirect signal into a locally known node:
// the raw target is mapped to a dialable address through the alias
// table, then looked up in the registry. Both steps fail explicitly, a
// redirect to an unknown node is never retried against an arbitrary one
// since that risks operating on the wrong shard.
func resolveTarget(sig *Redirect, aliases AliasTable, reg *Registry) (*Node, error) {
	addr, ok := aliases[sig.Target]
	if !ok {
		return nil, ErrUnknownAlias.New("no alias for redirect target %q", sig.Target).
			WithProperty(PropTarget, sig.Target).
			WithProperty(PropSignal, sig.Kind.String())
	}
	node := reg.Lookup(addr)
	if node == nil {
		return nil, ErrUnknownNode.New("redirect target %s is not a registered node", addr).
			WithProperty(PropTarget, sig.Target).
			WithProperty(PropAddress, addr.String())
	}
	return node, nil
}
