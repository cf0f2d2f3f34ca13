package kvhop

import (
	"github.com/joomcode/errorx"
)

// Errors is the namespace for all errors returned by this package.
var Errors = errorx.NewNamespace("kvhop")

// TraitRetryable marks errors for which retrying against another node
// may succeed. Only transport failures carry it; redirects are handled
// internally and everything else is terminal on first occurrence.
var TraitRetryable = errorx.RegisterTrait("retryable")

var (
	// ErrBadAddress - a node or alias address could not be parsed.
	ErrBadAddress = Errors.NewType("bad_address")
	// ErrNoReachableNodes - no configured node accepted a connection.
	// Fatal at construction, and returned by Pick when every node has
	// been marked unhealthy.
	ErrNoReachableNodes = Errors.NewType("no_reachable_nodes")
	// ErrTransport - a node connection failed or timed out after all
	// transport-level retries were spent.
	ErrTransport = Errors.NewType("transport", TraitRetryable)
	// ErrUnknownAlias - a redirect names a target with no alias entry.
	ErrUnknownAlias = Errors.NewType("unknown_alias")
	// ErrUnknownNode - a redirect target resolved to an address the
	// registry has no handle for.
	ErrUnknownNode = Errors.NewType("unknown_node")
	// ErrRedirectLoop - the hop budget was spent without reaching the
	// owning node.
	ErrRedirectLoop = Errors.NewType("redirect_loop")
	// ErrCommand - the node rejected the command for a non-redirect
	// reason (wrong type, syntax, ...). Carries the node's reply text
	// verbatim as its cause.
	ErrCommand = Errors.NewType("command")
)

var (
	// PropAddress - address of the node that handled the attempt.
	PropAddress = errorx.RegisterProperty("address")
	// PropTarget - raw redirect target as reported by the cluster.
	PropTarget = errorx.RegisterProperty("target")
	// PropSignal - last redirect signal observed before failing.
	PropSignal = errorx.RegisterProperty("signal")
	// PropKey - key of the command being executed.
	PropKey = errorx.RegisterProperty("key")
)
