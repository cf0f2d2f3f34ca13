// Package kvhop implements a redirect-following client for multi-node
// key-value clusters speaking a Redis-compatible protocol, on top of
// the redigo client package.
//
// Unlike slot-mapping cluster clients, kvhop never computes or caches
// the hash-slot layout. A command is sent to an arbitrary healthy node
// and the cluster itself answers with MOVED or ASK when that node does
// not own the key; the client resolves the redirect target and retries
// there, bounded by a hop budget.
//
// Registry
//
// The Registry holds one handle per configured node: its external
// address, a redigo connection pool and a health flag. Initialization
// probes every node and succeeds as long as at least one is reachable.
// Nodes that become unreachable are taken out of the round-robin
// rotation but keep their handle, so a redirect can still name them.
//
// Redirects and aliases
//
// Redirect payloads name nodes the way the cluster knows them, which
// for containerized deployments is often an internal hostname the
// client cannot dial. The AliasTable maps those reported identifiers to
// external addresses; a target missing from the table fails the call
// with ErrUnknownAlias rather than guessing a node.
//
// Router
//
// Router.Execute runs one command through its redirect hops: MOVED
// switches the target node and consumes a hop, ASK primes the target
// with ASKING and reissues the command on the same connection. Node
// errors that are not redirects are returned after the first attempt.
// Transport failures mark the node unhealthy and fall back to another
// pick, on a budget separate from the redirect hops.
//
// Client
//
// Client wraps the router in typed string, hash, list and set
// operations, plus cross-node helpers (Keys, Stats, SetMany) that visit
// nodes directly. No operation spans multiple keys atomically.
package kvhop
