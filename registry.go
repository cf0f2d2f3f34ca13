package kvhop

import (
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/sirupsen/logrus"
)

// Node is the registry's handle for a single cluster member: its
// external address, a connection pool and a health flag. Nodes are
// created when the registry initializes and live until Close; an
// unreachable node is marked unhealthy but its handle is retained.
type Node struct {
	addr    Addr
	pool    *redis.Pool
	healthy bool // guarded by the owning Registry's mu
}

// Addr returns the node's external address.
func (n *Node) Addr() Addr {
	return n.addr
}

func (n *Node) getConn() redis.Conn {
	return n.pool.Get()
}

// Registry holds the static set of cluster nodes and their health
// state. It is safe for concurrent use; node handles are owned
// exclusively by the registry and only toggled, never removed.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	order []string // pick order, configuration order with duplicates dropped
	next  int      // round-robin cursor, guarded by mu
	log   logrus.FieldLogger
}

// NewRegistry connects to every address and returns a registry over the
// resulting handles. Each node is probed with PING; a node that fails
// the probe is recorded as unhealthy with a warning. Initialization
// succeeds iff at least one node is reachable.
func NewRegistry(addrs []Addr, probeTimeout time.Duration, opts *Opts) (*Registry, error) {
	opts = opts.withDefaults()

	r := &Registry{
		nodes: make(map[string]*Node, len(addrs)),
		log:   opts.Logger,
	}

	for _, addr := range addrs {
		key := addr.String()
		if _, ok := r.nodes[key]; ok {
			continue
		}
		pool, err := opts.createPool(key)
		if err != nil {
			// pool creation failing is equivalent to an unreachable node
			r.log.WithError(err).WithField("node", key).Warn("cannot create pool for node")
			continue
		}
		n := &Node{addr: addr, pool: pool}
		n.healthy = r.probe(n, probeTimeout)
		r.nodes[key] = n
		r.order = append(r.order, key)
	}

	healthy := 0
	for _, n := range r.nodes {
		if n.healthy {
			healthy++
		}
	}
	if healthy == 0 {
		r.Close()
		return nil, ErrNoReachableNodes.New("none of the %d configured nodes is reachable", len(addrs))
	}
	r.log.WithFields(logrus.Fields{"nodes": len(r.order), "healthy": healthy}).Info("cluster registry ready")
	return r, nil
}

func (r *Registry) probe(n *Node, timeout time.Duration) bool {
	conn := n.getConn()
	defer conn.Close()
	if err := conn.Err(); err != nil {
		r.log.WithError(err).WithField("node", n.addr.String()).Warn("node unreachable")
		return false
	}
	if _, err := redis.DoWithTimeout(conn, timeout, "PING"); err != nil {
		r.log.WithError(err).WithField("node", n.addr.String()).Warn("node failed ping probe")
		return false
	}
	return true
}

// Pick returns the next healthy node in round-robin order. The cursor
// is part of the registry so concurrent callers share a deterministic
// rotation. It fails with ErrNoReachableNodes when every node is
// currently unhealthy.
func (r *Registry) Pick() (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < len(r.order); i++ {
		n := r.nodes[r.order[r.next%len(r.order)]]
		r.next++
		if n.healthy {
			return n, nil
		}
	}
	return nil, ErrNoReachableNodes.New("all %d nodes are marked unhealthy", len(r.order))
}

// Lookup returns the handle registered for exactly addr, or nil if the
// address is not part of the node set. A nil result means the caller's
// redirect target is unknown, not that a retry elsewhere could help.
func (r *Registry) Lookup(addr Addr) *Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[addr.String()]
}

// MarkUnhealthy removes the node from Pick rotation. The handle and its
// pool are retained; a later MarkHealthy restores eligibility.
func (r *Registry) MarkUnhealthy(n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.healthy {
		n.healthy = false
		r.log.WithField("node", n.addr.String()).Warn("node marked unhealthy")
	}
}

// MarkHealthy restores the node's eligibility for Pick.
func (r *Registry) MarkHealthy(n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !n.healthy {
		n.healthy = true
		r.log.WithField("node", n.addr.String()).Info("node marked healthy")
	}
}

// Healthy reports whether the node is currently eligible for Pick.
func (r *Registry) Healthy(n *Node) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return n.healthy
}

// EachNode calls fn for every registered node, healthy or not, in pick
// order. fn runs without the registry lock held.
func (r *Registry) EachNode(fn func(n *Node)) {
	r.mu.RLock()
	snapshot := make([]*Node, 0, len(r.order))
	for _, key := range r.order {
		snapshot = append(snapshot, r.nodes[key])
	}
	r.mu.RUnlock()

	for _, n := range snapshot {
		fn(n)
	}
}

// Close releases the pools of every node. It returns the first close
// error encountered, if any.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for _, n := range r.nodes {
		if n.pool == nil {
			continue
		}
		if e := n.pool.Close(); e != nil && err == nil {
			err = e
		}
		n.pool = nil
	}
	return err
}
