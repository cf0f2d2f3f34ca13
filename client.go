package kvhop

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/sirupsen/logrus"
)

// Opts are the construction-time collaborator hooks: how connections
// are dialed and pooled, and where logs go. The zero value is usable.
type Opts struct {
	// DialOptions is the list of options to set on each new connection.
	DialOptions []redis.DialOption

	// CreatePool is the function called to create the connection pool
	// for a node address. If nil, a small default pool dialing with
	// DialOptions is used.
	CreatePool func(address string, options ...redis.DialOption) (*redis.Pool, error)

	// Logger receives structured logs for redirect hops and node health
	// changes. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

func (o *Opts) withDefaults() *Opts {
	out := Opts{}
	if o != nil {
		out = *o
	}
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	return &out
}

func (o *Opts) createPool(address string) (*redis.Pool, error) {
	if o.CreatePool != nil {
		return o.CreatePool(address, o.DialOptions...)
	}
	return &redis.Pool{
		MaxIdle:     2,
		IdleTimeout: time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", address, o.DialOptions...)
		},
	}, nil
}

// Client is the cluster façade: typed key-value operations that each
// build one Command and hand it to the router. A missing key surfaces
// as redis.ErrNil from the reply conversion, as with a plain redigo
// connection.
type Client struct {
	registry *Registry
	router   *Router
}

// New connects to the cluster described by cfg and returns a client.
// opts may be nil. Construction fails with ErrNoReachableNodes when no
// configured node accepts a connection.
func New(cfg *Config, opts *Opts) (*Client, error) {
	cfg = cfg.withDefaults()

	addrs, err := cfg.addrs()
	if err != nil {
		return nil, err
	}
	aliases, err := cfg.aliasTable(addrs)
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry(addrs, cfg.CommandTimeout, opts)
	if err != nil {
		return nil, err
	}
	router, err := NewRouter(reg, aliases, cfg, opts)
	if err != nil {
		reg.Close()
		return nil, err
	}
	return &Client{registry: reg, router: router}, nil
}

// Close releases the connection pools of every node.
func (c *Client) Close() error {
	return c.registry.Close()
}

func (c *Client) do(ctx context.Context, name, key string, args ...interface{}) (interface{}, error) {
	return c.router.Execute(ctx, NewCommand(name, key, args...))
}

// Get returns the string value of key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return redis.String(c.do(ctx, "GET", key, key))
}

// Set stores value under key.
func (c *Client) Set(ctx context.Context, key, value string) error {
	_, err := c.do(ctx, "SET", key, key, value)
	return err
}

// SetEx stores value under key with an expiration.
func (c *Client) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := c.do(ctx, "SETEX", key, key, int(ttl.Seconds()), value)
	return err
}

// Del removes key and reports whether it existed.
func (c *Client) Del(ctx context.Context, key string) (bool, error) {
	n, err := redis.Int(c.do(ctx, "DEL", key, key))
	return n > 0, err
}

// Exists reports whether key exists.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := redis.Int(c.do(ctx, "EXISTS", key, key))
	return n > 0, err
}

// Incr increments the counter at key and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return redis.Int64(c.do(ctx, "INCR", key, key))
}

// HSet sets field to value in the hash at key.
func (c *Client) HSet(ctx context.Context, key, field, value string) error {
	_, err := c.do(ctx, "HSET", key, key, field, value)
	return err
}

// HGet returns the value of field in the hash at key.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	return redis.String(c.do(ctx, "HGET", key, key, field))
}

// HGetAll returns all fields and values of the hash at key.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return redis.StringMap(c.do(ctx, "HGETALL", key, key))
}

// LPush prepends values to the list at key and returns its new length.
func (c *Client) LPush(ctx context.Context, key string, values ...string) (int, error) {
	return redis.Int(c.do(ctx, "LPUSH", key, listArgs(key, values)...))
}

// RPush appends values to the list at key and returns its new length.
func (c *Client) RPush(ctx context.Context, key string, values ...string) (int, error) {
	return redis.Int(c.do(ctx, "RPUSH", key, listArgs(key, values)...))
}

// LPop removes and returns the first element of the list at key.
func (c *Client) LPop(ctx context.Context, key string) (string, error) {
	return redis.String(c.do(ctx, "LPOP", key, key))
}

// LLen returns the length of the list at key.
func (c *Client) LLen(ctx context.Context, key string) (int, error) {
	return redis.Int(c.do(ctx, "LLEN", key, key))
}

// SAdd adds members to the set at key and returns how many were new.
func (c *Client) SAdd(ctx context.Context, key string, members ...string) (int, error) {
	return redis.Int(c.do(ctx, "SADD", key, listArgs(key, members)...))
}

// SMembers returns all members of the set at key.
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return redis.Strings(c.do(ctx, "SMEMBERS", key, key))
}

func listArgs(key string, values []string) []interface{} {
	args := make([]interface{}, 0, len(values)+1)
	args = append(args, key)
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

// SetMany stores every pair sequentially and returns the per-key
// outcome. Keys may land on different shards; there is no atomicity
// across them.
func (c *Client) SetMany(ctx context.Context, pairs map[string]string) map[string]error {
	res := make(map[string]error, len(pairs))
	for k, v := range pairs {
		res[k] = c.Set(ctx, k, v)
	}
	return res
}

// Keys returns the union of keys matching pattern across every node,
// deduplicated. Nodes that fail the scan are skipped with a warning;
// Keys fails only when no node could answer.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	var firstErr error
	answered := false

	c.registry.EachNode(func(n *Node) {
		if ctx.Err() != nil {
			return
		}
		conn := n.getConn()
		defer conn.Close()
		keys, err := redis.Strings(redis.DoWithTimeout(conn, c.router.cmdTimeout, "KEYS", pattern))
		if err != nil {
			c.router.log.WithError(err).WithField("node", n.Addr().String()).Warn("keys scan failed on node")
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		answered = true
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !answered && firstErr != nil {
		return nil, ErrTransport.Wrap(firstErr, "no node answered the key scan")
	}
	return out, nil
}

// ClusterStats summarizes key distribution across the cluster.
type ClusterStats struct {
	Nodes        int
	HealthyNodes int
	TotalKeys    int
	KeysPerNode  map[string]int
}

// Stats collects per-node key counts via DBSIZE. Unreachable nodes are
// reported with a zero count; Stats fails only when no node answers.
func (c *Client) Stats(ctx context.Context) (*ClusterStats, error) {
	stats := &ClusterStats{KeysPerNode: make(map[string]int)}
	var firstErr error
	answered := false

	c.registry.EachNode(func(n *Node) {
		stats.Nodes++
		if c.registry.Healthy(n) {
			stats.HealthyNodes++
		}
		if ctx.Err() != nil {
			return
		}
		conn := n.getConn()
		defer conn.Close()
		size, err := redis.Int(redis.DoWithTimeout(conn, c.router.cmdTimeout, "DBSIZE"))
		if err != nil {
			c.router.log.WithError(err).WithField("node", n.Addr().String()).Warn("dbsize failed on node")
			stats.KeysPerNode[n.Addr().String()] = 0
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		answered = true
		stats.KeysPerNode[n.Addr().String()] = size
		stats.TotalKeys += size
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !answered && firstErr != nil {
		return nil, ErrTransport.Wrap(firstErr, "no node answered the stats probe")
	}
	return stats, nil
}
