package kvhop

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gomodule/redigo/redis"
	"github.com/sirupsen/logrus"
)

// Router sends commands to the cluster and follows the redirects the
// cluster answers with. It keeps no slot map: the initial node is a
// plain round-robin pick and the cluster itself points at the owner via
// MOVED/ASK replies.
type Router struct {
	registry *Registry
	aliases  AliasTable

	maxHops          int
	transportRetries int
	cmdTimeout       time.Duration
	loose            bool

	log logrus.FieldLogger
	ids *snowflake.Node
}

// NewRouter builds a router over the registry, resolving redirect
// targets through aliases. Budgets and timeouts come from cfg.
func NewRouter(reg *Registry, aliases AliasTable, cfg *Config, opts *Opts) (*Router, error) {
	cfg = cfg.withDefaults()
	opts = opts.withDefaults()

	ids, err := snowflake.NewNode(cfg.TraceNode)
	if err != nil {
		return nil, err
	}
	return &Router{
		registry:         reg,
		aliases:          aliases,
		maxHops:          cfg.MaxHops,
		transportRetries: cfg.TransportRetries,
		cmdTimeout:       cfg.CommandTimeout,
		loose:            cfg.LooseRedirects,
		log:              opts.Logger,
		ids:              ids,
	}, nil
}

// Execute runs cmd against the cluster and returns the owning node's
// reply. It follows up to MaxHops redirects, priming ASK targets with
// ASKING, and retries transport failures against other nodes up to
// TransportRetries times. Non-redirect errors reported by a node are
// returned after the first attempt, wrapped in ErrCommand with the
// node's reply as cause. Cancelling ctx aborts before the next attempt
// and does not touch node health.
func (r *Router) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	log := r.log.WithFields(logrus.Fields{
		"trace": r.ids.Generate().String(),
		"cmd":   cmd.Name,
		"key":   cmd.Key,
	})

	target, err := r.registry.Pick()
	if err != nil {
		return nil, err
	}

	hops := r.maxHops
	transport := r.transportRetries
	var asked *Node

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var reply interface{}
		if asked != nil {
			reply, err = r.askAttempt(asked, cmd)
			asked = nil
		} else {
			reply, err = r.attempt(target, cmd)
		}
		if err == nil {
			return reply, nil
		}

		if red := ParseRedirect(err, r.loose); red != nil {
			if hops == 0 {
				return nil, ErrRedirectLoop.New("redirect budget exhausted after %d hops", r.maxHops).
					WithProperty(PropTarget, red.Target).
					WithProperty(PropSignal, red.Kind.String()).
					WithProperty(PropKey, cmd.Key)
			}
			hops--

			node, rerr := resolveTarget(red, r.aliases, r.registry)
			if rerr != nil {
				return nil, rerr
			}
			log.WithFields(logrus.Fields{
				"signal": red.Kind.String(),
				"from":   target.Addr().String(),
				"to":     node.Addr().String(),
			}).Debug("following redirect")

			target = node
			if red.Kind == RedirectAsk {
				asked = node
			}
			continue
		}

		var nodeErr redis.Error
		if errors.As(err, &nodeErr) {
			return nil, ErrCommand.Wrap(err, "node rejected %s", cmd.Name).
				WithProperty(PropAddress, target.Addr().String()).
				WithProperty(PropKey, cmd.Key)
		}

		// anything else is a transport failure: the node is unreachable
		// or timed out, take it out of rotation and try elsewhere
		r.registry.MarkUnhealthy(target)
		log.WithError(err).WithField("node", target.Addr().String()).Warn("node unreachable")
		if transport == 0 {
			return nil, ErrTransport.Wrap(err, "node %s unreachable and transport retries spent", target.Addr()).
				WithProperty(PropAddress, target.Addr().String()).
				WithProperty(PropKey, cmd.Key)
		}
		transport--

		target, err = r.registry.Pick()
		if err != nil {
			return nil, err
		}
	}
}

func (r *Router) attempt(n *Node, cmd *Command) (interface{}, error) {
	conn := n.getConn()
	defer conn.Close()
	if err := conn.Err(); err != nil {
		return nil, err
	}
	return redis.DoWithTimeout(conn, r.cmdTimeout, cmd.Name, cmd.Args...)
}

// askAttempt primes the target with ASKING and reissues the command on
// that same connection. An ASK grant is valid for the immediately
// following command only, so both must share the connection.
func (r *Router) askAttempt(n *Node, cmd *Command) (interface{}, error) {
	conn := n.getConn()
	defer conn.Close()
	if err := conn.Err(); err != nil {
		return nil, err
	}
	if _, err := redis.DoWithTimeout(conn, r.cmdTimeout, "ASKING"); err != nil {
		return nil, err
	}
	return redis.DoWithTimeout(conn, r.cmdTimeout, cmd.Name, cmd.Args...)
}
