package kvhop

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults applied by DefaultConfig and LoadConfig.
const (
	DefaultMaxHops          = 5
	DefaultTransportRetries = 2
	DefaultCommandTimeout   = 3 * time.Second
)

// Config is the static configuration of a cluster client. All of it is
// supplied at construction; there is no runtime reconfiguration.
type Config struct {
	// Nodes is the list of externally dialable node addresses, as
	// "host:port" strings.
	Nodes []string `mapstructure:"nodes"`

	// Aliases maps node identifiers as they appear in redirect payloads
	// to dialable "host:port" addresses. When empty, each configured
	// node address aliases to itself.
	Aliases map[string]string `mapstructure:"aliases"`

	// MaxHops bounds the redirects followed within one command.
	MaxHops int `mapstructure:"max_hops"`

	// TransportRetries bounds retries against other nodes after a node
	// turns out unreachable. Separate from the redirect hop budget.
	TransportRetries int `mapstructure:"transport_retries"`

	// CommandTimeout is the per-attempt timeout.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`

	// LooseRedirects enables the heuristic that treats unmarked
	// "<slot> <host:port>" error replies as MOVED redirects.
	LooseRedirects bool `mapstructure:"loose_redirects"`

	// TraceNode is the snowflake node id used for trace ids in logs.
	TraceNode int64 `mapstructure:"trace_node"`
}

// DefaultConfig returns a config with the default budgets and timeouts
// and no nodes.
func DefaultConfig() *Config {
	return &Config{
		MaxHops:          DefaultMaxHops,
		TransportRetries: DefaultTransportRetries,
		CommandTimeout:   DefaultCommandTimeout,
		TraceNode:        1,
	}
}

// LoadConfig reads a YAML config file into a Config, with defaults for
// absent keys.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("max_hops", DefaultMaxHops)
	v.SetDefault("transport_retries", DefaultTransportRetries)
	v.SetDefault("command_timeout", DefaultCommandTimeout)
	v.SetDefault("trace_node", 1)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefaults fills the fields that must never be zero. It does not
// touch TransportRetries: zero is a valid setting meaning no transport
// retry.
func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.MaxHops == 0 {
		out.MaxHops = DefaultMaxHops
	}
	if out.CommandTimeout == 0 {
		out.CommandTimeout = DefaultCommandTimeout
	}
	if out.TraceNode == 0 {
		out.TraceNode = 1
	}
	return &out
}

func (c *Config) addrs() ([]Addr, error) {
	addrs := make([]Addr, 0, len(c.Nodes))
	for _, s := range c.Nodes {
		a, err := ParseAddr(s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

func (c *Config) aliasTable(addrs []Addr) (AliasTable, error) {
	if len(c.Aliases) == 0 {
		return IdentityAliases(addrs), nil
	}
	t := make(AliasTable, len(c.Aliases))
	for raw, ext := range c.Aliases {
		a, err := ParseAddr(ext)
		if err != nil {
			return nil, err
		}
		t[raw] = a
	}
	return t, nil
}
