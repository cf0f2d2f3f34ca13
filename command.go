package kvhop

// Command is a single cluster operation: a command name and its ordered
// arguments. Key is the key the command addresses and is carried for
// logging only; the client never computes slot placement from it.
// Commands are immutable and live for one Execute call including its
// redirect hops.
type Command struct {
	Name string
	Args []interface{}
	Key  string
}

// NewCommand builds a command addressing key. The key must be repeated
// in args if the command takes it as an argument.
func NewCommand(name, key string, args ...interface{}) *Command {
	return &Command{Name: name, Args: args, Key: key}
}
