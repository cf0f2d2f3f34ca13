// Package kvhoptest provides an in-process mock cluster node for tests.
// The node speaks just enough of the wire protocol to serve a redigo
// client: requests are arrays of bulk strings, replies are whatever the
// test handler returns.
package kvhoptest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Error marks a handler return value to be sent as an error reply.
type Error string

// Simple marks a handler return value to be sent as a simple string
// reply (e.g. +OK). Plain strings are sent as bulk strings.
type Simple string

// Handler is called for every command the node receives. The returned
// value is encoded and sent back: Error, Simple, string, []byte, int,
// int64, []string, []interface{} or nil.
type Handler func(cmd string, args ...string) interface{}

// Node is a mock cluster node listening on a real TCP port.
type Node struct {
	Addr string

	t    *testing.T
	l    net.Listener
	h    Handler
	done chan struct{}
	wg   sync.WaitGroup
}

// StartNode starts a mock node on a random local port. The caller must
// Close it after use.
func StartNode(t *testing.T, handler Handler) *Node {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "listen")

	n := &Node{
		Addr: l.Addr().String(),
		t:    t,
		l:    l,
		h:    handler,
		done: make(chan struct{}),
	}
	go n.serve()
	return n
}

// Close stops the listener and waits for in-flight connections.
func (n *Node) Close() {
	select {
	case <-n.done:
		return
	default:
	}
	close(n.done)
	require.NoError(n.t, n.l.Close(), "close listener")

	exit := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(exit)
	}()
	select {
	case <-exit:
	case <-time.After(5 * time.Second):
		n.t.Error("mock node connections did not drain")
	}
}

func (n *Node) serve() {
	for {
		conn, err := n.l.Accept()
		if err != nil {
			return
		}
		n.wg.Add(1)
		go n.serveConn(conn)
	}
}

func (n *Node) serveConn(c net.Conn) {
	defer n.wg.Done()
	defer c.Close()

	go func() {
		<-n.done
		c.Close()
	}()

	br := bufio.NewReader(c)
	for {
		req, err := readRequest(br)
		if err != nil {
			return
		}
		if err := writeReply(c, n.h(req[0], req[1:]...)); err != nil {
			return
		}
	}
}

// readRequest reads one client request: an array of bulk strings.
func readRequest(br *bufio.Reader) ([]string, error) {
	cnt, err := readSized(br, '*')
	if err != nil {
		return nil, err
	}
	if cnt < 1 {
		return nil, fmt.Errorf("kvhoptest: request with %d elements", cnt)
	}
	req := make([]string, cnt)
	for i := range req {
		size, err := readSized(br, '$')
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, err
		}
		req[i] = string(buf[:size])
	}
	return req, nil
}

func readSized(br *bufio.Reader, prefix byte) (int, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return 0, err
	}
	if len(line) < 4 || line[0] != prefix {
		return 0, fmt.Errorf("kvhoptest: bad line %q", line)
	}
	return strconv.Atoi(line[1 : len(line)-2])
}

func writeReply(w io.Writer, v interface{}) error {
	switch v := v.(type) {
	case nil:
		return write(w, "$-1\r\n")
	case Error:
		return write(w, "-"+string(v)+"\r\n")
	case Simple:
		return write(w, "+"+string(v)+"\r\n")
	case string:
		return writeBulk(w, []byte(v))
	case []byte:
		return writeBulk(w, v)
	case int:
		return write(w, ":"+strconv.Itoa(v)+"\r\n")
	case int64:
		return write(w, ":"+strconv.FormatInt(v, 10)+"\r\n")
	case []string:
		if err := write(w, "*"+strconv.Itoa(len(v))+"\r\n"); err != nil {
			return err
		}
		for _, s := range v {
			if err := writeBulk(w, []byte(s)); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		if err := write(w, "*"+strconv.Itoa(len(v))+"\r\n"); err != nil {
			return err
		}
		for _, el := range v {
			if err := writeReply(w, el); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("kvhoptest: cannot encode %T", v)
	}
}

func write(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}

func writeBulk(w io.Writer, b []byte) error {
	if err := write(w, "$"+strconv.Itoa(len(b))+"\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	return write(w, "\r\n")
}
