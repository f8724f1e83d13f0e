package kademlia

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CLI is a thin command layer over a running node. It does not own the
// node's lifecycle; it only issues commands to it.
type CLI struct {
	n    *Node
	in   io.Reader
	out  io.Writer
	quit func()
}

// NewCLI constructs a CLI over the provided node. in and out are the I/O
// streams; quit is invoked on "exit".
func NewCLI(n *Node, in io.Reader, out io.Writer, quit func()) *CLI {
	if quit == nil {
		quit = func() {}
	}
	return &CLI{n: n, in: in, out: out, quit: quit}
}

// RunLine executes a single command line. Recognized commands:
//
//	put <content>        -> stores content under its derived key, prints the 64-hex key
//	get <key-hex>         -> prints the stored content, or NOTFOUND
//	lookup <id-hex>       -> prints the contacts closest to id
//	bootstrap <host:port> -> joins the network through the peer at addr
//	exit                  -> calls quit() and returns io.EOF
//
// On error it prints a line starting with "ERR" (or "NOTFOUND" for a get
// miss) and returns a non-nil error.
func (cli *CLI) RunLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd, arg := splitOnce(line)

	switch strings.ToLower(cmd) {
	case "put":
		content := strings.TrimSpace(arg)
		if content == "" {
			fmt.Fprintln(cli.out, "ERR missing argument")
			return errors.New("put: missing argument")
		}
		key := IDFromKey(content)
		if _, err := cli.n.Store(key, []byte(content)); err != nil {
			fmt.Fprintf(cli.out, "ERR %v\n", err)
			return err
		}
		fmt.Fprintln(cli.out, key.String())
		return nil

	case "get":
		keyHex := strings.TrimSpace(arg)
		if keyHex == "" {
			fmt.Fprintln(cli.out, "ERR missing argument")
			return errors.New("get: missing argument")
		}
		key, err := IDFromHex(keyHex)
		if err != nil {
			fmt.Fprintln(cli.out, "ERR invalid key")
			return fmt.Errorf("get: %w", err)
		}
		val, ok := cli.n.FindValue(key)
		if !ok {
			fmt.Fprintln(cli.out, "NOTFOUND")
			return errors.New("not found")
		}
		fmt.Fprintln(cli.out, string(val))
		return nil

	case "lookup":
		idHex := strings.TrimSpace(arg)
		if idHex == "" {
			fmt.Fprintln(cli.out, "ERR missing argument")
			return errors.New("lookup: missing argument")
		}
		id, err := IDFromHex(idHex)
		if err != nil {
			fmt.Fprintln(cli.out, "ERR invalid id")
			return fmt.Errorf("lookup: %w", err)
		}
		for _, c := range cli.n.LookupNode(id) {
			fmt.Fprintln(cli.out, c.String())
		}
		return nil

	case "bootstrap":
		addr := strings.TrimSpace(arg)
		if addr == "" {
			fmt.Fprintln(cli.out, "ERR missing argument")
			return errors.New("bootstrap: missing argument")
		}
		if err := cli.n.Bootstrap(addr); err != nil {
			fmt.Fprintf(cli.out, "ERR %v\n", err)
			return err
		}
		fmt.Fprintln(cli.out, "OK")
		return nil

	case "exit":
		cli.quit()
		return io.EOF

	default:
		fmt.Fprintln(cli.out, "ERR unknown command")
		return errors.New("unknown command")
	}
}

// Run starts a simple REPL on cli.in until EOF or "exit".
func (cli *CLI) Run() error {
	sc := bufio.NewScanner(cli.in)
	for sc.Scan() {
		if err := cli.RunLine(sc.Text()); err == io.EOF {
			return nil
		}
	}
	return sc.Err()
}

// splitOnce splits on the first span of whitespace into (head, tail). If
// there is no whitespace, tail is "".
func splitOnce(s string) (head, tail string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	i := -1
	for idx, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			i = idx
			break
		}
	}
	if i < 0 {
		return s, ""
	}
	j := i + 1
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	return s[:i], s[j:]
}
