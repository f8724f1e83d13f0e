package kademlia

import (
	"bufio"
	"fmt"
	"net"
	"time"
)

// Client issues single-shot request/response RPCs to a peer address. It is
// stateless: each call opens a connection, writes one framed request,
// reads one framed response, and closes (spec.md §4.6). All failure modes
// — connection refused, write failure, read failure, decode failure,
// deadline exceeded — collapse into a single "peer unreachable" error for
// the caller.
type Client struct {
	self Contact
}

// NewClient returns a client that stamps every outgoing request with
// self's identity, per spec.md §4.4's sender co-requirement.
func NewClient(self Contact) *Client {
	return &Client{self: self}
}

// ErrUnreachable is returned (wrapped) for every transport-level failure:
// dial, write, read, decode, or timeout.
type ErrUnreachable struct {
	Addr string
	Err  error
}

func (e *ErrUnreachable) Error() string {
	return fmt.Sprintf("peer %s unreachable: %v", e.Addr, e.Err)
}

func (e *ErrUnreachable) Unwrap() error { return e.Err }

// Send opens a connection to addr, writes req (with Sender filled in),
// reads one response, and closes the connection. deadline bounds the
// entire round trip.
func (c *Client) Send(addr string, req Request, deadline time.Duration) (Response, error) {
	req.Sender = toWireNode(c.self)
	end := time.Now().Add(deadline)

	conn, err := net.DialTimeout("tcp", addr, deadline)
	if err != nil {
		return Response{}, &ErrUnreachable{Addr: addr, Err: err}
	}
	defer conn.Close()

	if err := conn.SetDeadline(end); err != nil {
		return Response{}, &ErrUnreachable{Addr: addr, Err: err}
	}

	if err := writeFrame(conn, req); err != nil {
		return Response{}, &ErrUnreachable{Addr: addr, Err: err}
	}

	var resp Response
	if err := readFrame(bufio.NewReader(conn), &resp); err != nil {
		return Response{}, &ErrUnreachable{Addr: addr, Err: err}
	}
	return resp, nil
}

// Ping sends a ping and reports whether a pong was received before
// deadline elapsed.
func (c *Client) Ping(addr string, deadline time.Duration) bool {
	resp, err := c.Send(addr, Request{Kind: KindPing}, deadline)
	return err == nil && resp.Kind == KindPong
}
