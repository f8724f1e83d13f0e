package kademlia

import (
	"bufio"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Server accepts TCP connections and dispatches inbound requests against
// shared routing-table and storage state. Each accepted connection is
// owned by the goroutine that handles it; no connection outlives a single
// request/response exchange (spec.md §5).
type Server struct {
	self       Contact
	routing    *RoutingTable
	storage    *Storage
	k          int
	defaultTTL time.Duration
	log        *logrus.Entry

	listener net.Listener
}

// NewServer wires a server over the given routing table and storage. It
// does not bind until Listen is called, nor accept until Serve. k bounds how many
// contacts FindNode/FindValue responses return, and must match the
// routing table's own configured K.
func NewServer(self Contact, routing *RoutingTable, storage *Storage, k int, defaultTTL time.Duration, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{self: self, routing: routing, storage: storage, k: k, defaultTTL: defaultTTL, log: log}
}

// Listen binds addr synchronously, so callers can surface a bind failure
// as a fatal startup error before doing anything else (spec.md §6).
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until the listener is closed. Call Listen
// first; Serve blocks and is meant to run in its own goroutine.
func (s *Server) Serve() error {
	s.log.WithField("addr", s.listener.Addr().String()).Info("kademlia server listening")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Addr returns the bound listen address, or "" before Listen has bound one.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	var req Request
	if err := readFrame(bufio.NewReader(conn), &req); err != nil {
		s.log.WithError(err).Debug("failed to read request frame")
		return
	}
	if err := req.validate(); err != nil {
		s.log.WithError(err).Debug("dropping malformed request")
		return
	}

	// Every inbound request first teaches the routing table about the
	// caller, before any handler-specific work (spec.md §4.5).
	if sender, err := req.Sender.toContact(); err == nil && sender.Address != "" {
		s.learn(sender)
	}

	resp := s.dispatch(req)
	resp.From = toWireNode(s.self)
	if err := writeFrame(conn, resp); err != nil {
		s.log.WithError(err).Debug("failed to write response frame")
	}
}

func (s *Server) learn(c Contact) {
	full := s.routing.Observe(c)
	s.log.WithFields(logrus.Fields{"contact": c.String(), "added": full}).Debug("observed contact")
}

func (s *Server) dispatch(req Request) Response {
	switch req.Kind {
	case KindPing:
		return Response{Kind: KindPong}

	case KindFindNode:
		target, _ := IDFromHex(req.Target)
		contacts := s.routing.Closest(target, s.k)
		return Response{Kind: KindNodes, Nodes: toWireNodes(contacts)}

	case KindStore:
		target, _ := IDFromHex(req.Target)
		s.storage.Put(target, req.Value, s.defaultTTL)
		s.log.WithField("key", target.String()).Debug("stored value from peer")
		return Response{Kind: KindPong}

	case KindFindValue:
		target, _ := IDFromHex(req.Target)
		if val, ok := s.storage.Get(target); ok {
			return Response{Kind: KindValue, Value: val}
		}
		contacts := s.routing.Closest(target, s.k)
		if len(contacts) == 0 {
			return Response{Kind: KindNotFound}
		}
		return Response{Kind: KindNodes, Nodes: toWireNodes(contacts)}

	default:
		// req.validate() already rejected unknown kinds; unreachable.
		return Response{Kind: KindNotFound}
	}
}

func toWireNodes(contacts []Contact) []wireNode {
	out := make([]wireNode, len(contacts))
	for i, c := range contacts {
		out[i] = toWireNode(c)
	}
	return out
}
