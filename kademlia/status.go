package kademlia

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// status.go is a read-only HTTP introspection surface (SPEC_FULL.md §4.9):
// it exposes the running node's identity, uptime, bucket occupancy
// histogram, and storage size for operators and for black-box test
// harnesses. It never mutates node state.

// StatusServer wraps a gin engine bound to a separate address from the RPC
// listener, so it can be disabled or exposed independently.
type StatusServer struct {
	node   *Node
	engine *gin.Engine
	srv    *http.Server
}

// NewStatusServer builds the introspection HTTP server for node. Call
// Serve to bind and start serving.
func NewStatusServer(node *Node) *StatusServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &StatusServer{node: node, engine: engine}
	engine.GET("/status", s.handleStatus)
	engine.GET("/contacts", s.handleContacts)
	return s
}

// Serve binds addr and blocks serving HTTP until the server is closed.
func (s *StatusServer) Serve(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.engine}
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the HTTP server down.
func (s *StatusServer) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

type statusResponse struct {
	ID              string `json:"id"`
	Addr            string `json:"addr"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	Contacts        int    `json:"contacts"`
	StoredKeys      int    `json:"stored_keys"`
	OriginKeys      int    `json:"origin_keys"`
	BucketOccupancy []int  `json:"bucket_occupancy"`
	GeneratedAt     string `json:"generated_at"`
}

func (s *StatusServer) handleStatus(c *gin.Context) {
	occ := s.node.RoutingTable().BucketOccupancy()
	c.JSON(http.StatusOK, statusResponse{
		ID:              s.node.Self().ID.String(),
		Addr:            s.node.Self().Address,
		UptimeSeconds:   int64(s.node.Uptime().Seconds()),
		Contacts:        len(s.node.RoutingTable().AllContacts()),
		StoredKeys:      s.node.Storage().Len(),
		OriginKeys:      len(s.node.originKeyList()),
		BucketOccupancy: occ[:],
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

type contactView struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

func (s *StatusServer) handleContacts(c *gin.Context) {
	all := s.node.RoutingTable().AllContacts()
	out := make([]contactView, len(all))
	for i, ct := range all {
		out[i] = contactView{ID: ct.ID.String(), Addr: ct.Address}
	}
	c.JSON(http.StatusOK, out)
}
