// Package status serves a tiny read-only admin endpoint over the
// engine's live state: active stream counts per client and the most
// recent audit entries (SPEC_FULL.md §12). It uses valyala/fasthttp for
// the listener and json-iterator/go for the response body, mirroring
// the low-allocation HTTP stack the rest of the retrieved pack reaches
// for on hot admin/status paths.
package status

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/nimbusd/nimbusd/internal/rpc/audit"
	"github.com/nimbusd/nimbusd/pkg/nlog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ClientSnapshot is one row of /status/clients's client table.
type ClientSnapshot struct {
	Client       string `json:"client"`
	Identity     string `json:"identity,omitempty"`
	ActiveStreams int   `json:"active_streams"`
}

// Source is the narrow read-only view the status server needs; the
// daemon's client registry implements it directly rather than this
// package depending on internal/rpc.
type Source interface {
	Snapshot() []ClientSnapshot
}

// Server is the admin HTTP endpoint.
type Server struct {
	mu     sync.RWMutex
	src    Source
	audit  *audit.Log
	server *fasthttp.Server
}

func New(src Source, auditLog *audit.Log) *Server {
	s := &Server{src: src, audit: auditLog}
	s.server = &fasthttp.Server{
		Handler: s.handle,
		Name:    "nimbusd-status",
	}
	return s
}

// ListenAndServe blocks serving on addr until the listener fails or is
// closed.
func (s *Server) ListenAndServe(addr string) error {
	nlog.Infof("status: listening on %s", addr)
	return s.server.ListenAndServe(addr)
}

func (s *Server) Shutdown() error { return s.server.Shutdown() }

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/status/clients":
		s.handleClients(ctx)
	case "/status/audit":
		s.handleAudit(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleClients(ctx *fasthttp.RequestCtx) {
	rows := s.src.Snapshot()
	body, err := json.Marshal(rows)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (s *Server) handleAudit(ctx *fasthttp.RequestCtx) {
	if s.audit == nil {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	client := string(ctx.QueryArgs().Peek("client"))
	if client == "" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"error":"missing client query parameter"}`)
		return
	}
	entries, err := s.audit.Recent(client, 50)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	body, err := json.Marshal(entries)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
