package streamhttp

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type endpointKind int

const (
	endpointPrimary endpointKind = iota
	endpointCutover
)

func (k endpointKind) String() string {
	if k == endpointCutover {
		return "cutover"
	}
	return "primary"
}

// session is one live client binding: the SDK transport carrying its
// streams, the server session, and the idle-accounting state. A
// session only ever answers requests on the endpoint that created it.
type session struct {
	id       string
	endpoint endpointKind
	// token is the bearer token the session was authenticated under at
	// creation. Later requests check against it, not the live config.
	token     string
	createdAt time.Time

	transport *mcp.StreamableServerTransport
	srvSess   *mcp.ServerSession

	lastActive atomic.Int64 // unix nanos

	destroyOnce sync.Once
}

func (s *session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *session) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

// destroy tears the session down exactly once. Closing the server
// session closes the transport and wakes any hanging streams. The
// caller removes the table entry.
func (s *session) destroy() {
	s.destroyOnce.Do(func() {
		if s.srvSess != nil {
			_ = s.srvSess.Close()
		}
	})
}
