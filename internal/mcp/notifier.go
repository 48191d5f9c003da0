package mcpserver

import (
	"context"
	"log"
	"sync"

	"github.com/mark3labs/mcp-go/server"
)

// Notifier is a service.EventEmitter that broadcasts events to every
// connected MCP client as "notifications/<event>". Events emitted before a
// server is attached are only logged.
type Notifier struct {
	mu  sync.RWMutex
	srv *server.MCPServer
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) attach(srv *server.MCPServer) {
	n.mu.Lock()
	n.srv = srv
	n.mu.Unlock()
}

func (n *Notifier) Emit(_ context.Context, event string, data any) {
	n.mu.RLock()
	srv := n.srv
	n.mu.RUnlock()
	if srv == nil {
		log.Printf("[EVENT] %s %v", event, data)
		return
	}
	params, err := toParams(data)
	if err != nil {
		log.Printf("[MCP] notification %s: %v", event, err)
		return
	}
	srv.SendNotificationToAllClients("notifications/"+event, params)
}
