package kernel

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sodove/aios-agent/internal/audit"
	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/llm"
	"github.com/sodove/aios-agent/internal/tool"
)

// Kernel is the agent daemon's single piece of shared mutable state. The
// clients, conversations and pending maps are guarded by mu; Provider,
// RateLimiter and Audit are set once by New and not guarded by mu (the
// RateLimiter has its own lock). Callers must never hold mu across a channel
// operation or a network call — acquire it, copy or mutate what's needed,
// release it, then do the blocking work.
type Kernel struct {
	mu sync.RWMutex

	clients       map[uuid.UUID]*ConnectedClient
	conversations map[uuid.UUID]*Conversation
	pending       map[uuid.UUID]chan bool

	Provider    llm.Provider
	RateLimiter *RateLimiter
	Audit       *audit.Sink
}

// New builds an empty Kernel. provider may be nil, in which case the
// agentic loop runs in echo mode.
func New(provider llm.Provider, rateLimiter *RateLimiter, sink *audit.Sink) *Kernel {
	return &Kernel{
		clients:       make(map[uuid.UUID]*ConnectedClient),
		conversations: make(map[uuid.UUID]*Conversation),
		pending:       make(map[uuid.UUID]chan bool),
		Provider:      provider,
		RateLimiter:   rateLimiter,
		Audit:         sink,
	}
}

// RegisterClient adds a newly handshaken client to the registry.
func (k *Kernel) RegisterClient(c *ConnectedClient) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.clients[c.ID] = c
}

// RemoveClient drops a client from the registry, typically on disconnect.
func (k *Kernel) RemoveClient(id uuid.UUID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.clients, id)
}

// FindClient returns a registered client of the given type, or nil if none
// is connected. When several match, which one is returned is not defined
// (map iteration order). Mirrors the original's single-confirm-client
// assumption: at most one Confirm-role client is expected at a time.
func (k *Kernel) FindClient(t ipc.ClientType) *ConnectedClient {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, c := range k.clients {
		if c.ClientType == t {
			return c
		}
	}
	return nil
}

// FindConfirmClient implements tool.PendingConfirms, returning the
// connected Confirm-role client (or a true nil interface value if none is
// connected — never a non-nil interface wrapping a nil pointer).
func (k *Kernel) FindConfirmClient() tool.ConfirmClient {
	c := k.FindClient(ipc.ClientConfirm)
	if c == nil {
		return nil
	}
	return c
}

// Broadcast sends env to every registered client of the given type,
// swallowing individual send errors since a disconnected observer should
// never interrupt the caller.
func (k *Kernel) Broadcast(t ipc.ClientType, env ipc.Envelope) {
	k.mu.RLock()
	clients := make([]*ConnectedClient, 0, len(k.clients))
	for _, c := range k.clients {
		if c.ClientType == t {
			clients = append(clients, c)
		}
	}
	k.mu.RUnlock()

	for _, c := range clients {
		_ = c.Send(env)
	}
}

// Conversation returns the conversation with id, creating it if absent.
func (k *Kernel) Conversation(id uuid.UUID) *Conversation {
	k.mu.Lock()
	defer k.mu.Unlock()
	conv, ok := k.conversations[id]
	if !ok {
		conv = &Conversation{ID: id}
		k.conversations[id] = conv
	}
	return conv
}

// AppendMessage appends msg to the conversation identified by
// conversationID under the kernel's write lock.
func (k *Kernel) AppendMessage(conversationID uuid.UUID, msg ipc.ChatMessage) {
	k.mu.Lock()
	defer k.mu.Unlock()
	conv, ok := k.conversations[conversationID]
	if !ok {
		conv = &Conversation{ID: conversationID}
		k.conversations[conversationID] = conv
	}
	conv.Append(msg)
}

// History returns a snapshot copy of the conversation's messages, safe to
// read without holding the kernel lock.
func (k *Kernel) History(conversationID uuid.UUID) []ipc.ChatMessage {
	k.mu.RLock()
	defer k.mu.RUnlock()
	conv, ok := k.conversations[conversationID]
	if !ok {
		return nil
	}
	out := make([]ipc.ChatMessage, len(conv.Messages))
	copy(out, conv.Messages)
	return out
}

// RegisterPendingConfirm inserts a fresh one-shot channel for actionID
// before any ConfirmRequest is sent to a client, so a reply racing the
// send can never be dropped for lack of a receiver.
func (k *Kernel) RegisterPendingConfirm(actionID uuid.UUID) chan bool {
	ch := make(chan bool, 1)
	k.mu.Lock()
	k.pending[actionID] = ch
	k.mu.Unlock()
	return ch
}

// ResolvePendingConfirm delivers approved to the channel registered for
// actionID, if one is still pending, and removes it from the table. It
// reports whether a pending entry was found.
func (k *Kernel) ResolvePendingConfirm(actionID uuid.UUID, approved bool) bool {
	k.mu.Lock()
	ch, ok := k.pending[actionID]
	if ok {
		delete(k.pending, actionID)
	}
	k.mu.Unlock()

	if !ok {
		return false
	}
	ch <- approved
	return true
}

// ForgetPendingConfirm removes actionID's entry without delivering a
// value, used on timeout so a late ConfirmResponse has nothing to deliver
// to.
func (k *Kernel) ForgetPendingConfirm(actionID uuid.UUID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.pending, actionID)
}

// Stats is a point-in-time snapshot of kernel occupancy, exposed for the
// loopback debug surface.
type Stats struct {
	ConnectedClients int            `json:"connected_clients"`
	ClientsByType    map[string]int `json:"clients_by_type"`
	Conversations    int            `json:"conversations"`
	PendingConfirms  int            `json:"pending_confirms"`
	ProviderName     string         `json:"provider_name"`
}

// Snapshot reports Stats under a single read lock.
func (k *Kernel) Snapshot() Stats {
	k.mu.RLock()
	defer k.mu.RUnlock()

	byType := make(map[string]int)
	for _, c := range k.clients {
		byType[string(c.ClientType)]++
	}

	provider := "none (echo mode)"
	if k.Provider != nil {
		provider = k.Provider.Name()
	}

	return Stats{
		ConnectedClients: len(k.clients),
		ClientsByType:    byType,
		Conversations:    len(k.conversations),
		PendingConfirms:  len(k.pending),
		ProviderName:     provider,
	}
}
