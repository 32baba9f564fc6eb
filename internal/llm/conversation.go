package llm

import (
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Conversations keeps chat histories keyed by conversation id. The least
// recently used conversations are evicted once the limit is reached.
type Conversations struct {
	mu    sync.Mutex
	cache *lru.Cache[string, []Message]
}

// NewConversations creates a store holding at most limit conversations.
func NewConversations(limit int) *Conversations {
	if limit <= 0 {
		limit = 500
	}
	c, _ := lru.New[string, []Message](limit)
	return &Conversations{cache: c}
}

// NewID returns a fresh conversation id.
func NewID() string { return uuid.NewString() }

// History returns a copy of the conversation's turns. Unknown ids have none.
func (c *Conversations) History(id string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, _ := c.cache.Get(id)
	return append([]Message(nil), h...)
}

// Append adds turns to the conversation, creating it if needed.
func (c *Conversations) Append(id string, msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, _ := c.cache.Get(id)
	next := make([]Message, 0, len(h)+len(msgs))
	next = append(next, h...)
	next = append(next, msgs...)
	c.cache.Add(id, next)
}

// Len returns the number of stored conversations.
func (c *Conversations) Len() int {
	return c.cache.Len()
}
