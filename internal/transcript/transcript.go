package transcript

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/harunnryd/tyson/internal/model/contract"

	"github.com/oklog/ulid/v2"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Entry is one conversation record. Tool-role entries carry the ToolCallID of
// the assistant request that produced them; assistant entries that requested
// tools carry the requests themselves.
type Entry struct {
	ID         string               `json:"id"`
	Timestamp  time.Time            `json:"ts"`
	Role       Role                 `json:"role"`
	Content    string               `json:"content"`
	Name       string               `json:"name,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	ToolCalls  []*contract.ToolCall `json:"tool_calls,omitempty"`
}

// NewEntry mints an entry with a fresh ULID and a UTC timestamp.
func NewEntry(role Role, content string) Entry {
	return Entry{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		Role:      role,
		Content:   content,
	}
}

// Transcript is the ordered conversation record. Insertion order is
// conversation order; duplicate content is legal. The conversation loop is
// the sole mutator during a turn; the mutex only guards against concurrent
// readers (snapshots, persistence) observing a half-applied append.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

func New() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Append(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
}

// Clear empties the transcript entirely, including any system entry. The
// caller re-adds standing system instructions afterwards if it wants them.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns an ordered copy safe to hand to an in-flight completion
// request while the loop keeps appending.
func (t *Transcript) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Messages converts the transcript into the completion wire shape.
func (t *Transcript) Messages() []contract.Message {
	snapshot := t.Snapshot()
	messages := make([]contract.Message, 0, len(snapshot))
	for _, e := range snapshot {
		messages = append(messages, contract.Message{
			Role:       string(e.Role),
			Content:    e.Content,
			Name:       e.Name,
			ToolCallID: e.ToolCallID,
			ToolCalls:  e.ToolCalls,
		})
	}
	return messages
}

// Serialize renders the ordered entries as indented JSON, human-inspectable.
func (t *Transcript) Serialize() ([]byte, error) {
	snapshot := t.Snapshot()
	return json.MarshalIndent(snapshot, "", "  ")
}

// Deserialize replaces the current transcript wholesale. Nothing is merged.
func (t *Transcript) Deserialize(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = entries
	return nil
}
