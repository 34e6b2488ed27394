package client

import (
	"sort"
	"sync"

	"github.com/vovakirdan/roomchat/internal/proto"
)

// View merges the one-time historical fetch with live-pushed messages into
// a single sequence: deduplicated by id, sorted ascending by id. A message
// delivered both over the live channel and by a later history refetch
// appears exactly once. Safe for concurrent use: live-channel callbacks
// race with fallback request completions.
type View struct {
	mu      sync.Mutex
	history []proto.Message
	live    []proto.Message
	seen    map[string]struct{}
}

// NewView creates an empty view model.
func NewView() *View {
	return &View{seen: make(map[string]struct{})}
}

// SetHistory replaces the historical message set.
func (v *View) SetHistory(msgs []proto.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.history = append(v.history[:0], msgs...)
	v.seen = make(map[string]struct{}, len(v.history)+len(v.live))
	for _, m := range v.history {
		v.seen[m.ID] = struct{}{}
	}
	for _, m := range v.live {
		v.seen[m.ID] = struct{}{}
	}
}

// Append adds a live message unless its id is already present in either
// collection. Returns true when the message was new.
func (v *View) Append(msg proto.Message) bool {
	if msg.ID == "" {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, dup := v.seen[msg.ID]; dup {
		return false
	}
	v.seen[msg.ID] = struct{}{}
	v.live = append(v.live, msg)
	return true
}

// Messages returns the displayed sequence: history ∪ live, deduplicated by
// id, ascending by id.
func (v *View) Messages() []proto.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]proto.Message, 0, len(v.history)+len(v.live))
	emitted := make(map[string]struct{}, cap(out))
	for _, m := range v.history {
		if _, dup := emitted[m.ID]; dup {
			continue
		}
		emitted[m.ID] = struct{}{}
		out = append(out, m)
	}
	for _, m := range v.live {
		if _, dup := emitted[m.ID]; dup {
			continue
		}
		emitted[m.ID] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports how many distinct messages the view holds.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
