package chat

import (
	"sync"

	"github.com/example/sportsedu-client/domain/chat"
)

// Entry is one rendered log line.
type Entry struct {
	Message chat.Message
	Mine    bool
}

// Log is the ordered message list of one panel: history first, then live messages in receipt order.
// Only the panel's consumer goroutine mutates it.
type Log struct {
	mu      sync.RWMutex
	viewer  int64
	entries []chat.Message
	ids     map[int64]struct{}
	changed chan struct{}
}

func newLog(viewer int64) *Log {
	return &Log{
		viewer:  viewer,
		ids:     make(map[int64]struct{}),
		changed: make(chan struct{}, 1),
	}
}

// seed installs the history. It is called once, before any live message is appended.
func (l *Log) seed(history []chat.Message) {
	l.mu.Lock()
	l.entries = append(l.entries[:0], history...)
	for _, msg := range history {
		if msg.HasID() {
			l.ids[msg.ID] = struct{}{}
		}
	}
	l.mu.Unlock()
	l.notify()
}

// append adds a live message. A message whose id is already present is dropped.
func (l *Log) append(msg chat.Message) bool {
	l.mu.Lock()
	if msg.HasID() {
		if _, dup := l.ids[msg.ID]; dup {
			l.mu.Unlock()
			return false
		}
		l.ids[msg.ID] = struct{}{}
	}
	l.entries = append(l.entries, msg)
	l.mu.Unlock()
	l.notify()
	return true
}

func (l *Log) notify() {
	select {
	case l.changed <- struct{}{}:
	default:
	}
}

// Changed signals after the log changes. Signals coalesce.
func (l *Log) Changed() <-chan struct{} {
	return l.changed
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Messages returns a snapshot of the messages.
func (l *Log) Messages() []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]chat.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Entries returns a snapshot with each message marked as the viewer's own or not.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, msg := range l.entries {
		out[i] = Entry{Message: msg, Mine: msg.SenderID == l.viewer}
	}
	return out
}
