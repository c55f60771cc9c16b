package status

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/earnx/earnx/internal/module/invest"
	"github.com/earnx/earnx/pkg/logger"
)

// Kind is the entry severity shown to the user
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

const (
	// DefaultAutoDismiss is how long success entries stay visible
	DefaultAutoDismiss = 5 * time.Second

	maxEntriesPerAddress = 20
)

// Entry is one transaction status message
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Type        Kind      `json:"type"`
	Message     string    `json:"message"`
	TxHash      string    `json:"tx_hash,omitempty"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Board keeps the status messages of every connected wallet in memory.
// Success entries expire after the auto-dismiss delay; the rest stay until dismissed.
type Board struct {
	mu          sync.Mutex
	entries     map[string][]Entry
	explorer    func(hash string) string
	autoDismiss time.Duration
	now         func() time.Time
	logger      *logger.Logger
}

// NewBoard creates a board. explorer turns a tx hash into a block explorer link and may be nil.
func NewBoard(explorer func(hash string) string, autoDismiss time.Duration, log *logger.Logger) *Board {
	if autoDismiss <= 0 {
		autoDismiss = DefaultAutoDismiss
	}
	return &Board{
		entries:     make(map[string][]Entry),
		explorer:    explorer,
		autoDismiss: autoDismiss,
		now:         time.Now,
		logger:      log.WithField("component", "status_board"),
	}
}

// Push records a message for address
func (b *Board) Push(address string, kind Kind, message, txHash string) Entry {
	entry := Entry{
		ID:        uuid.New(),
		Type:      kind,
		Message:   message,
		TxHash:    txHash,
		CreatedAt: b.now(),
	}
	if txHash != "" && b.explorer != nil {
		entry.ExplorerURL = b.explorer(txHash)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := strings.ToLower(address)
	list := append(b.prune(b.entries[k]), entry)
	if len(list) > maxEntriesPerAddress {
		list = list[len(list)-maxEntriesPerAddress:]
	}
	b.entries[k] = list

	return entry
}

// List returns the live entries for address, newest first
func (b *Board) List(address string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := strings.ToLower(address)
	live := b.prune(b.entries[k])
	if len(live) == 0 {
		delete(b.entries, k)
		return []Entry{}
	}
	b.entries[k] = live

	out := make([]Entry, len(live))
	copy(out, live)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Dismiss removes one entry; it reports whether the entry existed
func (b *Board) Dismiss(address string, id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := strings.ToLower(address)
	list := b.entries[k]
	for i, e := range list {
		if e.ID == id {
			b.entries[k] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Notify implements invest.Observer
func (b *Board) Notify(investor string, n invest.Notice) {
	b.Push(investor, Kind(n.Kind), n.Message, n.TxHash)
}

// StateChanged implements invest.Observer
func (b *Board) StateChanged(investor string, state invest.State) {
	b.logger.Debug("investment state changed", "investor", investor, "state", state)
}

// prune drops expired success entries; callers hold the lock
func (b *Board) prune(list []Entry) []Entry {
	cutoff := b.now().Add(-b.autoDismiss)
	live := list[:0:0]
	for _, e := range list {
		if e.Type == KindSuccess && !e.CreatedAt.After(cutoff) {
			continue
		}
		live = append(live, e)
	}
	return live
}
