// Package notify keeps the user's notification list and turns hub
// notification events into list entries.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/storage"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/metrics"
)

const (
	// DefaultCapacity is the number of notifications kept before the oldest
	// are dropped.
	DefaultCapacity = 100

	// StorageKey is the store key the list is persisted under.
	StorageKey = "notifications"

	defaultTitle = "New message"
)

// Notifier raises a platform notification. Failures are logged and never
// affect the list.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n model.Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

// State is a snapshot of the list, newest first.
type State struct {
	Items       []model.Notification `json:"items"`
	UnreadCount int                  `json:"unread_count"`
}

// Center is the bounded notification list. The unread count always equals
// the number of unread items.
type Center struct {
	capacity int
	store    storage.Store
	notifier Notifier
	logger   *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	items    []model.Notification
	unread   int
	version  uint64
	watchers map[uint64]func(State)
	nextID   uint64

	persistMu sync.Mutex
	persisted uint64
}

// CenterOption configures a Center.
type CenterOption func(*Center)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) CenterOption {
	return func(c *Center) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithStore persists the list to store under StorageKey.
func WithStore(store storage.Store) CenterOption {
	return func(c *Center) { c.store = store }
}

// WithNotifier raises a platform notification for every added item.
func WithNotifier(n Notifier) CenterOption {
	return func(c *Center) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) CenterOption {
	return func(c *Center) { c.logger = logger.OrNop(log).Component("notify") }
}

// NewCenter creates an empty center.
func NewCenter(opts ...CenterOption) *Center {
	c := &Center{
		capacity: DefaultCapacity,
		logger:   logger.NewNop(),
		now:      time.Now,
		watchers: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the list with the persisted one. A missing entry is not an
// error.
func (c *Center) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	raw, err := c.store.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var items []model.Notification
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return err
	}
	if len(items) > c.capacity {
		items = items[:c.capacity]
	}

	c.mu.Lock()
	c.items = items
	c.unread = countUnread(items)
	c.version++
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(st)
	c.logger.Debug("restored notifications", zap.Int("count", len(items)), zap.Int("unread", st.UnreadCount))
	return nil
}

// Add prepends n and returns its id. ID, Timestamp, Title, Icon and Color
// are filled in when empty, an unknown Type becomes info, and Read is
// always reset.
func (c *Center) Add(ctx context.Context, n model.Notification) string {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Title == "" {
		n.Title = defaultTitle
	}
	if !n.Type.Valid() {
		n.Type = model.NotificationInfo
	}
	if n.Icon == "" {
		n.Icon = n.Type.Icon()
	}
	if n.Color == "" {
		n.Color = n.Type.Color()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = c.now()
	}
	n.Read = false

	c.mu.Lock()
	c.items = append([]model.Notification{n}, c.items...)
	c.unread++
	if len(c.items) > c.capacity {
		c.unread -= countUnread(c.items[c.capacity:])
		c.items = c.items[:c.capacity:c.capacity]
	}
	c.version++
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.commit(ctx, st)

	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, n); err != nil {
			c.logger.Warn("platform notification failed", zap.String("id", n.ID), zap.Error(err))
		}
	}
	return n.ID
}

// MarkAsRead marks one item read, reporting whether it was unread.
func (c *Center) MarkAsRead(ctx context.Context, id string) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 || c.items[i].Read {
		c.mu.Unlock()
		return false
	}
	c.items[i].Read = true
	c.unread--
	c.version++
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.commit(ctx, st)
	return true
}

// MarkAllAsRead marks every item read.
func (c *Center) MarkAllAsRead(ctx context.Context) {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].Read = true
	}
	c.unread = 0
	c.version++
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.commit(ctx, st)
}

// Remove deletes one item, reporting whether it existed.
func (c *Center) Remove(ctx context.Context, id string) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	if !c.items[i].Read {
		c.unread--
	}
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	c.version++
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.commit(ctx, st)
	return true
}

// Clear drops every item.
func (c *Center) Clear(ctx context.Context) {
	c.mu.Lock()
	c.items = nil
	c.unread = 0
	c.version++
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.commit(ctx, st)
}

// Snapshot returns a copy of the list.
func (c *Center) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Get returns the item with id.
func (c *Center) Get(id string) (model.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return model.Notification{}, false
	}
	return c.items[i], true
}

// UnreadCount returns the number of unread items.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Watch calls fn with a snapshot after every change until cancel is called.
func (c *Center) Watch(fn func(State)) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *Center) indexLocked(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Center) snapshotLocked() State {
	items := make([]model.Notification, len(c.items))
	copy(items, c.items)
	return State{Items: items, UnreadCount: c.unread}
}

func (c *Center) commit(ctx context.Context, st State) {
	c.persist(ctx)
	c.publish(st)
}

func (c *Center) publish(st State) {
	metrics.NotificationsUnread.Set(float64(st.UnreadCount))

	c.mu.Lock()
	fns := make([]func(State), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// persist writes the current list unless that version is already stored.
func (c *Center) persist(ctx context.Context) {
	if c.store == nil {
		return
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	current := c.snapshotLocked()
	version := c.version
	c.mu.Unlock()

	if version <= c.persisted {
		return
	}

	data, err := json.Marshal(current.Items)
	if err != nil {
		c.logger.Error("failed to encode notifications", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, StorageKey, string(data)); err != nil {
		c.logger.Warn("failed to persist notifications", zap.Error(err))
		return
	}
	c.persisted = version
}

func countUnread(items []model.Notification) int {
	n := 0
	for i := range items {
		if !items[i].Read {
			n++
		}
	}
	return n
}
