package runtime

import (
	"context"
	"log/slog"
	"sodeclick-chat/contract"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/event"
	"sort"
	"sync"
	"time"
)

type Set map[string]struct{}

func (s Set) add(v string) { s[v] = struct{}{} }

func (s Set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s Set) keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Connection is one live websocket session bound to a user.
type Connection struct {
	ID          string
	UserID      string
	DisplayName string
	User        domain.User
	Rooms       Set
	Sink        contract.EventSink
}

// PresenceEntry exists as long as the user has at least one connection.
type PresenceEntry struct {
	ConnectionIDs Set
	LastActiveAt  time.Time
	DisplayName   string
}

// PresenceRegistry is the single in-memory source of truth for who is
// connected and which connection joined which address.
type PresenceRegistry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	now         func() time.Time
	connections map[string]*Connection    // connection id -> connection
	presence    map[string]*PresenceEntry // user id -> presence
	addresses   map[string]Set            // address -> connection ids
}

func NewPresenceRegistry(log *slog.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		log:         log,
		now:         time.Now,
		connections: make(map[string]*Connection),
		presence:    make(map[string]*PresenceEntry),
		addresses:   make(map[string]Set),
	}
}

// Run keeps the registry alive until the context ends, then closes every
// sink so that connection writers terminate.
func (r *PresenceRegistry) Run(ctx context.Context) error {
	<-ctx.Done()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.connections {
		c.Sink.Close()
	}
	r.log.Info("Presence registry stopped", "connections", len(r.connections))
	r.connections = make(map[string]*Connection)
	r.presence = make(map[string]*PresenceEntry)
	r.addresses = make(map[string]Set)
	return nil
}

// RegisterConnection binds a connection to a user and refreshes the user
// record of an already bound connection. It returns true when this is the
// first live connection of the user.
func (r *PresenceRegistry) RegisterConnection(user domain.User, connectionID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.connections[connectionID]; ok {
		// Every join re-authenticates; role and tier may have changed since
		c.User = user
		c.DisplayName = user.DisplayName
	} else {
		r.connections[connectionID] = &Connection{
			ID:          connectionID,
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			User:        user,
			Rooms:       make(Set),
			Sink:        sink,
		}
	}
	entry, ok := r.presence[user.ID]
	if !ok {
		entry = &PresenceEntry{ConnectionIDs: make(Set)}
		r.presence[user.ID] = entry
	}
	first := len(entry.ConnectionIDs) == 0
	entry.ConnectionIDs.add(connectionID)
	entry.DisplayName = user.DisplayName
	entry.LastActiveAt = r.now()
	return first
}

// DeregisterConnection forgets a connection and every membership it held.
// It returns true when the user has no live connection left.
func (r *PresenceRegistry) DeregisterConnection(userID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.connections[connectionID]; ok {
		for address := range c.Rooms {
			r.removeFromAddress(address, connectionID)
		}
		delete(r.connections, connectionID)
	}
	entry, ok := r.presence[userID]
	if !ok {
		return false
	}
	delete(entry.ConnectionIDs, connectionID)
	if len(entry.ConnectionIDs) > 0 {
		return false
	}
	delete(r.presence, userID)
	return true
}

func (r *PresenceRegistry) AddMembership(address, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[connectionID]
	if !ok {
		return
	}
	c.Rooms.add(address)
	members, ok := r.addresses[address]
	if !ok {
		members = make(Set)
		r.addresses[address] = members
	}
	members.add(connectionID)
}

// RemoveMembership detaches one connection from an address. It returns true
// while the same user is still present there through another connection.
func (r *PresenceRegistry) RemoveMembership(address, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[connectionID]
	if !ok {
		return false
	}
	delete(c.Rooms, address)
	r.removeFromAddress(address, connectionID)
	return r.isPresentLocked(address, c.UserID)
}

// MoveMemberships switches every connection of the user joined to from over
// to to. It returns the number of connections moved.
func (r *PresenceRegistry) MoveMemberships(userID, from, to string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.presence[userID]
	if !ok {
		return 0
	}
	moved := 0
	for connectionID := range entry.ConnectionIDs {
		c, ok := r.connections[connectionID]
		if !ok || !c.Rooms.has(from) {
			continue
		}
		delete(c.Rooms, from)
		r.removeFromAddress(from, connectionID)
		c.Rooms.add(to)
		members, ok := r.addresses[to]
		if !ok {
			members = make(Set)
			r.addresses[to] = members
		}
		members.add(connectionID)
		moved++
	}
	return moved
}

func (r *PresenceRegistry) removeFromAddress(address, connectionID string) {
	members, ok := r.addresses[address]
	if !ok {
		return
	}
	delete(members, connectionID)
	// No empty sets are left behind
	if len(members) == 0 {
		delete(r.addresses, address)
	}
}

// Snapshot lists distinct users present on an address, ordered by display
// name then user id.
func (r *PresenceRegistry) Snapshot(address string) []event.RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(Set)
	var roster []event.RosterEntry
	for connectionID := range r.addresses[address] {
		c, ok := r.connections[connectionID]
		if !ok || seen.has(c.UserID) {
			continue
		}
		seen.add(c.UserID)
		roster = append(roster, event.RosterEntry{UserID: c.UserID, DisplayName: c.DisplayName})
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].DisplayName != roster[j].DisplayName {
			return roster[i].DisplayName < roster[j].DisplayName
		}
		return roster[i].UserID < roster[j].UserID
	})
	return roster
}

// Connection returns a copy of the connection state.
func (r *PresenceRegistry) Connection(connectionID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[connectionID]
	if !ok {
		return Connection{}, false
	}
	rooms := make(Set, len(c.Rooms))
	for a := range c.Rooms {
		rooms.add(a)
	}
	cp := *c
	cp.Rooms = rooms
	return cp, true
}

// JoinedAddresses lists the addresses a connection joined, sorted.
func (r *PresenceRegistry) JoinedAddresses(connectionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[connectionID]
	if !ok {
		return nil
	}
	return c.Rooms.keys()
}

func (r *PresenceRegistry) HasJoined(connectionID, address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[connectionID]
	return ok && c.Rooms.has(address)
}

// Touch refreshes the user's last activity.
func (r *PresenceRegistry) Touch(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[connectionID]
	if !ok {
		return
	}
	if entry, ok := r.presence[c.UserID]; ok {
		entry.LastActiveAt = r.now()
	}
}

func (r *PresenceRegistry) SinksForAddress(address string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for connectionID := range r.addresses[address] {
		if c, ok := r.connections[connectionID]; ok {
			sinks = append(sinks, c.Sink)
		}
	}
	return sinks
}

// SinksForUser backs the personal channel: every connection of the user.
func (r *PresenceRegistry) SinksForUser(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.presence[userID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connectionID := range entry.ConnectionIDs {
		if c, ok := r.connections[connectionID]; ok {
			sinks = append(sinks, c.Sink)
		}
	}
	return sinks
}

func (r *PresenceRegistry) SinkForConnection(connectionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[connectionID]
	if !ok {
		return nil, false
	}
	return c.Sink, true
}

// IsPresent reports whether the user has a connection joined to the address.
func (r *PresenceRegistry) IsPresent(address, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isPresentLocked(address, userID)
}

func (r *PresenceRegistry) isPresentLocked(address, userID string) bool {
	for connectionID := range r.addresses[address] {
		if c, ok := r.connections[connectionID]; ok && c.UserID == userID {
			return true
		}
	}
	return false
}

func (r *PresenceRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.presence[userID]
	return ok
}

// Users lists online user ids, sorted.
func (r *PresenceRegistry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(Set, len(r.presence))
	for id := range r.presence {
		users.add(id)
	}
	return users.keys()
}

// Counts feeds the presence gauges.
func (r *PresenceRegistry) Counts() (users, connections, addresses int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.presence), len(r.connections), len(r.addresses)
}
