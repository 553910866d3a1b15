// Package roster tracks the players currently online on this node, in the
// order they joined.
package roster

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PlayerID is the per-session identity issued when a player connects.
type PlayerID = uuid.UUID

// Position is a point in a named world.
type Position struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// DistanceSquared returns the squared distance between two positions. It is
// only meaningful when both share a world.
func (p Position) DistanceSquared(o Position) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

// Player is a snapshot of an online player. Name is the stable identity
// used for permissions, storage and cooldowns.
type Player struct {
	ID       PlayerID
	Name     string
	Position Position
}

// Roster is the set of online players.
type Roster struct {
	mu     sync.RWMutex
	order  []PlayerID
	byID   map[PlayerID]*Player
	byName map[string]PlayerID
}

// New returns an empty roster.
func New() *Roster {
	return &Roster{
		byID:   make(map[PlayerID]*Player),
		byName: make(map[string]PlayerID),
	}
}

// Add registers a player. Re-adding an existing ID replaces its snapshot
// but keeps its join position.
func (r *Roster) Add(p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	cp := p
	r.byID[p.ID] = &cp
	r.byName[strings.ToLower(p.Name)] = p.ID
}

// Remove drops a player and reports whether it was online.
func (r *Roster) Remove(id PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	if r.byName[strings.ToLower(p.Name)] == id {
		delete(r.byName, strings.ToLower(p.Name))
	}
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Move updates a player's position.
func (r *Roster) Move(id PlayerID, pos Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if ok {
		p.Position = pos
	}
	return ok
}

// Get returns a snapshot of the player with the given ID.
func (r *Roster) Get(id PlayerID) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// ByName finds an online player by name, case-insensitively.
func (r *Roster) ByName(name string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Player{}, false
	}
	return *r.byID[id], true
}

// Online returns snapshots of every online player in join order.
func (r *Roster) Online() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// Count returns the number of online players.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
