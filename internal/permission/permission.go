// Package permission answers "does this player hold this node" for the chat
// pipeline. Nodes are dotted strings such as chatty.chat.global.
package permission

import (
	"strings"
	"sync"
)

// Oracle is the permission collaborator consumed by the pipeline. Players
// are identified by their stable name.
type Oracle interface {
	HasPermission(player, node string) bool
}

// Any reports whether the player holds at least one of the nodes.
func Any(o Oracle, player string, nodes ...string) bool {
	for _, n := range nodes {
		if o.HasPermission(player, n) {
			return true
		}
	}
	return false
}

// DefaultGroup is assigned to players with no explicit group.
const DefaultGroup = "default"

// Group is a named list of nodes. A node ending in ".*" grants everything
// below it, "*" grants everything, and a leading "-" revokes.
type Group struct {
	Nodes    []string `mapstructure:"nodes"`
	Inherits []string `mapstructure:"inherits"`
}

// Groups is an Oracle backed by configured groups. Group membership is
// assigned per player at join time.
type Groups struct {
	mu      sync.RWMutex
	groups  map[string]Group
	members map[string]string
}

// NewGroups creates an oracle over the given group table.
func NewGroups(groups map[string]Group) *Groups {
	g := &Groups{members: make(map[string]string)}
	g.SetGroups(groups)
	return g
}

// SetGroups replaces the group table, typically after a config reload.
func (g *Groups) SetGroups(groups map[string]Group) {
	cp := make(map[string]Group, len(groups))
	for name, grp := range groups {
		cp[strings.ToLower(name)] = grp
	}
	g.mu.Lock()
	g.groups = cp
	g.mu.Unlock()
}

// Assign places a player in a group. An empty group resets to the default.
func (g *Groups) Assign(player, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if group == "" {
		delete(g.members, key(player))
		return
	}
	g.members[key(player)] = strings.ToLower(group)
}

// Forget drops the membership record of a departed player.
func (g *Groups) Forget(player string) {
	g.mu.Lock()
	delete(g.members, key(player))
	g.mu.Unlock()
}

// GroupOf returns the group a player currently belongs to.
func (g *Groups) GroupOf(player string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if grp, ok := g.members[key(player)]; ok {
		return grp
	}
	return DefaultGroup
}

func (g *Groups) HasPermission(player, node string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	grp, ok := g.members[key(player)]
	if !ok {
		grp = DefaultGroup
	}
	granted, _ := g.resolve(grp, strings.ToLower(node), make(map[string]bool))
	return granted
}

// resolve walks a group and its parents. The first group that mentions the
// node decides; explicit revocation beats any grant in the same group.
func (g *Groups) resolve(name, node string, seen map[string]bool) (granted, decided bool) {
	if seen[name] {
		return false, false
	}
	seen[name] = true

	grp, ok := g.groups[name]
	if !ok {
		return false, false
	}

	for _, n := range grp.Nodes {
		if strings.HasPrefix(n, "-") && Match(strings.ToLower(n[1:]), node) {
			return false, true
		}
	}
	for _, n := range grp.Nodes {
		if !strings.HasPrefix(n, "-") && Match(strings.ToLower(n), node) {
			return true, true
		}
	}
	for _, parent := range grp.Inherits {
		if granted, decided := g.resolve(strings.ToLower(parent), node, seen); decided {
			return granted, true
		}
	}
	return false, false
}

// Match reports whether pattern grants node.
func Match(pattern, node string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		base := strings.TrimSuffix(pattern, ".*")
		return node == base || strings.HasPrefix(node, base+".")
	default:
		return pattern == node
	}
}

func key(player string) string { return strings.ToLower(player) }

// Static is a fixed per-player node table, handy for tools and tests.
// Keys are lower-case player names.
type Static map[string][]string

func (s Static) HasPermission(player, node string) bool {
	for _, n := range s[key(player)] {
		if Match(n, node) {
			return true
		}
	}
	return false
}
