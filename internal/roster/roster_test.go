package roster

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterJoinOrder(t *testing.T) {
	r := New()
	a := Player{ID: uuid.New(), Name: "Alex"}
	b := Player{ID: uuid.New(), Name: "Steve"}
	c := Player{ID: uuid.New(), Name: "Herobrine"}
	r.Add(a)
	r.Add(b)
	r.Add(c)

	require.True(t, r.Remove(b.ID))
	assert.False(t, r.Remove(b.ID))
	r.Add(b)

	names := []string{}
	for _, p := range r.Online() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Alex", "Herobrine", "Steve"}, names)
	assert.Equal(t, 3, r.Count())
}

func TestRosterLookupAndMove(t *testing.T) {
	r := New()
	id := uuid.New()
	r.Add(Player{ID: id, Name: "Steve"})

	p, ok := r.ByName("steve")
	require.True(t, ok)
	assert.Equal(t, id, p.ID)

	pos := Position{World: "nether", X: 1, Y: 2, Z: 3}
	require.True(t, r.Move(id, pos))
	p, _ = r.Get(id)
	assert.Equal(t, pos, p.Position)

	assert.False(t, r.Move(uuid.New(), pos))
	_, ok = r.ByName("alex")
	assert.False(t, ok)
}

func TestDistanceSquared(t *testing.T) {
	a := Position{X: 0, Y: 0, Z: 0}
	b := Position{X: 3, Y: 4, Z: 0}
	assert.Equal(t, 25.0, a.DistanceSquared(b))
}
