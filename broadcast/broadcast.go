// Package broadcast fans one encoded frame out to every participant of a room.
package broadcast

// Participant is a connection the room can push frames to. Send must not block.
type Participant interface {
	ID() string
	Send(frame []byte)
}

// Group keeps participants in join order. Like the room that owns it, it is
// driven from a single goroutine and does no locking.
type Group struct {
	members map[string]Participant
	order   []string
}

func NewGroup() *Group {
	return &Group{members: make(map[string]Participant)}
}

// Add registers p; adding the same id twice is a no-op.
func (g *Group) Add(p Participant) bool {
	if _, exists := g.members[p.ID()]; exists {
		return false
	}
	g.members[p.ID()] = p
	g.order = append(g.order, p.ID())
	return true
}

// Remove drops the participant with id and reports whether it was present.
func (g *Group) Remove(id string) bool {
	if _, exists := g.members[id]; !exists {
		return false
	}
	delete(g.members, id)
	for i, other := range g.order {
		if other == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

func (g *Group) Has(id string) bool {
	_, exists := g.members[id]
	return exists
}

func (g *Group) Len() int {
	return len(g.members)
}

// Broadcast sends frame to everyone, in join order.
func (g *Group) Broadcast(frame []byte) {
	for _, id := range g.order {
		g.members[id].Send(frame)
	}
}

