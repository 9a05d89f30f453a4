// Package group owns group entities: membership, the append-only message
// log, and the expiring collection keyed by group id. The store never
// consults the connection registry; validating that members are actually
// online is the router's job.
package group

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"pqrelay/domain/event"
)

// Message is one encrypted payload appended to a group log. The payload is
// an opaque base64 blob; only members hold the key.
type Message struct {
	Sender  string
	Payload string
	At      time.Time
}

type Group struct {
	ID        string
	Name      string
	Admin     string
	CreatedAt time.Time

	mu       sync.RWMutex
	members  []string
	messages []Message
}

// NewGroup builds a group whose member set is members ∪ {admin}. The id is
// derived from name, admin and creation time, so it is unpredictable but
// not guaranteed globally unique; the collision probability is accepted.
func NewGroup(name, admin string, members []string, now time.Time) *Group {
	g := &Group{
		Name:      name,
		Admin:     admin,
		CreatedAt: now,
	}
	for _, m := range members {
		if !contains(g.members, m) {
			g.members = append(g.members, m)
		}
	}
	if !contains(g.members, admin) {
		g.members = append(g.members, admin)
	}
	g.ID = deriveID(name, admin, now)
	return g
}

func deriveID(name, admin string, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d", name, admin, now.UnixNano())))
	return hex.EncodeToString(sum[:])[:16]
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (g *Group) AddMember(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if contains(g.members, name) {
		return false
	}
	g.members = append(g.members, name)
	return true
}

// RemoveMember drops a member from the group. The admin is unremovable:
// the call fails without mutating the member set.
func (g *Group) RemoveMember(name string) bool {
	if name == g.Admin {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m == name {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return true
		}
	}
	return false
}

func (g *Group) IsMember(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return contains(g.members, name)
}

func (g *Group) IsAdmin(name string) bool {
	return name == g.Admin
}

// Members returns a point-in-time copy, safe to enumerate during fan-out
// while concurrent membership changes land.
func (g *Group) Members() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.members))
	copy(out, g.members)
	return out
}

// AppendMessage adds to the log. No size cap at this layer; bounding the
// log is an operational concern of the transport limits.
func (g *Group) AppendMessage(m Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, m)
}

func (g *Group) Messages() []Message {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Message, len(g.messages))
	copy(out, g.messages)
	return out
}

func (g *Group) Descriptor() event.GroupDescriptor {
	return event.GroupDescriptor{
		GroupID:   g.ID,
		Name:      g.Name,
		Admin:     g.Admin,
		Members:   g.Members(),
		CreatedAt: g.CreatedAt.Unix(),
	}
}
