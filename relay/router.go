// Package relay is the protocol layer: it validates inbound events against
// the connection registry and the group store, and computes the exact set
// of outbound deliveries. The router owns no state of its own; registry and
// store are injected at construction and remain the sole owners of client
// and group state.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"pqrelay/contract"
	"pqrelay/domain/event"
	"pqrelay/domain/group"
	"pqrelay/errors"
	"pqrelay/observability"
	"pqrelay/registry"
)

type Router struct {
	log      *slog.Logger
	registry *registry.Registry
	groups   *group.Store
	stats    *observability.RelayStats
}

func New(log *slog.Logger, reg *registry.Registry, groups *group.Store, stats *observability.RelayStats) *Router {
	return &Router{log: log, registry: reg, groups: groups, stats: stats}
}

// Connect installs the session for a fresh connection handle. The client
// stays anonymous until its first register or key-publication event.
func (r *Router) Connect(handle string, sink contract.EventSink) {
	r.registry.Connect(handle, sink)
	r.stats.IncrConnections()
	r.log.Debug("client connected", "handle", handle)
}

// Disconnect tears the connection down: registry cleanup, a peer-left
// notice when the client had a name, and a presence rebroadcast.
func (r *Router) Disconnect(ctx context.Context, handle string) {
	name, hadName := r.registry.Remove(handle)
	if hadName {
		r.broadcast(ctx, event.Outbound{Event: event.UserDisconnected, Data: name})
	}
	r.log.Debug("client disconnected", "handle", handle, "name", name)
	r.broadcastUserList(ctx)
}

// Handle processes one inbound envelope from handle. A malformed payload
// is dropped with a warning; it never terminates the connection.
func (r *Router) Handle(ctx context.Context, handle string, env event.Envelope) {
	var err error
	switch env.Event {
	case event.RegisterUser:
		var d event.RegisterUserData
		if err = event.Decode(env.Data, &d); err == nil {
			r.handleRegister(ctx, handle, d)
		}
	case event.RequestPubKey:
		var d event.RequestPubKeyData
		if err = event.Decode(env.Data, &d); err == nil {
			r.handleRequestPubKey(ctx, handle, d)
		}
	case event.PubKey:
		var d event.PubKeyData
		if err = event.Decode(env.Data, &d); err == nil {
			r.handlePubKey(ctx, handle, d)
		}
	case event.SendKemCiphertext:
		var d event.SendKemCiphertextData
		if err = event.Decode(env.Data, &d); err == nil {
			r.handleKemCiphertext(ctx, handle, d)
		}
	case event.SendMessage:
		var d event.SendMessageData
		if err = event.Decode(env.Data, &d); err == nil {
			r.handleDirectMessage(ctx, handle, d)
		}
	case event.CreateGroup:
		var d event.CreateGroupData
		if err = event.Decode(env.Data, &d); err == nil {
			r.handleCreateGroup(ctx, handle, d)
		}
	case event.DistributeGroupKey:
		var d event.DistributeGroupKeyData
		if err = event.Decode(env.Data, &d); err == nil {
			r.handleDistributeGroupKey(ctx, handle, d)
		}
	case event.SendGroupMessage:
		var d event.SendGroupMessageData
		if err = event.Decode(env.Data, &d); err == nil {
			r.handleSendGroupMessage(ctx, handle, d)
		}
	case event.GetMyGroups:
		r.handleGetMyGroups(ctx, handle)
	default:
		r.log.Warn("unknown event", "event", env.Event, "handle", handle)
		return
	}
	if err != nil {
		r.log.Warn("malformed event dropped", "event", env.Event, "handle", handle, "error", err)
	}
}

func (r *Router) handleRegister(ctx context.Context, handle string, d event.RegisterUserData) {
	if err := r.registry.Register(handle, d.Name); err != nil {
		r.log.Info("registration rejected", "handle", handle, "name", d.Name)
		r.send(ctx, handle, event.Outbound{
			Event: event.RegistrationError,
			Data:  event.ErrorData{Message: "Username already taken"},
		})
		return
	}
	r.stats.IncrRegistrations()
	r.log.Info("user registered", "name", d.Name, "handle", handle)
	r.send(ctx, handle, event.Outbound{
		Event: event.RegistrationConfirmed,
		Data:  event.RegistrationConfirmedData{Username: d.Name},
	})
	r.broadcastUserList(ctx)
}

func (r *Router) handleRequestPubKey(ctx context.Context, handle string, d event.RequestPubKeyData) {
	targetHandle, ok := r.registry.LookupName(d.Username)
	if !ok {
		r.log.Info("pubkey request failed", "target", d.Username, "error", errors.ErrTargetNotFound)
		r.send(ctx, handle, event.Outbound{
			Event: event.PubKeyError,
			Data:  event.ErrorData{Message: fmt.Sprintf("User %s not found", d.Username)},
		})
		return
	}
	target, ok := r.registry.Get(targetHandle)
	if !ok || target.PubKey == "" {
		r.log.Info("pubkey request failed", "target", d.Username, "error", errors.ErrTargetHasNoKey)
		r.send(ctx, handle, event.Outbound{
			Event: event.PubKeyError,
			Data:  event.ErrorData{Message: fmt.Sprintf("User %s has no public key", d.Username)},
		})
		return
	}
	r.send(ctx, handle, event.Outbound{
		Event: event.PubKeyResponse,
		Data:  event.PubKeyResponseData{Username: d.Username, PubKeyB64: target.PubKey},
	})
}

func (r *Router) handlePubKey(ctx context.Context, handle string, d event.PubKeyData) {
	r.registry.UpsertKey(handle, d.Name, d.PubKey)
	r.broadcastUserList(ctx)

	// Hand the newcomer every other published key in one shot, so it can
	// initiate encapsulation with all existing peers without a request per
	// peer.
	r.send(ctx, handle, event.Outbound{
		Event: event.PeerPubKeys,
		Data:  r.registry.PeerKeys(handle),
	})
}

func (r *Router) handleKemCiphertext(ctx context.Context, handle string, d event.SendKemCiphertextData) {
	sink, ok := r.registry.Sink(d.To)
	if !ok {
		r.log.Warn("kem ciphertext target gone", "to", d.To, "from", handle)
		r.stats.IncrDroppedDeliveries()
		return
	}
	r.stats.IncrKemRelayed()
	r.consume(ctx, sink, event.Outbound{
		Event: event.RecvKemCiphertext,
		Data:  event.RecvKemCiphertextData{From: r.senderIdentity(handle), Ciphertext: d.Ciphertext},
	})
}

func (r *Router) handleDirectMessage(ctx context.Context, handle string, d event.SendMessageData) {
	sink, ok := r.registry.Sink(d.To)
	if !ok {
		r.log.Warn("message target gone", "to", d.To, "from", handle)
		r.stats.IncrDroppedDeliveries()
		return
	}
	r.stats.IncrDirectRelayed()
	r.consume(ctx, sink, event.Outbound{
		Event: event.RecvMessage,
		Data:  event.RecvMessageData{From: r.senderIdentity(handle), Base64Message: d.Base64Message},
	})
}

func (r *Router) handleCreateGroup(ctx context.Context, handle string, d event.CreateGroupData) {
	admin, ok := r.registeredName(handle)
	if !ok {
		r.groupError(ctx, handle, errors.ErrNotRegistered.Error(), nil)
		return
	}

	missing := lo.Filter(d.Members, func(name string, _ int) bool {
		_, online := r.registry.LookupName(name)
		return !online
	})
	if len(missing) > 0 {
		err := errors.MissingMembersError{Missing: missing}
		r.groupError(ctx, handle, err.Error(), missing)
		return
	}

	g := r.groups.Create(d.Name, admin, d.Members)
	desc := g.Descriptor()
	r.log.Info("group created", "group_id", g.ID, "name", g.Name, "admin", admin)

	r.send(ctx, handle, event.Outbound{Event: event.GroupCreated, Data: desc})
	for _, member := range g.Members() {
		if member == admin {
			continue
		}
		memberHandle, online := r.registry.LookupName(member)
		if !online {
			continue
		}
		r.send(ctx, memberHandle, event.Outbound{Event: event.GroupInvitation, Data: desc})
	}
}

func (r *Router) handleDistributeGroupKey(ctx context.Context, handle string, d event.DistributeGroupKeyData) {
	sender, ok := r.registeredName(handle)
	if !ok {
		r.groupError(ctx, handle, errors.ErrNotRegistered.Error(), nil)
		return
	}
	g, ok := r.groups.Get(d.GroupID)
	if !ok {
		r.groupError(ctx, handle, errors.ErrGroupNotFound.Error(), nil)
		return
	}
	if !g.IsAdmin(sender) {
		r.groupError(ctx, handle, errors.ErrNotGroupAdmin.Error(), nil)
		return
	}

	// Best-effort distribution: entries for non-members or disconnected
	// members are dropped without surfacing anything to the admin.
	for member, encryptedKey := range d.Keys {
		if !g.IsMember(member) {
			r.stats.IncrDroppedDeliveries()
			continue
		}
		memberHandle, online := r.registry.LookupName(member)
		if !online {
			r.stats.IncrDroppedDeliveries()
			continue
		}
		r.send(ctx, memberHandle, event.Outbound{
			Event: event.GroupKey,
			Data:  event.GroupKeyData{GroupID: g.ID, From: sender, EncryptedKey: encryptedKey},
		})
	}
}

func (r *Router) handleSendGroupMessage(ctx context.Context, handle string, d event.SendGroupMessageData) {
	sender, ok := r.registeredName(handle)
	if !ok {
		r.groupError(ctx, handle, errors.ErrNotRegistered.Error(), nil)
		return
	}
	g, ok := r.groups.Get(d.GroupID)
	if !ok {
		r.groupError(ctx, handle, errors.ErrGroupNotFound.Error(), nil)
		return
	}
	if !g.IsMember(sender) {
		r.groupError(ctx, handle, errors.ErrNotGroupMember.Error(), nil)
		return
	}

	g.AppendMessage(group.Message{Sender: sender, Payload: d.Base64Message, At: time.Now()})

	out := event.Outbound{
		Event: event.RecvGroupMessage,
		Data:  event.RecvGroupMessageData{GroupID: g.ID, From: sender, Base64Message: d.Base64Message},
	}
	// Fan out to every other connected member; the sender gets no echo.
	for _, member := range g.Members() {
		if member == sender {
			continue
		}
		memberHandle, online := r.registry.LookupName(member)
		if !online {
			r.stats.IncrDroppedDeliveries()
			continue
		}
		r.stats.IncrGroupRelayed()
		r.send(ctx, memberHandle, out)
	}
}

func (r *Router) handleGetMyGroups(ctx context.Context, handle string) {
	name, ok := r.registeredName(handle)
	if !ok {
		r.groupError(ctx, handle, errors.ErrNotRegistered.Error(), nil)
		return
	}
	descriptors := lo.Map(r.groups.ForMember(name), func(g *group.Group, _ int) event.GroupDescriptor {
		return g.Descriptor()
	})
	r.send(ctx, handle, event.Outbound{Event: event.MyGroups, Data: descriptors})
}

// senderIdentity resolves the best available identifier for relayed
// traffic: the display name when registration completed, the raw handle
// otherwise.
func (r *Router) senderIdentity(handle string) string {
	if c, ok := r.registry.Get(handle); ok && c.Name != "" {
		return c.Name
	}
	return handle
}

func (r *Router) registeredName(handle string) (string, bool) {
	c, ok := r.registry.Get(handle)
	if !ok || c.Name == "" {
		return "", false
	}
	return c.Name, true
}

func (r *Router) groupError(ctx context.Context, handle, message string, missing []string) {
	r.send(ctx, handle, event.Outbound{
		Event: event.GroupError,
		Data:  event.GroupErrorData{Message: message, Missing: missing},
	})
}

func (r *Router) send(ctx context.Context, handle string, out event.Outbound) {
	sink, ok := r.registry.Sink(handle)
	if !ok {
		r.stats.IncrDroppedDeliveries()
		return
	}
	r.consume(ctx, sink, out)
}

func (r *Router) consume(ctx context.Context, sink contract.EventSink, out event.Outbound) {
	if err := sink.Consume(ctx, out); err != nil {
		r.stats.IncrDroppedDeliveries()
		r.log.Debug("delivery dropped", "event", out.Event, "error", err)
	}
}

// broadcast sends to every live connection, registered or anonymous,
// except the excluded handles. The sink set is a point-in-time copy.
func (r *Router) broadcast(ctx context.Context, out event.Outbound, exclude ...string) {
	r.stats.IncrBroadcasts()
	for handle, sink := range r.registry.Sinks() {
		if lo.Contains(exclude, handle) {
			continue
		}
		r.consume(ctx, sink, out)
	}
}

func (r *Router) broadcastUserList(ctx context.Context) {
	snapshot := r.registry.Snapshot()
	r.log.Debug("broadcasting user list", "users", lo.Keys(snapshot))
	r.broadcast(ctx, event.Outbound{Event: event.UserList, Data: snapshot})
}
