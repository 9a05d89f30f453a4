package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pqrelay/domain/event"
	"pqrelay/errors"
)

type nopSink struct{}

func (nopSink) Consume(_ context.Context, _ event.Outbound) error { return nil }

func TestRegistry_Register_BindsNameAndHandle(t *testing.T) {
	req := require.New(t)
	reg := New()
	handle := uuid.NewString()
	reg.Connect(handle, nopSink{})

	// When a connected client registers a free name
	req.NoError(reg.Register(handle, "alice"))

	// Then the record and the name index agree
	client, ok := reg.Get(handle)
	req.True(ok)
	req.Equal("alice", client.Name)

	resolved, ok := reg.LookupName("alice")
	req.True(ok)
	req.Equal(handle, resolved)

	req.Equal(map[string]string{"alice": handle}, reg.Snapshot())
}

func TestRegistry_Register_NameTakenByOtherHandle(t *testing.T) {
	req := require.New(t)
	reg := New()
	handleA := uuid.NewString()
	handleB := uuid.NewString()
	reg.Connect(handleA, nopSink{})
	reg.Connect(handleB, nopSink{})

	// Given alice is held by a still-connected handle
	req.NoError(reg.Register(handleA, "alice"))

	// When another handle claims the same name
	err := reg.Register(handleB, "alice")

	// Then the claim fails and the original binding is untouched
	req.ErrorIs(err, errors.ErrNameTaken)
	resolved, ok := reg.LookupName("alice")
	req.True(ok)
	req.Equal(handleA, resolved)
}

func TestRegistry_Register_SameHandleIsIdempotent(t *testing.T) {
	req := require.New(t)
	reg := New()
	handle := uuid.NewString()
	reg.Connect(handle, nopSink{})

	req.NoError(reg.Register(handle, "alice"))
	req.NoError(reg.Register(handle, "alice"))
	req.Len(reg.Snapshot(), 1)
}

func TestRegistry_Register_RenameReleasesOldName(t *testing.T) {
	req := require.New(t)
	reg := New()
	handle := uuid.NewString()
	other := uuid.NewString()
	reg.Connect(handle, nopSink{})
	reg.Connect(other, nopSink{})

	// Given a handle registered as alice
	req.NoError(reg.Register(handle, "alice"))

	// When it registers again as wonderland
	req.NoError(reg.Register(handle, "wonderland"))

	// Then alice is free for someone else
	req.NoError(reg.Register(other, "alice"))
	req.Equal(map[string]string{"wonderland": handle, "alice": other}, reg.Snapshot())
}

func TestRegistry_Remove_FreesNameImmediately(t *testing.T) {
	req := require.New(t)
	reg := New()
	handleA := uuid.NewString()
	handleB := uuid.NewString()
	reg.Connect(handleA, nopSink{})
	reg.Connect(handleB, nopSink{})
	req.NoError(reg.Register(handleA, "alice"))

	// When the holder disconnects
	name, hadName := reg.Remove(handleA)
	req.True(hadName)
	req.Equal("alice", name)

	// Then the name is available for a different handle right away
	req.NoError(reg.Register(handleB, "alice"))
}

func TestRegistry_Remove_AnonymousConnection(t *testing.T) {
	req := require.New(t)
	reg := New()
	handle := uuid.NewString()
	reg.Connect(handle, nopSink{})

	// Removing a never-registered handle is a normal outcome, not an error
	name, hadName := reg.Remove(handle)
	req.False(hadName)
	req.Empty(name)
	req.Zero(reg.Len())
}

func TestRegistry_UpsertKey_CreatesRecordForUnregisteredHandle(t *testing.T) {
	req := require.New(t)
	reg := New()
	handle := uuid.NewString()
	reg.Connect(handle, nopSink{})

	// When a key arrives before any registration (permissive path)
	client := reg.UpsertKey(handle, "alice", "key-blob")

	// Then the record exists with the supplied name bound
	req.Equal("alice", client.Name)
	req.Equal("key-blob", client.PubKey)
	resolved, ok := reg.LookupName("alice")
	req.True(ok)
	req.Equal(handle, resolved)
}

func TestRegistry_UpsertKey_DoesNotStealTakenName(t *testing.T) {
	req := require.New(t)
	reg := New()
	handleA := uuid.NewString()
	handleB := uuid.NewString()
	reg.Connect(handleA, nopSink{})
	reg.Connect(handleB, nopSink{})
	req.NoError(reg.Register(handleA, "alice"))

	// When an unregistered handle submits a key under a taken name
	client := reg.UpsertKey(handleB, "alice", "key-blob")

	// Then the key is stored but the name stays with its holder
	req.Empty(client.Name)
	req.Equal("key-blob", client.PubKey)
	resolved, _ := reg.LookupName("alice")
	req.Equal(handleA, resolved)
}

func TestRegistry_UpsertKey_ReplacesExistingKey(t *testing.T) {
	req := require.New(t)
	reg := New()
	handle := uuid.NewString()
	reg.Connect(handle, nopSink{})
	req.NoError(reg.Register(handle, "alice"))

	reg.UpsertKey(handle, "alice", "first")
	client := reg.UpsertKey(handle, "alice", "second")

	req.Equal("second", client.PubKey)
	req.Equal("alice", client.Name)
}

func TestRegistry_PeerKeys_ExcludesRequesterAndUnkeyed(t *testing.T) {
	req := require.New(t)
	reg := New()
	handleA := uuid.NewString()
	handleB := uuid.NewString()
	handleC := uuid.NewString()
	for _, h := range []string{handleA, handleB, handleC} {
		reg.Connect(h, nopSink{})
	}
	req.NoError(reg.Register(handleA, "alice"))
	req.NoError(reg.Register(handleB, "bob"))
	req.NoError(reg.Register(handleC, "carol"))
	reg.UpsertKey(handleA, "alice", "key-a")
	reg.UpsertKey(handleB, "bob", "key-b")
	// carol never publishes a key

	peers := reg.PeerKeys(handleA)

	req.Equal(map[string]string{handleB: "key-b"}, peers)
}

func TestRegistry_ConcurrentRegister_ExactlyOneWinner(t *testing.T) {
	req := require.New(t)
	reg := New()

	const contenders = 32
	var wg sync.WaitGroup
	var successes atomic.Int64

	// When many handles race for the same name
	for i := 0; i < contenders; i++ {
		handle := uuid.NewString()
		reg.Connect(handle, nopSink{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.Register(handle, "alice") == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	// Then exactly one handle holds it
	req.EqualValues(1, successes.Load())
	req.Len(reg.Snapshot(), 1)
}

func TestRegistry_Snapshot_OmitsAnonymousSessions(t *testing.T) {
	req := require.New(t)
	reg := New()
	named := uuid.NewString()
	anonymous := uuid.NewString()
	reg.Connect(named, nopSink{})
	reg.Connect(anonymous, nopSink{})
	req.NoError(reg.Register(named, "alice"))

	// Presence only lists completed registrations, but both sessions
	// remain addressable for broadcast
	req.Equal(map[string]string{"alice": named}, reg.Snapshot())
	req.Len(reg.Sinks(), 2)
	req.Equal(2, reg.Len())
}
