package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Switchboard/internal/app"
	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

// recorded is one outbound delivery: a unicast has To set, a room fan-out has
// Room set (and Except when the sender was excluded).
type recorded struct {
	To     domain.ConnectionID
	Room   domain.RoomID
	Except domain.ConnectionID
	Event  any
}

// fakeTransport records every outbound call and, like the hub, models group
// delivery: a broadcast only lands in the inboxes of connections that were in
// the group at that moment.
type fakeTransport struct {
	mu     sync.Mutex
	events []recorded
	groups map[domain.RoomID]map[domain.ConnectionID]struct{}
	inbox  map[domain.ConnectionID][]any
}

func (f *fakeTransport) Send(id domain.ConnectionID, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recorded{To: id, Event: v})
	f.put(id, v)
}

func (f *fakeTransport) Broadcast(room domain.RoomID, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recorded{Room: room, Event: v})
	for id := range f.groups[room] {
		f.put(id, v)
	}
}

func (f *fakeTransport) BroadcastExcept(room domain.RoomID, except domain.ConnectionID, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recorded{Room: room, Except: except, Event: v})
	for id := range f.groups[room] {
		if id != except {
			f.put(id, v)
		}
	}
}

func (f *fakeTransport) JoinGroup(room domain.RoomID, id domain.ConnectionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups == nil {
		f.groups = make(map[domain.RoomID]map[domain.ConnectionID]struct{})
	}
	if f.groups[room] == nil {
		f.groups[room] = make(map[domain.ConnectionID]struct{})
	}
	f.groups[room][id] = struct{}{}
}

func (f *fakeTransport) LeaveGroup(room domain.RoomID, id domain.ConnectionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups[room], id)
}

func (f *fakeTransport) put(id domain.ConnectionID, v any) {
	if f.inbox == nil {
		f.inbox = make(map[domain.ConnectionID][]any)
	}
	f.inbox[id] = append(f.inbox[id], v)
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
	f.inbox = nil
}

func (f *fakeTransport) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recorded, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeTransport) delivered(id domain.ConnectionID) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.inbox[id]))
	copy(out, f.inbox[id])
	return out
}

func (f *fakeTransport) sentTo(id domain.ConnectionID) []any {
	var out []any
	for _, e := range f.all() {
		if e.To == id {
			out = append(out, e.Event)
		}
	}
	return out
}

func (f *fakeTransport) modeSwitches() []core.ModeSwitched {
	var out []core.ModeSwitched
	for _, e := range f.all() {
		if ms, ok := e.Event.(core.ModeSwitched); ok {
			out = append(out, ms)
		}
	}
	return out
}

func (f *fakeTransport) userLefts() []core.UserLeft {
	var out []core.UserLeft
	for _, e := range f.all() {
		if ul, ok := e.Event.(core.UserLeft); ok {
			out = append(out, ul)
		}
	}
	return out
}

type fakeProbe struct {
	sfuUp  bool
	meshUp bool
}

func (f *fakeProbe) CheckSFU(context.Context) bool  { return f.sfuUp }
func (f *fakeProbe) CheckMesh(context.Context) bool { return f.meshUp }

type fakeBroker struct {
	err    error
	issued int
}

func (f *fakeBroker) IssueToken(_ context.Context, roomID domain.RoomID, participantID domain.ConnectionID) (*core.SFUToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.issued++
	return &core.SFUToken{Token: "tok-" + string(participantID), RoomID: string(roomID)}, nil
}

func newTestOrch() (*Orchestrator, *fakeTransport, *fakeProbe, *fakeBroker) {
	tr := &fakeTransport{}
	probe := &fakeProbe{sfuUp: true, meshUp: true}
	broker := &fakeBroker{}
	o := &Orchestrator{
		Registry:  app.NewRegistry(),
		Policy:    app.ThresholdPolicy{SwitchThreshold: 10},
		Probe:     probe,
		Broker:    broker,
		Transport: tr,
	}
	return o, tr, probe, broker
}

func join(o *Orchestrator, conn, room string) {
	o.Join(context.Background(), domain.ConnectionID(conn), core.JoinRoom{
		RoomID:      room,
		UserID:      "u-" + conn,
		DisplayName: "name-" + conn,
	})
}

func roomJoinedFor(t *testing.T, tr *fakeTransport, conn domain.ConnectionID) core.RoomJoined {
	t.Helper()
	for _, ev := range tr.sentTo(conn) {
		if rj, ok := ev.(core.RoomJoined); ok {
			return rj
		}
	}
	t.Fatalf("no room-joined sent to %s", conn)
	return core.RoomJoined{}
}

func TestJoinValidation(t *testing.T) {
	o, tr, _, _ := newTestOrch()

	o.Join(context.Background(), "c1", core.JoinRoom{RoomID: "r1", UserID: "u1"})

	events := tr.sentTo("c1")
	require.Len(t, events, 1)
	errEv, ok := events[0].(core.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, core.EvtJoinRoom, errEv.Event)

	rooms, participants := o.Registry.Counts()
	assert.Zero(t, rooms)
	assert.Zero(t, participants)
}

func TestFirstJoinStaysP2P(t *testing.T) {
	o, tr, _, broker := newTestOrch()

	join(o, "c1", "r1")

	rj := roomJoinedFor(t, tr, "c1")
	assert.Equal(t, domain.ModeP2P, rj.Mode)
	assert.NotNil(t, rj.Participants)
	assert.Empty(t, rj.Participants)
	assert.Nil(t, rj.Token)
	assert.Empty(t, tr.modeSwitches())
	assert.Zero(t, broker.issued)
}

func TestJoinerSeesExistingMembersInOrder(t *testing.T) {
	o, tr, _, _ := newTestOrch()

	join(o, "c1", "r1")
	join(o, "c2", "r1")
	tr.reset()
	join(o, "c3", "r1")

	rj := roomJoinedFor(t, tr, "c3")
	require.Len(t, rj.Participants, 2)
	assert.Equal(t, domain.ConnectionID("c1"), rj.Participants[0].ConnectionID)
	assert.Equal(t, domain.ConnectionID("c2"), rj.Participants[1].ConnectionID)

	// The rest of the room hears about the join, the joiner does not.
	var joined []core.UserJoined
	for _, e := range tr.all() {
		if uj, ok := e.Event.(core.UserJoined); ok {
			assert.Equal(t, domain.ConnectionID("c3"), e.Except)
			joined = append(joined, uj)
		}
	}
	require.Len(t, joined, 1)
	assert.Equal(t, 3, joined[0].ParticipantsCount)
}

func TestConcurrentJoinsSeeEachOther(t *testing.T) {
	o, tr, _, _ := newTestOrch()

	const members = 8
	var wg sync.WaitGroup
	for i := 1; i <= members; i++ {
		wg.Add(1)
		go func(conn string) {
			defer wg.Done()
			join(o, conn, "r1")
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	view, ok := o.Registry.Room("r1")
	require.True(t, ok)
	require.Equal(t, members, view.Members)

	// No matter how the joins interleaved, every member must have learned
	// about every other one: either from the member list in its own
	// room-joined, or from a user-joined delivered after it entered the
	// group. A pair that misses both would never exchange an offer.
	for i := 1; i <= members; i++ {
		conn := domain.ConnectionID(fmt.Sprintf("c%d", i))
		known := make(map[domain.ConnectionID]bool)
		for _, ev := range tr.delivered(conn) {
			switch e := ev.(type) {
			case core.RoomJoined:
				for _, p := range e.Participants {
					known[p.ConnectionID] = true
				}
			case core.UserJoined:
				known[e.ConnectionID] = true
			}
		}
		for j := 1; j <= members; j++ {
			other := domain.ConnectionID(fmt.Sprintf("c%d", j))
			if other == conn {
				continue
			}
			assert.Truef(t, known[other], "%s never learned about %s", conn, other)
		}
	}
}

func TestThresholdScenario(t *testing.T) {
	o, tr, _, _ := newTestOrch()

	// Nine joins: no mode switch.
	for i := 1; i <= 9; i++ {
		join(o, fmt.Sprintf("c%d", i), "r1")
	}
	assert.Empty(t, tr.modeSwitches())

	// The tenth join crosses the threshold.
	tr.reset()
	join(o, "c10", "r1")

	rj := roomJoinedFor(t, tr, "c10")
	assert.Equal(t, domain.ModeSFU, rj.Mode)
	require.NotNil(t, rj.Token)
	assert.Equal(t, "tok-c10", rj.Token.Token)

	switches := tr.modeSwitches()
	require.Len(t, switches, 1)
	assert.Equal(t, domain.ModeSFU, switches[0].Mode)
	assert.Equal(t, 10, switches[0].ParticipantsCount)
	assert.Equal(t, "participant-threshold", switches[0].Reason)

	// Drain back down to one: exactly one downward switch, on the leave
	// that drops membership below the threshold.
	tr.reset()
	for i := 1; i <= 9; i++ {
		o.Leave(context.Background(), domain.ConnectionID(fmt.Sprintf("c%d", i)))
	}
	switches = tr.modeSwitches()
	require.Len(t, switches, 1)
	assert.Equal(t, domain.ModeP2P, switches[0].Mode)
	assert.Equal(t, 9, switches[0].ParticipantsCount)

	view, ok := o.Registry.Room("r1")
	require.True(t, ok)
	assert.Equal(t, 1, view.Members)
	assert.Equal(t, domain.ModeP2P, view.Room.Mode)
}

func TestSFUDownForcesP2PAtScale(t *testing.T) {
	o, tr, probe, broker := newTestOrch()
	probe.sfuUp = false

	for i := 1; i <= 12; i++ {
		join(o, fmt.Sprintf("c%d", i), "r1")
	}

	view, _ := o.Registry.Room("r1")
	assert.Equal(t, domain.ModeP2P, view.Room.Mode)
	assert.Empty(t, tr.modeSwitches())
	assert.Zero(t, broker.issued)
}

func TestMeshDownForcesSFU(t *testing.T) {
	o, tr, probe, _ := newTestOrch()
	probe.meshUp = false

	join(o, "c1", "r1")

	rj := roomJoinedFor(t, tr, "c1")
	assert.Equal(t, domain.ModeSFU, rj.Mode)
	require.NotNil(t, rj.Token)

	switches := tr.modeSwitches()
	require.Len(t, switches, 1)
	assert.Equal(t, "mesh-unavailable", switches[0].Reason)
}

func TestTokenFailureDegradesJoin(t *testing.T) {
	o, tr, probe, broker := newTestOrch()
	probe.meshUp = false
	broker.err = errors.New("sfu token request: unexpected status 500")

	join(o, "c1", "r1")

	rj := roomJoinedFor(t, tr, "c1")
	assert.Equal(t, domain.ModeSFU, rj.Mode)
	assert.Nil(t, rj.Token)

	// The join itself succeeded.
	_, ok := o.Registry.Participant("c1")
	assert.True(t, ok)
}

func TestRejoinLeavesPreviousRoom(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")
	join(o, "c2", "r1")

	tr.reset()
	join(o, "c2", "r2")

	p, ok := o.Registry.Participant("c2")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("r2"), p.RoomID)

	lefts := tr.userLefts()
	require.Len(t, lefts, 1)
	assert.Equal(t, domain.ConnectionID("c2"), lefts[0].ConnectionID)

	view, ok := o.Registry.Room("r1")
	require.True(t, ok)
	assert.Equal(t, 1, view.Members)
}

func TestDoubleLeaveEmitsNothing(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")
	join(o, "c2", "r1")

	tr.reset()
	o.Leave(context.Background(), "c2")
	require.Len(t, tr.userLefts(), 1)

	tr.reset()
	o.Leave(context.Background(), "c2")
	o.Disconnect(context.Background(), "c2")
	assert.Empty(t, tr.all())
}

func TestLastLeaveDestroysRoomSilently(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")

	tr.reset()
	o.Leave(context.Background(), "c1")
	assert.Empty(t, tr.userLefts())
	_, ok := o.Registry.Room("r1")
	assert.False(t, ok)
}

func TestOfferRelayToUnknownTargetIsSilentlyDropped(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")

	tr.reset()
	o.RelayOffer("c1", core.Offer{To: "gone", RoomID: "r1"})

	// The frame goes to the transport addressed at the dead target; no error
	// event comes back to the sender.
	assert.Empty(t, tr.sentTo("c1"))
	relayed := tr.sentTo("gone")
	require.Len(t, relayed, 1)
	offer := relayed[0].(core.OfferRelay)
	assert.Equal(t, domain.ConnectionID("c1"), offer.From)
	assert.Equal(t, domain.UserID("u-c1"), offer.FromUserID)
}

func TestCandidateRelayRequiresRecipient(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")

	tr.reset()
	o.RelayCandidate("c1", core.Candidate{RoomID: "r1"})

	events := tr.sentTo("c1")
	require.Len(t, events, 1)
	errEv, ok := events[0].(core.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, core.EvtICECandidate, errEv.Event)
}

func TestMediaStateBroadcastExcludesSender(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")
	join(o, "c2", "r1")

	tr.reset()
	o.MediaState("c1", core.MediaStateChange{AudioEnabled: true, VideoEnabled: false})

	events := tr.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.ConnectionID("c1"), events[0].Except)
	st := events[0].Event.(core.ParticipantMediaState)
	assert.True(t, st.MediaState.AudioEnabled)

	p, _ := o.Registry.Participant("c1")
	assert.True(t, p.MediaState.AudioEnabled)
}

func TestMediaStateUnknownSender(t *testing.T) {
	o, tr, _, _ := newTestOrch()

	o.MediaState("ghost", core.MediaStateChange{AudioEnabled: true})

	events := tr.sentTo("ghost")
	require.Len(t, events, 1)
	_, ok := events[0].(core.ErrorEvent)
	assert.True(t, ok)
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")
	join(o, "c2", "r1")

	tr.reset()
	o.Chat("c1", core.ChatMessage{Body: "hello"})

	events := tr.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.RoomID("r1"), events[0].Room)
	assert.Empty(t, events[0].Except)
	msg := events[0].Event.(core.ChatBroadcast)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, domain.UserID("u-c1"), msg.UserID)
	assert.False(t, msg.SentAt.IsZero())
}

func TestTokenRequest(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")

	tr.reset()
	o.TokenRequest(context.Background(), "c1", core.TokenRequest{RoomID: "r1"})

	events := tr.sentTo("c1")
	require.Len(t, events, 1)
	issued := events[0].(core.TokenIssued)
	assert.Equal(t, "tok-c1", issued.Token.Token)
}

func TestTokenRequestRoomMismatch(t *testing.T) {
	o, tr, _, broker := newTestOrch()
	join(o, "c1", "r1")

	tr.reset()
	o.TokenRequest(context.Background(), "c1", core.TokenRequest{RoomID: "other"})

	events := tr.sentTo("c1")
	require.Len(t, events, 1)
	errEv := events[0].(core.ErrorEvent)
	assert.Equal(t, core.EvtRequestSFUToken, errEv.Event)
	assert.Zero(t, broker.issued)
}

func TestTokenRequestBrokerError(t *testing.T) {
	o, tr, _, broker := newTestOrch()
	join(o, "c1", "r1")
	broker.err = errors.New("sfu room ensure: unexpected status 502")

	tr.reset()
	o.TokenRequest(context.Background(), "c1", core.TokenRequest{RoomID: "r1"})

	events := tr.sentTo("c1")
	require.Len(t, events, 1)
	tokenErr := events[0].(core.TokenError)
	assert.Contains(t, tokenErr.Error, "502")
}

func TestPing(t *testing.T) {
	o, tr, _, _ := newTestOrch()

	o.Ping("c1")

	events := tr.sentTo("c1")
	require.Len(t, events, 1)
	pong := events[0].(core.Pong)
	assert.Equal(t, core.EvtPong, pong.Type)
	assert.Positive(t, pong.ServerTime)
}

func TestStatsRequest(t *testing.T) {
	o, tr, _, _ := newTestOrch()
	join(o, "c1", "r1")
	join(o, "c2", "r1")
	join(o, "c3", "r2")

	tr.reset()
	o.StatsRequest("c1")

	events := tr.sentTo("c1")
	require.Len(t, events, 1)
	st := events[0].(core.Stats)
	assert.Equal(t, 2, st.Server.Rooms)
	assert.Equal(t, 3, st.Server.Participants)
	require.NotNil(t, st.Room)
	assert.Equal(t, domain.RoomID("r1"), st.Room.RoomID)
	assert.Equal(t, 2, st.Room.ParticipantsCount)
}

func TestStatsRequestOutsideRoom(t *testing.T) {
	o, tr, _, _ := newTestOrch()

	o.StatsRequest("lobby")

	events := tr.sentTo("lobby")
	require.Len(t, events, 1)
	st := events[0].(core.Stats)
	assert.Nil(t, st.Room)
}
