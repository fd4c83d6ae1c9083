package realtime

import (
	"errors"
	"strconv"
	"sync"
	"testing"
)

// fakeSession はClientSessionのテスト用実装。
// 受信したペイロードを記録する。
type fakeSession struct {
	id     string
	userID string

	mu       sync.Mutex
	received [][]byte
	sendErr  error
	closed   bool
}

var _ ClientSession = (*fakeSession)(nil)

func newFakeSession(id, userID string) *fakeSession {
	return &fakeSession{id: id, userID: userID}
}

func (f *fakeSession) ID() string     { return f.id }
func (f *fakeSession) UserID() string { return f.userID }

func (f *fakeSession) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeSession) Close(code int, reason string) {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSession) receivedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func (f *fakeSession) lastReceived() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.received) == 0 {
		return nil
	}
	return f.received[len(f.received)-1]
}

// --- テスト ---

func TestRegistry_BroadcastReachesRoomMembersOnly(t *testing.T) {
	r := NewRegistry()
	member1 := newFakeSession("s1", "u1")
	member2 := newFakeSession("s2", "u2")
	outsider := newFakeSession("s3", "u3")

	r.Register(member1)
	r.Register(member2)
	r.Register(outsider)
	r.Join("conv-1", member1)
	r.Join("conv-1", member2)

	delivered := r.Broadcast("conv-1", []byte("hello"))
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if member1.receivedCount() != 1 || member2.receivedCount() != 1 {
		t.Error("expected both room members to receive the payload")
	}
	if outsider.receivedCount() != 0 {
		t.Error("expected non-member to receive nothing")
	}
}

func TestRegistry_BroadcastEmptyRoom(t *testing.T) {
	r := NewRegistry()

	if delivered := r.Broadcast("ghost-room", []byte("x")); delivered != 0 {
		t.Errorf("delivered = %d, want 0", delivered)
	}
}

func TestRegistry_LeaveStopsDelivery(t *testing.T) {
	r := NewRegistry()
	sess := newFakeSession("s1", "u1")
	r.Register(sess)
	r.Join("conv-1", sess)
	r.Leave("conv-1", sess)

	if delivered := r.Broadcast("conv-1", []byte("x")); delivered != 0 {
		t.Errorf("delivered = %d, want 0 after leave", delivered)
	}

	// 冪等: 参加していないルームからの退室は何も起きない。
	r.Leave("conv-1", sess)
	r.Leave("never-joined", sess)
}

func TestRegistry_JoinIgnoresUnregisteredSession(t *testing.T) {
	r := NewRegistry()
	sess := newFakeSession("s1", "u1")

	r.Join("conv-1", sess)

	if size := r.RoomSize("conv-1"); size != 0 {
		t.Errorf("RoomSize = %d, want 0 for unregistered session", size)
	}
}

func TestRegistry_UnregisterLeavesAllRooms(t *testing.T) {
	r := NewRegistry()
	sess := newFakeSession("s1", "u1")
	other := newFakeSession("s2", "u2")
	r.Register(sess)
	r.Register(other)
	r.Join("conv-1", sess)
	r.Join("conv-2", sess)
	r.Join("conv-1", other)

	r.Unregister(sess)

	if size := r.RoomSize("conv-1"); size != 1 {
		t.Errorf("RoomSize(conv-1) = %d, want 1", size)
	}
	if size := r.RoomSize("conv-2"); size != 0 {
		t.Errorf("RoomSize(conv-2) = %d, want 0", size)
	}
	if count := r.SessionCount(); count != 1 {
		t.Errorf("SessionCount = %d, want 1", count)
	}
}

func TestRegistry_MultipleSessionsPerUser(t *testing.T) {
	r := NewRegistry()
	tab1 := newFakeSession("s1", "u1")
	tab2 := newFakeSession("s2", "u1")
	r.Register(tab1)
	r.Register(tab2)
	r.Join("conv-1", tab1)
	r.Join("conv-1", tab2)

	delivered := r.Broadcast("conv-1", []byte("x"))
	if delivered != 2 {
		t.Errorf("delivered = %d, want both sessions of same user", delivered)
	}
}

func TestRegistry_BroadcastCountsOnlySuccessfulDeliveries(t *testing.T) {
	r := NewRegistry()
	ok := newFakeSession("s1", "u1")
	failing := newFakeSession("s2", "u2")
	failing.sendErr = errors.New("buffer full")

	r.Register(ok)
	r.Register(failing)
	r.Join("conv-1", ok)
	r.Join("conv-1", failing)

	if delivered := r.Broadcast("conv-1", []byte("x")); delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
}

func TestRegistry_CloseTerminatesAllSessions(t *testing.T) {
	r := NewRegistry()
	s1 := newFakeSession("s1", "u1")
	s2 := newFakeSession("s2", "u2")
	r.Register(s1)
	r.Register(s2)
	r.Join("conv-1", s1)

	r.Close()

	if !s1.closed || !s2.closed {
		t.Error("expected all sessions to be closed")
	}
	if count := r.SessionCount(); count != 0 {
		t.Errorf("SessionCount = %d, want 0", count)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sess := newFakeSession("sess-"+strconv.Itoa(n), "user")
			r.Register(sess)
			r.Join("conv-1", sess)
			r.Broadcast("conv-1", []byte("x"))
			r.Leave("conv-1", sess)
			r.Unregister(sess)
		}(i)
	}
	wg.Wait()

	if size := r.RoomSize("conv-1"); size != 0 {
		t.Errorf("RoomSize = %d, want 0 after all sessions left", size)
	}
}
