package realtime

import "sync"

// Registry はアクティブなセッションとルーム（会話単位の配信グループ）を管理する。
// 同一ユーザーが複数のセッション（複数タブ・デバイス）を持つことを許容する。
// 全操作は並行使用に安全。
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]ClientSession            // sessionID -> session
	rooms        map[string]map[string]ClientSession // conversationID -> sessionID -> session
	sessionRooms map[string]map[string]struct{}      // sessionID -> 参加中conversationIDの集合
}

// NewRegistry は初期化済みのRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]ClientSession),
		rooms:        make(map[string]map[string]ClientSession),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Register はセッションを登録する。
func (r *Registry) Register(sess ClientSession) {
	r.mu.Lock()
	r.sessions[sess.ID()] = sess
	r.sessionRooms[sess.ID()] = make(map[string]struct{})
	r.mu.Unlock()
}

// Unregister はセッションを登録解除する。
// 参加中の全ルームからの退室（暗黙のleave）を伴う。
// 未登録のセッションに対しては何もしない。
func (r *Registry) Unregister(sess ClientSession) {
	r.mu.Lock()
	r.unregisterLocked(sess.ID())
	r.mu.Unlock()
}

// Join はセッションを会話ルームに参加させる。
// 既に参加済みの場合は何もしない（冪等）。未登録のセッションは無視する。
func (r *Registry) Join(conversationID string, sess ClientSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sess.ID()]; !ok {
		return
	}

	room := r.rooms[conversationID]
	if room == nil {
		room = make(map[string]ClientSession)
		r.rooms[conversationID] = room
	}
	room[sess.ID()] = sess
	r.sessionRooms[sess.ID()][conversationID] = struct{}{}
}

// Leave はセッションを会話ルームから退室させる。
// 参加していないルームからの退室は何もしない（冪等）。
func (r *Registry) Leave(conversationID string, sess ClientSession) {
	r.mu.Lock()
	r.leaveLocked(conversationID, sess.ID())
	r.mu.Unlock()
}

// Broadcast は会話ルームの全セッション（送信者自身を含む）へペイロードを配信し、
// 配信に成功したセッション数を返す。ルームが空の場合は0を返す。
func (r *Registry) Broadcast(conversationID string, payload []byte) int {
	r.mu.RLock()
	room := r.rooms[conversationID]
	targets := make([]ClientSession, 0, len(room))
	for _, sess := range room {
		targets = append(targets, sess)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sess := range targets {
		if sess.Send(payload) == nil {
			delivered++
		}
	}
	return delivered
}

// RoomSize は会話ルームの現在のセッション数を返す。
func (r *Registry) RoomSize(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}

// SessionCount は登録中のセッション数を返す。
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close は全セッションをクローズしレジストリを空にする。
// サーバーのシャットダウン時に使用する。
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]ClientSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]ClientSession)
	r.rooms = make(map[string]map[string]ClientSession)
	r.sessionRooms = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close(1001, "server shutdown")
	}
}

func (r *Registry) unregisterLocked(sessionID string) {
	if _, ok := r.sessions[sessionID]; !ok {
		return
	}
	delete(r.sessions, sessionID)

	for conversationID := range r.sessionRooms[sessionID] {
		r.leaveLocked(conversationID, sessionID)
	}
	delete(r.sessionRooms, sessionID)
}

func (r *Registry) leaveLocked(conversationID, sessionID string) {
	room := r.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, conversationID)
	}
	if memberships, ok := r.sessionRooms[sessionID]; ok {
		delete(memberships, conversationID)
	}
}
