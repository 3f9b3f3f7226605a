package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// Snapshot は Store の現在の状態のコピーです。
type Snapshot struct {
	User    *domain.User     `json:"user"`
	History []domain.DataURL `json:"history"`
}

// Store はログイン中の利用者と、その利用者の画像履歴を保持します。
// 履歴は新しい順で重複がなく、変更のたびに Storage へ保存されます。
type Store struct {
	storage Storage
	limit   int

	mu      sync.RWMutex
	user    *domain.User
	history []domain.DataURL

	lmu       sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewStore は Store を作成します。historyLimit が 0 以下なら履歴件数は無制限です。
func NewStore(storage Storage, historyLimit int) (*Store, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	return &Store{
		storage:   storage,
		limit:     historyLimit,
		listeners: make(map[int]func(Snapshot)),
	}, nil
}

// Login は利用者を切り替え、その利用者の履歴を読み込みます。
// 保存データが存在しない・壊れている場合は空の履歴になり、エラーは返しません。
func (s *Store) Login(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.Email) == "" {
		return domain.NewValidationError("A user email is required to log in.")
	}

	history := s.load(ctx, user.Email)

	s.mu.Lock()
	u := user
	s.user = &u
	s.history = history
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.InfoContext(ctx, "ログインしました", "email", user.Email, "history", len(history))
	s.notify(snap)
	return nil
}

// Logout はメモリ上の利用者と履歴を消去します。保存済みの履歴は削除しません。
func (s *Store) Logout() {
	s.mu.Lock()
	if s.user != nil {
		slog.Info("ログアウトしました", "email", s.user.Email)
	}
	s.user = nil
	s.history = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// RecordResult は画像を履歴の先頭に追加して保存します。ログインしていなければ何もしません。
// 同じ画像が既にあれば先頭へ移動します。保存の失敗はログに残すだけです。
func (s *Store) RecordResult(ctx context.Context, image domain.DataURL) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}

	next := make([]domain.DataURL, 0, len(s.history)+1)
	next = append(next, image)
	for _, h := range s.history {
		if h != image {
			next = append(next, h)
		}
	}
	if s.limit > 0 && len(next) > s.limit {
		next = next[:s.limit]
	}
	s.history = next

	// 書き込み順序を保つためロックを保持したまま保存する。
	s.persistLocked(ctx, s.user.Email, next)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// CurrentUser はログイン中の利用者を返します。
func (s *Store) CurrentUser() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// CurrentHistory は履歴のコピーを新しい順で返します。
func (s *Store) CurrentHistory() []domain.DataURL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHistory(s.history)
}

// Snapshot は利用者と履歴をまとめて返します。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe は状態変更の通知先を登録し、解除用の関数を返します。
// fn はロックの外で呼ばれます。
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.lmu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) load(ctx context.Context, email string) []domain.DataURL {
	raw, ok, err := s.storage.Get(ctx, HistoryKey(email))
	if err != nil {
		slog.WarnContext(ctx, "履歴の読み込みに失敗しました", "email", email, "error", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var history []domain.DataURL
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		slog.WarnContext(ctx, "保存された履歴が壊れています。空の履歴で続行します", "email", email, "error", err)
		return nil
	}
	return history
}

func (s *Store) persistLocked(ctx context.Context, email string, history []domain.DataURL) {
	payload, err := json.Marshal(history)
	if err != nil {
		slog.ErrorContext(ctx, "履歴のシリアライズに失敗しました", "email", email, "error", err)
		return
	}
	if err := s.storage.Set(ctx, HistoryKey(email), string(payload)); err != nil {
		slog.ErrorContext(ctx, "履歴の保存に失敗しました", "email", email, "error", err)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{History: cloneHistory(s.history)}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func cloneHistory(h []domain.DataURL) []domain.DataURL {
	out := make([]domain.DataURL, len(h))
	copy(out, h)
	return out
}
