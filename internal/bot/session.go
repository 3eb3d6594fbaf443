package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionState описывает, какого ввода бот ждёт от собеседника.
type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingPhone
	StateAwaitingProof
	StateAwaitingTicketText
	StateAwaitingTicketReply
	StateAwaitingPackageSpec
	StateAwaitingPackageDelete
	StateAwaitingRate
	StateAwaitingBroadcast
	StateAwaitingFeedback
)

// Session хранит состояние диалога с одним пользователем.
type Session struct {
	State         SessionState `json:"state"`
	TransactionID string       `json:"transaction_id,omitempty"`
	TicketID      string       `json:"ticket_id,omitempty"`
}

// SessionStore хранит состояния диалогов. Отсутствие сессии не ошибка:
// Get возвращает пустую сессию в состоянии StateIdle.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Set(ctx context.Context, userID int64, s Session) error
	Clear(ctx context.Context, userID int64) error
}

const sessionTTL = time.Hour

// RedisSessionStore хранит сессии в Redis с TTL, переживая рестарт бота.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore проверяет соединение и создаёт хранилище.
func NewRedisSessionStore(ctx context.Context, addr string) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSessionStore{client: client}, nil
}

func sessionKey(userID int64) string {
	return "session:" + strconv.FormatInt(userID, 10)
}

// Get возвращает сессию пользователя.
func (s *RedisSessionStore) Get(ctx context.Context, userID int64) (Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// Set сохраняет сессию пользователя.
func (s *RedisSessionStore) Set(ctx context.Context, userID int64, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(userID), raw, sessionTTL).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Clear сбрасывает сессию пользователя.
func (s *RedisSessionStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// MemorySessionStore хранит сессии в памяти процесса. Используется,
// когда адрес Redis не задан.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewMemorySessionStore создаёт хранилище в памяти.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[int64]Session)}
}

// Get возвращает сессию пользователя.
func (s *MemorySessionStore) Get(_ context.Context, userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID], nil
}

// Set сохраняет сессию пользователя.
func (s *MemorySessionStore) Set(_ context.Context, userID int64, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = sess
	return nil
}

// Clear сбрасывает сессию пользователя.
func (s *MemorySessionStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}
