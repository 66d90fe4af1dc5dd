package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	redisstate "github.com/swust-xl/CampusPartner-sub001/internal/infra/state/redis"
	"github.com/swust-xl/CampusPartner-sub001/internal/query"
	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

type testEnv struct {
	mr     *miniredis.Miniredis
	client *redis.Client
	cache  *redisstate.RedisRoomCache
	lock   *redisstate.RedisLock
	logger *logrus.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return &testEnv{
		mr:     mr,
		client: client,
		cache:  redisstate.NewRedisRoomCache(client, ""),
		lock:   redisstate.NewRedisLock(client, ""),
		logger: logger,
	}
}

func (e *testEnv) put(t *testing.T, rooms ...*domain.Room) {
	t.Helper()
	for _, r := range rooms {
		if err := e.cache.Upsert(context.Background(), r); err != nil {
			t.Fatalf("upsert room %s: %v", r.ID, err)
		}
	}
}

func room(id string, max int, status domain.RoomStatus, members ...string) *domain.Room {
	return &domain.Room{
		ID:           id,
		OwnerID:      "owner",
		Tag:          "study",
		EndLocation:  domain.Location{Name: "library"},
		MaxMemberNum: max,
		Members:      append([]string{}, members...),
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
}

// memStore 是内存中的 RoomStore，按 id upsert
type memStore struct {
	mu     sync.Mutex
	rooms  map[string]domain.Room
	saves  int
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[string]domain.Room), failOn: make(map[string]error)}
}

func (s *memStore) Save(_ context.Context, r *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[r.ID]; ok {
		return err
	}
	s.saves++
	s.rooms[r.ID] = *r
	return nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return &r, nil
}

func (s *memStore) Query(context.Context, query.RoomQuery) ([]domain.Room, error) {
	return nil, errors.New("memStore: query not supported")
}

func (s *memStore) Search(context.Context, string, query.Page) ([]domain.Room, error) {
	return nil, errors.New("memStore: search not supported")
}

func (s *memStore) get(id string) (domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}
