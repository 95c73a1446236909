package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// Redis key prefix for chat room routing entries.
const roomKeyPrefix = "registrar:room:"

// RedisRoomStore keeps the address-to-chat-room routing table in Redis so
// multiple registrar instances agree on where to deliver challenge texts.
type RedisRoomStore struct {
	client *redis.Client
}

func NewRedisRoomStore(client *redis.Client) *RedisRoomStore {
	return &RedisRoomStore{client: client}
}

func roomKey(addr domain.NetworkAddress) string {
	return fmt.Sprintf("%s%s:%s", roomKeyPrefix, addr.Network, addr.Address)
}

func (s *RedisRoomStore) SaveRoom(ctx context.Context, addr domain.NetworkAddress, roomID string) error {
	return s.client.Set(ctx, roomKey(addr), roomID, 0).Err()
}

func (s *RedisRoomStore) FindRoom(ctx context.Context, addr domain.NetworkAddress) (string, error) {
	room, err := s.client.Get(ctx, roomKey(addr)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find room: %w", err)
	}
	return room, nil
}

func (s *RedisRoomStore) DeleteRoom(ctx context.Context, addr domain.NetworkAddress) error {
	return s.client.Del(ctx, roomKey(addr)).Err()
}
