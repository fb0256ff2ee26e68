package devstate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func liveKey(deviceName string) string {
	return fmt.Sprintf("cwcore:device:%s:live", deviceName)
}

const allDevicesKey = "cwcore:devices"

func (r *RedisStore) SetLive(ctx context.Context, live *DeviceLive) error {
	data, err := json.Marshal(live)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, liveKey(live.DeviceName), data, 0)
	pipe.SAdd(ctx, allDevicesKey, live.DeviceName)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetLive(ctx context.Context, deviceName string) (*DeviceLive, error) {
	data, err := r.client.Get(ctx, liveKey(deviceName)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var live DeviceLive
	return &live, json.Unmarshal(data, &live)
}

func (r *RedisStore) AllDeviceNames(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, allDevicesKey).Result()
}

func (r *RedisStore) RemoveDevice(ctx context.Context, deviceName string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, liveKey(deviceName))
	pipe.SRem(ctx, allDevicesKey, deviceName)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	names, err := r.AllDeviceNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		r.RemoveDevice(ctx, name)
	}
	return r.client.Del(ctx, allDevicesKey).Err()
}
