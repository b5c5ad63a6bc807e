package store

import (
	"context"
	"encoding/json"

	"glucose-bridge/internal/model"

	"github.com/redis/go-redis/v9"
)

const lastSentKey = "watch:last_sent"

// LastSentCache keeps the single most recent DeviceSendRecord. Saves
// supersede the previous record; there is no history here.
type LastSentCache struct{ rdb *redis.Client }

func NewLastSentCache(rdb *redis.Client) *LastSentCache { return &LastSentCache{rdb: rdb} }

func (c *LastSentCache) Save(ctx context.Context, rec model.DeviceSendRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, lastSentKey, b, 0).Err()
}

func (c *LastSentCache) Load(ctx context.Context) (*model.DeviceSendRecord, error) {
	b, err := c.rdb.Get(ctx, lastSentKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.DeviceSendRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
