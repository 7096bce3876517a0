package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
)

type RedisDriver struct {
	client *redis.Client
	prefix string
}

func NewRedisDriver(client *redis.Client, prefix string) *RedisDriver {
	if prefix == "" {
		prefix = "idx"
	}
	return &RedisDriver{client: client, prefix: prefix}
}

func (d *RedisDriver) docKey(kind entity.Kind, id int64) string {
	return fmt.Sprintf("%s:%s:%d", d.prefix, kind, id)
}

func (d *RedisDriver) setKey(kind entity.Kind) string {
	return fmt.Sprintf("%s:%s:ids", d.prefix, kind)
}

func (d *RedisDriver) Add(ctx context.Context, doc Document) error {
	pipe := d.client.TxPipeline()
	pipe.Set(ctx, d.docKey(doc.Kind, doc.ID), []byte(doc.Body), 0)
	pipe.SAdd(ctx, d.setKey(doc.Kind), doc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "index add")
	}
	return nil
}

func (d *RedisDriver) AddMultiple(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	pipe := d.client.TxPipeline()
	for _, doc := range docs {
		pipe.Set(ctx, d.docKey(doc.Kind, doc.ID), []byte(doc.Body), 0)
		pipe.SAdd(ctx, d.setKey(doc.Kind), doc.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "index add multiple")
	}
	return nil
}

func (d *RedisDriver) Update(ctx context.Context, doc Document) error {
	return d.Add(ctx, doc)
}

func (d *RedisDriver) UpdateMultiple(ctx context.Context, docs []Document) error {
	return d.AddMultiple(ctx, docs)
}

func (d *RedisDriver) Delete(ctx context.Context, kind entity.Kind, id int64) error {
	pipe := d.client.TxPipeline()
	pipe.Del(ctx, d.docKey(kind, id))
	pipe.SRem(ctx, d.setKey(kind), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "index delete")
	}
	return nil
}

func (d *RedisDriver) DeleteMultiple(ctx context.Context, kind entity.Kind, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := d.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, d.docKey(kind, id))
		pipe.SRem(ctx, d.setKey(kind), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "index delete multiple")
	}
	return nil
}

func (d *RedisDriver) IDs(ctx context.Context, kind entity.Kind) ([]int64, error) {
	members, err := d.client.SMembers(ctx, d.setKey(kind)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "index ids")
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed id set member %q", m)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *RedisDriver) Get(ctx context.Context, kind entity.Kind, id int64) (json.RawMessage, bool, error) {
	body, err := d.client.Get(ctx, d.docKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "index get")
	}
	return body, true, nil
}
