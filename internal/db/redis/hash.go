package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/chemdex/internal/db"
)

// maxPipeline bounds the commands sent in one DoMulti round-trip.
const maxPipeline = 512

// HSetMulti stores hashes in pipelined DoMulti round-trips. A replacing
// item is preceded by DEL of its key in the same pipeline.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, min(2*len(items), maxPipeline))
	keys := make([]string, 0, cap(cmds))
	flush := func() error {
		if len(cmds) == 0 {
			return nil
		}
		for i, res := range s.client.DoMulti(ctx, cmds...) {
			if err := res.Error(); err != nil {
				return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
			}
		}
		cmds, keys = cmds[:0], keys[:0]
		return nil
	}

	for _, item := range items {
		if len(cmds)+2 > maxPipeline {
			if err := flush(); err != nil {
				return err
			}
		}
		if item.Replace {
			cmds = append(cmds, s.b().Del().Key(item.Key).Build())
			keys = append(keys, item.Key)
		}
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
		keys = append(keys, item.Key)
	}
	return flush()
}

// HGetAll returns all fields of a hash, or db.ErrKeyNotFound.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if len(m) == 0 {
		return nil, db.ErrKeyNotFound
	}
	return m, nil
}

// Del deletes a key. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}
