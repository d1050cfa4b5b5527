package valkey

import (
	"context"
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

// UpsertItems replaces each item's hash (DEL + HSET) in a single DoMulti round-trip.
// Vectors are stored as little-endian FLOAT32 blobs. The index picks hashes up by key prefix,
// so the index name is not needed here.
func (s *Store) UpsertItems(ctx context.Context, _ string, items []db.Item) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, 2*len(items))
	for i := range items {
		item := &items[i]
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for _, k := range slices.Sorted(maps.Keys(item.Fields)) {
			cmd = cmd.FieldValue(k, item.Fields[k])
		}
		for _, k := range slices.Sorted(maps.Keys(item.Vectors)) {
			cmd = cmd.FieldValue(k, vectorToBytes(item.Vectors[k]))
		}
		cmds = append(cmds,
			s.b().Del().Key(item.Key).Build(),
			cmd.Build(),
		)
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			op := db.OpHSet
			if i%2 == 0 {
				op = db.OpDel
			}
			return fmt.Errorf("key %s: %w", items[i/2].Key, wrapErr(op, err))
		}
	}
	return nil
}

// DeleteItem removes a single item hash.
func (s *Store) DeleteItem(ctx context.Context, _, key string) error {
	cmd := s.b().Del().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return wrapErr(db.OpDel, err)
	}
	if n == 0 {
		return db.ErrKeyNotFound
	}
	return nil
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(s string) ([]float32, error) {
	if len(s) == 0 || len(s)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(s))
	}
	b := []byte(s)
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
