package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

type aggregateRow struct {
	KeyType string  `db:"key_type"`
	Key     string  `db:"key"`
	Minutes float64 `db:"minutes"`
}

// InsertAggregate records one rollup bucket.
func (s *Store) InsertAggregate(ctx context.Context, keyType, key string, bucketStartTS, bucketEndTS int64, minutes float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aggregates (key_type, key, bucket_start_ts, bucket_end_ts, minutes)
		VALUES (?, ?, ?, ?, ?)`,
		keyType, key, bucketStartTS, bucketEndTS, minutes)
	return errors.Wrap(err, "inserting aggregate")
}

// TopAggregates sums minutes per key over the buckets inside the filter and
// returns the top keys, minutes descending. A nil filter spans all time.
func (s *Store) TopAggregates(ctx context.Context, keyType string, tf *types.TimeFilter, limit int) ([]types.Aggregate, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT key_type, key, SUM(minutes) AS minutes FROM aggregates WHERE key_type = ?`
	args := []any{keyType}
	if tf != nil {
		if tf.Start != nil {
			query += ` AND bucket_start_ts >= ?`
			args = append(args, tf.Start.Unix())
		}
		if tf.End != nil {
			query += ` AND bucket_start_ts < ?`
			args = append(args, tf.End.Unix())
		}
	}
	query += ` GROUP BY key ORDER BY minutes DESC, key ASC LIMIT ?`
	args = append(args, limit)

	var rows []aggregateRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying aggregates")
	}
	out := make([]types.Aggregate, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Aggregate{KeyType: r.KeyType, Key: r.Key, Minutes: r.Minutes})
	}
	return out, nil
}
