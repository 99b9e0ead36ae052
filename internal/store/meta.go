package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/internal/cache"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// MetaRow is one row of an object type's metadata table.
type MetaRow struct {
	MetaID   int64
	ObjectID int64
	Key      string
	Value    string
}

// metaTarget resolves the metadata table and object column for objectType
// on h. The table is whatever a component registered under
// objectType+"meta"; without a registration the subsystem refuses.
func metaTarget(h Handle, objectType string) (table, column string, err error) {
	if objectType == "" {
		return "", "", types.ErrInvalidObjectType
	}
	table, ok := h.Table(objectType + "meta")
	if !ok {
		return "", "", fmt.Errorf("%w: %smeta", types.ErrMetaTableMissing, objectType)
	}
	return table, objectType + "_id", nil
}

// MetaCacheGroup is the object cache group of objectType on h.
func MetaCacheGroup(h Handle, objectType string) string {
	return h.Prefix + objectType + "_meta"
}

// AddMetadata inserts a metadata row and returns its id. With unique set it
// returns 0 without inserting when the object already has a row for key.
func (b *Backend) AddMetadata(ctx context.Context, h Handle, objectType string, objectID int64, key, value string, unique bool) (int64, error) {
	if objectID <= 0 {
		return 0, types.ErrInvalidObjectID
	}
	if key == "" {
		return 0, types.ErrInvalidKey
	}
	table, column, err := metaTarget(h, objectType)
	if err != nil {
		return 0, err
	}
	db, d, err := b.conn()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if unique {
		var n int
		err := tx.QueryRowContext(ctx, d.Rebind(
			"SELECT COUNT(*) FROM "+table+" WHERE meta_key = ? AND "+column+" = ?"),
			key, objectID).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("checking %s %s: %w", table, key, err)
		}
		if n > 0 {
			return 0, nil
		}
	}

	metaID, err := insertMeta(ctx, tx, d, table, column, objectID, key, value)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	b.invalidate(ctx, MetaCacheGroup(h, objectType), objectID)
	return metaID, nil
}

// GetMetadata returns the values of key for an object in meta_id order. An
// object without the key yields an empty, non-nil slice.
func (b *Backend) GetMetadata(ctx context.Context, h Handle, objectType string, objectID int64, key string) ([]string, error) {
	all, err := b.AllMetadata(ctx, h, objectType, objectID)
	if err != nil {
		return nil, err
	}
	values := all[key]
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// AllMetadata returns every key of an object with its values. Results are
// served from the object cache when present.
func (b *Backend) AllMetadata(ctx context.Context, h Handle, objectType string, objectID int64) (map[string][]string, error) {
	if objectID <= 0 {
		return nil, types.ErrInvalidObjectID
	}
	table, column, err := metaTarget(h, objectType)
	if err != nil {
		return nil, err
	}
	db, d, err := b.conn()
	if err != nil {
		return nil, err
	}

	group := MetaCacheGroup(h, objectType)
	oc := b.objectCache()
	if cached, ok, err := oc.Get(ctx, group, objectID); err != nil {
		b.logger.Warn("reading metadata cache", zap.String("group", group), zap.Int64("object_id", objectID), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	rows, err := db.QueryContext(ctx, d.Rebind(
		"SELECT meta_key, meta_value FROM "+table+" WHERE "+column+" = ? ORDER BY meta_id"),
		objectID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()

	all := make(map[string][]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		all[k] = append(all[k], v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := oc.Set(ctx, group, objectID, all); err != nil {
		b.logger.Warn("writing metadata cache", zap.String("group", group), zap.Int64("object_id", objectID), zap.Error(err))
	}
	return all, nil
}

// UpdateMetadata sets key on an object. When the object has no row for key
// a row is added, but only if prevValue is empty. With prevValue empty every
// row of key is overwritten, unless there is exactly one row already holding
// value. With prevValue set only rows holding prevValue change. Returns
// false when nothing was written.
func (b *Backend) UpdateMetadata(ctx context.Context, h Handle, objectType string, objectID int64, key, value, prevValue string) (bool, error) {
	if objectID <= 0 {
		return false, types.ErrInvalidObjectID
	}
	if key == "" {
		return false, types.ErrInvalidKey
	}
	table, column, err := metaTarget(h, objectType)
	if err != nil {
		return false, err
	}
	db, d, err := b.conn()
	if err != nil {
		return false, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := queryValues(ctx, tx, d.Rebind(
		"SELECT meta_value FROM "+table+" WHERE meta_key = ? AND "+column+" = ? ORDER BY meta_id"),
		key, objectID)
	if err != nil {
		return false, fmt.Errorf("reading %s %s: %w", table, key, err)
	}

	switch {
	case len(current) == 0:
		if prevValue != "" {
			return false, nil
		}
		if _, err := insertMeta(ctx, tx, d, table, column, objectID, key, value); err != nil {
			return false, err
		}
	case prevValue == "" && len(current) == 1 && current[0] == value:
		return false, nil
	default:
		query := "UPDATE " + table + " SET meta_value = ? WHERE meta_key = ? AND " + column + " = ?"
		args := []any{value, key, objectID}
		if prevValue != "" {
			query += " AND meta_value = ?"
			args = append(args, prevValue)
		}
		res, err := tx.ExecContext(ctx, d.Rebind(query), args...)
		if err != nil {
			return false, fmt.Errorf("updating %s %s: %w", table, key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	b.invalidate(ctx, MetaCacheGroup(h, objectType), objectID)
	return true, nil
}

// DeleteMetadata removes the rows of key on an object, limited to rows
// holding value when value is not empty. With deleteAll the object id is
// ignored and matching rows of every object are removed. Returns false when
// nothing matched.
func (b *Backend) DeleteMetadata(ctx context.Context, h Handle, objectType string, objectID int64, key, value string, deleteAll bool) (bool, error) {
	if !deleteAll && objectID <= 0 {
		return false, types.ErrInvalidObjectID
	}
	if key == "" {
		return false, types.ErrInvalidKey
	}
	table, column, err := metaTarget(h, objectType)
	if err != nil {
		return false, err
	}
	db, d, err := b.conn()
	if err != nil {
		return false, err
	}

	where := " WHERE meta_key = ?"
	args := []any{key}
	if !deleteAll {
		where += " AND " + column + " = ?"
		args = append(args, objectID)
	}
	if value != "" {
		where += " AND meta_value = ?"
		args = append(args, value)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	objectIDs, err := queryIDs(ctx, tx, d.Rebind("SELECT DISTINCT "+column+" FROM "+table+where), args...)
	if err != nil {
		return false, fmt.Errorf("matching %s %s: %w", table, key, err)
	}
	if len(objectIDs) == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, d.Rebind("DELETE FROM "+table+where), args...); err != nil {
		return false, fmt.Errorf("deleting %s %s: %w", table, key, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}

	b.invalidate(ctx, MetaCacheGroup(h, objectType), objectIDs...)
	return true, nil
}

// DeleteObjectMetadata removes every row of an object. It returns the number
// of rows removed.
func (b *Backend) DeleteObjectMetadata(ctx context.Context, h Handle, objectType string, objectID int64) (int64, error) {
	if objectID <= 0 {
		return 0, types.ErrInvalidObjectID
	}
	table, column, err := metaTarget(h, objectType)
	if err != nil {
		return 0, err
	}
	db, d, err := b.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, d.Rebind("DELETE FROM "+table+" WHERE "+column+" = ?"), objectID)
	if err != nil {
		return 0, fmt.Errorf("deleting %s rows of %d: %w", table, objectID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	b.invalidate(ctx, MetaCacheGroup(h, objectType), objectID)
	return n, nil
}

// GetMetadataByMID returns one row by its meta_id.
func (b *Backend) GetMetadataByMID(ctx context.Context, h Handle, objectType string, metaID int64) (MetaRow, error) {
	if metaID <= 0 {
		return MetaRow{}, types.ErrInvalidMetaID
	}
	table, column, err := metaTarget(h, objectType)
	if err != nil {
		return MetaRow{}, err
	}
	db, d, err := b.conn()
	if err != nil {
		return MetaRow{}, err
	}

	var row MetaRow
	err = db.QueryRowContext(ctx, d.Rebind(
		"SELECT meta_id, "+column+", meta_key, meta_value FROM "+table+" WHERE meta_id = ?"),
		metaID).Scan(&row.MetaID, &row.ObjectID, &row.Key, &row.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return MetaRow{}, fmt.Errorf("%w: %d", types.ErrMetaNotFound, metaID)
	}
	if err != nil {
		return MetaRow{}, fmt.Errorf("reading %s row %d: %w", table, metaID, err)
	}
	return row, nil
}

// DeleteMetadataByMID removes one row by its meta_id. Returns false when no
// such row exists.
func (b *Backend) DeleteMetadataByMID(ctx context.Context, h Handle, objectType string, metaID int64) (bool, error) {
	row, err := b.GetMetadataByMID(ctx, h, objectType, metaID)
	if errors.Is(err, types.ErrMetaNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	table, _, err := metaTarget(h, objectType)
	if err != nil {
		return false, err
	}
	db, d, err := b.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, d.Rebind("DELETE FROM "+table+" WHERE meta_id = ?"), metaID)
	if err != nil {
		return false, fmt.Errorf("deleting %s row %d: %w", table, metaID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	b.invalidate(ctx, MetaCacheGroup(h, objectType), row.ObjectID)
	return n > 0, nil
}

// MetaRows returns every row of an object in meta_id order.
func (b *Backend) MetaRows(ctx context.Context, h Handle, objectType string, objectID int64) ([]MetaRow, error) {
	if objectID <= 0 {
		return nil, types.ErrInvalidObjectID
	}
	table, column, err := metaTarget(h, objectType)
	if err != nil {
		return nil, err
	}
	db, d, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, d.Rebind(
		"SELECT meta_id, "+column+", meta_key, meta_value FROM "+table+" WHERE "+column+" = ? ORDER BY meta_id"),
		objectID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()

	var out []MetaRow
	for rows.Next() {
		var r MetaRow
		if err := rows.Scan(&r.MetaID, &r.ObjectID, &r.Key, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *Backend) objectCache() cache.Cache {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cache
}

func (b *Backend) invalidate(ctx context.Context, group string, ids ...int64) {
	if err := b.objectCache().Delete(ctx, group, ids...); err != nil {
		b.logger.Warn("invalidating metadata cache", zap.String("group", group), zap.Error(err))
	}
}

func insertMeta(ctx context.Context, tx *sql.Tx, d Dialect, table, column string, objectID int64, key, value string) (int64, error) {
	var metaID int64
	err := tx.QueryRowContext(ctx, d.Rebind(
		"INSERT INTO "+table+" ("+column+", meta_key, meta_value) VALUES (?, ?, ?) RETURNING meta_id"),
		objectID, key, value).Scan(&metaID)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", table, err)
	}
	return metaID, nil
}

func queryValues(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
