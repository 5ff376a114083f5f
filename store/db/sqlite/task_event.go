package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bonsaihq/bonsai/store"
)

func (d *DB) CreateTaskEvent(ctx context.Context, create *store.TaskEvent) (*store.TaskEvent, error) {
	fields := []string{"uid", "task_id", "creator_id", "type", "payload", "published", "created_ts"}
	args := []any{create.UID, create.TaskID, create.CreatorID, create.Type, create.Payload, create.Published, create.CreatedTs}

	stmt := `INSERT INTO task_event (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create task event: %w", err)
	}

	return create, nil
}

func (d *DB) ListTaskEvents(ctx context.Context, find *store.FindTaskEvent) ([]*store.TaskEvent, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TaskID; v != nil {
		where, args = append(where, "task_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Published; v != nil {
		where, args = append(where, "published = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatedBefore; v != nil {
		where, args = append(where, "created_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, uid, task_id, creator_id, type, payload, published, published_ts, created_ts FROM task_event WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_ts ASC, id ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task events: %w", err)
	}
	defer rows.Close()

	list := make([]*store.TaskEvent, 0)
	for rows.Next() {
		e := &store.TaskEvent{}
		var publishedTs sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UID, &e.TaskID, &e.CreatorID, &e.Type, &e.Payload, &e.Published, &publishedTs, &e.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan task event: %w", err)
		}
		if publishedTs.Valid {
			e.PublishedTs = &publishedTs.Int64
		}
		list = append(list, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task events: %w", err)
	}

	return list, nil
}

func (d *DB) MarkTaskEventPublished(ctx context.Context, id int32, publishedTs int64) error {
	stmt := `UPDATE task_event SET published = 1, published_ts = ? WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, publishedTs, id); err != nil {
		return fmt.Errorf("failed to mark task event published: %w", err)
	}

	return nil
}

func (d *DB) PurgeTaskEvents(ctx context.Context, before int64) (int64, error) {
	stmt := `DELETE FROM task_event WHERE created_ts <= ?`
	result, err := d.db.ExecContext(ctx, stmt, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge task events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows, nil
}
