package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bonsaihq/bonsai/store"
)

func (d *DB) CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error) {
	fields := []string{"uid", "task_id", "creator_id", "remind_ts", "message", "status", "created_ts"}
	args := []any{create.UID, create.TaskID, create.CreatorID, create.RemindTs, create.Message, create.Status, create.CreatedTs}

	stmt := `INSERT INTO reminder (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	return create, nil
}

func (d *DB) ListReminders(ctx context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TaskID; v != nil {
		where, args = append(where, "task_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "remind_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, uid, task_id, creator_id, remind_ts, message, status, delivered_ts, created_ts FROM reminder WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY remind_ts ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Reminder, 0)
	for rows.Next() {
		r := &store.Reminder{}
		var deliveredTs sql.NullInt64
		if err := rows.Scan(&r.ID, &r.UID, &r.TaskID, &r.CreatorID, &r.RemindTs, &r.Message, &r.Status, &deliveredTs, &r.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		if deliveredTs.Valid {
			r.DeliveredTs = &deliveredTs.Int64
		}
		list = append(list, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteReminder(ctx context.Context, delete *store.DeleteReminder) error {
	where, args := []string{}, []any{}

	if delete.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	}
	if delete.TaskID != nil {
		where, args = append(where, "task_id = "+placeholder(len(args)+1)), append(args, *delete.TaskID)
	}

	if len(where) == 0 {
		return fmt.Errorf("no condition to delete")
	}

	stmt := `DELETE FROM reminder WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	return nil
}

func (d *DB) ClaimReminder(ctx context.Context, id int32, deliveredTs int64) (bool, error) {
	stmt := `UPDATE reminder SET status = ?, delivered_ts = ? WHERE id = ? AND status = ?`
	result, err := d.db.ExecContext(ctx, stmt, store.ReminderStatusDelivered, deliveredTs, id, store.ReminderStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows == 1, nil
}

func (d *DB) CancelTaskReminders(ctx context.Context, taskID int32) (int64, error) {
	stmt := `UPDATE reminder SET status = ? WHERE task_id = ? AND status = ?`
	result, err := d.db.ExecContext(ctx, stmt, store.ReminderStatusCancelled, taskID, store.ReminderStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel task reminders: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows, nil
}
