package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bonsaihq/bonsai/store"
)

func (d *DB) CreateTask(ctx context.Context, create *store.Task) (*store.Task, error) {
	fields := []string{
		"uid", "creator_id", "title", "description", "status", "priority",
		"due_ts", "recurrence_rule_id", "parent_task_id", "created_ts", "updated_ts",
	}
	args := []any{
		create.UID, create.CreatorID, create.Title, create.Description, create.Status, create.Priority,
		create.DueTs, create.RecurrenceRuleID, create.ParentTaskID, create.CreatedTs, create.UpdatedTs,
	}

	stmt := `INSERT INTO task (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return create, nil
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "task.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "task.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "task.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "task.status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.RecurrenceRuleID; v != nil {
		where, args = append(where, "task.recurrence_rule_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ParentTaskID; v != nil {
		where, args = append(where, "task.parent_task_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TitleContains; v != nil {
		where, args = append(where, "LOWER(task.title) LIKE "+placeholder(len(args)+1)), append(args, "%"+strings.ToLower(*v)+"%")
	}

	query := `
		SELECT
			id, uid, creator_id, title, description, status, priority,
			due_ts, recurrence_rule_id, parent_task_id,
			created_ts, updated_ts, completed_ts
		FROM task
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY task.created_ts DESC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Task, 0)
	for rows.Next() {
		var task store.Task
		var dueTs, completedTs sql.NullInt64
		var recurrenceRuleID, parentTaskID sql.NullInt32

		if err := rows.Scan(
			&task.ID,
			&task.UID,
			&task.CreatorID,
			&task.Title,
			&task.Description,
			&task.Status,
			&task.Priority,
			&dueTs,
			&recurrenceRuleID,
			&parentTaskID,
			&task.CreatedTs,
			&task.UpdatedTs,
			&completedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		if dueTs.Valid {
			task.DueTs = &dueTs.Int64
		}
		if completedTs.Valid {
			task.CompletedTs = &completedTs.Int64
		}
		if recurrenceRuleID.Valid {
			task.RecurrenceRuleID = &recurrenceRuleID.Int32
		}
		if parentTaskID.Valid {
			task.ParentTaskID = &parentTaskID.Int32
		}

		list = append(list, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateTask(ctx context.Context, update *store.UpdateTask) error {
	set, args := []string{}, []any{}

	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Priority; v != nil {
		set, args = append(set, "priority = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.DueTs; v != nil {
		set, args = append(set, "due_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.RecurrenceRuleID; v != nil {
		set, args = append(set, "recurrence_rule_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.CompletedTs; v != nil {
		set, args = append(set, "completed_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}

	if len(set) == 0 {
		return nil
	}

	args = append(args, update.ID)
	stmt := `UPDATE task SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	return nil
}

func (d *DB) DeleteTask(ctx context.Context, delete *store.DeleteTask) error {
	stmt := `DELETE FROM task WHERE id = ` + placeholder(1)
	result, err := d.db.ExecContext(ctx, stmt, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task not found")
	}

	return nil
}

func (d *DB) CompleteTask(ctx context.Context, id int32, completedTs int64) (bool, error) {
	stmt := `UPDATE task SET status = $1, completed_ts = $2, updated_ts = $3 WHERE id = $4 AND status = $5`
	result, err := d.db.ExecContext(ctx, stmt, store.TaskStatusCompleted, completedTs, completedTs, id, store.TaskStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to complete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows == 1, nil
}
