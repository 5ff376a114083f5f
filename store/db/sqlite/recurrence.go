package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bonsaihq/bonsai/store"
)

func (d *DB) CreateRecurrenceRule(ctx context.Context, create *store.RecurrenceRule) (*store.RecurrenceRule, error) {
	fields := []string{"creator_id", "frequency", "interval", "end_type", "end_count", "end_ts", "created_ts"}
	args := []any{create.CreatorID, create.Frequency, create.Interval, create.EndType, create.EndCount, create.EndTs, create.CreatedTs}

	stmt := `INSERT INTO recurrence_rule (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create recurrence rule: %w", err)
	}

	return create, nil
}

func (d *DB) ListRecurrenceRules(ctx context.Context, find *store.FindRecurrenceRule) ([]*store.RecurrenceRule, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, creator_id, frequency, interval, end_type, end_count, end_ts, created_ts FROM recurrence_rule WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurrence rules: %w", err)
	}
	defer rows.Close()

	list := make([]*store.RecurrenceRule, 0)
	for rows.Next() {
		r := &store.RecurrenceRule{}
		var endCount sql.NullInt32
		var endTs sql.NullInt64
		if err := rows.Scan(&r.ID, &r.CreatorID, &r.Frequency, &r.Interval, &r.EndType, &endCount, &endTs, &r.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan recurrence rule: %w", err)
		}
		if endCount.Valid {
			r.EndCount = &endCount.Int32
		}
		if endTs.Valid {
			r.EndTs = &endTs.Int64
		}
		list = append(list, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recurrence rules: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteRecurrenceRule(ctx context.Context, delete *store.DeleteRecurrenceRule) error {
	stmt := `DELETE FROM recurrence_rule WHERE id = ` + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, delete.ID); err != nil {
		return fmt.Errorf("failed to delete recurrence rule: %w", err)
	}

	return nil
}
