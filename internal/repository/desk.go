package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/airtime-desk/internal/model"
)

// ListPrices возвращает прайс-лист в алфавитном порядке.
func (r *PostgresRepository) ListPrices(ctx context.Context) ([]model.Package, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT package_name, kind, amount, description FROM prices ORDER BY package_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select prices: %w", err)
	}
	defer rows.Close()

	var res []model.Package
	for rows.Next() {
		var p model.Package
		var kind string
		if err := rows.Scan(&p.Name, &kind, &p.Amount, &p.Description); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		p.Kind = model.PackageKind(kind)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetPrice возвращает пакет по имени.
func (r *PostgresRepository) GetPrice(ctx context.Context, name string) (*model.Package, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT package_name, kind, amount, description FROM prices WHERE package_name = $1`,
		name,
	)

	var p model.Package
	var kind string
	err := row.Scan(&p.Name, &kind, &p.Amount, &p.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get price: %w", err)
	}
	p.Kind = model.PackageKind(kind)

	return &p, nil
}

// UpsertPrice добавляет пакет или заменяет существующий с тем же именем.
func (r *PostgresRepository) UpsertPrice(ctx context.Context, p model.Package) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO prices (package_name, kind, amount, description) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (package_name) DO UPDATE
		 SET kind = EXCLUDED.kind, amount = EXCLUDED.amount, description = EXCLUDED.description`,
		p.Name, string(p.Kind), p.Amount, p.Description,
	)
	if err != nil {
		return fmt.Errorf("upsert price: %w", err)
	}
	return nil
}

// DeletePrice удаляет пакет из прайс-листа.
func (r *PostgresRepository) DeletePrice(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prices WHERE package_name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTicket сохраняет новый тикет поддержки.
func (r *PostgresRepository) CreateTicket(ctx context.Context, t *model.Ticket) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tickets (ticket_id, user_id, message, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.UserID, t.Message, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// GetTicket возвращает тикет по идентификатору.
func (r *PostgresRepository) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT ticket_id, user_id, message, status, created_at FROM tickets WHERE ticket_id = $1`,
		id,
	)

	var t model.Ticket
	var status string
	err := row.Scan(&t.ID, &t.UserID, &t.Message, &status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	t.Status = model.TicketStatus(status)

	return &t, nil
}

// AddTicketReply добавляет сообщение в переписку по тикету.
func (r *PostgresRepository) AddTicketReply(ctx context.Context, reply *model.TicketReply) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ticket_replies (ticket_id, from_admin, message, created_at)
		 VALUES ($1, $2, $3, $4)`,
		reply.TicketID, reply.FromAdmin, reply.Message, reply.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket reply: %w", err)
	}
	return nil
}

// UpdateTicketStatus меняет статус тикета.
func (r *PostgresRepository) UpdateTicketStatus(ctx context.Context, id string, status model.TicketStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET status = $2 WHERE ticket_id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPendingTickets возвращает число тикетов без ответа.
func (r *PostgresRepository) CountPendingTickets(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE status = $1`,
		string(model.TicketPending),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending tickets: %w", err)
	}
	return count, nil
}

// AddFeedback сохраняет оценку сервиса.
func (r *PostgresRepository) AddFeedback(ctx context.Context, f *model.Feedback) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO feedbacks (user_id, rating, message, created_at) VALUES ($1, $2, $3, $4)`,
		f.UserID, f.Rating, f.Message, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// GetStats собирает сводку по сервису на момент now.
func (r *PostgresRepository) GetStats(ctx context.Context, now time.Time) (*model.Stats, error) {
	dayStart, dayEnd := r.dayBounds(now)
	weekStart := dayStart.AddDate(0, 0, -7)

	var s model.Stats

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transactions
		 WHERE created_at >= $1 AND created_at < $2`,
		dayStart, dayEnd,
	).Scan(&s.TodayTransactions, &s.TodayAmount)
	if err != nil {
		return nil, fmt.Errorf("today stats: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transactions WHERE created_at >= $1`,
		weekStart,
	).Scan(&s.WeekTransactions, &s.WeekAmount)
	if err != nil {
		return nil, fmt.Errorf("week stats: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&s.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM transactions WHERE created_at >= $1 AND created_at < $2`,
		dayStart, dayEnd,
	).Scan(&s.ActiveUsersToday)
	if err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3)
		 FROM transactions`,
		string(model.StatusCompleted), string(model.StatusPendingReview), string(model.StatusRejected),
	).Scan(&s.Completed, &s.PendingReview, &s.Rejected)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $1) FROM tickets`,
		string(model.TicketPending),
	).Scan(&s.TotalTickets, &s.PendingTickets)
	if err != nil {
		return nil, fmt.Errorf("ticket counts: %w", err)
	}

	return &s, nil
}
