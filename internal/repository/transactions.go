package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/airtime-desk/internal/model"
)

const transactionColumns = `transaction_id, user_id, package_name, amount, phone_number,
	status, created_at, payment_time, completed_at, rejected_at, expired_at, last_reminded_at`

// timestampColumn сопоставляет статусу колонку таймстемпа, которая
// проставляется при входе в этот статус. Инвариант "статус согласован
// с заполненным таймстемпом" обеспечивается тем, что колонка пишется
// только вместе со сменой статуса.
func timestampColumn(status model.TransactionStatus) (string, bool) {
	switch status {
	case model.StatusPendingReview:
		return "payment_time", true
	case model.StatusCompleted:
		return "completed_at", true
	case model.StatusRejected:
		return "rejected_at", true
	case model.StatusExpired:
		return "expired_at", true
	}
	return "", false
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var phone *string
	err := row.Scan(
		&t.ID, &t.UserID, &t.PackageName, &t.Amount, &phone,
		&t.Status, &t.CreatedAt, &t.PaymentTime, &t.CompletedAt,
		&t.RejectedAt, &t.ExpiredAt, &t.LastRemindedAt,
	)
	if err != nil {
		return nil, err
	}
	if phone != nil {
		t.PhoneNumber = *phone
	}
	return &t, nil
}

// CreateTransaction сохраняет новый заказ, атомарно проверяя дневной лимит.
// Строка пользователя блокируется, чтобы параллельные создания того же
// пользователя не обошли лимит.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *model.Transaction, dailyLimit int64) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE user_id = $1 FOR UPDATE`, t.UserID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock user for update: %w", err)
		}

		dayStart, dayEnd := r.dayBounds(t.CreatedAt)
		var todayCount int64
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM transactions
			 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
			t.UserID, dayStart, dayEnd,
		).Scan(&todayCount)
		if err != nil {
			return fmt.Errorf("count today transactions: %w", err)
		}

		if todayCount >= dailyLimit {
			return ErrDailyLimitExceeded
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (transaction_id, user_id, package_name, amount, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, t.UserID, t.PackageName, t.Amount, string(t.Status), t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// GetTransaction возвращает заказ по идентификатору.
func (r *PostgresRepository) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1`,
		id,
	)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	return t, nil
}

// SetPhoneNumber привязывает телефонный номер к заказу в статусе pending.
// Статус при этом не меняется.
func (r *PostgresRepository) SetPhoneNumber(ctx context.Context, id, phone string) (*model.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE transactions SET phone_number = $2
		 WHERE transaction_id = $1 AND status = $3
		 RETURNING `+transactionColumns,
		id, phone, string(model.StatusPending),
	)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.resolveMissedUpdate(ctx, id)
		}
		return nil, fmt.Errorf("set phone number: %w", err)
	}

	return t, nil
}

// TransitionStatus выполняет условный переход статуса заказа одним UPDATE
// (compare-and-swap): переход выигрывает только если текущий статус равен from.
// Проигравшая сторона получает ErrStatusConflict, а не перезаписывает результат.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, id string, from, to model.TransactionStatus, at time.Time) (*model.Transaction, error) {
	col, ok := timestampColumn(to)
	if !ok {
		return nil, fmt.Errorf("status %q has no entry timestamp", to)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE transactions SET status = $2, `+col+` = $3
		 WHERE transaction_id = $1 AND status = $4
		 RETURNING `+transactionColumns,
		id, string(to), at, string(from),
	)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.resolveMissedUpdate(ctx, id)
		}
		return nil, fmt.Errorf("transition status: %w", err)
	}

	return t, nil
}

// CompleteTransaction завершает заказ и инкрементирует счётчики пользователя
// в одной транзакции БД: либо происходит и переход, и начисление, либо ничего.
func (r *PostgresRepository) CompleteTransaction(ctx context.Context, id string, at time.Time) (*model.Transaction, error) {
	var result *model.Transaction

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`UPDATE transactions SET status = $2, completed_at = $3
			 WHERE transaction_id = $1 AND status = $4
			 RETURNING `+transactionColumns,
			id, string(model.StatusCompleted), at, string(model.StatusPendingReview),
		)

		t, err := scanTransaction(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return r.resolveMissedUpdate(ctx, id)
			}
			return fmt.Errorf("complete transaction: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE users
			 SET transactions_count = transactions_count + 1,
			     total_spent = total_spent + $2,
			     loyalty_points = loyalty_points + 1
			 WHERE user_id = $1`,
			t.UserID, t.Amount,
		)
		if err != nil {
			return fmt.Errorf("update user stats: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// resolveMissedUpdate различает причину несработавшего условного UPDATE:
// записи нет вовсе или она уже в другом статусе.
func (r *PostgresRepository) resolveMissedUpdate(ctx context.Context, id string) error {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM transactions WHERE transaction_id = $1`, id,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("resolve transaction status: %w", err)
	}
	return fmt.Errorf("%w: current status %q", ErrStatusConflict, status)
}

// ListPendingOlderThan возвращает pending-заказы, созданные до указанного момента.
func (r *PostgresRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Transaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at`,
		string(model.StatusPending), cutoff,
	)
}

// ListPendingForReminder возвращает pending-заказы, созданные до createdBefore,
// по которым напоминание не отправлялось либо отправлялось до remindedBefore.
func (r *PostgresRepository) ListPendingForReminder(ctx context.Context, createdBefore, remindedBefore time.Time) ([]model.Transaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE status = $1 AND created_at < $2
		   AND (last_reminded_at IS NULL OR last_reminded_at < $3)
		 ORDER BY created_at`,
		string(model.StatusPending), createdBefore, remindedBefore,
	)
}

// MarkReminded фиксирует время последнего отправленного напоминания.
func (r *PostgresRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transactions SET last_reminded_at = $2 WHERE transaction_id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

// ListTransactionsByUser возвращает последние заказы пользователя.
func (r *PostgresRepository) ListTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
}

// ListAllTransactions возвращает все заказы для экспорта.
func (r *PostgresRepository) ListAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY created_at`,
	)
}

// CountByStatus возвращает количество заказов в указанном статусе.
func (r *PostgresRepository) CountByStatus(ctx context.Context, status model.TransactionStatus) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE status = $1`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) listTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		res = append(res, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
