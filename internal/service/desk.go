package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mmeshcher/airtime-desk/internal/model"
	"github.com/mmeshcher/airtime-desk/internal/validation"
)

// ErrValidation возвращается при некорректном административном вводе.
var ErrValidation = errors.New("invalid administrative input")

// AddPackage добавляет пакет в прайс-лист или заменяет существующий.
func (s *Service) AddPackage(ctx context.Context, name, kind, amountRaw, description string) (*model.Package, error) {
	var k model.PackageKind
	switch model.PackageKind(kind) {
	case model.KindAirtime, model.KindData:
		k = model.PackageKind(kind)
	default:
		return nil, fmt.Errorf("%w: unknown package kind %q", ErrValidation, kind)
	}

	amount, err := validation.ParseAmount(amountRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	p := model.Package{Name: name, Kind: k, Amount: amount, Description: description}
	if err := s.repo.UpsertPrice(ctx, p); err != nil {
		return nil, err
	}

	return &p, nil
}

// DeletePackage удаляет пакет из прайс-листа.
func (s *Service) DeletePackage(ctx context.Context, name string) error {
	return s.repo.DeletePrice(ctx, name)
}

// SetRate меняет курс конвертации для airtime-пакетов.
func (s *Service) SetRate(raw string) (int64, error) {
	v, err := validation.ParseAmount(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := s.rate.Set(v); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return v, nil
}

// Broadcast рассылает сообщение всем известным пользователям и возвращает
// число адресатов. Сбои доставки по отдельным адресатам не прерывают рассылку.
func (s *Service) Broadcast(ctx context.Context, text string) (int, error) {
	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.notifier.NotifyUser(ctx, id, text)
	}

	return len(ids), nil
}

// CreateTicket регистрирует обращение в поддержку и уведомляет оператора.
func (s *Service) CreateTicket(ctx context.Context, userID int64, message string) (*model.Ticket, error) {
	now := s.now()
	t := &model.Ticket{
		ID:        newID("TK", now),
		UserID:    userID,
		Message:   message,
		Status:    model.TicketPending,
		CreatedAt: now,
	}

	if err := s.repo.CreateTicket(ctx, t); err != nil {
		return nil, err
	}

	s.notifier.NotifyOperator(ctx, fmt.Sprintf(
		"New ticket %s\nuser: %d\nmessage: %s", t.ID, t.UserID, t.Message,
	), nil)

	return t, nil
}

// ReplyTicket отправляет ответ оператора автору тикета и закрывает тикет.
func (s *Service) ReplyTicket(ctx context.Context, ticketID, message string) error {
	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}

	reply := &model.TicketReply{
		TicketID:  ticketID,
		FromAdmin: true,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.repo.AddTicketReply(ctx, reply); err != nil {
		return err
	}

	if err := s.repo.UpdateTicketStatus(ctx, ticketID, model.TicketAnswered); err != nil {
		return err
	}

	s.notifier.NotifyUser(ctx, ticket.UserID, fmt.Sprintf(
		"Reply to ticket %s:\n%s", ticketID, message,
	))

	return nil
}

// GetTicket возвращает тикет по идентификатору.
func (s *Service) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

// AddFeedback сохраняет оценку сервиса с нормализацией цифр оценки.
func (s *Service) AddFeedback(ctx context.Context, userID int64, ratingRaw, message string) error {
	rating, err := validation.ParseRating(ratingRaw)
	if err != nil {
		return err
	}

	return s.repo.AddFeedback(ctx, &model.Feedback{
		UserID:    userID,
		Rating:    rating,
		Message:   message,
		CreatedAt: s.now(),
	})
}

// Stats возвращает сводку по сервису.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	return s.repo.GetStats(ctx, s.now())
}

// ExportTransactionsCSV выгружает все заказы в CSV.
func (s *Service) ExportTransactionsCSV(ctx context.Context, w io.Writer) error {
	transactions, err := s.repo.ListAllTransactions(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"created_at", "transaction_id", "user_id", "amount", "status", "phone_number", "package_name"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, t := range transactions {
		record := []string{
			t.CreatedAt.Format(time.RFC3339),
			t.ID,
			strconv.FormatInt(t.UserID, 10),
			strconv.FormatInt(t.Amount, 10),
			string(t.Status),
			t.PhoneNumber,
			t.PackageName,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}
