// Package service реализует бизнес-логику приёма и сопровождения заказов.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/airtime-desk/internal/model"
	"github.com/mmeshcher/airtime-desk/internal/pricing"
	"github.com/mmeshcher/airtime-desk/internal/repository"
	"github.com/mmeshcher/airtime-desk/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	UpsertUser(ctx context.Context, id int64, username string, joinedAt time.Time) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	CountCompleted(ctx context.Context, userID int64) (int64, error)
	ListUserIDs(ctx context.Context) ([]int64, error)

	CreateTransaction(ctx context.Context, t *model.Transaction, dailyLimit int64) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	SetPhoneNumber(ctx context.Context, id, phone string) (*model.Transaction, error)
	TransitionStatus(ctx context.Context, id string, from, to model.TransactionStatus, at time.Time) (*model.Transaction, error)
	CompleteTransaction(ctx context.Context, id string, at time.Time) (*model.Transaction, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Transaction, error)
	ListPendingForReminder(ctx context.Context, createdBefore, remindedBefore time.Time) ([]model.Transaction, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
	ListTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]model.Transaction, error)
	CountByStatus(ctx context.Context, status model.TransactionStatus) (int64, error)

	ListPrices(ctx context.Context) ([]model.Package, error)
	GetPrice(ctx context.Context, name string) (*model.Package, error)
	UpsertPrice(ctx context.Context, p model.Package) error
	DeletePrice(ctx context.Context, name string) error

	CreateTicket(ctx context.Context, t *model.Ticket) error
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	AddTicketReply(ctx context.Context, reply *model.TicketReply) error
	UpdateTicketStatus(ctx context.Context, id string, status model.TicketStatus) error
	CountPendingTickets(ctx context.Context) (int64, error)
	AddFeedback(ctx context.Context, f *model.Feedback) error

	GetStats(ctx context.Context, now time.Time) (*model.Stats, error)
}

// DecisionPrompt просит оператора принять решение по заказу.
type DecisionPrompt struct {
	TransactionID string
}

// Notifier доставляет сообщения пользователям и оператору.
// Доставка best-effort: сбой доставки логируется реализацией и никогда
// не откатывает уже применённый переход состояния.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string)
	NotifyOperator(ctx context.Context, text string, prompt *DecisionPrompt)
}

// Limits содержит настраиваемые пороги движка заказов.
type Limits struct {
	DailyTransactions int64
	ExpireAfter       time.Duration
	RemindAfter       time.Duration
	RemindEvery       time.Duration
	ProofMinBytes     int64
	ProofMaxBytes     int64
	HistoryLimit      int
}

// Service содержит бизнес-логику движка заказов и стола поддержки.
type Service struct {
	repo     Repository
	notifier Notifier
	rate     *pricing.Rate
	policy   pricing.Policy
	limits   Limits
	logger   *zap.Logger
	now      func() time.Time
}

// NewService создаёт сервис. Часы инжектируются, чтобы логика экспирации
// и напоминаний была детерминированно тестируемой.
func NewService(
	repo Repository,
	notifier Notifier,
	rate *pricing.Rate,
	policy pricing.Policy,
	limits Limits,
	logger *zap.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		rate:     rate,
		policy:   policy,
		limits:   limits,
		logger:   logger,
		now:      now,
	}
}

// SetNotifier задаёт нотификатор после создания сервиса. Вызывается один
// раз при сборке приложения до запуска обработчиков и фоновых обходов.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// newID генерирует идентификатор с префиксом: unix-секунды создания плюс
// случайный суффикс. Не содержит разделителей и не коллидирует в пределах
// одной секунды при параллельном создании.
func newID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d%08X", prefix, now.Unix(), uuid.New().ID())
}

// RegisterUser регистрирует пользователя при первом контакте (идемпотентно).
func (s *Service) RegisterUser(ctx context.Context, id int64, username string) error {
	return s.repo.UpsertUser(ctx, id, username, s.now())
}

// Offer описывает пакет с рассчитанной для пользователя ценой.
type Offer struct {
	Package       model.Package
	FinalAmount   int64
	DiscountLabel string
}

// ListOffers возвращает пакеты указанного вида с ценами для пользователя.
func (s *Service) ListOffers(ctx context.Context, userID int64, kind model.PackageKind) ([]Offer, error) {
	packages, err := s.repo.ListPrices(ctx)
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.CountCompleted(ctx, userID)
	if err != nil {
		return nil, err
	}

	rate := s.rate.Get()
	var offers []Offer
	for _, p := range packages {
		if p.Kind != kind {
			continue
		}
		amount, label := s.policy.Quote(p, rate, completed)
		offers = append(offers, Offer{Package: p, FinalAmount: amount, DiscountLabel: label})
	}

	return offers, nil
}

// QuotePackage рассчитывает цену одного пакета для пользователя.
func (s *Service) QuotePackage(ctx context.Context, userID int64, name string) (*Offer, error) {
	pkg, err := s.repo.GetPrice(ctx, name)
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.CountCompleted(ctx, userID)
	if err != nil {
		return nil, err
	}

	amount, label := s.policy.Quote(*pkg, s.rate.Get(), completed)
	return &Offer{Package: *pkg, FinalAmount: amount, DiscountLabel: label}, nil
}

// CreateOrder создаёт заказ на выбранный пакет по рассчитанной цене.
// Сумма фиксируется в момент создания. Дневной лимит проверяется атомарно
// со вставкой. Оператор получает уведомление о новом заказе.
func (s *Service) CreateOrder(ctx context.Context, userID int64, packageName string) (*model.Transaction, error) {
	offer, err := s.QuotePackage(ctx, userID, packageName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &model.Transaction{
		ID:          newID("TX", now),
		UserID:      userID,
		PackageName: offer.Package.Name,
		Amount:      offer.FinalAmount,
		Status:      model.StatusPending,
		CreatedAt:   now,
	}

	if err := s.repo.CreateTransaction(ctx, t, s.limits.DailyTransactions); err != nil {
		return nil, err
	}

	s.notifier.NotifyOperator(ctx, fmt.Sprintf(
		"New order %s\nuser: %d\namount: %d\npackage: %s",
		t.ID, t.UserID, t.Amount, t.PackageName,
	), nil)

	return t, nil
}

// BindPhoneNumber валидирует и привязывает номер телефона к заказу.
// Заказ должен существовать и быть в статусе pending; статус не меняется.
func (s *Service) BindPhoneNumber(ctx context.Context, transactionID, raw string) (*model.Transaction, error) {
	phone, err := validation.ValidatePhone(raw)
	if err != nil {
		return nil, err
	}

	return s.repo.SetPhoneNumber(ctx, transactionID, phone)
}

// SubmitPaymentProof принимает изображение рассчётного чека.
// Некорректное изображение отклоняется без изменения состояния, и пользователь
// может повторить попытку. При успехе заказ переходит в pending_review,
// фиксируется payment_time, оператору уходит запрос на решение.
func (s *Service) SubmitPaymentProof(ctx context.Context, transactionID string, proofSize int64) (*model.Transaction, error) {
	if err := validation.ValidateProofSize(proofSize, s.limits.ProofMinBytes, s.limits.ProofMaxBytes); err != nil {
		return nil, err
	}

	t, err := s.repo.TransitionStatus(ctx, transactionID,
		model.StatusPending, model.StatusPendingReview, s.now())
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyOperator(ctx, fmt.Sprintf(
		"Payment proof received for %s\nuser: %d\nphone: %s\namount: %d\npackage: %s",
		t.ID, t.UserID, t.PhoneNumber, t.Amount, t.PackageName,
	), &DecisionPrompt{TransactionID: t.ID})

	return t, nil
}

// Decision представляет решение оператора по заказу.
type Decision int

const (
	Approve Decision = iota
	Reject
)

// Decide применяет решение оператора к заказу в статусе pending_review.
// Повторное решение по уже решённому заказу отклоняется, а не применяется
// заново. Счётчики пользователя меняются только при одобрении.
func (s *Service) Decide(ctx context.Context, transactionID string, decision Decision) (*model.Transaction, error) {
	now := s.now()

	switch decision {
	case Approve:
		t, err := s.repo.CompleteTransaction(ctx, transactionID, now)
		if err != nil {
			return nil, err
		}
		s.notifier.NotifyUser(ctx, t.UserID, fmt.Sprintf(
			"Your order %s is completed.\nphone: %s\namount: %d\npackage: %s\nThank you!",
			t.ID, t.PhoneNumber, t.Amount, t.PackageName,
		))
		return t, nil

	case Reject:
		t, err := s.repo.TransitionStatus(ctx, transactionID,
			model.StatusPendingReview, model.StatusRejected, now)
		if err != nil {
			return nil, err
		}
		s.notifier.NotifyUser(ctx, t.UserID, fmt.Sprintf(
			"Your order %s was not approved.\namount: %d\nPlease contact support.",
			t.ID, t.Amount,
		))
		return t, nil
	}

	return nil, fmt.Errorf("unknown decision %d", decision)
}

// ExpireStale переводит в expired все pending-заказы старше окна экспирации.
// Безопасно вызывать повторно: заказы не в pending не затрагиваются, проигрыш
// гонки с другим переходом пропускается.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) ([]model.Transaction, error) {
	cutoff := now.Add(-s.limits.ExpireAfter)
	stale, err := s.repo.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var expired []model.Transaction
	for _, t := range stale {
		updated, err := s.repo.TransitionStatus(ctx, t.ID,
			model.StatusPending, model.StatusExpired, now)
		if err != nil {
			// заказ успел уйти в другой статус между выборкой и переходом
			if errors.Is(err, repository.ErrStatusConflict) || errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return expired, err
		}

		expired = append(expired, *updated)
		s.notifier.NotifyUser(ctx, updated.UserID, fmt.Sprintf(
			"Order %s expired: payment was not received in time. Feel free to place a new order.",
			updated.ID,
		))
	}

	return expired, nil
}

// RemindPending отправляет напоминания об оплате по старым pending-заказам.
// Время последнего напоминания фиксируется, чтобы один заказ не получал
// напоминание чаще одного раза за интервал.
func (s *Service) RemindPending(ctx context.Context, now time.Time) (int, error) {
	createdBefore := now.Add(-s.limits.RemindAfter)
	remindedBefore := now.Add(-s.limits.RemindEvery)

	pending, err := s.repo.ListPendingForReminder(ctx, createdBefore, remindedBefore)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, t := range pending {
		s.notifier.NotifyUser(ctx, t.UserID, fmt.Sprintf(
			"Payment reminder: order %s is still awaiting payment. Please send your payment proof.",
			t.ID,
		))
		if err := s.repo.MarkReminded(ctx, t.ID, now); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// OperatorDigest отправляет оператору сводку по незакрытой работе.
// Пустая сводка не отправляется.
func (s *Service) OperatorDigest(ctx context.Context) error {
	pendingReview, err := s.repo.CountByStatus(ctx, model.StatusPendingReview)
	if err != nil {
		return err
	}

	pendingTickets, err := s.repo.CountPendingTickets(ctx)
	if err != nil {
		return err
	}

	if pendingReview == 0 && pendingTickets == 0 {
		return nil
	}

	text := "Outstanding work:\n"
	if pendingReview > 0 {
		text += fmt.Sprintf("- %d transactions awaiting review\n", pendingReview)
	}
	if pendingTickets > 0 {
		text += fmt.Sprintf("- %d tickets awaiting reply\n", pendingTickets)
	}

	s.notifier.NotifyOperator(ctx, text, nil)
	return nil
}

// GetTransaction возвращает заказ по идентификатору.
func (s *Service) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// Profile возвращает пользователя и число его завершённых заказов.
func (s *Service) Profile(ctx context.Context, userID int64) (*model.User, int64, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	completed, err := s.repo.CountCompleted(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return u, completed, nil
}

// History возвращает последние заказы пользователя.
func (s *Service) History(ctx context.Context, userID int64) ([]model.Transaction, error) {
	return s.repo.ListTransactionsByUser(ctx, userID, s.limits.HistoryLimit)
}
