// Package bot содержит Telegram-интерфейс сервиса: меню покупателя,
// диалоговые состояния и админские команды оператора.
package bot

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/mmeshcher/airtime-desk/internal/model"
	"github.com/mmeshcher/airtime-desk/internal/notify"
	"github.com/mmeshcher/airtime-desk/internal/service"
)

// Service описывает методы бизнес-логики, используемые ботом.
type Service interface {
	RegisterUser(ctx context.Context, id int64, username string) error
	ListOffers(ctx context.Context, userID int64, kind model.PackageKind) ([]service.Offer, error)
	QuotePackage(ctx context.Context, userID int64, name string) (*service.Offer, error)
	CreateOrder(ctx context.Context, userID int64, packageName string) (*model.Transaction, error)
	BindPhoneNumber(ctx context.Context, transactionID, raw string) (*model.Transaction, error)
	SubmitPaymentProof(ctx context.Context, transactionID string, proofSize int64) (*model.Transaction, error)
	Decide(ctx context.Context, transactionID string, decision service.Decision) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	Profile(ctx context.Context, userID int64) (*model.User, int64, error)
	History(ctx context.Context, userID int64) ([]model.Transaction, error)
	CreateTicket(ctx context.Context, userID int64, message string) (*model.Ticket, error)
	ReplyTicket(ctx context.Context, ticketID, message string) error
	AddFeedback(ctx context.Context, userID int64, ratingRaw, message string) error
	AddPackage(ctx context.Context, name, kind, amountRaw, description string) (*model.Package, error)
	DeletePackage(ctx context.Context, name string) error
	SetRate(raw string) (int64, error)
	Broadcast(ctx context.Context, text string) (int, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// Config содержит настройки Telegram-интерфейса.
type Config struct {
	Token      string
	OperatorID int64
	BankCard   string
}

// Bot обслуживает диалоги пользователей и оператора.
type Bot struct {
	tele     *tele.Bot
	svc      Service
	sessions SessionStore
	logger   *zap.Logger

	operatorID int64
	bankCard   string

	// базовый контекст обработчиков, задаётся в Start
	ctx context.Context
}

// Кнопки главного меню покупателя.
const (
	btnBuyAirtime = "🛒 Buy Airtime"
	btnBuyData    = "📶 Buy Data"
	btnProfile    = "👤 Profile"
	btnHistory    = "🧾 History"
	btnSupport    = "🆘 Support"
	btnFeedback   = "⭐ Feedback"
	btnAdmin      = "🛠 Admin"
)

// New создаёт бота и регистрирует обработчики. Переданный HTTP-клиент
// используется для запросов к Telegram API.
func New(cfg Config, svc Service, sessions SessionStore, client *http.Client, logger *zap.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Client: client,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		tele:       tb,
		svc:        svc,
		sessions:   sessions,
		logger:     logger,
		operatorID: cfg.OperatorID,
		bankCard:   cfg.BankCard,
		ctx:        context.Background(),
	}

	b.tele.Use(b.privateOnly)

	b.tele.Handle("/start", b.handleStart)
	b.tele.Handle(tele.OnText, b.handleText)
	b.tele.Handle(tele.OnPhoto, b.handlePhoto)

	b.tele.Handle(&tele.Btn{Unique: "pkg"}, b.handlePackageSelected)
	b.tele.Handle(&tele.Btn{Unique: "confirm"}, b.handleConfirmOrder)
	b.tele.Handle(&tele.Btn{Unique: "cancelorder"}, b.handleCancelOrder)

	b.tele.Handle(&tele.Btn{Unique: notify.CallbackApprove}, b.adminOnly(b.handleApprove))
	b.tele.Handle(&tele.Btn{Unique: notify.CallbackReject}, b.adminOnly(b.handleReject))

	b.tele.Handle("/admin", b.adminOnly(b.handleAdminHelp))
	b.tele.Handle("/find", b.adminOnly(b.handleFind))
	b.tele.Handle("/addpackage", b.adminOnly(b.handleAddPackage))
	b.tele.Handle("/delpackage", b.adminOnly(b.handleDelPackage))
	b.tele.Handle("/setrate", b.adminOnly(b.handleSetRate))
	b.tele.Handle("/broadcast", b.adminOnly(b.handleBroadcast))
	b.tele.Handle("/reply", b.adminOnly(b.handleReplyTicket))
	b.tele.Handle("/stats", b.adminOnly(b.handleStats))

	return b, nil
}

// Notifier возвращает нотификатор, отправляющий через этого же бота.
func (b *Bot) Notifier() *notify.TelegramNotifier {
	return notify.NewTelegramNotifier(b.tele, b.operatorID, b.logger)
}

// Start запускает long polling и блокируется до отмены контекста.
func (b *Bot) Start(ctx context.Context) {
	b.ctx = ctx

	go func() {
		<-ctx.Done()
		b.tele.Stop()
	}()

	b.logger.Info("telegram bot started")
	b.tele.Start()
}

func (b *Bot) privateOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Chat() != nil && c.Chat().Type != tele.ChatPrivate {
			return nil
		}
		return next(c)
	}
}

func (b *Bot) adminOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender() == nil || c.Sender().ID != b.operatorID {
			return c.Send("This command is for the operator only.")
		}
		return next(c)
	}
}

func (b *Bot) mainMenuFor(userID int64) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := []tele.Row{
		menu.Row(menu.Text(btnBuyAirtime), menu.Text(btnBuyData)),
		menu.Row(menu.Text(btnProfile), menu.Text(btnHistory)),
		menu.Row(menu.Text(btnSupport), menu.Text(btnFeedback)),
	}
	if userID == b.operatorID {
		rows = append(rows, menu.Row(menu.Text(btnAdmin)))
	}
	menu.Reply(rows...)
	return menu
}
