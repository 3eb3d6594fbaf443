package bot

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/mmeshcher/airtime-desk/internal/model"
	"github.com/mmeshcher/airtime-desk/internal/repository"
	"github.com/mmeshcher/airtime-desk/internal/validation"
)

func (b *Bot) handleStart(c tele.Context) error {
	sender := c.Sender()

	if err := b.svc.RegisterUser(b.ctx, sender.ID, sender.Username); err != nil {
		b.logger.Error("register user", zap.Int64("user_id", sender.ID), zap.Error(err))
		return c.Send("Something went wrong, please try again later.")
	}
	if err := b.sessions.Clear(b.ctx, sender.ID); err != nil {
		b.logger.Warn("clear session", zap.Int64("user_id", sender.ID), zap.Error(err))
	}

	welcome := fmt.Sprintf("Welcome, %s! 👋\nBuy airtime and internet packages right here.\nPick an option from the menu below.", sender.FirstName)
	return c.Send(welcome, b.mainMenuFor(c.Sender().ID))
}

func (b *Bot) handleText(c tele.Context) error {
	switch c.Text() {
	case btnBuyAirtime:
		return b.showOffers(c, model.KindAirtime)
	case btnBuyData:
		return b.showOffers(c, model.KindData)
	case btnProfile:
		return b.showProfile(c)
	case btnHistory:
		return b.showHistory(c)
	case btnSupport:
		return b.promptTicket(c)
	case btnFeedback:
		return b.promptFeedback(c)
	case btnAdmin:
		return b.adminOnly(b.handleAdminHelp)(c)
	}

	userID := c.Sender().ID
	sess, err := b.sessions.Get(b.ctx, userID)
	if err != nil {
		b.logger.Error("get session", zap.Int64("user_id", userID), zap.Error(err))
		return c.Send("Something went wrong, please try again later.")
	}

	switch sess.State {
	case StateAwaitingPhone:
		return b.receivePhone(c, sess)
	case StateAwaitingProof:
		return c.Send("Please send the payment receipt as a photo.")
	case StateAwaitingTicketText:
		return b.receiveTicketText(c)
	case StateAwaitingFeedback:
		return b.receiveFeedback(c)
	case StateAwaitingTicketReply,
		StateAwaitingPackageSpec,
		StateAwaitingPackageDelete,
		StateAwaitingRate,
		StateAwaitingBroadcast:
		return b.handleAdminText(c, sess)
	}

	return c.Send("Pick an option from the menu below.", b.mainMenuFor(c.Sender().ID))
}

func (b *Bot) showOffers(c tele.Context, kind model.PackageKind) error {
	offers, err := b.svc.ListOffers(b.ctx, c.Sender().ID, kind)
	if err != nil {
		return b.reportError(c, err)
	}
	if len(offers) == 0 {
		return c.Send("No packages available right now.")
	}

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(offers))
	for _, o := range offers {
		label := fmt.Sprintf("%s — %d AFN", o.Package.Name, o.FinalAmount)
		rows = append(rows, markup.Row(markup.Data(label, "pkg", o.Package.Name)))
	}
	markup.Inline(rows...)

	return c.Send("Choose a package:", markup)
}

func (b *Bot) handlePackageSelected(c tele.Context) error {
	name := c.Data()

	offer, err := b.svc.QuotePackage(b.ctx, c.Sender().ID, name)
	if err != nil {
		return b.reportError(c, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🧾 Invoice\n\nPackage: %s\n", offer.Package.Name)
	if offer.Package.Description != "" {
		fmt.Fprintf(&sb, "%s\n", offer.Package.Description)
	}
	fmt.Fprintf(&sb, "Total: %d AFN\n", offer.FinalAmount)
	if offer.DiscountLabel != "" {
		fmt.Fprintf(&sb, "Applied: %s\n", offer.DiscountLabel)
	}
	sb.WriteString("\nConfirm the order?")

	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("✅ Confirm", "confirm", name),
		markup.Data("❌ Cancel", "cancelorder"),
	))

	return c.Edit(sb.String(), markup)
}

func (b *Bot) handleConfirmOrder(c tele.Context) error {
	userID := c.Sender().ID

	t, err := b.svc.CreateOrder(b.ctx, userID, c.Data())
	if err != nil {
		return b.reportError(c, err)
	}

	sess := Session{State: StateAwaitingPhone, TransactionID: t.ID}
	if err := b.sessions.Set(b.ctx, userID, sess); err != nil {
		b.logger.Error("set session", zap.Int64("user_id", userID), zap.Error(err))
	}

	msg := fmt.Sprintf("Order %s created.\nTotal: %d AFN\n\nSend the recipient phone number (format: 93xxxxxxxxx). The order expires in 15 minutes if unpaid.", t.ID, t.Amount)
	return c.Edit(msg)
}

func (b *Bot) handleCancelOrder(c tele.Context) error {
	// сбрасывается только диалог: незавершённый заказ доберёт sweep экспирации
	if err := b.sessions.Clear(b.ctx, c.Sender().ID); err != nil {
		b.logger.Warn("clear session", zap.Int64("user_id", c.Sender().ID), zap.Error(err))
	}
	return c.Edit("Order cancelled.")
}

func (b *Bot) receivePhone(c tele.Context, sess Session) error {
	userID := c.Sender().ID

	t, err := b.svc.BindPhoneNumber(b.ctx, sess.TransactionID, c.Text())
	if err != nil {
		return b.reportError(c, err)
	}

	sess.State = StateAwaitingProof
	if err := b.sessions.Set(b.ctx, userID, sess); err != nil {
		b.logger.Error("set session", zap.Int64("user_id", userID), zap.Error(err))
	}

	msg := fmt.Sprintf("Phone %s saved for order %s.\n\nTransfer %d AFN to card:\n%s\n\nThen send the payment receipt as a photo.", t.PhoneNumber, t.ID, t.Amount, b.bankCard)
	return c.Send(msg)
}

func (b *Bot) handlePhoto(c tele.Context) error {
	userID := c.Sender().ID

	sess, err := b.sessions.Get(b.ctx, userID)
	if err != nil {
		b.logger.Error("get session", zap.Int64("user_id", userID), zap.Error(err))
		return c.Send("Something went wrong, please try again later.")
	}
	if sess.State != StateAwaitingProof {
		return c.Send("Pick an option from the menu below.", b.mainMenuFor(c.Sender().ID))
	}

	photo := c.Message().Photo
	if photo == nil {
		return c.Send("Please send the payment receipt as a photo.")
	}

	t, err := b.svc.SubmitPaymentProof(b.ctx, sess.TransactionID, int64(photo.FileSize))
	if err != nil {
		return b.reportError(c, err)
	}

	if err := b.sessions.Clear(b.ctx, userID); err != nil {
		b.logger.Warn("clear session", zap.Int64("user_id", userID), zap.Error(err))
	}

	return c.Send(fmt.Sprintf("Receipt received. Order %s is under review, you will be notified once it is processed.", t.ID))
}

func (b *Bot) showProfile(c tele.Context) error {
	u, completed, err := b.svc.Profile(b.ctx, c.Sender().ID)
	if err != nil {
		return b.reportError(c, err)
	}

	msg := fmt.Sprintf("👤 Profile\n\nJoined: %s\nCompleted orders: %d\nTotal spent: %d AFN\nLoyalty points: %d",
		u.JoinedAt.Format("2006-01-02"), completed, u.TotalSpent, u.LoyaltyPoints)
	return c.Send(msg)
}

func (b *Bot) showHistory(c tele.Context) error {
	transactions, err := b.svc.History(b.ctx, c.Sender().ID)
	if err != nil {
		return b.reportError(c, err)
	}
	if len(transactions) == 0 {
		return c.Send("You have no orders yet.")
	}

	var sb strings.Builder
	sb.WriteString("🧾 Recent orders:\n")
	for _, t := range transactions {
		fmt.Fprintf(&sb, "\n%s\n%s — %d AFN — %s\n", t.ID, t.PackageName, t.Amount, t.Status)
	}
	return c.Send(sb.String())
}

func (b *Bot) promptTicket(c tele.Context) error {
	sess := Session{State: StateAwaitingTicketText}
	if err := b.sessions.Set(b.ctx, c.Sender().ID, sess); err != nil {
		b.logger.Error("set session", zap.Int64("user_id", c.Sender().ID), zap.Error(err))
		return c.Send("Something went wrong, please try again later.")
	}
	return c.Send("Describe your problem in one message.")
}

func (b *Bot) receiveTicketText(c tele.Context) error {
	userID := c.Sender().ID

	ticket, err := b.svc.CreateTicket(b.ctx, userID, c.Text())
	if err != nil {
		return b.reportError(c, err)
	}

	if err := b.sessions.Clear(b.ctx, userID); err != nil {
		b.logger.Warn("clear session", zap.Int64("user_id", userID), zap.Error(err))
	}

	return c.Send(fmt.Sprintf("Ticket %s created. Support will reply here.", ticket.ID))
}

func (b *Bot) promptFeedback(c tele.Context) error {
	sess := Session{State: StateAwaitingFeedback}
	if err := b.sessions.Set(b.ctx, c.Sender().ID, sess); err != nil {
		b.logger.Error("set session", zap.Int64("user_id", c.Sender().ID), zap.Error(err))
		return c.Send("Something went wrong, please try again later.")
	}
	return c.Send("Rate us from 1 to 5, optionally followed by a comment.\nExample: 5 fast and easy")
}

func (b *Bot) receiveFeedback(c tele.Context) error {
	userID := c.Sender().ID

	rating, comment := c.Text(), ""
	if idx := strings.IndexByte(rating, ' '); idx > 0 {
		rating, comment = rating[:idx], strings.TrimSpace(rating[idx+1:])
	}

	if err := b.svc.AddFeedback(b.ctx, userID, rating, comment); err != nil {
		return b.reportError(c, err)
	}

	if err := b.sessions.Clear(b.ctx, userID); err != nil {
		b.logger.Warn("clear session", zap.Int64("user_id", userID), zap.Error(err))
	}

	return c.Send("Thank you for your feedback! ⭐")
}

// reportError превращает ожидаемые ошибки в понятные пользователю сообщения,
// остальные логирует и прячет за общим ответом.
func (b *Bot) reportError(c tele.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrDailyLimitExceeded):
		return c.Send("You have reached the daily order limit. Try again tomorrow.")
	case errors.Is(err, validation.ErrInvalidPhoneFormat):
		return c.Send("Invalid phone number. Use the format 93xxxxxxxxx (11 digits).")
	case errors.Is(err, validation.ErrProofTooSmall):
		return c.Send("The receipt image is too small. Please send a clear photo of the receipt.")
	case errors.Is(err, validation.ErrProofTooLarge):
		return c.Send("The receipt image is too large. Please send a photo under 5 MB.")
	case errors.Is(err, validation.ErrRatingOutOfRange), errors.Is(err, validation.ErrNotANumber):
		return c.Send("The rating must be a number from 1 to 5.")
	case errors.Is(err, repository.ErrStatusConflict):
		return c.Send("This order has already moved on. Check your history for its current status.")
	case errors.Is(err, repository.ErrNotFound):
		return c.Send("Not found. It may have expired, start over from the menu.")
	}

	b.logger.Error("handler failed", zap.Int64("user_id", c.Sender().ID), zap.Error(err))
	return c.Send("Something went wrong, please try again later.")
}
