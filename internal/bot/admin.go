package bot

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/mmeshcher/airtime-desk/internal/repository"
	"github.com/mmeshcher/airtime-desk/internal/service"
)

func (b *Bot) handleAdminHelp(c tele.Context) error {
	return c.Send(`Operator commands:
/addpackage — add or replace a package
/delpackage — remove a package
/setrate — change the airtime conversion rate
/broadcast — message all users
/reply <ticket id> [text] — answer a support ticket
/find <id> — look up a transaction (TX…) or ticket (TK…)
/stats — service summary`)
}

func (b *Bot) handleFind(c tele.Context) error {
	id := strings.TrimSpace(c.Message().Payload)
	if id == "" {
		return c.Send("Usage: /find <TX… or TK… id>")
	}

	switch {
	case strings.HasPrefix(id, "TK"):
		ticket, err := b.svc.GetTicket(b.ctx, id)
		if err != nil {
			return b.reportError(c, err)
		}
		return c.Send(fmt.Sprintf("Ticket %s\nuser: %d\nstatus: %s\ncreated: %s\n\n%s",
			ticket.ID, ticket.UserID, ticket.Status,
			ticket.CreatedAt.Format("2006-01-02 15:04"), ticket.Message))

	default:
		t, err := b.svc.GetTransaction(b.ctx, id)
		if err != nil {
			return b.reportError(c, err)
		}
		msg := fmt.Sprintf("Order %s\nuser: %d\npackage: %s\namount: %d AFN\nphone: %s\nstatus: %s\ncreated: %s",
			t.ID, t.UserID, t.PackageName, t.Amount, t.PhoneNumber, t.Status,
			t.CreatedAt.Format("2006-01-02 15:04"))
		return c.Send(msg)
	}
}

func (b *Bot) handleAddPackage(c tele.Context) error {
	sess := Session{State: StateAwaitingPackageSpec}
	if err := b.sessions.Set(b.ctx, c.Sender().ID, sess); err != nil {
		return b.reportError(c, err)
	}
	return c.Send("Send the package as:\nname | kind | amount | description\n\nkind is airtime or data. For airtime the amount is the top-up value, for data the final price in AFN.")
}

func (b *Bot) handleDelPackage(c tele.Context) error {
	sess := Session{State: StateAwaitingPackageDelete}
	if err := b.sessions.Set(b.ctx, c.Sender().ID, sess); err != nil {
		return b.reportError(c, err)
	}
	return c.Send("Send the exact name of the package to remove.")
}

func (b *Bot) handleSetRate(c tele.Context) error {
	sess := Session{State: StateAwaitingRate}
	if err := b.sessions.Set(b.ctx, c.Sender().ID, sess); err != nil {
		return b.reportError(c, err)
	}
	return c.Send("Send the new conversion rate (AFN per airtime unit).")
}

func (b *Bot) handleBroadcast(c tele.Context) error {
	sess := Session{State: StateAwaitingBroadcast}
	if err := b.sessions.Set(b.ctx, c.Sender().ID, sess); err != nil {
		return b.reportError(c, err)
	}
	return c.Send("Send the message to broadcast to all users.")
}

func (b *Bot) handleReplyTicket(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return c.Send("Usage: /reply <ticket id> [text]")
	}

	ticketID, text := payload, ""
	if idx := strings.IndexByte(payload, ' '); idx > 0 {
		ticketID, text = payload[:idx], strings.TrimSpace(payload[idx+1:])
	}

	if text == "" {
		sess := Session{State: StateAwaitingTicketReply, TicketID: ticketID}
		if err := b.sessions.Set(b.ctx, c.Sender().ID, sess); err != nil {
			return b.reportError(c, err)
		}
		return c.Send(fmt.Sprintf("Send the reply for ticket %s.", ticketID))
	}

	if err := b.svc.ReplyTicket(b.ctx, ticketID, text); err != nil {
		return b.reportError(c, err)
	}
	return c.Send(fmt.Sprintf("Reply sent, ticket %s closed.", ticketID))
}

func (b *Bot) handleStats(c tele.Context) error {
	stats, err := b.svc.Stats(b.ctx)
	if err != nil {
		return b.reportError(c, err)
	}

	msg := fmt.Sprintf(`📊 Service summary

Users: %d (active today: %d)
Orders today: %d (%d AFN)
Orders this week: %d (%d AFN)

Under review: %d
Completed: %d
Rejected: %d

Tickets: %d (open: %d)`,
		stats.TotalUsers, stats.ActiveUsersToday,
		stats.TodayTransactions, stats.TodayAmount,
		stats.WeekTransactions, stats.WeekAmount,
		stats.PendingReview,
		stats.Completed,
		stats.Rejected,
		stats.TotalTickets, stats.PendingTickets,
	)
	return c.Send(msg)
}

func (b *Bot) handleApprove(c tele.Context) error {
	return b.decide(c, service.Approve, "approved ✅")
}

func (b *Bot) handleReject(c tele.Context) error {
	return b.decide(c, service.Reject, "rejected ❌")
}

func (b *Bot) decide(c tele.Context, decision service.Decision, verdict string) error {
	id := c.Data()

	if _, err := b.svc.Decide(b.ctx, id, decision); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return c.Respond(&tele.CallbackResponse{Text: "Already decided."})
		case errors.Is(err, repository.ErrNotFound):
			return c.Respond(&tele.CallbackResponse{Text: "Order not found."})
		}
		b.logger.Error("decide order", zap.String("transaction_id", id), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Failed, try again."})
	}

	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		b.logger.Warn("callback respond", zap.Error(err))
	}
	return c.Edit(fmt.Sprintf("Order %s %s", id, verdict))
}

// handleAdminText принимает ввод, который ждут админские диалоговые состояния.
func (b *Bot) handleAdminText(c tele.Context, sess Session) error {
	if c.Sender().ID != b.operatorID {
		if err := b.sessions.Clear(b.ctx, c.Sender().ID); err != nil {
			b.logger.Warn("clear session", zap.Int64("user_id", c.Sender().ID), zap.Error(err))
		}
		return c.Send("Pick an option from the menu below.", b.mainMenuFor(c.Sender().ID))
	}

	defer func() {
		if err := b.sessions.Clear(b.ctx, c.Sender().ID); err != nil {
			b.logger.Warn("clear session", zap.Int64("user_id", c.Sender().ID), zap.Error(err))
		}
	}()

	switch sess.State {
	case StateAwaitingPackageSpec:
		parts := strings.Split(c.Text(), "|")
		if len(parts) < 3 {
			return c.Send("Expected: name | kind | amount | description")
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		description := ""
		if len(parts) > 3 {
			description = parts[3]
		}

		p, err := b.svc.AddPackage(b.ctx, parts[0], parts[1], parts[2], description)
		if err != nil {
			if errors.Is(err, service.ErrValidation) {
				return c.Send(fmt.Sprintf("Invalid package: %v", err))
			}
			return b.reportError(c, err)
		}
		return c.Send(fmt.Sprintf("Package %q (%s, %d) saved.", p.Name, p.Kind, p.Amount))

	case StateAwaitingPackageDelete:
		name := strings.TrimSpace(c.Text())
		if err := b.svc.DeletePackage(b.ctx, name); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.Send(fmt.Sprintf("No package named %q.", name))
			}
			return b.reportError(c, err)
		}
		return c.Send(fmt.Sprintf("Package %q removed.", name))

	case StateAwaitingRate:
		rate, err := b.svc.SetRate(strings.TrimSpace(c.Text()))
		if err != nil {
			if errors.Is(err, service.ErrValidation) {
				return c.Send(fmt.Sprintf("Invalid rate: %v", err))
			}
			return b.reportError(c, err)
		}
		return c.Send(fmt.Sprintf("Conversion rate set to %d.", rate))

	case StateAwaitingBroadcast:
		count, err := b.svc.Broadcast(b.ctx, c.Text())
		if err != nil {
			return b.reportError(c, err)
		}
		return c.Send(fmt.Sprintf("Broadcast queued for %d users.", count))

	case StateAwaitingTicketReply:
		if err := b.svc.ReplyTicket(b.ctx, sess.TicketID, c.Text()); err != nil {
			return b.reportError(c, err)
		}
		return c.Send(fmt.Sprintf("Reply sent, ticket %s closed.", sess.TicketID))
	}

	return nil
}
