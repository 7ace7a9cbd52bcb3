package bot

import (
	"context"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/pkg/notify"
)

func (b *Bot) handleSupportStart(c tele.Context) error {
	if b.Cfg.AdminID == 0 {
		return c.Send(msg("support_off"))
	}
	ctx := context.Background()
	if err := b.saveSession(ctx, c.Sender().ID, &models.Session{State: StateSupport}); err != nil {
		return c.Send(msg("generic_error"))
	}
	return c.Send(msg("support_prompt"), abortMenu())
}

// handleSupportMessage relays one user message to the admin chat.
func (b *Bot) handleSupportMessage(ctx context.Context, c tele.Context, text string) error {
	b.clearSession(ctx, c.Sender().ID)
	if text == "" {
		return b.showMenu(c, msg("use_menu"))
	}

	sender := c.Sender()
	request := format(msg("support_request"),
		notify.DisplayName(fullName(sender), sender.Username), sender.ID, text, sender.ID)
	if _, err := b.api.Send(tele.ChatID(b.Cfg.AdminID), request); err != nil {
		b.Log.Error("failed to relay support request", logger.Int64("user_id", sender.ID), logger.Error(err))
		return b.showMenu(c, msg("generic_error"))
	}
	return b.showMenu(c, msg("support_sent"))
}

// handleReply lets the admin answer a support request: /reply <id> <text>.
func (b *Bot) handleReply(c tele.Context) error {
	if b.Cfg.AdminID == 0 || c.Sender().ID != b.Cfg.AdminID {
		return nil
	}

	parts := strings.SplitN(strings.TrimSpace(c.Message().Payload), " ", 2)
	if len(parts) < 2 {
		return c.Send(msg("reply_usage"))
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	answer := strings.TrimSpace(parts[1])
	if err != nil || userID <= 0 || answer == "" {
		return c.Send(msg("reply_usage"))
	}

	if _, err := b.api.Send(tele.ChatID(userID), format(msg("support_answer"), answer)); err != nil {
		b.Log.Warning("failed to deliver support answer", logger.Int64("user_id", userID), logger.Error(err))
		return c.Send(errorText(err))
	}
	return c.Send(msg("support_delivered"))
}
