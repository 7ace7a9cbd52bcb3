package bot

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"ridebot/pkg/apperr"
	"ridebot/pkg/notify"
)

// Errors after which retrying a message to the same chat is pointless.
var permanentErrors = []error{
	tele.ErrBlockedByUser,
	tele.ErrChatNotFound,
	tele.ErrUserIsDeactivated,
	tele.ErrNotStartedByUser,
	tele.ErrKickedFromGroup,
}

// chatName addresses a chat by its @username or numeric id.
type chatName string

func (c chatName) Recipient() string { return string(c) }

// Send delivers a plain text message. It implements notify.Sender.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.api.Send(tele.ChatID(chatID), text); err != nil {
		for _, perm := range permanentErrors {
			if errors.Is(err, perm) {
				return fmt.Errorf("%w: %w", notify.ErrUndeliverable, apperr.Transport(err))
			}
		}
		return apperr.Transport(err)
	}
	return nil
}

// IsSubscribed reports whether the user is a member of the required chat.
// Without a required chat everyone counts as subscribed.
func (b *Bot) IsSubscribed(ctx context.Context, userID int64) (bool, error) {
	if b.Cfg.RequiredChat == "" {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	member, err := b.api.ChatMemberOf(chatName(b.Cfg.RequiredChat), &tele.User{ID: userID})
	if err != nil {
		return false, apperr.Transport(err)
	}
	switch member.Role {
	case tele.Creator, tele.Administrator, tele.Member, tele.Restricted:
		return true, nil
	}
	return false, nil
}
