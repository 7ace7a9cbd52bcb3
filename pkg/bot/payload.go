package bot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"
)

type Action string

const (
	ActionBook     Action = "book"
	ActionUnbook   Action = "unbook"
	ActionEdit     Action = "edit"
	ActionCancel   Action = "cancel"
	ActionCheckSub Action = "check_sub"
)

// Callback is the decoded payload of an inline button. Field is set only for
// ActionEdit once the driver picked what to change.
type Callback struct {
	Action Action
	RideID int64
	Field  string
}

// Button renders cb as an inline button on menu.
func (cb Callback) Button(menu *tele.ReplyMarkup, text string) tele.Btn {
	var args []string
	if cb.RideID != 0 {
		args = append(args, strconv.FormatInt(cb.RideID, 10))
	}
	if cb.Field != "" {
		args = append(args, cb.Field)
	}
	return menu.Data(text, string(cb.Action), args...)
}

// ParseCallback decodes telebot's "\f<unique>|<data>" callback format.
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(strings.TrimPrefix(data, "\f"), "|")

	cb := Callback{Action: Action(parts[0])}
	switch cb.Action {
	case ActionCheckSub:
		return cb, nil
	case ActionBook, ActionUnbook, ActionCancel, ActionEdit:
	default:
		return Callback{}, fmt.Errorf("unknown callback action %q", parts[0])
	}

	if len(parts) < 2 {
		return Callback{}, fmt.Errorf("callback %q has no ride id", cb.Action)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return Callback{}, fmt.Errorf("callback %q has bad ride id %q", cb.Action, parts[1])
	}
	cb.RideID = id

	if cb.Action == ActionEdit && len(parts) > 2 {
		cb.Field = parts[2]
	}
	return cb, nil
}
