package bot

import (
	"context"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"ridebot/config"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/service"
	"ridebot/storage"
)

const (
	StateIdle            = ""
	StateRideDestination = "ride_destination"
	StateRideTime        = "ride_time"
	StateRideSeats       = "ride_seats"
	StateRidePrice       = "ride_price"
	StateRideComment     = "ride_comment"
	StateSearch          = "search"
	StateEditValue       = "edit_value"
	StateSupport         = "support"
)

// Reply keyboard buttons.
const (
	btnCreate     = "🚗 Создать поездку"
	btnFind       = "🔍 Найти поездку"
	btnMyRides    = "📋 Мои поездки"
	btnMyBookings = "🎫 Мои брони"
	btnSupport    = "🆘 Техподдержка"
	btnWebApp     = "🌐 Открыть приложение"
	btnAbort      = "❌ Отмена"
)

// messenger is the part of *tele.Bot used outside of a handler context.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

type Bot struct {
	Bot      *tele.Bot
	Log      logger.ILogger
	Cfg      *config.Config
	Svc      service.IServiceManager
	Sessions storage.ISessionStorage

	api messenger
}

func New(cfg *config.Config, svc service.IServiceManager, sessions storage.ISessionStorage, log logger.ILogger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.TelegramBotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error("handler failed", logger.Error(err))
		},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	bot := &Bot{
		Bot:      b,
		Log:      log,
		Cfg:      cfg,
		Svc:      svc,
		Sessions: sessions,
		api:      b,
	}
	bot.registerHandlers()
	return bot, nil
}

// Start polls for updates until Stop is called.
func (b *Bot) Start() {
	b.Log.Info("🤖 Bot started", logger.String("username", b.Bot.Me.Username))
	b.Bot.Start()
}

func (b *Bot) Stop() {
	b.Bot.Stop()
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle("/reply", b.handleReply)

	b.Bot.Handle(btnCreate, b.handleCreateStart)
	b.Bot.Handle(btnFind, b.handleSearchStart)
	b.Bot.Handle(btnMyRides, b.handleMyRides)
	b.Bot.Handle(btnMyBookings, b.handleMyBookings)
	b.Bot.Handle(btnSupport, b.handleSupportStart)
	b.Bot.Handle(btnAbort, b.handleAbort)

	b.Bot.Handle(tele.OnWebApp, b.handleWebApp)
	b.Bot.Handle(tele.OnCallback, b.handleCallback)
	b.Bot.Handle(tele.OnText, b.handleText)
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := context.Background()

	ok, err := b.IsSubscribed(ctx, c.Sender().ID)
	if err != nil {
		b.Log.Warning("subscription check failed", logger.Int64("user_id", c.Sender().ID), logger.Error(err))
	}
	if !ok {
		return b.sendJoinPrompt(c)
	}

	user, err := b.register(ctx, c.Sender())
	if err != nil {
		return c.Send(errorText(err))
	}
	if err := b.Sessions.Delete(ctx, c.Sender().ID); err != nil {
		b.Log.Warning("failed to reset session", logger.Int64("user_id", c.Sender().ID), logger.Error(err))
	}
	return b.showMenu(c, format(msg("welcome"), user.FullName))
}

func (b *Bot) register(ctx context.Context, sender *tele.User) (*models.User, error) {
	user, err := b.Svc.User().Register(ctx, sender.ID, sender.Username, fullName(sender))
	if err != nil {
		b.Log.Error("failed to register user", logger.Int64("user_id", sender.ID), logger.Error(err))
	}
	return user, err
}

func (b *Bot) sendJoinPrompt(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.URL(msg("join_chat"), joinLink(b.Cfg.RequiredChat))),
		menu.Row(Callback{Action: ActionCheckSub}.Button(menu, msg("joined"))),
	)
	return c.Send(format(msg("restricted"), b.Cfg.RequiredChat), menu)
}

func (b *Bot) mainMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := []tele.Row{
		menu.Row(menu.Text(btnCreate), menu.Text(btnFind)),
		menu.Row(menu.Text(btnMyRides), menu.Text(btnMyBookings)),
		menu.Row(menu.Text(btnSupport)),
	}
	if b.Cfg.WebAppURL != "" {
		rows = append([]tele.Row{menu.Row(menu.WebApp(btnWebApp, &tele.WebApp{URL: b.Cfg.WebAppURL}))}, rows...)
	}
	menu.Reply(rows...)
	return menu
}

func (b *Bot) showMenu(c tele.Context, text string) error {
	return c.Send(text, b.mainMenu())
}

func abortMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(btnAbort)))
	return menu
}

func (b *Bot) handleAbort(c tele.Context) error {
	b.clearSession(context.Background(), c.Sender().ID)
	return b.showMenu(c, msg("aborted"))
}

// handleText routes free text to the step the user is on.
func (b *Bot) handleText(c tele.Context) error {
	ctx := context.Background()
	session, err := b.Sessions.Get(ctx, c.Sender().ID)
	if err != nil {
		b.Log.Error("failed to load session", logger.Int64("user_id", c.Sender().ID), logger.Error(err))
		return c.Send(msg("generic_error"))
	}
	if session == nil || session.State == StateIdle {
		return b.showMenu(c, msg("use_menu"))
	}

	text := strings.TrimSpace(c.Text())
	switch session.State {
	case StateRideDestination, StateRideTime, StateRideSeats, StateRidePrice, StateRideComment:
		return b.handleWizardStep(ctx, c, session, text)
	case StateSearch:
		b.clearSession(ctx, c.Sender().ID)
		return b.sendSearchResults(ctx, c, text)
	case StateEditValue:
		return b.handleEditValue(ctx, c, session, text)
	case StateSupport:
		return b.handleSupportMessage(ctx, c, text)
	}

	b.clearSession(ctx, c.Sender().ID)
	return b.showMenu(c, msg("use_menu"))
}

func (b *Bot) handleCallback(c tele.Context) error {
	cb, err := ParseCallback(c.Callback().Data)
	if err != nil {
		b.Log.Debug("ignoring callback", logger.String("data", c.Callback().Data), logger.Error(err))
		return c.Respond()
	}

	ctx := context.Background()
	switch cb.Action {
	case ActionBook:
		return b.handleBook(ctx, c, cb.RideID)
	case ActionUnbook:
		return b.handleUnbook(ctx, c, cb.RideID)
	case ActionEdit:
		return b.handleEdit(ctx, c, cb)
	case ActionCancel:
		return b.handleCancelRide(ctx, c, cb.RideID)
	case ActionCheckSub:
		return b.handleCheckSub(ctx, c)
	}
	return c.Respond()
}

func (b *Bot) handleCheckSub(ctx context.Context, c tele.Context) error {
	ok, err := b.IsSubscribed(ctx, c.Sender().ID)
	if err != nil {
		b.Log.Warning("subscription check failed", logger.Int64("user_id", c.Sender().ID), logger.Error(err))
	}
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: msg("still_not_joined"), ShowAlert: true})
	}

	if _, err := b.register(ctx, c.Sender()); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: errorText(err), ShowAlert: true})
	}
	if err := c.Delete(); err != nil {
		b.Log.Debug("failed to delete join prompt", logger.Error(err))
	}
	if err := b.showMenu(c, msg("access_granted")); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) session(ctx context.Context, userID int64) *models.Session {
	session, err := b.Sessions.Get(ctx, userID)
	if err != nil {
		b.Log.Error("failed to load session", logger.Int64("user_id", userID), logger.Error(err))
	}
	if session == nil {
		session = &models.Session{}
	}
	return session
}

func (b *Bot) saveSession(ctx context.Context, userID int64, session *models.Session) error {
	if err := b.Sessions.Save(ctx, userID, session); err != nil {
		b.Log.Error("failed to save session", logger.Int64("user_id", userID), logger.Error(err))
		return err
	}
	return nil
}

func (b *Bot) clearSession(ctx context.Context, userID int64) {
	if err := b.Sessions.Delete(ctx, userID); err != nil {
		b.Log.Warning("failed to clear session", logger.Int64("user_id", userID), logger.Error(err))
	}
}

func fullName(u *tele.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func joinLink(chat string) string {
	return "https://t.me/" + strings.TrimPrefix(chat, "@")
}
