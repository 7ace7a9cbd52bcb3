package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"ridebot/config"
	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/pkg/notify"
	"ridebot/service"
	"ridebot/storage/memory"
)

// fakeContext implements the handful of tele.Context methods the handlers use.
type fakeContext struct {
	tele.Context

	sender    *tele.User
	text      string
	message   *tele.Message
	callback  *tele.Callback
	sent      []string
	responses []*tele.CallbackResponse
	deleted   bool
}

func (c *fakeContext) Sender() *tele.User       { return c.sender }
func (c *fakeContext) Text() string             { return c.text }
func (c *fakeContext) Callback() *tele.Callback { return c.callback }

func (c *fakeContext) Message() *tele.Message {
	if c.message == nil {
		return &tele.Message{Text: c.text}
	}
	return c.message
}

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		resp = []*tele.CallbackResponse{{}}
	}
	c.responses = append(c.responses, resp...)
	return nil
}

func (c *fakeContext) Delete() error {
	c.deleted = true
	return nil
}

func (c *fakeContext) last() string {
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeContext) alert() string {
	if len(c.responses) == 0 {
		return ""
	}
	return c.responses[len(c.responses)-1].Text
}

type sentMessage struct {
	to   string
	text string
}

type fakeMessenger struct {
	sent    []sentMessage
	sendErr error
	role    tele.MemberStatus
	roleErr error
}

func (m *fakeMessenger) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{to: to.Recipient(), text: fmt.Sprint(what)})
	return &tele.Message{}, nil
}

func (m *fakeMessenger) ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error) {
	if m.roleErr != nil {
		return nil, m.roleErr
	}
	return &tele.ChatMember{Role: m.role}, nil
}

var (
	driver    = &tele.User{ID: 1, FirstName: "Ivan", LastName: "Driver", Username: "ivan"}
	passenger = &tele.User{ID: 2, FirstName: "Olga", Username: "olga"}
)

func newTestBot(t *testing.T, cfg *config.Config) (*Bot, *fakeMessenger) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	api := &fakeMessenger{role: tele.Member}
	return &Bot{
		Log:      logger.NewNop(),
		Cfg:      cfg,
		Svc:      service.New(memory.New(), nil, logger.NewNop()),
		Sessions: memory.NewSessionStore(),
		api:      api,
	}, api
}

func say(t *testing.T, b *Bot, user *tele.User, text string) *fakeContext {
	t.Helper()
	c := &fakeContext{sender: user, text: text}
	require.NoError(t, b.handleText(c))
	return c
}

func press(t *testing.T, b *Bot, user *tele.User, cb Callback) *fakeContext {
	t.Helper()
	c := &fakeContext{sender: user, callback: &tele.Callback{Data: wireData(cb.Button(&tele.ReplyMarkup{}, "x"))}}
	require.NoError(t, b.handleCallback(c))
	return c
}

func publish(t *testing.T, b *Bot, seats string) *models.Ride {
	t.Helper()
	require.NoError(t, b.handleCreateStart(&fakeContext{sender: driver}))
	for _, answer := range []string{"Moscow", "tomorrow 9:00", seats, "500", "-"} {
		say(t, b, driver, answer)
	}
	rides, err := b.Svc.Ride().ListRidesForDriver(context.Background(), driver.ID)
	require.NoError(t, err)
	require.NotEmpty(t, rides)
	return rides[0]
}

func TestBot_RideWizard(t *testing.T) {
	b, _ := newTestBot(t, nil)
	ctx := context.Background()

	require.NoError(t, b.handleCreateStart(&fakeContext{sender: driver}))
	say(t, b, driver, "Moscow")
	say(t, b, driver, "tomorrow 9:00")

	c := say(t, b, driver, "many")
	assert.Equal(t, msg("ride_seats_bad"), c.last())
	session, err := b.Sessions.Get(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRideSeats, session.State)

	say(t, b, driver, "3")
	say(t, b, driver, "500")
	c = say(t, b, driver, "-")
	assert.Contains(t, c.last(), msg("ride_created"))
	assert.Contains(t, c.last(), "Moscow")

	rides, err := b.Svc.Ride().ListRidesForDriver(ctx, driver.ID)
	require.NoError(t, err)
	require.Len(t, rides, 1)
	assert.Equal(t, 3, rides[0].Seats)
	assert.Equal(t, "500", rides[0].Price)
	assert.Empty(t, rides[0].Comment)

	session, err = b.Sessions.Get(ctx, driver.ID)
	require.NoError(t, err)
	assert.True(t, session == nil || session.State == StateIdle)
}

func TestBot_TextWithoutSessionShowsMenu(t *testing.T) {
	b, _ := newTestBot(t, nil)
	c := say(t, b, passenger, "hello")
	assert.Equal(t, msg("use_menu"), c.last())
}

func TestBot_Booking(t *testing.T) {
	b, _ := newTestBot(t, nil)
	ride := publish(t, b, "1")

	c := press(t, b, passenger, Callback{Action: ActionBook, RideID: ride.ID})
	assert.Equal(t, msg("booked"), c.alert())
	assert.Contains(t, c.last(), "@ivan")

	c = press(t, b, passenger, Callback{Action: ActionBook, RideID: ride.ID})
	assert.Equal(t, msg("already_booked"), c.alert())

	other := &tele.User{ID: 3, FirstName: "Petr"}
	c = press(t, b, other, Callback{Action: ActionBook, RideID: ride.ID})
	assert.Equal(t, msg("no_seats"), c.alert())

	c = press(t, b, driver, Callback{Action: ActionBook, RideID: ride.ID})
	assert.True(t, strings.HasPrefix(c.alert(), "⚠️"), c.alert())

	c = press(t, b, passenger, Callback{Action: ActionBook, RideID: 999})
	assert.Equal(t, msg("ride_not_found"), c.alert())
}

func TestBot_MyBookingsAndUnbook(t *testing.T) {
	b, _ := newTestBot(t, nil)
	ride := publish(t, b, "2")

	c := &fakeContext{sender: passenger}
	require.NoError(t, b.handleMyBookings(c))
	assert.Equal(t, msg("no_bookings"), c.last())

	press(t, b, passenger, Callback{Action: ActionBook, RideID: ride.ID})
	c = &fakeContext{sender: passenger}
	require.NoError(t, b.handleMyBookings(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.last(), "Moscow")

	c = press(t, b, passenger, Callback{Action: ActionUnbook, RideID: ride.ID})
	assert.Equal(t, msg("unbooked"), c.last())

	c = press(t, b, passenger, Callback{Action: ActionUnbook, RideID: ride.ID})
	assert.Equal(t, msg("ride_not_found"), c.alert())
}

func TestBot_Search(t *testing.T) {
	b, _ := newTestBot(t, nil)
	publish(t, b, "2")

	require.NoError(t, b.handleSearchStart(&fakeContext{sender: passenger}))
	c := say(t, b, passenger, "все")
	require.Len(t, c.sent, 2)
	assert.Equal(t, format(msg("search_found"), 1), c.sent[0])

	require.NoError(t, b.handleSearchStart(&fakeContext{sender: passenger}))
	c = say(t, b, passenger, "Kazan")
	assert.Equal(t, msg("search_empty"), c.last())
}

func TestBot_EditAndCancel(t *testing.T) {
	b, _ := newTestBot(t, nil)
	ctx := context.Background()
	ride := publish(t, b, "2")

	c := press(t, b, driver, Callback{Action: ActionEdit, RideID: ride.ID})
	assert.Equal(t, msg("edit_choose"), c.last())

	press(t, b, driver, Callback{Action: ActionEdit, RideID: ride.ID, Field: models.FieldSeats})
	c = say(t, b, driver, "0")
	assert.True(t, strings.HasPrefix(c.last(), "⚠️"), c.last())

	c = say(t, b, driver, "4")
	assert.Contains(t, c.last(), msg("ride_updated"))
	got, err := b.Svc.Ride().GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Seats)

	c = press(t, b, passenger, Callback{Action: ActionCancel, RideID: ride.ID})
	assert.Equal(t, msg("ride_not_found"), c.alert())

	c = press(t, b, driver, Callback{Action: ActionCancel, RideID: ride.ID})
	assert.Equal(t, msg("ride_cancelled"), c.last())

	c = &fakeContext{sender: driver}
	require.NoError(t, b.handleMyRides(c))
	assert.Equal(t, msg("no_driver_rides"), c.last())
}

func TestBot_SupportRelay(t *testing.T) {
	b, api := newTestBot(t, &config.Config{AdminID: 99})

	require.NoError(t, b.handleSupportStart(&fakeContext{sender: passenger}))
	c := say(t, b, passenger, "my booking is lost")
	assert.Equal(t, msg("support_sent"), c.last())
	require.Len(t, api.sent, 1)
	assert.Equal(t, "99", api.sent[0].to)
	assert.Contains(t, api.sent[0].text, "my booking is lost")
	assert.Contains(t, api.sent[0].text, "/reply 2")

	admin := &tele.User{ID: 99}
	c = &fakeContext{sender: admin, message: &tele.Message{Payload: "2 found it"}}
	require.NoError(t, b.handleReply(c))
	assert.Equal(t, msg("support_delivered"), c.last())
	require.Len(t, api.sent, 2)
	assert.Equal(t, "2", api.sent[1].to)
	assert.Equal(t, format(msg("support_answer"), "found it"), api.sent[1].text)

	c = &fakeContext{sender: admin, message: &tele.Message{Payload: "oops"}}
	require.NoError(t, b.handleReply(c))
	assert.Equal(t, msg("reply_usage"), c.last())

	c = &fakeContext{sender: passenger, message: &tele.Message{Payload: "3 spoof"}}
	require.NoError(t, b.handleReply(c))
	assert.Empty(t, c.sent)
	assert.Len(t, api.sent, 2)
}

func TestBot_SupportDisabled(t *testing.T) {
	b, _ := newTestBot(t, nil)
	c := &fakeContext{sender: passenger}
	require.NoError(t, b.handleSupportStart(c))
	assert.Equal(t, msg("support_off"), c.last())
}

func TestBot_SubscriptionGate(t *testing.T) {
	b, api := newTestBot(t, &config.Config{RequiredChat: "@riders"})
	api.role = tele.Left

	c := &fakeContext{sender: passenger}
	require.NoError(t, b.handleStart(c))
	assert.Equal(t, format(msg("restricted"), "@riders"), c.last())

	c = press(t, b, passenger, Callback{Action: ActionCheckSub})
	assert.Equal(t, msg("still_not_joined"), c.alert())

	api.role = tele.Member
	c = press(t, b, passenger, Callback{Action: ActionCheckSub})
	assert.True(t, c.deleted)
	assert.Equal(t, msg("access_granted"), c.last())

	user, err := b.Svc.User().Get(context.Background(), passenger.ID)
	require.NoError(t, err)
	assert.Equal(t, "olga", user.Username)
}

func TestBot_IsSubscribed(t *testing.T) {
	ctx := context.Background()

	b, _ := newTestBot(t, nil)
	ok, err := b.IsSubscribed(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	b, api := newTestBot(t, &config.Config{RequiredChat: "@riders"})
	for role, want := range map[tele.MemberStatus]bool{
		tele.Creator:       true,
		tele.Administrator: true,
		tele.Member:        true,
		tele.Left:          false,
		tele.Kicked:        false,
	} {
		api.role = role
		ok, err := b.IsSubscribed(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, want, ok, role)
	}

	api.roleErr = errors.New("telegram: bad request")
	ok, err = b.IsSubscribed(ctx, 1)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperr.ErrTransport)
}

func TestBot_Send(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t, nil)

	require.NoError(t, b.Send(ctx, 5, "hi"))
	assert.Equal(t, []sentMessage{{to: "5", text: "hi"}}, api.sent)

	api.sendErr = tele.ErrBlockedByUser
	err := b.Send(ctx, 5, "hi")
	assert.True(t, notify.IsPermanent(err))
	assert.ErrorIs(t, err, apperr.ErrTransport)

	api.sendErr = errors.New("connection reset")
	err = b.Send(ctx, 5, "hi")
	assert.False(t, notify.IsPermanent(err))
	assert.ErrorIs(t, err, apperr.ErrTransport)
}

func TestBot_WebApp(t *testing.T) {
	b, _ := newTestBot(t, nil)

	c := &fakeContext{sender: driver, message: &tele.Message{WebAppData: &tele.WebAppData{
		Data: `{"destination":"Kazan","time":"18:00","seats":"2","price":"700"}`,
	}}}
	require.NoError(t, b.handleWebApp(c))
	assert.Contains(t, c.last(), msg("ride_created"))

	rides, err := b.Svc.Ride().ListRidesForDriver(context.Background(), driver.ID)
	require.NoError(t, err)
	require.Len(t, rides, 1)
	assert.Equal(t, "Kazan", rides[0].Destination)
	assert.Equal(t, 2, rides[0].Seats)

	c = &fakeContext{sender: driver, message: &tele.Message{WebAppData: &tele.WebAppData{Data: "{"}}}
	require.NoError(t, b.handleWebApp(c))
	assert.Equal(t, msg("webapp_bad"), c.last())
}
