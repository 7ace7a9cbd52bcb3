package notify

import (
	"fmt"

	"ridebot/pkg/models"
)

var templates = map[models.EventKind]string{
	models.EventBookingCreated:   "🔔 Новое бронирование!\n\n👤 %s забронировал(а) место в вашей поездке в %s.",
	models.EventBookingCancelled: "⚠️ %s отменил(а) бронь в вашей поездке в %s.",
	models.EventRideEdited:       "✏️ Водитель %s изменил поездку в %s.\n%s: %s",
	models.EventRideCancelled:    "❌ Водитель %s отменил поездку в %s.",
}

var fieldLabels = map[string]string{
	models.FieldTime:        "🕒 Время",
	models.FieldDestination: "📍 Направление",
	models.FieldPrice:       "💰 Цена",
	models.FieldSeats:       "💺 Мест",
}

// Render builds the message text for ev.
func Render(ev models.Event) (string, error) {
	tpl, ok := templates[ev.Kind]
	if !ok {
		return "", fmt.Errorf("no template for event kind %q", ev.Kind)
	}

	who := DisplayName(ev.ActorName, ev.ActorUsername)
	if ev.Kind == models.EventRideEdited {
		label, ok := fieldLabels[ev.Field]
		if !ok {
			label = ev.Field
		}
		return fmt.Sprintf(tpl, who, ev.Destination, label, ev.Value), nil
	}
	return fmt.Sprintf(tpl, who, ev.Destination), nil
}

// DisplayName renders "Name (@handle)", falling back to a neutral name.
func DisplayName(name, username string) string {
	if name == "" {
		name = "Пользователь"
	}
	if handle := models.Handle(username); handle != "" {
		return name + " (" + handle + ")"
	}
	return name
}
