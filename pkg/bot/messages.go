package bot

import (
	"errors"
	"fmt"
	"strings"

	"ridebot/pkg/apperr"
	"ridebot/pkg/models"
	"ridebot/pkg/notify"
)

const lang = "ru"

var messages = map[string]map[string]string{
	"ru": {
		"welcome":          "Привет, %s! 👋\nВыберите действие в меню ниже:",
		"use_menu":         "Используйте кнопки меню 👇",
		"aborted":          "❌ Действие отменено.",
		"restricted":       "🛑 Доступ ограничен!\n\nЭтот бот только для участников чата %s.",
		"join_chat":        "💬 Вступить в чат",
		"joined":           "✅ Я вступил",
		"still_not_joined": "❌ Вы всё ещё не вступили в чат!",
		"access_granted":   "✅ Доступ открыт!",

		"ride_destination": "📍 Куда едем? Введите направление:",
		"ride_time":        "🕒 Когда выезд? (например: завтра 9:00)",
		"ride_seats":       "💺 Сколько свободных мест?",
		"ride_seats_bad":   "Введите число больше нуля.",
		"ride_price":       "💰 Цена за место?",
		"ride_comment":     "💬 Комментарий для пассажиров (или «-», чтобы пропустить):",
		"ride_created":     "✅ Поездка опубликована!",
		"ride_updated":     "✅ Поездка обновлена!",
		"ride_cancelled":   "❌ Поездка отменена. Пассажиры получат уведомление.",
		"no_driver_rides":  "У вас нет активных поездок.",
		"edit_choose":      "Что изменить?",
		"edit_prompt":      "Введите новое значение для поля «%s»:",

		"search_prompt":  "🔍 Введите направление или «все»:",
		"search_empty":   "📭 Ничего не найдено.",
		"search_found":   "Найдено поездок: %d",
		"booked":         "✅ Место забронировано! Водитель получит уведомление.",
		"unbooked":       "Бронь отменена.",
		"no_bookings":    "У вас нет броней.",
		"driver_contact": "👤 Водитель: %s",

		"support_prompt":    "✍️ Опишите проблему одним сообщением:",
		"support_sent":      "✅ Сообщение отправлено в поддержку. Ответ придёт сюда.",
		"support_off":       "Поддержка сейчас недоступна.",
		"support_request":   "🆘 Обращение от %s (id %d):\n\n%s\n\nОтветить: /reply %d <текст>",
		"support_answer":    "💬 Ответ поддержки:\n\n%s",
		"support_delivered": "✅ Ответ доставлен.",
		"reply_usage":       "Формат: /reply <id> <текст>",

		"webapp_bad": "Не удалось прочитать данные из приложения.",

		"no_seats":       "😔 Свободных мест нет.",
		"already_booked": "Вы уже забронировали место в этой поездке.",
		"ride_not_found": "Поездка не найдена.",
		"generic_error":  "⚠️ Что-то пошло не так. Попробуйте позже.",
	},
}

var fieldButtons = []struct {
	field string
	label string
}{
	{models.FieldTime, "🕒 Время"},
	{models.FieldDestination, "📍 Направление"},
	{models.FieldPrice, "💰 Цена"},
	{models.FieldSeats, "💺 Места"},
}

func msg(key string) string {
	return messages[lang][key]
}

func format(text string, args ...interface{}) string {
	return fmt.Sprintf(text, args...)
}

// errorText maps an error onto what the user is told.
func errorText(err error) string {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		if text := apperr.Message(err); text != "" {
			return "⚠️ " + text
		}
		return msg("generic_error")
	case errors.Is(err, apperr.ErrCapacity):
		return msg("no_seats")
	case errors.Is(err, apperr.ErrDuplicate):
		return msg("already_booked")
	case errors.Is(err, apperr.ErrNotFound):
		return msg("ride_not_found")
	}
	return msg("generic_error")
}

func fieldLabel(field string) string {
	for _, f := range fieldButtons {
		if f.field == field {
			return f.label
		}
	}
	return field
}

func rideCard(r *models.Ride) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚗 Поездка #%d\n📍 %s\n", r.ID, r.Destination)
	if r.Time != "" {
		fmt.Fprintf(&sb, "🕒 %s\n", r.Time)
	}
	fmt.Fprintf(&sb, "💺 Свободно: %d из %d\n", r.SeatsLeft(), r.Seats)
	if r.Price != "" {
		fmt.Fprintf(&sb, "💰 %s\n", r.Price)
	}
	if r.Comment != "" {
		fmt.Fprintf(&sb, "💬 %s\n", r.Comment)
	}
	fmt.Fprintf(&sb, "👤 %s", notify.DisplayName(r.DriverName, r.DriverUsername))
	return sb.String()
}
