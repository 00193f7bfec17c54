// Package notify posts booking activity to an operations Telegram chat.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/models"
)

// Notifier turns booking events into chat messages.
type Notifier struct {
	bot    domain.TelegramSender
	chatID int64
	logger zerolog.Logger
}

func NewNotifier(bot domain.TelegramSender, chatID int64, logger *zerolog.Logger) *Notifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "notify").Logger()
	}
	return &Notifier{bot: bot, chatID: chatID, logger: l}
}

// NewBotAPI connects to Telegram with the given token.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = debug
	return api, nil
}

func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(n.handleEvent, events.EventBookingCreated, events.EventBookingCancelled, events.EventBookingPaid)
}

func (n *Notifier) handleEvent(e *events.Event) error {
	var p events.BookingEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return n.SendMarkdown(FormatBookingEvent(e.Type, p))
}

// SendMarkdown posts text to the configured chat.
func (n *Notifier) SendMarkdown(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", n.chatID).Msg("telegram send failed")
		return err
	}
	return nil
}

// FormatBookingEvent renders one booking event as a Markdown message.
func FormatBookingEvent(eventType string, p events.BookingEventPayload) string {
	var title string
	switch eventType {
	case events.EventBookingCreated:
		title = "🆕 *New booking*"
	case events.EventBookingPaid:
		title = "💳 *Paid booking*"
	case events.EventBookingCancelled:
		title = "❌ *Booking cancelled*"
	default:
		title = "*Booking update*"
	}

	room := p.RoomTitle
	if room == "" {
		room = fmt.Sprintf("room #%d", p.RoomID)
	}

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Booking: #%d\n", p.BookingID)
	fmt.Fprintf(&sb, "Room: %s\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, room))
	fmt.Fprintf(&sb, "Dates: %s → %s (%d nights)\n",
		p.StartDate.Format(models.DateLayout), p.EndDate.Format(models.DateLayout), p.Nights)
	fmt.Fprintf(&sb, "Total: %.2f\n", p.Price)
	fmt.Fprintf(&sb, "Guest: user #%d", p.UserID)
	if p.Source != "" {
		fmt.Fprintf(&sb, "\nSource: %s", p.Source)
	}
	return sb.String()
}
