package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-challenge-backend/internal/infra/metrics"
)

// Приветствие веб-приложения. Отправляется один раз на /start,
// без состояния и повторов.
const startGreeting = "Challenge botga xush kelibsiz! Tez orada veb-ilova ochiladi."

// Sender — минимальный интерфейс отправки сообщений, его реализует
// tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler обслуживает вебхук бота.
type Handler struct {
	bot Sender
	log zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(bot Sender, logger zerolog.Logger) *Handler {
	return &Handler{bot: bot, log: logger}
}

// HandleUpdate обрабатывает входящий апдейт. Реагируем только на
// /start, остальное молча игнорируется.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	text := strings.TrimSpace(upd.Message.Text)
	if !strings.HasPrefix(text, "/start") {
		return
	}
	h.reply(upd.Message.Chat.ID, startGreeting)
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("бот: не удалось отправить сообщение")
	}
}
