package telegram

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// BotClient is the subset of *bot.Bot this package drives, narrowed so
// tests can inject a fake instead of talking to Telegram's API.
type BotClient interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	RegisterHandler(handlerType tgbot.HandlerType, pattern string, matchType tgbot.MatchType, handler tgbot.HandlerFunc)
	Start(ctx context.Context)
}
