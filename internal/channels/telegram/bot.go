// Package telegram is the long-polling Telegram frontend: one chat maps to
// exactly one durable session, turns are persisted before and after the
// agent runs, and only numerically allow-listed users may talk to the bot.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/synapse-run/synapse/internal/agent"
	"github.com/synapse-run/synapse/internal/message"
	"github.com/synapse-run/synapse/internal/session"
	"github.com/synapse-run/synapse/internal/storage"
)

// sessionNamePrefix names the synthetic session that owns a chat's history.
const sessionNamePrefix = "chat:"

// Bot wires a Telegram long-polling client to an Agent and a SessionStore.
type Bot struct {
	api          BotClient
	agent        *agent.Agent
	store        storage.SessionStore
	allowedUsers map[int64]bool
	provider     string
	model        string
	logger       *slog.Logger
}

// New constructs a Bot. allowedUsers is a static allow-list; an empty list
// rejects every user, matching the secure-by-default configuration.
func New(token string, allowedUsers []int64, ag *agent.Agent, store storage.SessionStore, provider, model string, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		agent:        ag,
		store:        store,
		allowedUsers: make(map[int64]bool, len(allowedUsers)),
		provider:     provider,
		model:        model,
		logger:       logger,
	}
	for _, id := range allowedUsers {
		b.allowedUsers[id] = true
	}

	api, err := tgbot.New(token, tgbot.WithDefaultHandler(b.handleMessage))
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to construct bot client: %w", err)
	}
	b.api = api

	api.RegisterHandler(tgbot.HandlerTypeMessageText, "/new", tgbot.MatchTypePrefix, b.handleNew)
	api.RegisterHandler(tgbot.HandlerTypeMessageText, "/sessions", tgbot.MatchTypePrefix, b.handleSessions)
	api.RegisterHandler(tgbot.HandlerTypeMessageText, "/switch", tgbot.MatchTypePrefix, b.handleSwitch)

	return b, nil
}

// Start runs the long-polling loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.api.Start(ctx)
}

func (b *Bot) isAllowed(userID int64) bool {
	return b.allowedUsers[userID]
}

func (b *Bot) reject(ctx context.Context, chatID int64) {
	b.send(ctx, chatID, "You are not authorized to use this bot.")
}

// handleMessage processes a plain conversational turn: persist the user's
// message, run the agent loop, persist and send the assistant's reply.
func (b *Bot) handleMessage(ctx context.Context, api *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if !b.isAllowed(update.Message.From.ID) {
		b.reject(ctx, chatID)
		return
	}
	text := update.Message.Text
	if text == "" || strings.HasPrefix(text, "/") {
		return
	}

	sess, err := b.sessionForChat(ctx, chatID)
	if err != nil {
		b.logger.Error("failed to resolve chat session", "chat_id", chatID, "error", err)
		b.send(ctx, chatID, "Something went wrong loading this conversation.")
		return
	}

	if storeErr := b.store.AddMessage(ctx, session.NewStoredMessage(sess.ID, message.RoleUser, text)); storeErr != nil {
		b.logger.Error("failed to persist user message", "chat_id", chatID, "error", storeErr)
	}

	history, storeErr := b.loadHistory(ctx, sess.ID)
	if storeErr != nil {
		b.logger.Error("failed to load chat history", "chat_id", chatID, "error", storeErr)
		b.send(ctx, chatID, "Something went wrong loading this conversation.")
		return
	}

	systemPrompt := ""
	if sess.SystemPrompt != nil {
		systemPrompt = *sess.SystemPrompt
	}
	messages := b.agent.BuildMessages(systemPrompt, history)

	reply, agentErr := b.agent.Complete(ctx, &messages)
	if agentErr != nil {
		b.logger.Error("agent turn failed", "chat_id", chatID, "error", agentErr)
		b.send(ctx, chatID, "Sorry, I ran into an error processing that.")
		return
	}

	if storeErr := b.store.AddMessage(ctx, session.NewStoredMessage(sess.ID, message.RoleAssistant, reply.Content)); storeErr != nil {
		b.logger.Error("failed to persist assistant message", "chat_id", chatID, "error", storeErr)
	}
	if storeErr := b.store.TouchSession(ctx, sess.ID); storeErr != nil {
		b.logger.Error("failed to touch session", "chat_id", chatID, "error", storeErr)
	}

	b.send(ctx, chatID, reply.Content)
}

// handleNew starts a fresh session for the chat, replacing any existing
// mapping. The session is always named after the chat; any command
// argument is ignored.
func (b *Bot) handleNew(ctx context.Context, api *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if !b.isAllowed(update.Message.From.ID) {
		b.reject(ctx, chatID)
		return
	}

	sess := session.New(b.provider, b.model).WithName(chatSessionName(chatID))
	if err := b.store.CreateSession(ctx, sess); err != nil {
		b.logger.Error("failed to create session", "chat_id", chatID, "error", err)
		b.send(ctx, chatID, "Failed to start a new conversation.")
		return
	}
	b.send(ctx, chatID, "Started a new conversation.")
}

// handleSessions reports the chat's current session. A chat only ever owns
// one live session at a time (handleNew supersedes the prior mapping), so
// earlier sessions are not listed.
func (b *Bot) handleSessions(ctx context.Context, api *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if !b.isAllowed(update.Message.From.ID) {
		b.reject(ctx, chatID)
		return
	}

	sess, err := b.findSessionForChat(ctx, chatID)
	if err != nil {
		b.send(ctx, chatID, "Failed to list sessions.")
		return
	}
	if sess == nil {
		b.send(ctx, chatID, "No conversation yet. Send a message or /new to start one.")
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("Current session: %s (%s/%s)", sess.ID, sess.Provider, sess.Model))
}

// handleSwitch reassigns this chat onto an existing session by ID.
func (b *Bot) handleSwitch(ctx context.Context, api *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if !b.isAllowed(update.Message.From.ID) {
		b.reject(ctx, chatID)
		return
	}

	arg := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/switch"))
	if arg == "" {
		b.send(ctx, chatID, "Usage: /switch <session-id>")
		return
	}

	target, err := parseSessionID(arg)
	if err != nil {
		b.send(ctx, chatID, "That doesn't look like a valid session ID.")
		return
	}
	existing, storeErr := b.store.GetSession(ctx, target)
	if storeErr != nil || existing == nil {
		b.send(ctx, chatID, "No session found with that ID.")
		return
	}

	renamed := existing.WithName(chatSessionName(chatID))
	if err := b.store.UpdateSession(ctx, renamed); err != nil {
		b.logger.Error("failed to rename session onto chat", "chat_id", chatID, "error", err)
		b.send(ctx, chatID, "Failed to switch to that session.")
		return
	}
	b.send(ctx, chatID, "Switched conversation.")
}

// sessionForChat returns the chat's current session, creating one on first
// contact.
func (b *Bot) sessionForChat(ctx context.Context, chatID int64) (*session.Session, *storage.Error) {
	existing, err := b.findSessionForChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sess := session.New(b.provider, b.model).WithName(chatSessionName(chatID))
	if err := b.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (b *Bot) findSessionForChat(ctx context.Context, chatID int64) (*session.Session, *storage.Error) {
	summaries, err := b.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	name := chatSessionName(chatID)
	var latest *session.Summary
	for i := range summaries {
		s := &summaries[i]
		if s.Name != nil && *s.Name == name {
			if latest == nil || s.UpdatedAt.After(latest.UpdatedAt) {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	return b.store.GetSession(ctx, latest.ID)
}

func (b *Bot) loadHistory(ctx context.Context, sessionID uuid.UUID) ([]message.Message, *storage.Error) {
	stored, storeErr := b.store.GetMessages(ctx, sessionID)
	if storeErr != nil {
		return nil, storeErr
	}
	out := make([]message.Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, message.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// send chunks text to Telegram's message-length limit and sends each piece
// in order.
func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	for _, chunk := range Chunk(text, MaxMessageLength) {
		_, err := b.api.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   chunk,
		})
		if err != nil {
			b.logger.Error("failed to send telegram message", "chat_id", chatID, "error", err)
			return
		}
	}
}

func chatSessionName(chatID int64) string {
	return sessionNamePrefix + strconv.FormatInt(chatID, 10)
}

func parseSessionID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
