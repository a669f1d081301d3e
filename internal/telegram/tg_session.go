package telegram

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"pairgogo/backend/internal/models"
)

// Session implements matchhub.Session over a Telegram chat. The read side
// is centralized in BotService (Telegram delivers all updates in one
// stream); only the write pump lives here.
type Session struct {
	UserID string // anonymous UUID from storage
	ChatID int64
	BotAPI *tgbotapi.BotAPI
	Send   chan models.Event
	Logger *zap.Logger

	done         chan struct{}
	mu           sync.Mutex
	lastProposal string
	closeOnce    sync.Once
}

// NewSession creates a Telegram-backed session.
func NewSession(userID string, chatID int64, bot *tgbotapi.BotAPI, logger *zap.Logger) *Session {
	return &Session{
		UserID: userID,
		ChatID: chatID,
		BotAPI: bot,
		Send:   make(chan models.Event, 64),
		Logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *Session) GetUserID() string                   { return c.UserID }
func (c *Session) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts the write pump.
func (c *Session) Run() {
	go c.writePump()
}

// Close signals the write pump to stop. The send channel is left open so a
// delivery racing the teardown can never panic on a closed channel. Safe to
// call more than once.
func (c *Session) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// LastProposal returns the proposal ID of the most recent match:found event
// so /accept and /reject do not need the user to type it.
func (c *Session) LastProposal() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProposal
}

func (c *Session) setLastProposal(id string) {
	c.mu.Lock()
	c.lastProposal = id
	c.mu.Unlock()
}

func (c *Session) writePump() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.Send:
			if ev.Type == models.EventMatchFound {
				c.setLastProposal(ev.ProposalID)
			}

			text := renderEvent(ev)
			if text == "" {
				continue
			}

			msg := tgbotapi.NewMessage(c.ChatID, text)
			if _, err := c.BotAPI.Send(msg); err != nil {
				c.Logger.Warn("failed to send telegram message",
					zap.Int64("chat_id", c.ChatID), zap.Error(err))
			}
		}
	}
}

func renderEvent(ev models.Event) string {
	switch ev.Type {
	case models.EventSearchStarted:
		return "🔍 Searching for a partner..."
	case models.EventMatchFound:
		return "✅ Partner found! Reply /accept to start chatting or /reject to keep looking."
	case models.EventMatchConfirmed:
		return "🎉 You are connected! Say hi."
	case models.EventMatchRejected:
		return "😔 The match did not work out."
	case models.EventMatchExpired:
		return "⌛ The match offer expired."
	case models.EventError:
		return "⚠️ " + ev.Content
	default:
		return ""
	}
}
