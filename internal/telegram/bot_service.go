// Package telegram is the Telegram transport for the matchmaking engine.
// It receives bot updates, maps each chat onto an anonymous user, and
// drives the same matchmaking service the WebSocket transport uses.
package telegram

import (
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"pairgogo/backend/internal/matchhub"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/storage"
)

// BotService receives Telegram updates and routes commands to the hub.
type BotService struct {
	BotAPI  *tgbotapi.BotAPI
	Service *matchhub.Service
	Storage storage.Storage
	Logger  *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, svc *matchhub.Service, s storage.Storage, logger *zap.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	logger.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))

	return &BotService{
		BotAPI:   bot,
		Service:  svc,
		Storage:  s,
		Logger:   logger,
		sessions: make(map[int64]*Session),
	}, nil
}

// Run consumes the update stream. Blocks until the channel closes.
func (s *BotService) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := s.BotAPI.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		s.handleMessage(update.Message)
	}
}

func (s *BotService) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		s.reply(msg.Chat.ID, "Use /search <interests...> to find a partner, /cancel to stop searching.")
		return
	}

	sess := s.getOrCreateSession(msg.Chat.ID)
	if sess == nil {
		s.reply(msg.Chat.ID, "Something went wrong, please try again later.")
		return
	}

	switch msg.Command() {
	case "start":
		s.reply(msg.Chat.ID, "Welcome! Send /search music travel art to start looking for a partner with shared interests.")

	case "search":
		interests := strings.Fields(msg.CommandArguments())
		criteria := models.SearchCriteria{Interests: interests}
		if err := s.Service.StartSearch(sess.UserID, criteria); err != nil {
			s.reply(msg.Chat.ID, "⚠️ "+err.Error())
		}

	case "cancel":
		if s.Service.CancelSearch(sess.UserID) {
			s.reply(msg.Chat.ID, "Search cancelled.")
		} else {
			s.reply(msg.Chat.ID, "You are not searching right now.")
		}

	case "accept", "reject":
		proposalID := sess.LastProposal()
		if proposalID == "" {
			s.reply(msg.Chat.ID, "There is no match offer waiting for you.")
			return
		}
		accept := msg.Command() == "accept"
		if err := s.Service.SubmitDecision(proposalID, sess.UserID, accept); err != nil {
			s.reply(msg.Chat.ID, "⚠️ "+err.Error())
		}

	case "stop":
		s.dropSession(sess)
		s.reply(msg.Chat.ID, "Session closed. Send any command to reconnect.")

	default:
		s.reply(msg.Chat.ID, "Unknown command. Try /search, /cancel, /accept or /reject.")
	}
}

// getOrCreateSession maps the Telegram chat onto an anonymous user and
// registers a session with the hub on first contact.
func (s *BotService) getOrCreateSession(chatID int64) *Session {
	s.mu.Lock()
	sess, ok := s.sessions[chatID]
	s.mu.Unlock()
	if ok {
		return sess
	}

	user, err := s.Storage.SaveUserIfNotExists(strconv.FormatInt(chatID, 10))
	if err != nil {
		s.Logger.Error("failed to resolve telegram user",
			zap.Int64("chat_id", chatID), zap.Error(err))
		return nil
	}

	sess = NewSession(user.ID, chatID, s.BotAPI, s.Logger)

	s.mu.Lock()
	s.sessions[chatID] = sess
	s.mu.Unlock()

	s.Service.HandleConnect(sess)
	return sess
}

func (s *BotService) dropSession(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ChatID)
	s.mu.Unlock()
	s.Service.HandleDisconnect(sess)
}

func (s *BotService) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.BotAPI.Send(msg); err != nil {
		s.Logger.Warn("failed to reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
