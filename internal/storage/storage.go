package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pairgogo/backend/internal/models"
)

// EventsChannel is the Redis Pub/Sub channel used for cross-node delivery
// of matchmaking events.
const EventsChannel = "match:events"

// ErrRoomNotFound is returned when a room lookup misses.
var ErrRoomNotFound = errors.New("chat room not found")

// Storage is the persistence boundary the matchmaking core depends on.
// Everything behind it is external: the pool and proposal table themselves
// are never persisted.
type Storage interface {
	SaveUserIfNotExists(telegramID string) (*models.User, error)
	IsUserBanned(anonID string) (bool, error)

	SaveRoom(room *models.ChatRoom) error
	CloseRoom(roomID string) error
	GetRoomByID(roomID string) (*models.ChatRoom, error)
	GetActiveRoomIDForUser(userID string) (string, error)

	PublishEvent(env models.EventEnvelope) error
	SubscribeEvents() *redis.PubSub
}

// Service implements Storage on top of PostgreSQL (gorm) and Redis.
type Service struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Ctx    context.Context
	Logger *zap.Logger
}

// NewStorageService constructs the storage service.
func NewStorageService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *Service {
	return &Service{
		DB:     db,
		Redis:  rdb,
		Ctx:    context.Background(),
		Logger: logger,
	}
}

// SaveUserIfNotExists upserts a user on first Telegram contact and returns
// the persisted record, including its anonymous UUID.
func (s *Service) SaveUserIfNotExists(telegramID string) (*models.User, error) {
	var user models.User

	defaults := models.User{TelegramID: telegramID}

	result := s.DB.Where("telegram_id = ?", telegramID).FirstOrCreate(&user, defaults)
	if result.Error != nil {
		s.Logger.Error("failed to upsert user on first contact",
			zap.String("telegram_id", telegramID), zap.Error(result.Error))
		return nil, result.Error
	}

	if result.RowsAffected > 0 {
		s.Logger.Info("new user saved",
			zap.String("anon_id", user.ID), zap.String("telegram_id", telegramID))
	}

	return &user, nil
}

// IsUserBanned checks the ban flag in Redis. Ban management itself lives in
// the moderation service; the matchmaking core only reads the flag.
func (s *Service) IsUserBanned(anonID string) (bool, error) {
	key := "ban:" + anonID
	status, err := s.Redis.Get(s.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// SaveRoom persists a chat room in PostgreSQL.
func (s *Service) SaveRoom(room *models.ChatRoom) error {
	return s.DB.Save(room).Error
}

// CloseRoom marks the room inactive and stamps its end time.
func (s *Service) CloseRoom(roomID string) error {
	return s.DB.Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  time.Now(),
		}).Error
}

// GetRoomByID loads a single room.
func (s *Service) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom

	err := s.DB.Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		s.Logger.Error("failed to get room", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}
	return &room, nil
}

// GetActiveRoomIDForUser finds the active room the user participates in,
// returning "" when there is none.
func (s *Service) GetActiveRoomIDForUser(userID string) (string, error) {
	var room models.ChatRoom

	err := s.DB.Where("is_active = ?", true).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		First(&room).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		s.Logger.Error("failed to find active room",
			zap.String("user_id", userID), zap.Error(err))
		return "", err
	}

	return room.RoomID, nil
}

// PublishEvent pushes a matchmaking event into the cross-node fanout channel.
func (s *Service) PublishEvent(env models.EventEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, EventsChannel, string(data)).Err()
}

// SubscribeEvents subscribes to the cross-node fanout channel.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, EventsChannel)
}
