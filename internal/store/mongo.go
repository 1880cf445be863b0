package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/logger"
	"github.com/mailsentry/mailsentry/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	sessionsCollection = "sessions"
	seenCollection     = "seen_messages"

	connectTimeout = 10 * time.Second
)

// MongoStore implements Sessions and Ledger on a MongoDB database.
type MongoStore struct {
	client   *mongo.Client
	sessions *mongo.Collection
	seen     *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the indexes the engine
// relies on (unique user id, unique (user id, message id) pair).
func NewMongoStore(ctx context.Context, cfg *config.MongoConfig) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:   client,
		sessions: db.Collection(sessionsCollection),
		seen:     db.Collection(seenCollection),
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}

	logger.Info("connected to mongo", zap.String("database", cfg.Database))
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}

	_, err = s.seen.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "message_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger index: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Get(ctx context.Context, userID string) (*models.UserSession, error) {
	var session models.UserSession
	err := s.sessions.FindOne(ctx, bson.M{"user_id": userID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", userID, err)
	}
	return &session, nil
}

func (s *MongoStore) Upsert(ctx context.Context, userID string, update SessionUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.ChatID != nil {
		set["chat_id"] = *update.ChatID
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.AccessToken != nil {
		set["access_token"] = *update.AccessToken
	}
	if update.RefreshToken != nil {
		set["refresh_token"] = *update.RefreshToken
	}
	if update.Active != nil {
		set["active"] = *update.Active
	}
	if update.LatestCode != nil {
		set["latest_code"] = *update.LatestCode
	}
	if update.LatestCodeAt != nil {
		set["latest_code_at"] = *update.LatestCodeAt
	}
	if update.LastCheckAt != nil {
		set["last_check_at"] = *update.LastCheckAt
	}
	if update.LastAlias != nil {
		set["last_alias"] = *update.LastAlias
	}
	if update.DashboardMessageID != nil {
		set["dashboard_message_id"] = *update.DashboardMessageID
	}
	if update.DashboardInitialized != nil {
		set["dashboard_initialized"] = *update.DashboardInitialized
	}
	if update.ResetCaptured {
		set["captured_count"] = 0
	}

	doc := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
	}
	if update.IncrementCaptured != 0 && !update.ResetCaptured {
		doc["$inc"] = bson.M{"captured_count": update.IncrementCaptured}
	}

	_, err := s.sessions.UpdateOne(ctx, bson.M{"user_id": userID}, doc, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", userID, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.sessions.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", userID, err)
	}
	return nil
}

func (s *MongoStore) ListPollable(ctx context.Context) ([]*models.UserSession, error) {
	filter := bson.M{
		"access_token": bson.M{"$exists": true, "$ne": ""},
		"active":       true,
	}
	cursor, err := s.sessions.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list pollable sessions: %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			logger.Warn("failed to close session cursor", zap.Error(err))
		}
	}()

	var sessions []*models.UserSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

func (s *MongoStore) IsSeen(ctx context.Context, userID, messageID string) (bool, error) {
	err := s.seen.FindOne(ctx, bson.M{"user_id": userID, "message_id": messageID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return true, nil
}

func (s *MongoStore) MarkSeen(ctx context.Context, userID, messageID string) error {
	_, err := s.seen.UpdateOne(ctx,
		bson.M{"user_id": userID, "message_id": messageID},
		bson.M{"$setOnInsert": bson.M{"seen_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to mark message seen: %w", err)
	}
	return nil
}
