package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stellar_notification_bot/internal/domain/subscription"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type chatDocument struct {
	ChatID      int64     `bson:"chat_id"`
	AccountIDs  []string  `bson:"account_ids"`
	Enable      bool      `bson:"enable"`
	CreatedTime time.Time `bson:"created_time"`
	UpdatedTime time.Time `bson:"updated_time"`
}

type SubscriptionRepository struct {
	col *mongo.Collection
}

func NewSubscriptionRepository(db *mongo.Database) *SubscriptionRepository {
	return &SubscriptionRepository{col: db.Collection(chatCollection)}
}

func (r *SubscriptionRepository) EnsureChat(ctx context.Context, chatID int64) error {
	now := time.Now().UTC()
	_, err := r.col.UpdateOne(ctx,
		bson.D{{Key: "chat_id", Value: chatID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "enable", Value: true}, {Key: "updated_time", Value: now}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "account_ids", Value: []string{}}, {Key: "created_time", Value: now}}},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error ensuring chat %d: %w", chatID, err)
	}
	return nil
}

func (r *SubscriptionRepository) Get(ctx context.Context, chatID int64) (*subscription.Subscription, error) {
	var doc chatDocument
	err := r.col.FindOne(ctx, bson.D{{Key: "chat_id", Value: chatID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, subscription.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting chat %d: %w", chatID, err)
	}
	return &subscription.Subscription{
		ChatID:     doc.ChatID,
		AccountIDs: doc.AccountIDs,
		Enabled:    doc.Enable,
		CreatedAt:  doc.CreatedTime,
		UpdatedAt:  doc.UpdatedTime,
	}, nil
}

func (r *SubscriptionRepository) AddAccount(ctx context.Context, chatID int64, accountID string) error {
	now := time.Now().UTC()
	_, err := r.col.UpdateOne(ctx,
		bson.D{{Key: "chat_id", Value: chatID}},
		bson.D{
			{Key: "$addToSet", Value: bson.D{{Key: "account_ids", Value: accountID}}},
			{Key: "$set", Value: bson.D{{Key: "updated_time", Value: now}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "enable", Value: true}, {Key: "created_time", Value: now}}},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error adding account to chat %d: %w", chatID, err)
	}
	return nil
}

func (r *SubscriptionRepository) RemoveAccount(ctx context.Context, chatID int64, accountID string) error {
	return r.updateOne(ctx, chatID, bson.D{
		{Key: "$pull", Value: bson.D{{Key: "account_ids", Value: accountID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_time", Value: time.Now().UTC()}}},
	})
}

func (r *SubscriptionRepository) Enable(ctx context.Context, chatID int64) error {
	return r.setEnable(ctx, chatID, true)
}

func (r *SubscriptionRepository) Disable(ctx context.Context, chatID int64) error {
	return r.setEnable(ctx, chatID, false)
}

func (r *SubscriptionRepository) setEnable(ctx context.Context, chatID int64, enable bool) error {
	return r.updateOne(ctx, chatID, bson.D{
		{Key: "$set", Value: bson.D{{Key: "enable", Value: enable}, {Key: "updated_time", Value: time.Now().UTC()}}},
	})
}

func (r *SubscriptionRepository) updateOne(ctx context.Context, chatID int64, update bson.D) error {
	res, err := r.col.UpdateOne(ctx, bson.D{{Key: "chat_id", Value: chatID}}, update)
	if err != nil {
		return fmt.Errorf("error updating chat %d: %w", chatID, err)
	}
	if res.MatchedCount == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (r *SubscriptionRepository) FindEnabledChatsWatching(ctx context.Context, accountIDs []string) ([]int64, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	filter := bson.D{
		{Key: "account_ids", Value: bson.D{{Key: "$in", Value: accountIDs}}},
		{Key: "enable", Value: true},
	}
	opts := options.Find().
		SetProjection(bson.D{{Key: "chat_id", Value: 1}, {Key: "_id", Value: 0}}).
		SetSort(bson.D{{Key: "chat_id", Value: 1}})

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding chats watching accounts: %w", err)
	}
	defer cur.Close(ctx)

	var chatIDs []int64
	for cur.Next(ctx) {
		var doc chatDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding chat: %w", err)
		}
		chatIDs = append(chatIDs, doc.ChatID)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats: %w", err)
	}
	return chatIDs, nil
}
