package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stellar_notification_bot/internal/domain/outbox"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Seq         int64              `bson:"seq"`
	ChatID      int64              `bson:"chat_id"`
	Content     string             `bson:"content"`
	TxHash      string             `bson:"tx_hash"`
	CreatedTime time.Time          `bson:"created_time"`
}

type counterDocument struct {
	Seq int64 `bson:"seq"`
}

// OutboxRepository orders messages by a sequence allocated from the counter
// collection, so entries of one batch keep their order.
type OutboxRepository struct {
	messages *mongo.Collection
	counters *mongo.Collection
}

func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{
		messages: db.Collection(messageCollection),
		counters: db.Collection(counterCollection),
	}
}

func (r *OutboxRepository) EnqueueBatch(ctx context.Context, notifications []*outbox.PendingNotification) error {
	if len(notifications) == 0 {
		return nil
	}

	last, err := r.reserve(ctx, int64(len(notifications)))
	if err != nil {
		return err
	}
	first := last - int64(len(notifications)) + 1

	now := time.Now().UTC()
	docs := make([]any, 0, len(notifications))
	for i, n := range notifications {
		doc := messageDocument{
			ID:          primitive.NewObjectID(),
			Seq:         first + int64(i),
			ChatID:      n.ChatID,
			Content:     n.Body,
			TxHash:      n.TxHash,
			CreatedTime: now,
		}
		docs = append(docs, doc)
		n.ID = doc.ID.Hex()
		n.EnqueuedAt = now
	}

	if _, err := r.messages.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("could not insert messages in db: %w", err)
	}
	return nil
}

// reserve atomically advances the message counter by n and returns its new value.
func (r *OutboxRepository) reserve(ctx context.Context, n int64) (int64, error) {
	var counter counterDocument
	err := r.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: messageCollection}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: n}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("error reserving message sequence: %w", err)
	}
	return counter.Seq, nil
}

func (r *OutboxRepository) PeekOldest(ctx context.Context) (*outbox.PendingNotification, error) {
	var doc messageDocument
	err := r.messages.FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "seq", Value: 1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, outbox.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("error getting oldest message: %w", err)
	}
	return &outbox.PendingNotification{
		ID:         doc.ID.Hex(),
		ChatID:     doc.ChatID,
		Body:       doc.Content,
		TxHash:     doc.TxHash,
		EnqueuedAt: doc.CreatedTime,
	}, nil
}

func (r *OutboxRepository) Remove(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", id, err)
	}
	if _, err := r.messages.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}}); err != nil {
		return fmt.Errorf("error removing message %s: %w", id, err)
	}
	return nil
}

func (r *OutboxRepository) Len(ctx context.Context) (int64, error) {
	n, err := r.messages.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("error counting messages: %w", err)
	}
	return n, nil
}
