package mongodb

import (
	"context"
	"errors"
	"fmt"

	"stellar_notification_bot/internal/domain/cursor"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type systemInfoDocument struct {
	ProcessedLedger int64 `bson:"processed_ledger"`
}

// CursorRepository keeps the processed ledger in the single system_info document.
type CursorRepository struct {
	col *mongo.Collection
}

func NewCursorRepository(db *mongo.Database) *CursorRepository {
	return &CursorRepository{col: db.Collection(systemInfoCollection)}
}

func (r *CursorRepository) Get(ctx context.Context) (uint64, error) {
	var doc systemInfoDocument
	err := r.col.FindOne(ctx, bson.D{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, cursor.ErrUninitialized
	}
	if err != nil {
		return 0, fmt.Errorf("error getting processed ledger: %w", err)
	}
	return uint64(doc.ProcessedLedger), nil
}

func (r *CursorRepository) Set(ctx context.Context, ledger uint64) error {
	_, err := r.col.UpdateOne(ctx,
		bson.D{},
		bson.D{{Key: "$set", Value: bson.D{{Key: "processed_ledger", Value: int64(ledger)}}}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error setting processed ledger: %w", err)
	}
	return nil
}

func (r *CursorRepository) SeedIfAbsent(ctx context.Context, ledger uint64) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.D{},
		bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "processed_ledger", Value: int64(ledger)}}}},
		options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("error seeding processed ledger: %w", err)
	}
	return res.UpsertedCount == 1, nil
}
