package domain

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Repository interface {
	Insert(ctx context.Context, coll *mongo.Collection, record *LeadRecord) (primitive.ObjectID, error)
	List(ctx context.Context, coll *mongo.Collection, limit int) ([]LeadRecord, error)
	Count(ctx context.Context, coll *mongo.Collection) (int64, error)
}
