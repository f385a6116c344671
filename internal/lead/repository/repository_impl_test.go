package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/blsuntech/internal/lead/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	r := Provide()

	mt.Run("insert assigns object id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		record := &domain.LeadRecord{Name: "Ada", Flow: domain.FlowEnquiry, SubmittedAt: time.Now().UTC()}
		id, err := r.Insert(context.Background(), mt.Coll, record)
		require.NoError(mt, err)
		assert.False(mt, id.IsZero())
		assert.Equal(mt, id, record.ID)
	})

	mt.Run("list decodes newest first batch", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		newer := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
		older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "Grace"}, {Key: "ts", Value: newer}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "Ada"}, {Key: "ts", Value: older}},
		))

		items, err := r.List(context.Background(), mt.Coll, 2)
		require.NoError(mt, err)
		require.Len(mt, items, 2)
		assert.Equal(mt, "Grace", items[0].Name)
		assert.True(mt, items[0].SubmittedAt.Equal(newer))
	})

	mt.Run("count", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(7)}}))

		total, err := r.Count(context.Background(), mt.Coll)
		require.NoError(mt, err)
		assert.Equal(mt, int64(7), total)
	})
}
