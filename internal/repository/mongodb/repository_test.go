package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

func TestSnapshots(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save upserts by date", func(mt *mtest.T) {
		repo := &MongoDBRepository{client: mt.Client, dbName: "ledger", collName: SnapshotCollection}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := repo.SaveSnapshot(context.Background(), models.DashboardSnapshot{
			Date:      time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC),
			TotalCost: "160.25",
		})
		require.NoError(mt, err)
	})

	mt.Run("save reports write errors", func(mt *mtest.T) {
		repo := &MongoDBRepository{client: mt.Client, dbName: "ledger", collName: SnapshotCollection}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key"}))

		err := repo.SaveSnapshot(context.Background(), models.DashboardSnapshot{})
		assert.Error(mt, err)
	})

	mt.Run("recent decodes newest first", func(mt *mtest.T) {
		repo := &MongoDBRepository{client: mt.Client, dbName: "ledger", collName: SnapshotCollection}
		ns := "ledger." + SnapshotCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "date", Value: time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC)}, {Key: "total_cost", Value: "160.25"}, {Key: "total_entries", Value: int64(4)}},
				bson.D{{Key: "date", Value: time.Date(2024, time.June, 13, 0, 0, 0, 0, time.UTC)}, {Key: "total_cost", Value: "150.00"}},
			),
		)

		got, err := repo.RecentSnapshots(context.Background(), 2)
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "160.25", got[0].TotalCost)
		assert.EqualValues(mt, 4, got[0].TotalEntries)
		assert.Equal(mt, 13, got[1].Date.Day())
	})
}
