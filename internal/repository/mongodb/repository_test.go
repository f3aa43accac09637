package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

func TestReconcileSummaryStorage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save upserts", func(mt *mtest.T) {
		repo := NewFromClient(mt.Client, "traystore")
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})

		err := repo.SaveReconcileSummary(context.Background(), models.ReconcileSummary{
			Date:    time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			Matched: 3,
		})
		require.NoError(mt, err)
	})

	mt.Run("save surfaces write errors", func(mt *mtest.T) {
		repo := NewFromClient(mt.Client, "traystore")
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key"}))

		err := repo.SaveReconcileSummary(context.Background(), models.ReconcileSummary{})
		assert.Error(mt, err)
	})

	mt.Run("latest decodes", func(mt *mtest.T) {
		repo := NewFromClient(mt.Client, "traystore")
		ns := "traystore." + summaryCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "matched", Value: 7},
			{Key: "sap_shortage", Value: 2},
			{Key: "largest_shortfall", Value: "M2"},
		}))

		summary, err := repo.LatestReconcileSummary(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, 7, summary.Matched)
		assert.Equal(mt, 2, summary.ExternalSurplus)
		assert.Equal(mt, "M2", summary.LargestShortfall)
	})

	mt.Run("latest on empty collection", func(mt *mtest.T) {
		repo := NewFromClient(mt.Client, "traystore")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "traystore."+summaryCollection, mtest.FirstBatch))

		_, err := repo.LatestReconcileSummary(context.Background())
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})
}
