package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"channel-scout/internal/logging"
	"channel-scout/pkg/models"
)

func runDoc(t *testing.T, run *models.RunResult) bson.D {
	t.Helper()
	raw, err := bson.Marshal(run)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func sampleRun() *models.RunResult {
	return &models.RunResult{
		RunID:     "run-1",
		Query:     "cooking",
		Keywords:  []string{"cooking", "recipes"},
		StartedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Results: []models.Result{{
			Candidate: models.Candidate{ChannelID: "UC1", Title: "Chef Jane", Country: "US", SubscriberCount: 250000},
			Contact:   models.ContactInfo{Email: "jane.doe@creators.tv"},
		}},
	}
}

func TestRunStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}))
		c := NewWithCollection(mt.Coll, logging.NewNopLogger())
		require.NoError(mt, c.SaveRun(context.Background(), sampleRun()))
	})

	mt.Run("get", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, runDoc(mt.T, sampleRun())))
		c := NewWithCollection(mt.Coll, logging.NewNopLogger())

		run, err := c.GetRun(context.Background(), "run-1")
		require.NoError(mt, err)
		assert.Equal(mt, "cooking", run.Query)
		require.Len(mt, run.Results, 1)
		assert.Equal(mt, "UC1", run.Results[0].ChannelID)
		assert.Equal(mt, "jane.doe@creators.tv", run.Results[0].Contact.Email)
		assert.Equal(mt, 90*time.Second, run.Duration)
	})

	mt.Run("missing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		c := NewWithCollection(mt.Coll, logging.NewNopLogger())

		_, err := c.GetRun(context.Background(), "nope")
		assert.ErrorIs(mt, err, ErrRunNotFound)
	})

	mt.Run("recent", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, runDoc(mt.T, sampleRun())),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)
		c := NewWithCollection(mt.Coll, logging.NewNopLogger())

		runs, err := c.RecentRuns(context.Background(), "cooking", 5)
		require.NoError(mt, err)
		require.Len(mt, runs, 1)
		assert.Equal(mt, "run-1", runs[0].RunID)
	})
}
