// Package store persists finished discovery runs in MongoDB. One document per
// run, keyed by run ID, in the configured collection.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"channel-scout/internal/config"
	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/models"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("run not found")

// Client wraps a MongoDB client and the runs collection
type Client struct {
	mc     *mongo.Client
	runs   *mongo.Collection
	logger types.Logger
}

// New connects to MongoDB, pings it and ensures the indices
func New(ctx context.Context, cfg *config.Config, logger types.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	timeout := cfg.Mongo.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.Mongo.URI).SetConnectTimeout(timeout)
	mc, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("store: mongo connect: %w", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("store: mongo ping: %w", err)
	}

	c := NewWithCollection(mc.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection), logger)
	c.mc = mc
	if err := c.ensureIndices(ctx); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

// NewWithCollection wraps an existing collection
func NewWithCollection(coll *mongo.Collection, logger types.Logger) *Client {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Client{runs: coll, logger: logger.WithField("component", "mongo_store")}
}

// Disconnect cleanly closes the MongoDB connection
func (c *Client) Disconnect(ctx context.Context) error {
	if c.mc == nil {
		return nil
	}
	return c.mc.Disconnect(ctx)
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	if c.mc == nil {
		return nil
	}
	return c.mc.Ping(ctx, nil)
}

func (c *Client) ensureIndices(ctx context.Context) error {
	_, err := c.runs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "started_at", Value: -1}}},
		{Keys: bson.D{{Key: "query", Value: 1}, {Key: "started_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("store: run indices: %w", err)
	}
	return nil
}

// SaveRun inserts or replaces a run
func (c *Client) SaveRun(ctx context.Context, run *models.RunResult) error {
	_, err := c.runs.ReplaceOne(ctx,
		bson.M{"_id": run.RunID},
		run,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save run: %w", err)
	}
	c.logger.Debug("run saved", map[string]interface{}{
		"run_id":  run.RunID,
		"results": len(run.Results),
	})
	return nil
}

// GetRun loads one run by ID
func (c *Client) GetRun(ctx context.Context, runID string) (*models.RunResult, error) {
	var run models.RunResult
	err := c.runs.FindOne(ctx, bson.M{"_id": runID}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return &run, nil
}

// RecentRuns returns up to limit runs, newest first, optionally for one query
func (c *Client) RecentRuns(ctx context.Context, query string, limit int64) ([]models.RunResult, error) {
	filter := bson.M{}
	if query != "" {
		filter["query"] = query
	}
	if limit <= 0 {
		limit = 20
	}

	cur, err := c.runs.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("store: find runs: %w", err)
	}
	defer cur.Close(ctx)

	runs := []models.RunResult{}
	if err := cur.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("store: decode runs: %w", err)
	}
	return runs, nil
}
