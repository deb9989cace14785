package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medabroad/consult/pkg/core/types"
)

// Mongo is a Store backed by MongoDB. The idempotent append is a single
// aggregation-pipeline update: incoming messages are filtered against the ids
// already stored, then concatenated, all server-side.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects and returns the store.
func NewMongo(ctx context.Context, dsn, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}
	if database == "" {
		database = "consult"
	}
	return &Mongo{
		client: client,
		coll:   client.Database(database).Collection("chat_sessions"),
	}, nil
}

func (m *Mongo) AppendMessages(ctx context.Context, p AppendParams) error {
	incoming := make(bson.A, 0, len(p.Messages))
	for _, msg := range p.Messages {
		incoming = append(incoming, msg)
	}

	set := bson.D{
		{Key: "threadId", Value: p.ThreadID},
		{Key: "ownerEmail", Value: p.OwnerEmail},
		{Key: "title", Value: p.Title},
		{Key: "kind", Value: p.Kind},
		{Key: "hidden", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$hidden", false}}}},
		{Key: "createdAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$createdAt", "$$NOW"}}}},
		{Key: "updatedAt", Value: "$$NOW"},
		{Key: "messages", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$messages", bson.A{}}}},
			bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: incoming},
				{Key: "as", Value: "incoming"},
				{Key: "cond", Value: bson.D{{Key: "$not", Value: bson.A{
					bson.D{{Key: "$in", Value: bson.A{
						"$$incoming.id",
						bson.D{{Key: "$ifNull", Value: bson.A{"$messages.id", bson.A{}}}},
					}}},
				}}}},
			}}},
		}}}},
	}
	if p.State != nil {
		set = append(set, bson.E{Key: "state", Value: p.State})
	}

	_, err := m.coll.UpdateOne(ctx,
		bson.M{"threadId": p.ThreadID, "ownerEmail": p.OwnerEmail},
		mongo.Pipeline{bson.D{{Key: "$set", Value: set}}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	return nil
}

func (m *Mongo) GetSession(ctx context.Context, threadID, ownerEmail string) (*Session, error) {
	var sess Session
	err := m.coll.FindOne(ctx,
		bson.M{"threadId": threadID, "ownerEmail": ownerEmail}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (m *Mongo) ListSessions(ctx context.Context, ownerEmail string, opts ListOptions) ([]SessionSummary, error) {
	match := bson.M{"ownerEmail": ownerEmail}
	if !opts.IncludeHidden {
		match["hidden"] = bson.M{"$ne": true}
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "updatedAt", Value: -1}}}},
	}
	if opts.Offset > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: opts.Offset}})
	}
	if opts.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: opts.Limit}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.D{
		{Key: "threadId", Value: 1},
		{Key: "title", Value: 1},
		{Key: "kind", Value: 1},
		{Key: "hidden", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "updatedAt", Value: 1},
		{Key: "messageCount", Value: bson.D{{Key: "$size", Value: bson.D{
			{Key: "$ifNull", Value: bson.A{"$messages", bson.A{}}},
		}}}},
	}}})

	cur, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cur.Close(ctx)

	var out []SessionSummary
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return out, nil
}

func (m *Mongo) HideSession(ctx context.Context, threadID, ownerEmail string) error {
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"threadId": threadID, "ownerEmail": ownerEmail},
		bson.M{"$set": bson.M{"hidden": true}, "$currentDate": bson.M{"updatedAt": true}})
	if err != nil {
		return fmt.Errorf("hide session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) AppendSummary(ctx context.Context, threadID, ownerEmail string, s types.Summary) error {
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"threadId": threadID, "ownerEmail": ownerEmail},
		bson.M{"$push": bson.M{"summaries": s}, "$currentDate": bson.M{"updatedAt": true}})
	if err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *Mongo) Close(ctx context.Context) error { return m.client.Disconnect(ctx) }
