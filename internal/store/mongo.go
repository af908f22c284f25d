package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDatabase   = "os_buddy"
	mongoCollection = "sessions"

	// mongoOpTimeout bounds every store operation against the remote
	// backend. Fail fast so the failover decorator can take over.
	mongoOpTimeout = 5 * time.Second
)

// mongoBackend stores sessions in a MongoDB collection.
//
// Retention: a TTL index on last_active expires session records once they
// have been inactive longer than the configured window. Expiry is performed
// by MongoDB's background monitor, not by this process.
type mongoBackend struct {
	coll *mongo.Collection
}

// newMongoBackend connects to MongoDB and prepares the sessions collection.
// The connection is verified with a ping so an unreachable cluster fails here
// rather than on the first chat turn.
func newMongoBackend(ctx context.Context, uri string, retention time.Duration) (*mongoBackend, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(mongoOpTimeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	coll := client.Database(mongoDatabase).Collection(mongoCollection)

	// TTL index: sessions whose last_active is older than the retention
	// window are removed by the server. Best effort; a failure to create the
	// index must not take the store down.
	expireAfter := int32(retention / time.Second)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "last_active", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(expireAfter),
	})
	if err != nil {
		return nil, fmt.Errorf("creating retention index: %w", err)
	}

	return &mongoBackend{coll: coll}, nil
}

func (m *mongoBackend) Name() string { return "mongo" }

func (m *mongoBackend) List(ctx context.Context, owner string) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	filter := bson.M{}
	if owner != "" {
		filter["owner"] = owner
	}

	cursor, err := m.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var summaries []Summary
	for cursor.Next(ctx) {
		var sess Session
		if err := cursor.Decode(&sess); err != nil {
			return nil, fmt.Errorf("decoding session: %w", err)
		}
		title := sess.Title
		if title == "" {
			title = DefaultTitle
		}
		summaries = append(summaries, Summary{ID: sess.ID, Title: title, Timestamp: sess.Timestamp})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return summaries, nil
}

func (m *mongoBackend) Get(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var sess Session
	err := m.coll.FindOne(ctx, bson.M{"id": id}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &Session{ID: id, Messages: []Message{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	if sess.Messages == nil {
		sess.Messages = []Message{}
	}
	return &sess, nil
}

func (m *mongoBackend) Save(ctx context.Context, id string, sess *Session, owner string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	sess.ID = id
	if owner != "" {
		sess.Owner = owner
	}

	_, err := m.coll.UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$set": sess},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving session %s: %w", id, err)
	}
	return nil
}

func (m *mongoBackend) Delete(ctx context.Context, id, owner string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var sess Session
	err := m.coll.FindOne(ctx, bson.M{"id": id}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up session %s: %w", id, err)
	}

	if !ownerMayDelete(owner, sess.Owner) {
		return false, nil
	}

	res, err := m.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	return res.DeletedCount > 0, nil
}
