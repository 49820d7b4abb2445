package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/glownotes/glownotes/internal/errs"
	"github.com/glownotes/glownotes/internal/notes"
	"github.com/glownotes/glownotes/internal/obs"
)

// MongoConfig holds connection parameters for the hosted document database.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore is the primary backend. The live feed rides a change stream:
// any committed change wakes the watcher, which refetches the full set and
// pushes it as a replacement snapshot. Change streams need a replica set
// (or a hosted cluster, which always is one).
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects and pings the backend.
func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetSocketTimeout(timeout).
		SetMinPoolSize(1).
		SetMaxPoolSize(5)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *MongoStore) CreateNote(ctx context.Context, text string) (string, error) {
	id := uuid.NewString()
	_, err := m.coll.InsertOne(ctx, bson.M{
		"_id":       id,
		"text":      text,
		"pinned":    false,
		"important": false,
		"createdAt": time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("insert note: %w", err)
	}
	return id, nil
}

func (m *MongoStore) UpdateNote(ctx context.Context, id string, patch notes.NotePatch) error {
	set := bson.M{}
	if patch.Text != nil {
		set["text"] = *patch.Text
	}
	if patch.Pinned != nil {
		set["pinned"] = *patch.Pinned
	}
	if patch.Important != nil {
		set["important"] = *patch.Important
	}
	if len(set) == 0 {
		return nil
	}

	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if res.MatchedCount == 0 {
		return errs.New(errs.NotFound, "note not found")
	}
	return nil
}

func (m *MongoStore) DeleteNote(ctx context.Context, id string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if res.DeletedCount == 0 {
		return errs.New(errs.NotFound, "note not found")
	}
	return nil
}

// BatchDeleteNotes issues a single DeleteMany command, the document-database
// analog of a batched delete: one command, one outcome.
func (m *MongoStore) BatchDeleteNotes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := m.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("batch delete notes: %w", err)
	}
	return nil
}

func (m *MongoStore) SubscribeNotes(ctx context.Context) (*Subscription, error) {
	stream, err := m.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, 1)
	sub := &Subscription{events: events, cancel: cancel}
	log := obs.Pkg("store")

	go func() {
		defer close(events)
		defer func() {
			_ = stream.Close(context.Background())
		}()

		snap, err := m.fetchSnapshot(subCtx)
		if err != nil {
			m.emitFault(subCtx, events, err)
			return
		}
		events <- Event{Snapshot: snap}

		// The driver resumes transient interruptions internally; Next only
		// returns false once the stream is beyond recovery or cancelled.
		for stream.Next(subCtx) {
			snap, err := m.fetchSnapshot(subCtx)
			if err != nil {
				m.emitFault(subCtx, events, err)
				return
			}
			select {
			case events <- Event{Snapshot: snap}:
			case <-subCtx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && subCtx.Err() == nil {
			log.Error("change stream closed", "err", err)
			m.emitFault(subCtx, events, err)
		}
	}()

	return sub, nil
}

func (m *MongoStore) emitFault(ctx context.Context, events chan Event, err error) {
	if ctx.Err() != nil {
		return
	}
	select {
	case events <- Event{Err: errs.Wrap(errs.Unavailable, "live subscription lost", err)}:
	case <-ctx.Done():
	}
}

func (m *MongoStore) fetchSnapshot(ctx context.Context) ([]notes.Note, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := m.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("fetch notes: %w", err)
	}
	var snap []notes.Note
	if err := cursor.All(ctx, &snap); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	return snap, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
