package archive

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// DefaultCollection is the collection archived snapshots are written to.
const DefaultCollection = "snapshots"

// Mongo is an Archive backed by a MongoDB collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// ConnectMongo connects to uri, pings the server and ensures the archive
// indexes on database.collection exist.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongo")
	}

	m := &Mongo{client: client, coll: client.Database(database).Collection(collection)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "workspace_ids", Value: 1}, {Key: "archived_at", Value: -1}}},
		{Keys: bson.D{{Key: "archived_at", Value: -1}}},
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create archive indexes")
	}
	return nil
}

func (m *Mongo) Save(ctx context.Context, snap *snapshot.Snapshot, meta Meta) (string, error) {
	e, err := newEntry(snap, meta)
	if err != nil {
		return "", err
	}
	if _, err := m.coll.InsertOne(ctx, e); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "archive snapshot")
	}
	return e.ID, nil
}

func (m *Mongo) List(ctx context.Context, workspaceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	filter := bson.M{}
	if workspaceID != "" {
		filter["workspace_ids"] = workspaceID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "archived_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"document": 0})

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list archive")
	}
	out := []Entry{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode archive entries")
	}
	return out, nil
}

func (m *Mongo) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "get archived snapshot")
	}
	return &e, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

var _ Archive = (*Mongo)(nil)
