package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/movie-tracker/internal/model"
)

// movieDoc is the stored shape of a movie.  The key lives in _id and the
// owning account in owner_id; neither is part of model.Movie's fields.
type movieDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     uint64             `bson:"owner_id"`
	model.Movie `bson:",inline"`
}

// Mongo is a Backend over one MongoDB collection shared by all accounts.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri and verifies the connection.
func OpenMongo(uri, dbName, collName string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Mongo{client: client, coll: client.Database(dbName).Collection(collName)}, nil
}

// EnsureIndexes creates the owner_id index used by every read.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
	})
	return err
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) ForOwner(ownerID uint64) Collection {
	return &mongoCollection{coll: m.coll, owner: ownerID}
}

type mongoCollection struct {
	coll  *mongo.Collection
	owner uint64
}

func (c *mongoCollection) key(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return bson.M{"_id": oid, "owner_id": c.owner}, nil
}

func (c *mongoCollection) Add(ctx context.Context, mv model.Movie) (string, error) {
	mv.ID = ""
	res, err := c.coll.InsertOne(ctx, movieDoc{OwnerID: c.owner, Movie: mv})
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (c *mongoCollection) Get(ctx context.Context) ([]model.Movie, error) {
	cur, err := c.coll.Find(ctx, bson.M{"owner_id": c.owner})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []movieDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Movie, 0, len(docs))
	for _, d := range docs {
		mv := d.Movie
		mv.ID = d.ID.Hex()
		out = append(out, mv)
	}
	return out, nil
}

func (c *mongoCollection) Set(ctx context.Context, id string, mv model.Movie) error {
	filter, err := c.key(id)
	if err != nil {
		return err
	}
	mv.ID = ""
	res, err := c.coll.ReplaceOne(ctx, filter, movieDoc{OwnerID: c.owner, Movie: mv})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) Delete(ctx context.Context, id string) error {
	filter, err := c.key(id)
	if err != nil {
		return err
	}
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
