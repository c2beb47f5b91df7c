package store

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements Store on top of a MongoDB database.
type Mongo struct {
	DB *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{DB: db}
}

func (m *Mongo) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	err := m.DB.Collection(collection).FindOne(ctx, bson.M{"_id": FoldKey(id)}).Decode(out)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mongo) Set(ctx context.Context, collection, id string, value any, merge bool) error {
	coll := m.DB.Collection(collection)
	if merge {
		_, err := coll.UpdateOne(ctx,
			bson.M{"_id": FoldKey(id)},
			bson.M{"$set": value},
			options.Update().SetUpsert(true),
		)
		return err
	}
	_, err := coll.ReplaceOne(ctx,
		bson.M{"_id": FoldKey(id)},
		value,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *Mongo) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := m.DB.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": FoldKey(id)},
		bson.M{"$set": fields},
	)
	return err
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	_, err := m.DB.Collection(collection).DeleteOne(ctx, bson.M{"_id": FoldKey(id)})
	return err
}

func (m *Mongo) Add(ctx context.Context, collection string, value any) (string, error) {
	id := uuid.New().String()
	if err := m.Set(ctx, collection, id, value, false); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Mongo) QueryEqual(ctx context.Context, collection, field string, value any, out any) error {
	cursor, err := m.DB.Collection(collection).Find(ctx, bson.M{field: value})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func (m *Mongo) ScanAll(ctx context.Context, collection string, out any) error {
	cursor, err := m.DB.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}
