package song

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding songs.
const CollectionName = "songs"

type songDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Artist        string             `bson:"artist"`
	AudioURL      string             `bson:"audioUrl"`
	ImageURL      string             `bson:"imageUrl"`
	AudioPublicID string             `bson:"audioPublicId"`
	ImagePublicID string             `bson:"imagePublicId"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (d *songDocument) toSong() *Song {
	return &Song{
		ID:            d.ID.Hex(),
		Title:         d.Title,
		Artist:        d.Artist,
		AudioURL:      d.AudioURL,
		ImageURL:      d.ImageURL,
		AudioPublicID: d.AudioPublicID,
		ImagePublicID: d.ImagePublicID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// MongoStore keeps songs as documents in a Mongo collection.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore creates a MongoStore on db's songs collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName), now: time.Now}
}

// EnsureIndexes creates the index backing newest-first listing.
func (r *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create songs index: %w", err)
	}
	return nil
}

// ValidID accepts 24-character hex ObjectIDs.
func (r *MongoStore) ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// Insert stores s as a new document.
func (r *MongoStore) Insert(ctx context.Context, s *Song) (*Song, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	doc := &songDocument{
		ID:            primitive.NewObjectID(),
		Title:         s.Title,
		Artist:        s.Artist,
		AudioURL:      s.AudioURL,
		ImageURL:      s.ImageURL,
		AudioPublicID: s.AudioPublicID,
		ImagePublicID: s.ImagePublicID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert song: %w", err)
	}
	return doc.toSong(), nil
}

// FindByID fetches a song by its ObjectID hex.
func (r *MongoStore) FindByID(ctx context.Context, id string) (*Song, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc songDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get song by id: %w", err)
	}
	return doc.toSong(), nil
}

// UpdateByID sets the provided fields and returns the updated document.
func (r *MongoStore) UpdateByID(ctx context.Context, id string, c Changes) (*Song, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	set := bson.M{"updatedAt": r.now().UTC().Truncate(time.Millisecond)}
	if c.Title != nil {
		set["title"] = *c.Title
	}
	if c.Artist != nil {
		set["artist"] = *c.Artist
	}

	var doc songDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update song: %w", err)
	}
	return doc.toSong(), nil
}

// DeleteByID removes the document.
func (r *MongoStore) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns songs newest first.
func (r *MongoStore) List(ctx context.Context, limit int) ([]*Song, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []songDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode songs: %w", err)
	}
	songs := make([]*Song, 0, len(docs))
	for i := range docs {
		songs = append(songs, docs[i].toSong())
	}
	return songs, nil
}
