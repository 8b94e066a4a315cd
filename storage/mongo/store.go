// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mongo implements storage.MetadataStore on a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// Config identifies the collection holding publications.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Store implements storage.MetadataStore. Title carries a unique index so
// concurrent writers cannot create duplicates.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

var _ storage.MetadataStore = (*Store)(nil)

// New connects, pings and ensures indexes.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	s := newStore(client.Database(cfg.Database).Collection(cfg.Collection))
	s.client = client
	if err := s.createIndexes(cctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("can't create indexes: %w", err)
	}
	return s, nil
}

func newStore(coll *mongo.Collection) *Store {
	return &Store{
		collection: coll,
		logger:     slog.Default().With("component", "mongo-metadata", "collection", coll.Name()),
	}
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "inserted_at", Value: 1}},
		},
	})
	return err
}

// InsertIfAbsent upserts with $setOnInsert so an existing title is left untouched.
func (s *Store) InsertIfAbsent(ctx context.Context, pub *core.Publication) (bool, error) {
	if err := core.ValidatePublication(pub); err != nil {
		return false, err
	}

	doc := storage.ToDocument(pub)
	if doc.InsertedAt.IsZero() {
		doc.InsertedAt = time.Now().UTC()
	}

	res, err := s.collection.UpdateOne(ctx,
		bson.M{"title": doc.Title},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			s.logger.Debug("publication inserted concurrently", "title", pub.Title)
			return false, nil
		}
		return false, fmt.Errorf("failed to insert %q: %w", pub.Title, err)
	}

	if res.UpsertedCount == 0 {
		return false, nil
	}
	pub.InsertedAt = doc.InsertedAt
	return true, nil
}

// Get retrieves a publication by title.
func (s *Store) Get(ctx context.Context, title string) (*core.Publication, error) {
	var doc storage.PublicationDocument
	err := s.collection.FindOne(ctx, bson.M{"title": title}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return storage.FromDocument(&doc), nil
}

// List returns all publications ordered by insertion time.
func (s *Store) List(ctx context.Context) ([]*core.Publication, error) {
	cur, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "inserted_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var pubs []*core.Publication
	for cur.Next(ctx) {
		var doc storage.PublicationDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		pubs = append(pubs, storage.FromDocument(&doc))
	}
	return pubs, cur.Err()
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
