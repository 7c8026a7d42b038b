// Package mongo implements columns.Store on MongoDB. Each column is one
// document keyed by (table, row key, name); counters live in a second
// collection and mutate through $inc upserts, which MongoDB applies
// atomically per document.
package mongo

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/inboxkit/mailstore/columns"
)

// regexMetaChars matches regex metacharacters that need escaping.
var regexMetaChars = regexp.MustCompile(`[\\^$.|?*+()[\]{}]`)

// escapeRegex escapes regex metacharacters to prevent regex injection.
func escapeRegex(s string) string {
	return regexMetaChars.ReplaceAllString(s, `\$0`)
}

// colDoc is the persisted shape of one column.
type colDoc struct {
	Table string `bson:"t"`
	Key   string `bson:"k"`
	Name  string `bson:"n"`
	Value []byte `bson:"v"`
}

// counterDoc is the persisted shape of one counter column.
type counterDoc struct {
	Table string `bson:"t"`
	Key   string `bson:"k"`
	Name  string `bson:"n"`
	Value int64  `bson:"v"`
}

// Store implements columns.Store using MongoDB.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	cols      *mongo.Collection
	counters  *mongo.Collection
	opts      *options
	connected int32
}

var _ columns.Store = (*Store)(nil)

// New creates a new MongoDB store with the provided client.
// Call Connect to initialize the collections and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	return &Store{client: client, opts: newOptions(opts...)}
}

// Connect initializes the database, collections, and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return nil
	}
	if s.client == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.db = s.client.Database(s.opts.database)
	s.cols = s.db.Collection(s.opts.columnsCollection)
	s.counters = s.db.Collection(s.opts.countersCollection)

	if err := s.ensureIndexes(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure indexes: %w", err)
	}

	s.opts.logger.Info("connected to MongoDB", "database", s.opts.database)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureIndexes creates the unique (table, key, name) indexes both
// collections rely on.
func (s *Store) ensureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{
			bson.E{Key: "t", Value: 1},
			bson.E{Key: "k", Value: 1},
			bson.E{Key: "n", Value: 1},
		},
		Options: mongoopts.Index().SetUnique(true),
	}
	if _, err := s.cols.Indexes().CreateOne(ctx, model); err != nil {
		return err
	}
	_, err := s.counters.Indexes().CreateOne(ctx, model)
	return err
}

func colFilter(table, key string) bson.M {
	return bson.M{"t": table, "k": key}
}

// Get returns the named columns of a row.
func (s *Store) Get(ctx context.Context, table, key string, names []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return out, nil
	}
	filter := colFilter(table, key)
	filter["n"] = bson.M{"$in": names}
	cursor, err := s.cols.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	var docs []colDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	for _, d := range docs {
		out[d.Name] = d.Value
	}
	return out, nil
}

// Row returns every column of a row in name order.
func (s *Store) Row(ctx context.Context, table, key string) ([]columns.Column, error) {
	cursor, err := s.cols.Find(ctx, colFilter(table, key),
		mongoopts.Find().SetSort(bson.D{bson.E{Key: "n", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	var docs []colDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	out := make([]columns.Column, len(docs))
	for i, d := range docs {
		out[i] = columns.Column{Name: d.Name, Value: d.Value}
	}
	return out, nil
}

// Slice returns up to count columns starting after start.
func (s *Store) Slice(ctx context.Context, table, key, start string, count int, reverse bool) ([]columns.Column, error) {
	if count <= 0 {
		return nil, nil
	}
	filter := colFilter(table, key)
	order := 1
	if reverse {
		order = -1
		if start != "" {
			filter["n"] = bson.M{"$lt": start}
		}
	} else {
		filter["n"] = bson.M{"$gt": start}
	}
	cursor, err := s.cols.Find(ctx, filter, mongoopts.Find().
		SetSort(bson.D{bson.E{Key: "n", Value: order}}).
		SetLimit(int64(count)))
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	var docs []colDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	out := make([]columns.Column, len(docs))
	for i, d := range docs {
		out[i] = columns.Column{Name: d.Name, Value: d.Value}
	}
	return out, nil
}

// Keys returns up to count row keys sharing prefix, after start.
func (s *Store) Keys(ctx context.Context, table, prefix, start string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	match := bson.M{
		"t": table,
		"k": bson.M{"$gt": start, "$regex": "^" + escapeRegex(prefix)},
	}
	pipeline := mongo.Pipeline{
		bson.D{bson.E{Key: "$match", Value: match}},
		bson.D{bson.E{Key: "$group", Value: bson.M{"_id": "$k"}}},
		bson.D{bson.E{Key: "$sort", Value: bson.M{"_id": 1}}},
		bson.D{bson.E{Key: "$limit", Value: count}},
	}
	cursor, err := s.cols.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo aggregate: %w", err)
	}
	var docs []struct {
		Key string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = d.Key
	}
	return keys, nil
}

// Apply submits the batch as ordered bulk writes. Column mutations and
// counter mutations go to their own collections, columns first.
func (s *Store) Apply(ctx context.Context, b *columns.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	var colModels, counterModels []mongo.WriteModel
	for _, m := range b.Mutations() {
		switch m.Op {
		case columns.OpInsert:
			for _, c := range m.Columns {
				filter := colFilter(m.Table, m.Key)
				filter["n"] = c.Name
				colModels = append(colModels, mongo.NewUpdateOneModel().
					SetFilter(filter).
					SetUpdate(bson.M{"$set": bson.M{"v": c.Value}}).
					SetUpsert(true))
			}
		case columns.OpDeleteColumns:
			filter := colFilter(m.Table, m.Key)
			filter["n"] = bson.M{"$in": m.Names}
			colModels = append(colModels, mongo.NewDeleteManyModel().SetFilter(filter))
		case columns.OpDeleteRow:
			colModels = append(colModels, mongo.NewDeleteManyModel().
				SetFilter(colFilter(m.Table, m.Key)))
		case columns.OpAddCounters:
			for name, d := range m.Deltas {
				filter := colFilter(m.Table, m.Key)
				filter["n"] = name
				counterModels = append(counterModels, mongo.NewUpdateOneModel().
					SetFilter(filter).
					SetUpdate(bson.M{"$inc": bson.M{"v": d}}).
					SetUpsert(true))
			}
		}
	}
	if len(colModels) > 0 {
		if _, err := s.cols.BulkWrite(ctx, colModels); err != nil {
			return fmt.Errorf("mongo bulk write: %w", err)
		}
	}
	if len(counterModels) > 0 {
		if _, err := s.counters.BulkWrite(ctx, counterModels); err != nil {
			return fmt.Errorf("mongo bulk write counters: %w", err)
		}
	}
	return nil
}

// AddCounters atomically adds counter deltas.
func (s *Store) AddCounters(ctx context.Context, table, key string, deltas map[string]int64) error {
	models := make([]mongo.WriteModel, 0, len(deltas))
	for name, d := range deltas {
		filter := colFilter(table, key)
		filter["n"] = name
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$inc": bson.M{"v": d}}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return nil
	}
	if _, err := s.counters.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("mongo add counters: %w", err)
	}
	return nil
}

// GetCounters returns the named counter values.
func (s *Store) GetCounters(ctx context.Context, table, key string, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	if len(names) == 0 {
		return out, nil
	}
	filter := colFilter(table, key)
	filter["n"] = bson.M{"$in": names}
	cursor, err := s.counters.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongo find counters: %w", err)
	}
	var docs []counterDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	for _, d := range docs {
		out[d.Name] = d.Value
	}
	return out, nil
}

// RowCounters returns every counter column of a row.
func (s *Store) RowCounters(ctx context.Context, table, key string) (map[string]int64, error) {
	cursor, err := s.counters.Find(ctx, colFilter(table, key))
	if err != nil {
		return nil, fmt.Errorf("mongo find counters: %w", err)
	}
	var docs []counterDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	out := make(map[string]int64, len(docs))
	for _, d := range docs {
		out[d.Name] = d.Value
	}
	return out, nil
}

// DeleteCounters removes the named counter columns, or the whole row.
func (s *Store) DeleteCounters(ctx context.Context, table, key string, names ...string) error {
	filter := colFilter(table, key)
	if len(names) > 0 {
		filter["n"] = bson.M{"$in": names}
	}
	if _, err := s.counters.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("mongo delete counters: %w", err)
	}
	return nil
}
