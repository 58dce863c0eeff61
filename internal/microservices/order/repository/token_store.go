package repository

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"qr-ordering/internal/connections/mongodb"
)

// OrderTokenReader reports the highest token among a restaurant's orders.
// OrderRepository implements it.
type OrderTokenReader interface {
	LastToken(ctx context.Context, restaurantID string) (any, error)
}

// maxSeq bounds a usable counter; anything above it is treated as corrupt.
const maxSeq = int64(1) << 62

// MongoTokenStore reserves tokens on one counter document per restaurant,
// {_id: <restaurantId>, seq: <last token>}. The last token itself is read
// from the orders so a clock-fallback token pushes the sequence forward.
type MongoTokenStore struct {
	coll   *mongo.Collection
	orders OrderTokenReader
}

func NewMongoTokenStore(conn *mongodb.Conn, orders OrderTokenReader) *MongoTokenStore {
	return &MongoTokenStore{coll: conn.DB.Collection(mongodb.CountersCollection), orders: orders}
}

func (s *MongoTokenStore) LastToken(ctx context.Context, restaurantID string) (any, error) {
	return s.orders.LastToken(ctx, restaurantID)
}

// ReserveToken returns max(seq+1, floor) and stores it as the new seq.
func (s *MongoTokenStore) ReserveToken(ctx context.Context, restaurantID string, floor int64) (int64, error) {
	// $max and $inc only work on a whole number in range; reset anything else.
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": restaurantID, "$expr": unusableSeq}, bson.M{"$set": bson.M{"seq": int64(0)}})
	if err != nil {
		return 0, fmt.Errorf("failed to reset token counter: %w", err)
	}

	_, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": restaurantID},
		bson.M{"$max": bson.M{"seq": floor - 1}},
		options.Update().SetUpsert(true))
	if err != nil {
		return 0, fmt.Errorf("failed to seed token counter: %w", err)
	}

	var doc bson.M
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": restaurantID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to increment token counter: %w", err)
	}
	seq, ok := counterValue(doc["seq"])
	if !ok {
		return 0, fmt.Errorf("token counter for %s holds %v", restaurantID, doc["seq"])
	}
	return seq, nil
}

// unusableSeq matches a seq that is missing, not a number, fractional or out
// of range.
var unusableSeq = bson.M{"$cond": bson.A{
	bson.M{"$isNumber": "$seq"},
	bson.M{"$or": bson.A{
		bson.M{"$ne": bson.A{"$seq", bson.M{"$trunc": "$seq"}}},
		bson.M{"$gt": bson.A{"$seq", maxSeq}},
	}},
	true,
}}

// counterValue reads a numeric counter of any BSON or Go integer type. Whole
// doubles count; fractions and values past maxSeq do not.
func counterValue(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), int64(v) <= maxSeq
	case int32:
		return int64(v), true
	case int64:
		return v, v <= maxSeq
	case float64:
		if math.IsNaN(v) || v != math.Trunc(v) || math.Abs(v) > float64(maxSeq) {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

// MemoryTokenStore is a process-local counter for development and tests.
type MemoryTokenStore struct {
	mu   sync.Mutex
	last map[string]any
	err  error
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{last: make(map[string]any)}
}

// Set stores a raw value as the restaurant's last token.
func (s *MemoryTokenStore) Set(restaurantID string, raw any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[restaurantID] = raw
}

// Fail makes every call return err until it is called with nil.
func (s *MemoryTokenStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryTokenStore) LastToken(_ context.Context, restaurantID string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.last[restaurantID], nil
}

func (s *MemoryTokenStore) ReserveToken(_ context.Context, restaurantID string, floor int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	next := floor
	if cur, ok := counterValue(s.last[restaurantID]); ok && cur+1 > next {
		next = cur + 1
	}
	s.last[restaurantID] = next
	return next, nil
}
