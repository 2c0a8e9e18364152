package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCounters keeps one counter document per rule. Window buckets are fixed
// minute/hour buckets reset in place; every mutation is a single atomic
// update so concurrent invocations cannot race.
type MongoCounters struct {
	Coll *mongo.Collection
}

func NewMongoCounters(coll *mongo.Collection) *MongoCounters {
	return &MongoCounters{Coll: coll}
}

type counterDoc struct {
	RuleID      string    `bson:"_id"`
	MinuteStart time.Time `bson:"minute_start"`
	MinuteCount int       `bson:"minute_count"`
	HourStart   time.Time `bson:"hour_start"`
	HourCount   int       `bson:"hour_count"`
	Active      int       `bson:"active"`
}

func (s *MongoCounters) Counts(ctx context.Context, ruleID string, now time.Time) (int, int, int, error) {
	var doc counterDoc
	err := s.Coll.FindOne(ctx, bson.M{"_id": ruleID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, 0, 0, nil
	}
	if err != nil {
		return 0, 0, 0, err
	}

	minute, hour := doc.MinuteCount, doc.HourCount
	if !doc.MinuteStart.Equal(now.Truncate(time.Minute)) {
		minute = 0
	}
	if !doc.HourStart.Equal(now.Truncate(time.Hour)) {
		hour = 0
	}
	active := doc.Active
	if active < 0 {
		active = 0
	}
	return minute, hour, active, nil
}

func (s *MongoCounters) Increment(ctx context.Context, ruleID string, now time.Time) error {
	minuteStart := now.Truncate(time.Minute).UTC()
	hourStart := now.Truncate(time.Hour).UTC()

	// Roll stale windows forward, then count the request. Each update is
	// atomic on its own; a lost reset race only under-counts by the handful
	// of requests that crossed the window edge together.
	if _, err := s.Coll.UpdateOne(ctx,
		bson.M{"_id": ruleID, "minute_start": bson.M{"$lt": minuteStart}},
		bson.M{"$set": bson.M{"minute_start": minuteStart, "minute_count": 0}},
	); err != nil {
		return err
	}
	if _, err := s.Coll.UpdateOne(ctx,
		bson.M{"_id": ruleID, "hour_start": bson.M{"$lt": hourStart}},
		bson.M{"$set": bson.M{"hour_start": hourStart, "hour_count": 0}},
	); err != nil {
		return err
	}

	_, err := s.Coll.UpdateOne(ctx,
		bson.M{"_id": ruleID},
		bson.M{
			"$inc":         bson.M{"minute_count": 1, "hour_count": 1},
			"$setOnInsert": bson.M{"minute_start": minuteStart, "hour_start": hourStart},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoCounters) AddActive(ctx context.Context, ruleID string, delta int) error {
	_, err := s.Coll.UpdateOne(ctx,
		bson.M{"_id": ruleID},
		bson.M{"$inc": bson.M{"active": delta}},
		options.Update().SetUpsert(true),
	)
	return err
}
