// Package storage implements the scrape package's store interfaces on
// MongoDB collections.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"article-scraper/internal/scraper/model"
	"article-scraper/internal/scraper/scrape"
)

type RuleStore struct {
	Coll *mongo.Collection
}

func NewRuleStore(coll *mongo.Collection) *RuleStore {
	return &RuleStore{Coll: coll}
}

func (s *RuleStore) Get(ctx context.Context, id string) (*model.Rule, error) {
	var rule model.Rule
	err := s.Coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rule)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, scrape.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load rule %s: %w", id, err)
	}
	return &rule, nil
}

type ArticleStore struct {
	Coll *mongo.Collection
}

func NewArticleStore(coll *mongo.Collection) *ArticleStore {
	return &ArticleStore{Coll: coll}
}

func (s *ArticleStore) Insert(ctx context.Context, a *model.Article) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, err := s.Coll.InsertOne(ctx, a); err != nil {
		return "", err
	}
	return a.ID, nil
}
