package main

import (
	"context"

	"go.uber.org/zap"

	"article-scraper/internal/middleware/logger"
	"article-scraper/internal/scraper/api"
	"article-scraper/internal/scraper/blob"
	"article-scraper/internal/scraper/fetch"
	"article-scraper/internal/scraper/helper"
	"article-scraper/internal/scraper/images"
	"article-scraper/internal/scraper/model"
	"article-scraper/internal/scraper/ratelimit"
	"article-scraper/internal/scraper/recorder"
	"article-scraper/internal/scraper/scrape"
	"article-scraper/internal/scraper/storage"
	"article-scraper/pkg/mongodb"
)

func main() {
	log, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	ctx := context.Background()

	log.Info("Starting Article Scraper Service...")

	cfg, err := mongodb.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	stores := helper.MustMongo(
		ctx,
		cfg.Mongo.Host,
		cfg.Mongo.DBName,
		cfg.Mongo.Username,
		cfg.Mongo.Password,
		cfg.Mongo.AuthSource,
	)

	blobs, err := blob.NewGridFS(stores.DB, cfg.Storage.Bucket, cfg.Storage.BaseURL)
	if err != nil {
		panic(err)
	}

	rec := recorder.New(stores.History, stores.RequestLogs, stores.Rules, log)

	runner := &scrape.Runner{
		Rules:     storage.NewRuleStore(stores.Rules),
		Articles:  storage.NewArticleStore(stores.Articles),
		Recorder:  rec,
		Governor:  ratelimit.New(ratelimit.NewMongoCounters(stores.RateLimits), log),
		Localizer: images.New(blobs, log),
		Log:       log,
		NewFetcher: func(rule *model.Rule) *fetch.Fetcher {
			return fetch.New(rule, log, rec)
		},
	}

	// 起 HTTP API
	srv := &api.Server{Stores: stores, Runner: runner, Blobs: blobs, Log: log}
	r := srv.Router()
	_ = r.SetTrustedProxies(nil)
	log.Info("Article Scraper Service is running", zap.String("address", cfg.Server.Address))
	_ = r.Run(cfg.Server.Address)
}
