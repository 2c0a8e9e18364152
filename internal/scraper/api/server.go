package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"article-scraper/internal/scraper/blob"
	"article-scraper/internal/scraper/helper"
	"article-scraper/internal/scraper/model"
	"article-scraper/internal/scraper/scrape"
)

type Server struct {
	Stores *helper.Stores
	Runner *scrape.Runner
	Blobs  *blob.GridFS
	Log    *zap.Logger
}

func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.POST("/scrape", s.runScrape)
	r.GET("/rules", s.listRules)
	r.GET("/history", s.listHistory) // ?rule_id=&page=1&limit=20
	r.GET("/logs", s.listRequestLogs)
	r.GET("/blobs/*name", s.serveBlob)
	return r
}

type scrapeRequest struct {
	RuleID    string `json:"ruleId" binding:"required"`
	TargetURL string `json:"targetUrl"`
}

func (s *Server) runScrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ruleId is required"})
		return
	}

	result, err := s.Runner.Run(c.Request.Context(), req.RuleID, req.TargetURL)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, scrape.ErrRateLimited):
			status = http.StatusTooManyRequests
		case errors.Is(err, scrape.ErrRuleNotFound):
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"article_id":        result.ArticleID,
		"images_downloaded": result.ImagesDownloaded,
		"response_time":     result.ResponseTime.Milliseconds(),
		"total_time":        result.TotalTime.Milliseconds(),
	})
}

func (s *Server) listRules(c *gin.Context) {
	cur, err := s.Stores.Rules.Find(c, bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		if cerr := cur.Close(c); cerr != nil {
			s.Log.Warn("Failed to close cursor", zap.Error(cerr))
		}
	}()

	var out []model.Rule
	for cur.Next(c) {
		var rule model.Rule
		if err := cur.Decode(&rule); err != nil {
			continue
		}
		out = append(out, rule)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *Server) listHistory(c *gin.Context) {
	filter := bson.M{}
	if v := c.Query("rule_id"); v != "" {
		filter["rule_id"] = v
	}
	if v := c.Query("status"); v != "" {
		filter["status"] = v
	}

	page, limit := paging(c)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.Stores.History.Find(c, filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		if cerr := cur.Close(c); cerr != nil {
			s.Log.Warn("Failed to close cursor", zap.Error(cerr))
		}
	}()

	var out []model.History
	for cur.Next(c) {
		var h model.History
		if err := cur.Decode(&h); err != nil {
			continue
		}
		out = append(out, h)
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "page": page, "limit": limit})
}

func (s *Server) listRequestLogs(c *gin.Context) {
	filter := bson.M{}
	if v := c.Query("rule_id"); v != "" {
		filter["rule_id"] = v
	}

	page, limit := paging(c)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.Stores.RequestLogs.Find(c, filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		if cerr := cur.Close(c); cerr != nil {
			s.Log.Warn("Failed to close cursor", zap.Error(cerr))
		}
	}()

	var out []model.RequestLog
	for cur.Next(c) {
		var entry model.RequestLog
		if err := cur.Decode(&entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "page": page, "limit": limit})
}

// serveBlob streams a localized image back out of GridFS. Blob names contain
// slashes, hence the wildcard route.
func (s *Server) serveBlob(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		c.Status(http.StatusNotFound)
		return
	}
	stream, contentType, err := s.Blobs.Open(name)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, stream); err != nil {
		s.Log.Warn("Failed to stream blob", zap.String("name", name), zap.Error(err))
	}
}

func paging(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	return page, limit
}
