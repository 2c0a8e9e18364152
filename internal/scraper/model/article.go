package model

import "time"

// ScrapedArticle is the in-memory extraction result. It only becomes durable
// as part of an Article after a successful run.
type ScrapedArticle struct {
	Title       string `bson:"title" json:"title"`
	Content     string `bson:"content" json:"content"`
	Excerpt     string `bson:"excerpt,omitempty" json:"excerpt,omitempty"`
	CoverImage  string `bson:"cover_image,omitempty" json:"cover_image,omitempty"`
	Author      string `bson:"author,omitempty" json:"author,omitempty"`
	PublishDate string `bson:"publish_date,omitempty" json:"publish_date,omitempty"`
	SourceURL   string `bson:"source_url" json:"source_url"`
	SourceName  string `bson:"source_name" json:"source_name"`
}

// Article statuses mirror the CMS lifecycle.
const (
	ArticleStatusDraft     = "draft"
	ArticleStatusPublished = "published"
)

// Article is the destination record created on a successful run.
type Article struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	Title      string    `bson:"title" json:"title"`
	Slug       string    `bson:"slug" json:"slug"`
	Content    string    `bson:"content" json:"content"`
	Excerpt    string    `bson:"excerpt,omitempty" json:"excerpt,omitempty"`
	CoverImage string    `bson:"cover_image,omitempty" json:"cover_image,omitempty"`
	CategoryID string    `bson:"category_id,omitempty" json:"category_id,omitempty"`
	Status     string    `bson:"status" json:"status"`
	AuthorID   string    `bson:"author_id,omitempty" json:"author_id,omitempty"`
	SourceURL  string    `bson:"source_url" json:"source_url"`
	SourceName string    `bson:"source_name" json:"source_name"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
