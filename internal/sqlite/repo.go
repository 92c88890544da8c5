// Package sqlite implements the article store on top of sqlx.
package sqlite

import (
	"github.com/jmoiron/sqlx"

	"github.com/feedscribe/feedscribe/internal/feedscribe"
)

// Ensure Repo implements the repository interface
var _ feedscribe.ArticleRepo = Repo{}

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}
