package model

import "time"

// Project is a portfolio entry.  Deleting a project only clears IsActive;
// inactive projects are hidden from public listings but kept in storage.
type Project struct {
	ID            uint64    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	VideoURL      *string   `json:"videoUrl,omitempty"`
	VideoTitle    *string   `json:"videoTitle,omitempty"`
	RepositoryURL *string   `json:"repositoryUrl,omitempty"`
	Technologies  []string  `json:"technologies"`
	IsFeatured    bool      `json:"isFeatured"`
	IsActive      bool      `json:"isActive"`
	DisplayOrder  int       `json:"displayOrder"`
	AuthorID      uint64    `json:"authorId"`
	AuthorName    string    `json:"authorName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
