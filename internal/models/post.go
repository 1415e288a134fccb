package models

import (
	"time"
)

// Post represents a blog post. Slug, UserID and CreatedAt never change after creation.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slug      string    `gorm:"uniqueIndex;size:200;not null" json:"slug"`
	Title     string    `gorm:"size:300;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Excerpt   string    `gorm:"type:text" json:"excerpt"`
	ImageURL  string    `json:"image_url,omitempty"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"user,omitempty"`
	Published bool      `gorm:"not null;default:false;index" json:"published"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnerID reports the author of the post.
func (p *Post) OwnerID() uint { return p.UserID }

// PostMutableColumns lists the columns an update is allowed to write.
var PostMutableColumns = []string{"title", "content", "excerpt", "image_url", "published", "updated_at"}
