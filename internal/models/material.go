package models

import "time"

// MaterialType enumerates the supported content kinds. Everything except
// text carries an opaque Telegram file reference.
type MaterialType string

const (
	MaterialText      MaterialType = "text"
	MaterialPhoto     MaterialType = "photo"
	MaterialVideo     MaterialType = "video"
	MaterialDocument  MaterialType = "document"
	MaterialAudio     MaterialType = "audio"
	MaterialVoice     MaterialType = "voice"
	MaterialAnimation MaterialType = "animation"
)

// Valid reports whether the value is a supported content kind.
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialText, MaterialPhoto, MaterialVideo, MaterialDocument,
		MaterialAudio, MaterialVoice, MaterialAnimation:
		return true
	}
	return false
}

// Material is one deliverable content item scoped to a tag and optional
// course/group visibility filters. NULL course or group_lang means "visible
// to everyone".
type Material struct {
	ID        int64        `db:"id" json:"id"`
	Tag       string       `db:"tag" json:"tag"`
	Type      MaterialType `db:"type" json:"type"`
	FileID    *string      `db:"file_id" json:"file_id,omitempty"`
	FileName  *string      `db:"file_name" json:"file_name,omitempty"`
	Caption   *string      `db:"caption" json:"caption,omitempty"`
	Course    *int         `db:"course" json:"course,omitempty"`
	GroupLang *GroupLang   `db:"group_lang" json:"group_lang,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// MaterialFilter captures the visibility rules of a tag lookup. Admins bypass
// the course filter only; the group filter always applies because admins pick
// a target group explicitly before querying.
type MaterialFilter struct {
	Tag       string
	Course    *int
	GroupLang *GroupLang
	IsAdmin   bool
}
