package model

import (
	"time"
)

// DefaultCollectionName is the container albums land in when added directly.
const (
	DefaultCollectionName        = "My Collection"
	DefaultCollectionDescription = "Your vinyl collection"
)

// Collection is a named container of albums owned by one user. DefaultFor
// is set to the owner's id on the default collection only.
type Collection struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      int64     `gorm:"not null;index" json:"userId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"size:1024" json:"description"`
	DefaultFor  *int64    `gorm:"uniqueIndex:idx_collections_default" json:"-"`
	Records     []Album   `gorm:"foreignKey:CollectionID" json:"records"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Album is a saved release. DiscogsID is unique per user.
type Album struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CollectionID string    `gorm:"size:36;not null;index" json:"collectionId"`
	UserID       int64     `gorm:"not null;uniqueIndex:idx_albums_user_discogs" json:"-"`
	DiscogsID    int64     `gorm:"not null;uniqueIndex:idx_albums_user_discogs" json:"discogsId"`
	Title        string    `gorm:"size:512;not null" json:"title"`
	Artist       string    `gorm:"size:512;not null" json:"artist"`
	Year         string    `gorm:"size:16" json:"year,omitempty"`
	Thumb        string    `gorm:"size:1024" json:"thumb,omitempty"`
	CoverPath    string    `gorm:"size:512" json:"coverPath,omitempty"`
	AddedAt      time.Time `json:"addedAt"`
	Genre        []string  `gorm:"serializer:json;type:text" json:"genre,omitempty"`
	Style        []string  `gorm:"serializer:json;type:text" json:"style,omitempty"`
	Country      string    `gorm:"size:128" json:"country,omitempty"`
	Format       []string  `gorm:"serializer:json;type:text" json:"format,omitempty"`
	Label        string    `gorm:"size:512" json:"label,omitempty"`
	CatNo        string    `gorm:"column:catno;size:128" json:"catno,omitempty"`
	Barcode      string    `gorm:"size:128" json:"barcode,omitempty"`
	Tracks       []Track   `gorm:"serializer:json;type:longtext" json:"tracks,omitempty"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
	MasterID     int64     `json:"masterId,omitempty"`
	Status       string    `gorm:"size:64" json:"status,omitempty"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Track is one tracklist entry. The enrichment fields stay nil until a
// Spotify match is merged onto the track.
type Track struct {
	Position string   `json:"position"`
	Title    string   `json:"title"`
	Duration string   `json:"duration"`
	Artists  []string `json:"artists,omitempty"`

	SpotifyID        string   `json:"spotifyId,omitempty"`
	BPM              *float64 `json:"bpm,omitempty"`
	Tempo            *float64 `json:"tempo,omitempty"`
	Key              *int     `json:"key,omitempty"`
	Mode             string   `json:"mode,omitempty"`
	Energy           *float64 `json:"energy,omitempty"`
	Danceability     *float64 `json:"danceability,omitempty"`
	Acousticness     *float64 `json:"acousticness,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty"`
	Valence          *float64 `json:"valence,omitempty"`
}

// CloneTracks returns a deep copy so callers can mutate tracks without
// aliasing the source album.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = t
		if t.Artists != nil {
			out[i].Artists = append([]string(nil), t.Artists...)
		}
	}
	return out
}
