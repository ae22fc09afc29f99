package discogs

import (
	"fmt"
	"regexp"
	"strings"

	"crates/model"
)

// Release is the subset of a Discogs release used to build an album.
type Release struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Year     int      `json:"year"`
	Thumb    string   `json:"thumb"`
	Country  string   `json:"country"`
	Genres   []string `json:"genres"`
	Styles   []string `json:"styles"`
	MasterID int64    `json:"master_id"`
	Status   string   `json:"status"`
	Artists  []struct {
		Name string `json:"name"`
		Join string `json:"join"`
	} `json:"artists"`
	Formats []struct {
		Name         string   `json:"name"`
		Descriptions []string `json:"descriptions"`
	} `json:"formats"`
	Labels []struct {
		Name  string `json:"name"`
		CatNo string `json:"catno"`
	} `json:"labels"`
	Identifiers []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"identifiers"`
	Images []struct {
		Type   string `json:"type"`
		URI150 string `json:"uri150"`
	} `json:"images"`
	Tracklist []struct {
		Position string `json:"position"`
		Title    string `json:"title"`
		Duration string `json:"duration"`
		Type     string `json:"type_"`
		Artists  []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"tracklist"`
}

// Discogs disambiguates artists with a numeric suffix, "Nirvana (2)".
var artistSuffix = regexp.MustCompile(`\s\(\d+\)$`)

func cleanArtist(name string) string {
	return artistSuffix.ReplaceAllString(strings.TrimSpace(name), "")
}

// ArtistName joins the credited artists the way Discogs displays them.
func (r *Release) ArtistName() string {
	var b strings.Builder
	for i, a := range r.Artists {
		b.WriteString(cleanArtist(a.Name))
		if i == len(r.Artists)-1 {
			break
		}
		join := strings.TrimSpace(a.Join)
		switch join {
		case "", ",":
			b.WriteString(", ")
		default:
			b.WriteString(" " + join + " ")
		}
	}
	return b.String()
}

// ToAlbum converts the release into an album ready to be added. Headings
// and index entries in the tracklist are skipped.
func (r *Release) ToAlbum() model.Album {
	album := model.Album{
		DiscogsID: r.ID,
		Title:     r.Title,
		Artist:    r.ArtistName(),
		Thumb:     r.Thumb,
		Country:   r.Country,
		Genre:     r.Genres,
		Style:     r.Styles,
		MasterID:  r.MasterID,
		Status:    r.Status,
	}
	if r.Year > 0 {
		album.Year = fmt.Sprint(r.Year)
	}
	if album.Thumb == "" {
		for _, img := range r.Images {
			if img.URI150 != "" {
				album.Thumb = img.URI150
				break
			}
		}
	}
	for _, f := range r.Formats {
		album.Format = append(album.Format, f.Name)
		album.Format = append(album.Format, f.Descriptions...)
	}
	if len(r.Labels) > 0 {
		album.Label = r.Labels[0].Name
		album.CatNo = r.Labels[0].CatNo
	}
	for _, id := range r.Identifiers {
		if id.Type == "Barcode" {
			album.Barcode = id.Value
			break
		}
	}
	for _, t := range r.Tracklist {
		if t.Type != "" && t.Type != "track" {
			continue
		}
		track := model.Track{Position: t.Position, Title: t.Title, Duration: t.Duration}
		for _, a := range t.Artists {
			track.Artists = append(track.Artists, cleanArtist(a.Name))
		}
		album.Tracks = append(album.Tracks, track)
	}
	return album
}
