package collection

import (
	"context"
	"errors"
	"strings"
	"time"

	"crates/core/discogs"
	"crates/core/enrich"
	"crates/logger"
	"crates/model"
	"crates/repository"

	"github.com/google/uuid"
)

// Errors returned by Service. Their text is safe to show to clients.
var (
	ErrAlbumFieldsRequired    = errors.New("Title, artist, and discogsId are required")
	ErrAlbumExists            = errors.New("Album already exists in your collection")
	ErrAlbumNotFound          = errors.New("Album not found")
	ErrAlbumAlreadyRemoved    = errors.New("Album not found or already removed")
	ErrNoValidFields          = errors.New("No valid fields to update")
	ErrNoChanges              = errors.New("No changes made")
	ErrCollectionNameRequired = errors.New("Collection name is required")
	ErrCollectionNotFound     = errors.New("Collection not found")
	ErrDiscogsIDRequired      = errors.New("discogsId is required")
	ErrReleaseNotFound        = errors.New("Release not found on Discogs")
	ErrAccessTokenRequired    = errors.New("userAccessToken is required")
	ErrFeatureUnavailable     = errors.New("This feature is not available")
)

// ReleaseFetcher loads a Discogs release.
type ReleaseFetcher interface {
	ReleaseDetails(ctx context.Context, id int64) (*discogs.Release, error)
}

// AlbumEnricher attaches audio features to an album's tracks.
type AlbumEnricher interface {
	EnrichAlbum(ctx context.Context, album model.Album, userAccessToken string) (model.Album, enrich.Summary, error)
}

// CoverArchiver mirrors album thumbnails to object storage.
type CoverArchiver interface {
	Archive(ctx context.Context, userID int64, albumID, thumbURL string) (string, error)
	Remove(ctx context.Context, key string) error
}

// AlbumPatch lists the album fields a user may edit. Nil means untouched.
type AlbumPatch struct {
	Artist *string   `json:"artist"`
	Title  *string   `json:"title"`
	Year   *string   `json:"year"`
	Genre  *[]string `json:"genre"`
	Style  *[]string `json:"style"`
	Notes  *string   `json:"notes"`
}

// CollectionInput creates a collection, optionally seeded with records.
type CollectionInput struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Records     []model.Album `json:"records"`
}

// CollectionPatch edits a collection's name or description.
type CollectionPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Service implements the collection store.
type Service struct {
	repo     repository.CollectionRepository
	releases ReleaseFetcher
	enricher AlbumEnricher
	covers   CoverArchiver
	now      func() time.Time
}

// NewService builds a Service. releases, enricher and covers may be nil.
// Without releases AddFromDiscogs and without enricher EnrichStoredAlbum
// return ErrFeatureUnavailable; without covers thumbnails are not archived.
func NewService(repo repository.CollectionRepository, releases ReleaseFetcher, enricher AlbumEnricher, covers CoverArchiver) *Service {
	return &Service{
		repo:     repo,
		releases: releases,
		enricher: enricher,
		covers:   covers,
		now:      time.Now,
	}
}

// ListCollections returns the user's collections with their records.
func (s *Service) ListCollections(ctx context.Context, userID int64) ([]model.Collection, error) {
	collections, err := s.repo.ListCollections(ctx, userID)
	if err != nil {
		return nil, err
	}
	if collections == nil {
		collections = []model.Collection{}
	}
	for i := range collections {
		withRecords(&collections[i])
	}
	return collections, nil
}

// EnsureDefaultCollection returns the user's "My Collection", creating it
// on first use. Calling it repeatedly yields the same collection.
func (s *Service) EnsureDefaultCollection(ctx context.Context, userID int64) (*model.Collection, error) {
	return s.repo.GetOrCreateDefault(ctx, userID, &model.Collection{
		ID:          uuid.NewString(),
		Name:        model.DefaultCollectionName,
		Description: model.DefaultCollectionDescription,
	})
}

func validAlbum(a *model.Album) bool {
	return strings.TrimSpace(a.Title) != "" && strings.TrimSpace(a.Artist) != "" && a.DiscogsID != 0
}

func (s *Service) prepareAlbum(userID int64, collectionID string, a *model.Album) {
	a.ID = uuid.NewString()
	a.UserID = userID
	a.CollectionID = collectionID
	a.CoverPath = ""
	if a.AddedAt.IsZero() {
		a.AddedAt = s.now().UTC()
	}
}

// AddAlbum stores input in the user's default collection. The Discogs id
// must not already be in any of the user's collections.
func (s *Service) AddAlbum(ctx context.Context, userID int64, input model.Album) (*model.Album, error) {
	if !validAlbum(&input) {
		return nil, ErrAlbumFieldsRequired
	}

	existing, err := s.repo.FindAlbumByDiscogsID(ctx, userID, input.DiscogsID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlbumExists
	}

	def, err := s.EnsureDefaultCollection(ctx, userID)
	if err != nil {
		return nil, err
	}

	album := input
	s.prepareAlbum(userID, def.ID, &album)
	if err := s.repo.InsertAlbum(ctx, &album); err != nil {
		if errors.Is(err, repository.ErrDuplicateAlbum) {
			return nil, ErrAlbumExists
		}
		return nil, err
	}

	s.archiveCover(ctx, &album)
	logger.Info("[AddAlbum] album added",
		logger.Int64("userId", userID),
		logger.String("albumId", album.ID),
		logger.Int64("discogsId", album.DiscogsID))
	return &album, nil
}

// archiveCover mirrors the thumbnail when archiving is enabled. Failures
// are logged and leave the album without a coverPath.
func (s *Service) archiveCover(ctx context.Context, album *model.Album) {
	if s.covers == nil || album.Thumb == "" {
		return
	}
	key, err := s.covers.Archive(ctx, album.UserID, album.ID, album.Thumb)
	if err != nil {
		logger.Warn("[AddAlbum] cover archive failed", logger.String("albumId", album.ID), logger.ErrorField(err))
		return
	}
	if err := s.repo.SetCoverPath(ctx, album.ID, key); err != nil {
		logger.Warn("[AddAlbum] failed to record cover path", logger.String("albumId", album.ID), logger.ErrorField(err))
		return
	}
	album.CoverPath = key
}

// AddFromDiscogs fetches a release and adds it as an album, tracklist
// included.
func (s *Service) AddFromDiscogs(ctx context.Context, userID, discogsID int64) (*model.Album, error) {
	if discogsID == 0 {
		return nil, ErrDiscogsIDRequired
	}
	if s.releases == nil {
		return nil, ErrFeatureUnavailable
	}
	existing, err := s.repo.FindAlbumByDiscogsID(ctx, userID, discogsID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlbumExists
	}

	rel, err := s.releases.ReleaseDetails(ctx, discogsID)
	if err != nil {
		if errors.Is(err, discogs.ErrNotFound) {
			return nil, ErrReleaseNotFound
		}
		return nil, err
	}
	return s.AddAlbum(ctx, userID, rel.ToAlbum())
}

func (s *Service) GetAlbum(ctx context.Context, userID int64, albumID string) (*model.Album, error) {
	album, err := s.repo.GetAlbum(ctx, userID, albumID)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, ErrAlbumNotFound
	}
	return album, nil
}

// UpdateAlbum applies the allow-listed fields in patch and returns the
// names of the fields that were supplied.
func (s *Service) UpdateAlbum(ctx context.Context, userID int64, albumID string, patch AlbumPatch) ([]string, error) {
	var (
		next    model.Album
		columns []string
		names   []string
		changed bool
	)

	current, err := s.repo.GetAlbum(ctx, userID, albumID)
	if err != nil {
		return nil, err
	}

	setString := func(v *string, name, column string, cur string, dst *string) {
		if v == nil {
			return
		}
		*dst = *v
		names = append(names, name)
		columns = append(columns, column)
		if *v != cur {
			changed = true
		}
	}
	setList := func(v *[]string, name, column string, cur []string, dst *[]string) {
		if v == nil {
			return
		}
		*dst = *v
		names = append(names, name)
		columns = append(columns, column)
		if !equalStrings(*v, cur) {
			changed = true
		}
	}

	var base model.Album
	if current != nil {
		base = *current
	}
	setString(patch.Artist, "artist", "Artist", base.Artist, &next.Artist)
	setString(patch.Title, "title", "Title", base.Title, &next.Title)
	setString(patch.Year, "year", "Year", base.Year, &next.Year)
	setList(patch.Genre, "genre", "Genre", base.Genre, &next.Genre)
	setList(patch.Style, "style", "Style", base.Style, &next.Style)
	setString(patch.Notes, "notes", "Notes", base.Notes, &next.Notes)

	if len(columns) == 0 {
		return nil, ErrNoValidFields
	}
	if current == nil {
		return nil, ErrAlbumNotFound
	}
	if !changed {
		return nil, ErrNoChanges
	}

	ok, err := s.repo.UpdateAlbumFields(ctx, userID, albumID, &next, columns)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlbumNotFound
	}
	return names, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DeleteAlbum removes an album and its archived cover.
func (s *Service) DeleteAlbum(ctx context.Context, userID int64, albumID string) error {
	album, err := s.repo.GetAlbum(ctx, userID, albumID)
	if err != nil {
		return err
	}
	if album == nil {
		return ErrAlbumNotFound
	}

	ok, err := s.repo.DeleteAlbum(ctx, userID, albumID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlbumAlreadyRemoved
	}
	s.removeCover(ctx, album)
	return nil
}

func (s *Service) removeCover(ctx context.Context, album *model.Album) {
	if s.covers == nil || album.CoverPath == "" {
		return
	}
	if err := s.covers.Remove(ctx, album.CoverPath); err != nil {
		logger.Warn("[DeleteAlbum] cover removal failed", logger.String("albumId", album.ID), logger.ErrorField(err))
	}
}

// EnrichStoredAlbum enriches a saved album and persists its tracks. Nothing
// is written when ctx is cancelled mid-run.
func (s *Service) EnrichStoredAlbum(ctx context.Context, userID int64, albumID, userAccessToken string) (*model.Album, enrich.Summary, error) {
	if userAccessToken == "" {
		return nil, enrich.Summary{}, ErrAccessTokenRequired
	}
	if s.enricher == nil {
		return nil, enrich.Summary{}, ErrFeatureUnavailable
	}
	album, err := s.GetAlbum(ctx, userID, albumID)
	if err != nil {
		return nil, enrich.Summary{}, err
	}

	enriched, summary, err := s.enricher.EnrichAlbum(ctx, *album, userAccessToken)
	if err != nil {
		return nil, summary, err
	}

	ok, err := s.repo.ReplaceTracks(ctx, userID, albumID, enriched.Tracks)
	if err != nil {
		return nil, summary, err
	}
	if !ok {
		return nil, summary, ErrAlbumAlreadyRemoved
	}
	return &enriched, summary, nil
}

// CreateCollection validates the name and every initial record, then
// stores them together. A duplicate Discogs id rejects the whole request.
func (s *Service) CreateCollection(ctx context.Context, userID int64, input CollectionInput) (*model.Collection, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrCollectionNameRequired
	}

	c := &model.Collection{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: input.Description,
		Records:     make([]model.Album, 0, len(input.Records)),
	}

	seen := make(map[int64]bool, len(input.Records))
	for _, rec := range input.Records {
		if !validAlbum(&rec) {
			return nil, ErrAlbumFieldsRequired
		}
		if seen[rec.DiscogsID] {
			return nil, ErrAlbumExists
		}
		seen[rec.DiscogsID] = true

		existing, err := s.repo.FindAlbumByDiscogsID(ctx, userID, rec.DiscogsID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrAlbumExists
		}

		s.prepareAlbum(userID, c.ID, &rec)
		c.Records = append(c.Records, rec)
	}

	if err := s.repo.CreateCollection(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicateAlbum) {
			return nil, ErrAlbumExists
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCollection(ctx context.Context, userID int64, collectionID string) (*model.Collection, error) {
	c, err := s.repo.GetCollection(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCollectionNotFound
	}
	withRecords(c)
	return c, nil
}

// withRecords makes an empty collection encode "records" as [].
func withRecords(c *model.Collection) {
	if c.Records == nil {
		c.Records = []model.Album{}
	}
}

func (s *Service) UpdateCollection(ctx context.Context, userID int64, collectionID string, patch CollectionPatch) error {
	fields := make(map[string]interface{})
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return ErrCollectionNameRequired
		}
		fields["name"] = name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if len(fields) == 0 {
		return ErrNoValidFields
	}

	ok, err := s.repo.UpdateCollection(ctx, userID, collectionID, fields)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCollectionNotFound
	}
	return nil
}

// DeleteCollection removes a collection, its albums and their covers.
func (s *Service) DeleteCollection(ctx context.Context, userID int64, collectionID string) error {
	c, err := s.repo.GetCollection(ctx, userID, collectionID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrCollectionNotFound
	}

	ok, err := s.repo.DeleteCollection(ctx, userID, collectionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCollectionNotFound
	}
	for i := range c.Records {
		s.removeCover(ctx, &c.Records[i])
	}
	return nil
}
