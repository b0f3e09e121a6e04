package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"time"

	"vinted/internal/models"
	"vinted/internal/query"
	"vinted/internal/repositories"
	"vinted/pkg/rabbitmq"

	"golang.org/x/sync/errgroup"
)

const (
	MsgOfferNotFound    = "Offer not found"
	MsgPageDoesNotExist = "This page does not exist"
	MsgUploadFailed     = "Could not upload pictures"

	MaxTitleLength       = 50
	MaxDescriptionLength = 500
	MaxPrice             = 100000
	DefaultMaxPictures   = 10
	DefaultFolderPrefix  = "vinted"
)

// ImageHost stores a picture and returns its public URL.
type ImageHost interface {
	Upload(ctx context.Context, data []byte, contentType, folder string) (string, error)
}

// EventPublisher emits domain events. Failures are logged, never returned to
// the caller of the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Picture is one uploaded file of a publish request.
type Picture struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PublishInput carries a publish request after transport decoding.
type PublishInput struct {
	Title       string
	Description string
	Price       float64
	Brand       string
	Size        string
	Condition   string
	Color       string
	City        string
	Pictures    []Picture
}

// SearchResult is a page of listings with the projection they were loaded with.
type SearchResult struct {
	Listings   []models.Listing
	Projection query.Projection
}

// ListingService handles listing search, lookup and publication.
type ListingService struct {
	repo         repositories.ListingRepository
	compiler     *query.Compiler
	images       ImageHost
	events       EventPublisher
	folderPrefix string
	maxPictures  int
	timeout      time.Duration
}

// ListingOption configures a ListingService.
type ListingOption func(*ListingService)

func WithEvents(p EventPublisher) ListingOption {
	return func(s *ListingService) { s.events = p }
}

func WithFolderPrefix(prefix string) ListingOption {
	return func(s *ListingService) {
		if prefix != "" {
			s.folderPrefix = prefix
		}
	}
}

func WithMaxPictures(n int) ListingOption {
	return func(s *ListingService) {
		if n > 0 {
			s.maxPictures = n
		}
	}
}

func WithListingTimeout(d time.Duration) ListingOption {
	return func(s *ListingService) { s.timeout = d }
}

// NewListingService creates a new ListingService.
func NewListingService(repo repositories.ListingRepository, compiler *query.Compiler, images ImageHost, opts ...ListingOption) *ListingService {
	if compiler == nil {
		compiler = query.NewCompiler(query.ListingSchema, query.Options{})
	}
	s := &ListingService{
		repo:         repo,
		compiler:     compiler,
		images:       images,
		folderPrefix: DefaultFolderPrefix,
		maxPictures:  DefaultMaxPictures,
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search compiles untrusted parameters and runs the resulting bounded query.
func (s *ListingService) Search(ctx context.Context, params map[string]string) (*SearchResult, error) {
	q, err := s.compiler.Compile(params)
	if err != nil {
		return nil, newError(KindInvalidFilter, err.Error(), err)
	}

	if q.PageRequested {
		var total int64
		err := bounded(ctx, s.timeout, func(ctx context.Context) error {
			var err error
			total, err = s.repo.Count(ctx, q.Filter)
			return err
		})
		if err != nil {
			return nil, newError(KindUpstream, "Could not search offers", err)
		}
		if err := q.CheckRange(total); err != nil {
			return nil, newError(KindOutOfRange, MsgPageDoesNotExist, err)
		}
	}

	var listings []models.Listing
	err = bounded(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		listings, err = s.repo.Find(ctx, q)
		return err
	})
	if err != nil {
		return nil, newError(KindUpstream, "Could not search offers", err)
	}
	return &SearchResult{Listings: listings, Projection: q.Projection}, nil
}

// GetByID returns a single listing.
func (s *ListingService) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	var listing *models.Listing
	err := bounded(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		listing, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(KindNotFound, MsgOfferNotFound, err)
		}
		return nil, newError(KindUpstream, "Could not load offer", err)
	}
	return listing, nil
}

// Publish uploads every picture concurrently and stores the listing only when
// all uploads succeeded. The owner is the resolved session account.
func (s *ListingService) Publish(ctx context.Context, owner *models.Account, in PublishInput) (*models.Listing, error) {
	if owner == nil || owner.ID == "" {
		return nil, newError(KindUnauthenticated, MsgUnauthorized, nil)
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	folder := path.Join(s.folderPrefix, owner.ID)
	urls := make([]string, len(in.Pictures))

	uploadCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(uploadCtx)
	for i, pic := range in.Pictures {
		g.Go(func() error {
			url, err := s.images.Upload(gctx, pic.Data, pic.ContentType, folder)
			if err != nil {
				return fmt.Errorf("upload picture %d (%s): %w", i, pic.Filename, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, newError(KindUpstream, MsgUploadFailed, err)
	}

	listing := &models.Listing{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Details: []models.Attribute{
			{Label: models.LabelBrand, Value: in.Brand},
			{Label: models.LabelSize, Value: in.Size},
			{Label: models.LabelCondition, Value: in.Condition},
			{Label: models.LabelColor, Value: in.Color},
			{Label: models.LabelLocation, Value: in.City},
		},
		Images: urls,
		Owner:  owner.ID,
	}
	err := bounded(ctx, s.timeout, func(ctx context.Context) error {
		return s.repo.Create(ctx, listing)
	})
	if err != nil {
		return nil, newError(KindUpstream, "Could not publish offer", err)
	}

	log.Printf("Listing %s published by %s with %d pictures", listing.ID, owner.ID, len(urls))
	publishEvent(ctx, s.events, rabbitmq.ListingPublished, map[string]any{
		"listingID": listing.ID,
		"owner":     listing.Owner,
		"price":     listing.Price,
	})
	return listing, nil
}

func (s *ListingService) validate(in PublishInput) error {
	switch {
	case in.Title == "" || len([]rune(in.Title)) > MaxTitleLength:
		return newError(KindValidation, fmt.Sprintf("Title is required (%d chars max)", MaxTitleLength), nil)
	case in.Description == "" || len([]rune(in.Description)) > MaxDescriptionLength:
		return newError(KindValidation, fmt.Sprintf("Description is required (%d chars max)", MaxDescriptionLength), nil)
	case !(in.Price > 0) || in.Price > MaxPrice:
		return newError(KindValidation, fmt.Sprintf("Price must be between 0 and %d", MaxPrice), nil)
	case len(in.Pictures) == 0:
		return newError(KindValidation, "At least one picture is required", nil)
	case len(in.Pictures) > s.maxPictures:
		return newError(KindValidation, fmt.Sprintf("No more than %d pictures are allowed", s.maxPictures), nil)
	}
	for _, p := range in.Pictures {
		if len(p.Data) == 0 {
			return newError(KindValidation, "Pictures must not be empty", nil)
		}
	}
	return nil
}

// publishEvent emits an event without failing the operation that produced it.
func publishEvent(ctx context.Context, p EventPublisher, routingKey string, payload any) {
	if p == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := bounded(ctx, DefaultTimeout, func(ctx context.Context) error {
		return p.Publish(ctx, routingKey, payload)
	}); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", routingKey, err)
	}
}
