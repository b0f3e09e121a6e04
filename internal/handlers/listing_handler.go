package handlers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"

	"vinted/internal/middleware"
	"vinted/internal/models"
	"vinted/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ListingHandler handles HTTP requests for listings ("offers").
type ListingHandler struct {
	service     *services.ListingService
	authService *services.AuthService
	validate    *validator.Validate
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(service *services.ListingService, authService *services.AuthService) *ListingHandler {
	return &ListingHandler{
		service:     service,
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the listing routes. Publishing requires a bearer
// token.
func (h *ListingHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/offers", h.HandleSearch)
	router.Get("/offer/:id", h.HandleGetByID)
	router.Post("/offer/publish", middleware.AuthRequired(h.authService), h.HandlePublish)
}

// PublishRequest represents the text fields of a publish form.
type PublishRequest struct {
	Title       string  `form:"title" validate:"required,max=50"`
	Description string  `form:"description" validate:"required,max=500"`
	Price       float64 `form:"price" validate:"gt=0,lte=100000"`
	Brand       string  `form:"brand" validate:"max=100"`
	Size        string  `form:"size" validate:"max=100"`
	Condition   string  `form:"condition" validate:"max=100"`
	Color       string  `form:"color" validate:"max=100"`
	City        string  `form:"city" validate:"max=100"`
}

var publishMessages = map[string]string{
	"Title":       fmt.Sprintf("Title is required (%d chars max)", services.MaxTitleLength),
	"Description": fmt.Sprintf("Description is required (%d chars max)", services.MaxDescriptionLength),
	"Price":       fmt.Sprintf("Price must be between 0 and %d", services.MaxPrice),
}

// HandleSearch runs a listing search from the query string.
func (h *ListingHandler) HandleSearch(c *fiber.Ctx) error {
	res, err := h.service.Search(c.UserContext(), c.Queries())
	if err != nil {
		return respondError(c, err)
	}

	out := make([]map[string]any, 0, len(res.Listings))
	for i := range res.Listings {
		out = append(out, res.Projection.Filter(renderListing(&res.Listings[i])))
	}
	return success(c, fiber.StatusOK, out)
}

// HandleGetByID returns a single listing.
func (h *ListingHandler) HandleGetByID(c *fiber.Ctx) error {
	listing, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, renderListing(listing))
}

// HandlePublish creates a listing from a multipart form with one or more
// "picture" files.
func (h *ListingHandler) HandlePublish(c *fiber.Ctx) error {
	owner, ok := middleware.AccountFromContext(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, services.MsgUnauthorized)
	}

	var req PublishRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing publish form: %v", err)
		return failure(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return failure(c, fiber.StatusBadRequest, validationMessage(err, publishMessages, "Validation failed"))
	}

	form, err := c.MultipartForm()
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "At least one picture is required")
	}
	pictures, err := readPictures(form.File["picture"])
	if err != nil {
		log.Printf("Error reading pictures: %v", err)
		return failure(c, fiber.StatusBadRequest, "Could not read pictures")
	}

	listing, err := h.service.Publish(c.UserContext(), owner, services.PublishInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Brand:       req.Brand,
		Size:        req.Size,
		Condition:   req.Condition,
		Color:       req.Color,
		City:        req.City,
		Pictures:    pictures,
	})
	if err != nil {
		return respondError(c, err)
	}

	doc := renderListing(listing)
	doc["owner"] = fiber.Map{
		"_id":     owner.ID,
		"account": owner.Profile,
	}
	return success(c, fiber.StatusCreated, doc)
}

func readPictures(files []*multipart.FileHeader) ([]services.Picture, error) {
	pictures := make([]services.Picture, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		contentType := fh.Header.Get(fiber.HeaderContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		pictures = append(pictures, services.Picture{
			Filename:    fh.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}
	return pictures, nil
}

// renderListing builds the client document of a listing, keyed by the field
// names queries use. Version metadata is never rendered.
func renderListing(l *models.Listing) map[string]any {
	details := l.Details
	if details == nil {
		details = []models.Attribute{}
	}
	images := l.Images
	if images == nil {
		images = []string{}
	}
	doc := map[string]any{
		"_id":                 l.ID,
		"product_name":        l.Title,
		"product_description": l.Description,
		"product_price":       l.Price,
		"product_details":     details,
		"product_image":       images,
		"owner":               l.Owner,
		"sold":                l.Sold,
	}
	if l.SoldTo != "" {
		doc["sold_to"] = l.SoldTo
	}
	return doc
}
