package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"

	"vinted/internal/credentials"
	"vinted/internal/models"
	"vinted/internal/repositories"
	"vinted/internal/server"
	"vinted/internal/services"
	"vinted/pkg/lock"
	"vinted/pkg/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// MockPaymentProvider is a mock implementation of services.PaymentProvider.
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	args := m.Called(ctx, req)
	if c := args.Get(0); c != nil {
		return c.(*payment.Charge), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeImageHost records uploads and returns predictable URLs.
type fakeImageHost struct {
	mu      sync.Mutex
	folders []string
}

func (h *fakeImageHost) Upload(_ context.Context, data []byte, contentType, folder string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.folders = append(h.folders, folder)
	return fmt.Sprintf("https://img.example/%s/%d.jpg", folder, len(h.folders)), nil
}

type testEnv struct {
	app      *fiber.App
	listings repositories.ListingRepository
	provider *MockPaymentProvider
	images   *fakeImageHost
}

// setupApp builds the full application on an in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect to in-memory database")
	require.NoError(t, db.AutoMigrate(&models.Account{}, &models.Listing{}))

	accountRepo := repositories.NewGORMAccountRepository(db)
	listingRepo := repositories.NewGORMListingRepository(db)

	env := &testEnv{
		listings: listingRepo,
		provider: new(MockPaymentProvider),
		images:   &fakeImageHost{},
	}

	authService := services.NewAuthService(accountRepo, credentials.NewManager(credentials.SHA256Hasher{}))
	listingService := services.NewListingService(listingRepo, nil, env.images)
	paymentService := services.NewPaymentService(listingRepo, accountRepo, env.provider, lock.NewKeyedMutex())

	env.app = server.New(server.Deps{
		Auth:     authService,
		Listings: listingService,
		Payments: paymentService,
		Quiet:    true,
	})
	return env
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return resp.StatusCode, env
}

func jsonRequest(method, target string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type session struct {
	ID      string `json:"_id"`
	Token   string `json:"token"`
	Account struct {
		Username string `json:"username"`
	} `json:"account"`
}

func signup(t *testing.T, app *fiber.App, username, email string) session {
	t.Helper()
	status, env := do(t, app, jsonRequest(http.MethodPost, "/user/signup", fiber.Map{
		"username": username,
		"email":    email,
		"password": "correct-horse-battery",
	}))
	require.Equal(t, http.StatusCreated, status, env.Message)

	var s session
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func publishRequest(t *testing.T, token string, fields map[string]string, pictures int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for i := 0; i < pictures; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="picture"; filename="p%d.jpg"`, i))
		h.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte{0xff, 0xd8, 0xff, byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/offer/publish", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func publishFields(title string, price string) map[string]string {
	return map[string]string{
		"title":       title,
		"description": "Portée deux fois",
		"price":       price,
		"brand":       "Levi's",
		"size":        "L",
		"condition":   "Bon état",
		"color":       "Bleu",
		"city":        "Lyon",
	}
}

func TestUserRoutes(t *testing.T) {
	env := setupApp(t)
	app := env.app

	t.Run("SignupReturnsSession", func(t *testing.T) {
		s := signup(t, app, "alice", "alice@example.com")
		assert.NotEmpty(t, s.ID)
		assert.Len(t, s.Token, 32)
		assert.Equal(t, "alice", s.Account.Username)
	})

	t.Run("SignupShortPassword", func(t *testing.T) {
		status, env := do(t, app, jsonRequest(http.MethodPost, "/user/signup", fiber.Map{
			"username": "bobby", "email": "bob@example.com", "password": "123456789",
		}))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, env.Success)
		assert.Equal(t, services.MsgPasswordTooShort, env.Message)
	})

	t.Run("SignupShortUsername", func(t *testing.T) {
		status, env := do(t, app, jsonRequest(http.MethodPost, "/user/signup", fiber.Map{
			"username": "bob", "email": "bob@example.com", "password": "correct-horse-battery",
		}))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "You must provide a valid username (5 chars at least)", env.Message)
	})

	t.Run("SignupTakenEmail", func(t *testing.T) {
		status, env := do(t, app, jsonRequest(http.MethodPost, "/user/signup", fiber.Map{
			"username": "alice2", "email": "alice@example.com", "password": "another-password",
		}))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.MsgUserExists, env.Message)
	})

	t.Run("LoginSuccess", func(t *testing.T) {
		status, env := do(t, app, jsonRequest(http.MethodPost, "/user/login", fiber.Map{
			"email": "alice@example.com", "password": "correct-horse-battery",
		}))
		require.Equal(t, http.StatusOK, status)
		var s session
		require.NoError(t, json.Unmarshal(env.Data, &s))
		assert.Len(t, s.Token, 32)
		assert.NotContains(t, string(env.Data), "salt")
		assert.NotContains(t, string(env.Data), "hash")
	})

	t.Run("LoginWrongPassword", func(t *testing.T) {
		status, env := do(t, app, jsonRequest(http.MethodPost, "/user/login", fiber.Map{
			"email": "alice@example.com", "password": "wrong-password!",
		}))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.MsgLogsDontMatch, env.Message)
	})

	t.Run("LoginUnknownEmail", func(t *testing.T) {
		status, env := do(t, app, jsonRequest(http.MethodPost, "/user/login", fiber.Map{
			"email": "nobody@example.com", "password": "correct-horse-battery",
		}))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.MsgLogsDontMatch, env.Message)
	})

	t.Run("ProfileByToken", func(t *testing.T) {
		s := signup(t, app, "carol", "carol@example.com")

		status, env := do(t, app, httptest.NewRequest(http.MethodGet, "/user/"+s.Token, nil))
		require.Equal(t, http.StatusOK, status)
		var profile struct {
			UserID   string `json:"userId"`
			Username string `json:"username"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &profile))
		assert.Equal(t, s.ID, profile.UserID)
		assert.Equal(t, "carol", profile.Username)

		status, env = do(t, app, httptest.NewRequest(http.MethodGet, "/user/unknown-token", nil))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.MsgUserNotFound, env.Message)
	})
}

func TestListingRoutes(t *testing.T) {
	env := setupApp(t)
	app := env.app
	owner := signup(t, app, "seller", "seller@example.com")

	t.Run("PublishWithoutBearer", func(t *testing.T) {
		status, body := do(t, app, publishRequest(t, "", publishFields("Jean", "20"), 1))
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, services.MsgUnauthorized, body.Message)
	})

	t.Run("PublishWithUnknownToken", func(t *testing.T) {
		status, _ := do(t, app, publishRequest(t, "not-a-token", publishFields("Jean", "20"), 1))
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	var published map[string]any
	t.Run("Publish", func(t *testing.T) {
		status, body := do(t, app, publishRequest(t, owner.Token, publishFields("Jean 501", "35"), 2))
		require.Equal(t, http.StatusCreated, status, body.Message)
		require.NoError(t, json.Unmarshal(body.Data, &published))

		assert.Equal(t, "Jean 501", published["product_name"])
		assert.Equal(t, 35.0, published["product_price"])
		assert.Len(t, published["product_image"], 2)
		assert.NotContains(t, published, "__v")

		details := published["product_details"].([]any)
		require.Len(t, details, 5)
		assert.Equal(t, map[string]any{"MARQUE": "Levi's"}, details[0])

		ownerDoc := published["owner"].(map[string]any)
		assert.Equal(t, owner.ID, ownerDoc["_id"])
		assert.Equal(t, "seller", ownerDoc["account"].(map[string]any)["username"])

		for _, folder := range env.images.folders {
			assert.Equal(t, "vinted/"+owner.ID, folder)
		}
	})

	t.Run("PublishValidation", func(t *testing.T) {
		status, _ := do(t, app, publishRequest(t, owner.Token, publishFields("", "35"), 1))
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = do(t, app, publishRequest(t, owner.Token, publishFields("Jean", "100001"), 1))
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = do(t, app, publishRequest(t, owner.Token, publishFields("Jean", "20"), 0))
		assert.Equal(t, http.StatusBadRequest, status)
	})

	for _, price := range []string{"50", "10", "20"} {
		status, body := do(t, app, publishRequest(t, owner.Token, publishFields("Item "+price, price), 1))
		require.Equal(t, http.StatusCreated, status, body.Message)
	}

	t.Run("SearchDefaults", func(t *testing.T) {
		status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/offers", nil))
		require.Equal(t, http.StatusOK, status)
		var got []map[string]any
		require.NoError(t, json.Unmarshal(body.Data, &got))
		require.Len(t, got, 4)

		prices := make([]float64, 0, len(got))
		for _, l := range got {
			prices = append(prices, l["product_price"].(float64))
			assert.NotContains(t, l, "__v")
		}
		assert.Equal(t, []float64{10, 20, 35, 50}, prices)
	})

	t.Run("SearchFilterSortProject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/offers?product_price[gte]=20&sort=-product_price&fields=product_name,product_price", nil)
		status, body := do(t, app, req)
		require.Equal(t, http.StatusOK, status, body.Message)
		var got []map[string]any
		require.NoError(t, json.Unmarshal(body.Data, &got))
		require.Len(t, got, 3)
		assert.Equal(t, 50.0, got[0]["product_price"])
		assert.Contains(t, got[0], "_id")
		assert.NotContains(t, got[0], "product_description")
	})

	t.Run("SearchInvalidFilter", func(t *testing.T) {
		status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/offers?password=x", nil))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, body.Success)
	})

	t.Run("SearchPageOutOfRange", func(t *testing.T) {
		status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/offers?page=3&limit=2", nil))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.MsgPageDoesNotExist, body.Message)
	})

	t.Run("GetByID", func(t *testing.T) {
		status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/offer/"+published["_id"].(string), nil))
		require.Equal(t, http.StatusOK, status)
		var got map[string]any
		require.NoError(t, json.Unmarshal(body.Data, &got))
		assert.Equal(t, "Jean 501", got["product_name"])

		status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/offer/does-not-exist", nil))
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, services.MsgOfferNotFound, body.Message)
	})
}

func TestPaymentRoutes(t *testing.T) {
	env := setupApp(t)
	app := env.app
	seller := signup(t, app, "seller", "seller@example.com")
	buyer := signup(t, app, "buyer", "buyer@example.com")

	status, body := do(t, app, publishRequest(t, seller.Token, publishFields("Veste", "10"), 1))
	require.Equal(t, http.StatusCreated, status, body.Message)
	var listing struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &listing))

	pay := func(price float64) *http.Request {
		return jsonRequest(http.MethodPost, "/pay", fiber.Map{
			"stripeToken": "tok_visa",
			"userToken":   buyer.Token,
			"offerData":   fiber.Map{"_id": listing.ID, "product_price": price},
		})
	}

	t.Run("PriceMismatchNeverCharges", func(t *testing.T) {
		status, body := do(t, app, pay(1))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.MsgPurchaseRefused, body.Message)
		env.provider.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("MissingFields", func(t *testing.T) {
		status, body := do(t, app, jsonRequest(http.MethodPost, "/pay", fiber.Map{"userToken": buyer.Token}))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.MsgPurchaseRefused, body.Message)
	})

	t.Run("Success", func(t *testing.T) {
		env.provider.On("Charge", mock.Anything, payment.ChargeRequest{
			Amount: 1120, Currency: "eur", Description: "Veste", Source: "tok_visa",
		}).Return(&payment.Charge{ID: "ch_1", Status: payment.StatusSucceeded, Amount: 1120, Paid: true}, nil).Once()

		status, body := do(t, app, pay(10))
		require.Equal(t, http.StatusOK, status, body.Message)
		var charge payment.Charge
		require.NoError(t, json.Unmarshal(body.Data, &charge))
		assert.Equal(t, "ch_1", charge.ID)

		stored, err := env.listings.GetByID(context.Background(), listing.ID)
		require.NoError(t, err)
		assert.True(t, stored.Sold)
		assert.Equal(t, buyer.ID, stored.SoldTo)
		env.provider.AssertExpectations(t)
	})

	t.Run("SoldListingRefused", func(t *testing.T) {
		status, body := do(t, app, pay(10))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, services.MsgPurchaseRefused, body.Message)
		env.provider.AssertNumberOfCalls(t, "Charge", 1)
	})
}

func TestUnknownRoute(t *testing.T) {
	env := setupApp(t)

	status, body := do(t, env.app, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, body.Success)
	assert.Equal(t, "This page does not exist", body.Message)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
