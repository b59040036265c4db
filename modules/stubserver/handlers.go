package stubserver

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/example/sportsedu-client/domain/chat"
	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	userKey      = "user"
	requestIDKey = "requestID"
)

// Handlers serves the platform REST API and the chat stream.
type Handlers struct {
	cfg    Config
	store  *Store
	tokens *TokenIssuer
	hasher *PasswordHasher
	hub    *Hub
	logger types.Logger
	now    func() time.Time
}

// NewHandlers creates the handlers.
func NewHandlers(cfg Config, store *Store, tokens *TokenIssuer, hasher *PasswordHasher, hub *Hub, logger types.Logger) *Handlers {
	return &Handlers{
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		hasher: hasher,
		hub:    hub,
		logger: logger,
		now:    time.Now,
	}
}

type signupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	AdminCode   string `json:"admin_code"`
}

type profileRequest struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type equipmentRequest struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Rating       float64 `json:"rating"`
	ReviewCount  int     `json:"review_count"`
	Badge        string  `json:"badge"`
	TotalQty     int     `json:"total_qty"`
	AvailableQty int     `json:"available_qty"`
	RentalFee    int     `json:"rental_fee"`
	Description  string  `json:"description"`
	ImageURL     string  `json:"image_url"`
}

type courseRequest struct {
	EquipID     int64  `json:"equip_id"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	Duration    string `json:"duration"`
	ContentURL  string `json:"content_url"`
	Description string `json:"description"`
}

type rentalRequest struct {
	EquipID   int64     `json:"equip_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

// Authenticate resolves the bearer token to a user.
func (h *Handlers) Authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return h.unauthorized(c, "Not authenticated")
	}
	u, err := h.userFromToken(token)
	if err != nil {
		return h.unauthorized(c, "Could not validate credentials")
	}
	c.Locals(userKey, u)
	return c.Next()
}

// RequireAdmin rejects non-admin users. It must run after Authenticate.
func (h *Handlers) RequireAdmin(c *fiber.Ctx) error {
	if !currentUser(c).Role.IsAdmin() {
		return detail(fiber.StatusForbidden, "Admin privileges required")
	}
	return c.Next()
}

func (h *Handlers) unauthorized(c *fiber.Ctx, message string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return detail(fiber.StatusUnauthorized, message)
}

func (h *Handlers) userFromToken(token string) (user.User, error) {
	username, err := h.tokens.Subject(token)
	if err != nil {
		return user.User{}, err
	}
	return h.store.UserByUsername(username)
}

func currentUser(c *fiber.Ctx) user.User {
	u, _ := c.Locals(userKey).(user.User)
	return u
}

// Signup handles POST /api/users/signup.
func (h *Handlers) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := bindJSON(c, &req, "username", "password", "affiliation"); err != nil {
		return err
	}

	role := user.RoleUser
	if req.AdminCode != "" && req.AdminCode == h.cfg.AdminCode {
		role = user.RoleAdmin
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		return err
	}
	created, err := h.store.CreateUser(req.Username, hash, req.Name, req.Affiliation, role)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return detail(fiber.StatusBadRequest, "Username is already registered")
		}
		return err
	}
	h.logger.Info("User signed up", "username", created.Username, "role", string(created.Role), "requestID", requestID(c))
	return c.JSON(created)
}

// Login handles POST /api/users/login with form credentials.
func (h *Handlers) Login(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	var problems []FieldError
	if username == "" {
		problems = append(problems, missingField("body", "username"))
	}
	if password == "" {
		problems = append(problems, missingField("body", "password"))
	}
	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}

	u, hash, err := h.store.Credentials(username)
	if err != nil || !h.hasher.Verify(password, hash) {
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return h.unauthorized(c, "Incorrect username or password")
	}

	token, err := h.tokens.Issue(u.Username)
	if err != nil {
		return err
	}
	return c.JSON(user.TokenResponse{AccessToken: token, TokenType: "bearer", Role: u.Role})
}

// Me handles GET /api/users/me.
func (h *Handlers) Me(c *fiber.Ctx) error {
	return c.JSON(currentUser(c))
}

// UpdateMe handles PUT /api/users/me.
func (h *Handlers) UpdateMe(c *fiber.Ctx) error {
	var req profileRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	updated, err := h.store.UpdateProfile(currentUser(c).UserID, req.Name, req.Affiliation)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

// ChangePassword handles PUT /api/users/me/password.
func (h *Handlers) ChangePassword(c *fiber.Ctx) error {
	var req passwordRequest
	if err := bindJSON(c, &req, "current_password", "new_password"); err != nil {
		return err
	}

	u := currentUser(c)
	_, hash, err := h.store.Credentials(u.Username)
	if err != nil {
		return err
	}
	if !h.hasher.Verify(req.CurrentPassword, hash) {
		return detail(fiber.StatusBadRequest, "Current password is incorrect")
	}

	newHash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := h.store.SetPasswordHash(u.UserID, newHash); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListEquipment handles GET /api/equipment/.
func (h *Handlers) ListEquipment(c *fiber.Ctx) error {
	items, err := h.store.ListEquipment(c.Query("category"))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

// CreateEquipment handles POST /api/equipment/. The creating admin becomes the instructor.
func (h *Handlers) CreateEquipment(c *fiber.Ctx) error {
	var req equipmentRequest
	if err := bindJSON(c, &req, "name", "category", "total_qty", "available_qty", "rental_fee"); err != nil {
		return err
	}
	created, err := h.store.CreateEquipment(rental.Equipment{
		Name:         req.Name,
		Category:     req.Category,
		Rating:       req.Rating,
		ReviewCount:  req.ReviewCount,
		Badge:        req.Badge,
		TotalQty:     req.TotalQty,
		AvailableQty: req.AvailableQty,
		RentalFee:    req.RentalFee,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		InstructorID: currentUser(c).UserID,
	})
	if err != nil {
		return err
	}
	return c.JSON(created)
}

// ListCourses handles GET /api/courses/?equip_id=.
func (h *Handlers) ListCourses(c *fiber.Ctx) error {
	courses, err := h.store.ListCourses(int64(c.QueryInt("equip_id")))
	if err != nil {
		return err
	}
	return c.JSON(courses)
}

// MyCourses handles GET /api/courses/my.
func (h *Handlers) MyCourses(c *fiber.Ctx) error {
	courses, err := h.store.CoursesForUser(currentUser(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(courses)
}

// GetCourse handles GET /api/courses/:id.
func (h *Handlers) GetCourse(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	courses, err := h.store.ListCourses(0)
	if err != nil {
		return err
	}
	for _, course := range courses {
		if course.CourseID == id {
			return c.JSON(course)
		}
	}
	return detail(fiber.StatusNotFound, "Course not found")
}

// CreateCourse handles POST /api/courses/.
func (h *Handlers) CreateCourse(c *fiber.Ctx) error {
	var req courseRequest
	if err := bindJSON(c, &req, "equip_id", "title", "content_type", "content_url"); err != nil {
		return err
	}
	created, err := h.store.CreateCourse(req.EquipID, rental.Course{
		Title:       req.Title,
		ContentType: req.ContentType,
		Duration:    req.Duration,
		ContentURL:  req.ContentURL,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return detail(fiber.StatusNotFound, "Equipment to link was not found")
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// CreateRental handles POST /api/rentals/.
func (h *Handlers) CreateRental(c *fiber.Ctx) error {
	var req rentalRequest
	if err := bindJSON(c, &req, "equip_id", "start_date", "end_date", "reason"); err != nil {
		return err
	}
	created, err := h.store.CreateRental(currentUser(c).UserID, req.EquipID, req.StartDate, req.EndDate, req.Reason)
	if err != nil {
		if errors.Is(err, ErrOutOfStock) {
			return detail(fiber.StatusBadRequest, "Not enough equipment in stock")
		}
		return err
	}
	return c.JSON(created)
}

// MyRentals handles GET /api/rentals/my.
func (h *Handlers) MyRentals(c *fiber.Ctx) error {
	rentals, err := h.store.RentalsByUser(currentUser(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(rentals)
}

// AllRentals handles GET /api/rentals/all.
func (h *Handlers) AllRentals(c *fiber.Ctx) error {
	rentals, err := h.store.AllRentals()
	if err != nil {
		return err
	}
	return c.JSON(rentals)
}

// ApproveRental handles PUT /api/rentals/:id/approve.
func (h *Handlers) ApproveRental(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.ApproveRental(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return detail(fiber.StatusNotFound, "Rental request not found")
		}
		return err
	}
	return c.JSON(fiber.Map{"message": "Approved successfully"})
}

// ChatHistory handles GET /api/chat/history/:id for the renter and the instructor.
func (h *Handlers) ChatHistory(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.store.Rental(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil || !isParticipant(r, currentUser(c).UserID) {
		return detail(fiber.StatusForbidden, "Not authorized to view this chat history.")
	}

	history, err := h.store.History(id)
	if err != nil {
		return err
	}
	return c.JSON(history)
}

// ChatRooms handles GET /api/chat/rooms.
func (h *Handlers) ChatRooms(c *fiber.Ctx) error {
	rooms, err := h.store.ChatRooms(currentUser(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(rooms)
}

// Health handles GET /health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func isParticipant(r rental.Rental, userID int64) bool {
	return userID != 0 && (userID == r.UserID || userID == r.InstructorID())
}

// ChatStream serves /api/chat/ws/:id?token=. Only the renter and the equipment's instructor may join.
func (h *Handlers) ChatStream(c *websocket.Conn) {
	rentalID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || rentalID < 1 {
		h.closePolicy(c, "Invalid rental.")
		return
	}

	u, err := h.userFromToken(c.Query("token"))
	if err != nil {
		h.closePolicy(c, "Could not validate credentials")
		return
	}

	r, err := h.store.Rental(rentalID)
	if err != nil {
		h.closePolicy(c, "Invalid rental.")
		return
	}
	isRenter := u.UserID == r.UserID
	if !isParticipant(r, u.UserID) {
		h.closePolicy(c, "Not authorized for this chat.")
		return
	}
	receiverID := r.UserID
	if isRenter {
		receiverID = r.InstructorID()
	}

	client := &Client{ID: uuid.NewString(), UserID: u.UserID, RentalID: r.RentalID, Conn: c}
	if !h.hub.Register(client) {
		return
	}
	defer h.hub.Unregister(client)

	logger := h.logger.With("clientID", client.ID, "userID", u.UserID, "rentalID", r.RentalID)
	logger.Info("Chat stream connected")

	limiter := rate.NewLimiter(rate.Limit(h.cfg.MessagesPerSecond), h.cfg.MessageBurst)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Chat stream error", "error", err)
			}
			break
		}

		var frame chat.OutboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Debug("Ignoring malformed frame", "error", err)
			continue
		}
		if frame.Message == "" {
			continue
		}
		if !limiter.Allow() {
			logger.Warn("Rate limit exceeded, dropping message")
			continue
		}

		msg, err := h.store.AddMessage(r.RentalID, u.UserID, receiverID, frame.Message, h.now())
		if err != nil {
			logger.Error("Failed to save message", "error", err)
			continue
		}
		h.hub.Broadcast(r.RentalID, msg)
	}

	logger.Info("Chat stream disconnected")
}

func (h *Handlers) closePolicy(c *websocket.Conn, reason string) {
	h.logger.Debug("Rejecting chat stream", "reason", reason)
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := c.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		h.logger.Debug("Failed to write close frame", "error", err)
	}
	_ = c.Close()
}
