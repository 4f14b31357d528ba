package stub

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"townsq/internal/domain/entity"
	"townsq/pkg/errors"
	"townsq/pkg/response"
)

// Server is the in-memory stand-in for the directory backend: the REST
// contract, the socket endpoint, and token minting for seeded users.
type Server struct {
	echo   *echo.Echo
	data   *Dataset
	hub    *Hub
	secret string
	expiry time.Duration
}

type customValidator struct {
	validate *validator.Validate
}

func (cv *customValidator) Validate(i interface{}) error {
	return cv.validate.Struct(i)
}

func NewServer(data *Dataset, secret string, expiry time.Duration) *Server {
	s := &Server{
		echo:   echo.New(),
		data:   data,
		hub:    NewHub(data),
		secret: secret,
		expiry: expiry,
	}

	s.echo.HideBanner = true
	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Validator = &customValidator{validate: validator.New()}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.echo.POST("/dev/token", s.mintToken)

	authed := s.echo.Group("")
	authed.Use(Authenticate(s.secret))

	authed.GET("/chats", s.getChats)
	authed.POST("/chats", s.createChat)
	authed.GET("/messages/:chatId", s.getMessages)
	authed.PATCH("/messages/:chatId/mark-as-read", s.markAsRead)
	authed.POST("/messages", s.sendMessage)

	authed.GET("/businesses", s.searchBusinesses)
	authed.GET("/businesses/:slug", s.getBusiness)
	authed.GET("/services", s.listServices)
	authed.GET("/favorites", s.listFavorites)
	authed.POST("/favorites", s.addFavorite)
	authed.DELETE("/favorites/:businessId", s.removeFavorite)
	authed.GET("/appointments", s.listAppointments)
	authed.POST("/appointments", s.bookAppointment)

	s.echo.GET("/ws", s.handleSocket)
}

// Echo exposes the router so tests can mount it on an httptest server.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Start(port string) error {
	return s.echo.Start(":" + port)
}

type mintTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (s *Server) mintToken(c echo.Context) error {
	var req mintTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if _, ok := s.data.User(req.UserID); !ok {
		return response.Error(c, errors.NotFound("user", nil))
	}

	token, err := MintToken(req.UserID, s.secret, s.expiry)
	if err != nil {
		return response.Error(c, errors.Internal("failed to mint token", err))
	}
	return response.Success(c, map[string]string{"token": token})
}

func (s *Server) getChats(c echo.Context) error {
	userID := c.Get("uid").(string)
	return response.Success(c, s.data.ChatsFor(userID))
}

type createChatStubRequest struct {
	BusinessID string `json:"business_id" validate:"required"`
}

func (s *Server) createChat(c echo.Context) error {
	var req createChatStubRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	if allowed, _ := s.hub.limiter.Allow(userID, "create_chat"); !allowed {
		return response.Error(c, errors.TooManyRequests("too many new conversations, try again later"))
	}

	chatID, err := s.data.FindOrCreateChat(userID, req.BusinessID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, map[string]string{"id": chatID})
}

func (s *Server) getMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	messages, err := s.data.Messages(c.Param("chatId"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string][]entity.Message{"messages": messages})
}

func (s *Server) markAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("chatId")

	if err := s.data.MarkRead(chatID, userID); err != nil {
		return response.Error(c, err)
	}
	s.hub.PublishRead(chatID, userID)
	return c.NoContent(http.StatusOK)
}

type sendMessageStubRequest struct {
	ChatID        string   `json:"chat_id" validate:"required"`
	Content       string   `json:"content"`
	Attachments   []string `json:"attachments"`
	CorrelationID string   `json:"correlation_id"`
}

func (s *Server) sendMessage(c echo.Context) error {
	var req sendMessageStubRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}
	if req.Content == "" && len(req.Attachments) == 0 {
		return response.Error(c, errors.BadRequest("message is empty", nil))
	}

	userID := c.Get("uid").(string)
	message, others, err := s.data.AppendMessage(req.ChatID, userID, req.Content, req.Attachments, req.CorrelationID)
	if err != nil {
		return response.Error(c, err)
	}
	s.hub.PublishMessage(message, others)
	return response.Created(c, message)
}

func (s *Server) searchBusinesses(c echo.Context) error {
	return response.Success(c, s.data.Businesses(c.QueryParam("search"), c.QueryParam("category")))
}

func (s *Server) getBusiness(c echo.Context) error {
	business, err := s.data.BusinessBySlug(c.Param("slug"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, business)
}

func (s *Server) listServices(c echo.Context) error {
	return response.Success(c, s.data.Services(c.QueryParam("business_id")))
}

func (s *Server) listFavorites(c echo.Context) error {
	userID := c.Get("uid").(string)
	return response.Success(c, s.data.Favorites(userID))
}

type addFavoriteStubRequest struct {
	BusinessID string `json:"business_id" validate:"required"`
}

func (s *Server) addFavorite(c echo.Context) error {
	var req addFavoriteStubRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	if err := s.data.AddFavorite(userID, req.BusinessID); err != nil {
		return response.Error(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) removeFavorite(c echo.Context) error {
	userID := c.Get("uid").(string)
	s.data.RemoveFavorite(userID, c.Param("businessId"))
	return c.NoContent(http.StatusOK)
}

type bookAppointmentStubRequest struct {
	BusinessID string    `json:"business_id" validate:"required"`
	ServiceID  string    `json:"service_id" validate:"required"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
}

func (s *Server) bookAppointment(c echo.Context) error {
	var req bookAppointmentStubRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	appointment, err := s.data.BookAppointment(userID, req.BusinessID, req.ServiceID, req.StartsAt)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, appointment)
}

func (s *Server) listAppointments(c echo.Context) error {
	userID := c.Get("uid").(string)
	return response.Success(c, s.data.Appointments(userID))
}

func (s *Server) handleSocket(c echo.Context) error {
	token := tokenFromRequest(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	userID, err := ParseToken(token, s.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}
	return s.hub.ServeWS(c, userID)
}
