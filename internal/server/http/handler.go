package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"chessmatch/internal/archive"
	"chessmatch/internal/core"
	"chessmatch/internal/game"
	"chessmatch/internal/service"
)

const rateLimitRate = 10 // req/sec

// Handler routes HTTP requests to the game service.
type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// NewFiberApp builds the API application with all middleware installed.
func NewFiberApp(svc *service.Service, devMode bool) *fiber.App {
	h := NewHandler(svc)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	api := app.Group("/api/v1")

	maxReq := rateLimitRate
	if devMode {
		maxReq = rateLimitRate * 2
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.CodeRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	// Content-Type validation for POST requests
	api.Use(contentTypeValidator)

	// Request body parsing and validation
	api.Use(validationMiddleware)

	api.Post("/games", h.CreateGame)
	api.Get("/games", h.ListGames)
	api.Get("/games/:gameId", h.GetGame)
	api.Get("/games/:gameId/history", h.GetHistory)
	api.Post("/games/:gameId/join", h.JoinGame)
	api.Post("/games/:gameId/moves", h.MakeMove)

	return app
}

// contentTypeValidator ensures POST requests have application/json
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		contentType := c.Get("Content-Type")
		if contentType != "application/json" && contentType != "" {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.CodeInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.CodeInternalError,
	}

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.CodeGameNotFound
		case fiber.StatusBadRequest:
			response.Code = core.CodeInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.CodeRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// respondError maps the service error taxonomy to HTTP statuses and wire codes.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	resp := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.CodeInternalError,
	}

	switch {
	case errors.Is(err, core.ErrGameNotFound):
		status = fiber.StatusNotFound
		resp = core.ErrorResponse{Error: "game not found", Code: core.CodeGameNotFound, Details: err.Error()}
	case errors.Is(err, core.ErrConflict):
		status = fiber.StatusBadRequest
		resp = core.ErrorResponse{Error: "conflict", Code: core.CodeConflict, Details: err.Error()}
	case errors.Is(err, core.ErrMalformedMove), errors.Is(err, core.ErrIllegalMove):
		status = fiber.StatusBadRequest
		resp = core.ErrorResponse{Error: "invalid move", Code: core.CodeInvalidMove, Details: err.Error()}
	case errors.Is(err, core.ErrInvalidRequest):
		status = fiber.StatusBadRequest
		resp = core.ErrorResponse{Error: "invalid request", Code: core.CodeInvalidRequest, Details: err.Error()}
	case errors.Is(err, core.ErrStorage):
		status = fiber.StatusServiceUnavailable
		resp = core.ErrorResponse{Error: "storage unavailable", Code: core.CodeStorageError, Details: err.Error()}
	}

	return c.Status(status).JSON(resp)
}

// Health check endpoint with archive status
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"time":    time.Now().Unix(),
		"archive": h.svc.ArchiveHealth(),
	})
}

// CreateGame creates a new game with the requester playing white
func (h *Handler) CreateGame(c *fiber.Ctx) error {
	req, err := validatedBody[core.CreateGameRequest](c)
	if err != nil {
		return err
	}

	rec, err := h.svc.CreateGame(c.Context(), req.WhiteID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// ListGames lists games, optionally only those waiting for an opponent
func (h *Handler) ListGames(c *fiber.Ctx) error {
	waitingOnly := c.Query("waiting", "false") == "true"

	recs, err := h.svc.ListGames(c.Context(), waitingOnly)
	if err != nil {
		return respondError(c, err)
	}
	if recs == nil {
		recs = []game.Record{}
	}
	return c.JSON(recs)
}

// GetGame retrieves current game state, with optional long-polling
func (h *Handler) GetGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid game ID format",
			Code:    core.CodeInvalidRequest,
			Details: "game ID must be a valid UUID",
		})
	}

	rec, err := h.svc.GetGame(c.Context(), gameID)
	if err != nil {
		return respondError(c, err)
	}

	// Non-wait path
	if c.Query("wait", "false") != "true" {
		return c.JSON(rec)
	}

	// Long-polling path: return immediately when the client is behind
	version, err := strconv.ParseUint(c.Query("version", "0"), 10, 64)
	if err != nil || version != rec.Version {
		return c.JSON(rec)
	}

	ctx := c.Context()
	notify := h.svc.RegisterWait(ctx, gameID, version)

	select {
	case <-notify:
		// State changed or wait timed out, return fresh state
		rec, err := h.svc.GetGame(ctx, gameID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	case <-ctx.Done():
		// Client disconnected
		return nil
	}
}

// GetHistory returns the archived move history for a game
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid game ID format",
			Code:    core.CodeInvalidRequest,
			Details: "game ID must be a valid UUID",
		})
	}

	rows, err := h.svc.MoveHistory(c.Context(), gameID)
	if err != nil {
		return respondError(c, err)
	}
	if rows == nil {
		rows = []archive.MoveRow{}
	}
	return c.JSON(rows)
}

// JoinGame seats the second player
func (h *Handler) JoinGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid game ID format",
			Code:    core.CodeInvalidRequest,
			Details: "game ID must be a valid UUID",
		})
	}

	req, err := validatedBody[core.JoinGameRequest](c)
	if err != nil {
		return err
	}

	rec, err := h.svc.JoinGame(c.Context(), gameID, req.BlackID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

// MakeMove submits a move
func (h *Handler) MakeMove(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if !isValidUUID(gameID) {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid game ID format",
			Code:    core.CodeInvalidRequest,
			Details: "game ID must be a valid UUID",
		})
	}

	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}

	rec, err := h.svc.ApplyMove(c.Context(), gameID, req.PlayerID, req.Move, req.CorrelationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}
