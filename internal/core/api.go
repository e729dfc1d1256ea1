package core

// Request bodies accepted by the API. Validation tags are enforced by the
// HTTP validation middleware before a handler runs.

type CreateGameRequest struct {
	WhiteID string `json:"whiteId" validate:"required,min=1,max=64"`
}

type JoinGameRequest struct {
	BlackID string `json:"blackId" validate:"required,min=1,max=64"`
}

type MoveRequest struct {
	PlayerID string `json:"playerId" validate:"required,min=1,max=64"`
	Move     string `json:"move" validate:"required,min=4,max=5"`
	// CorrelationID is an opaque external reference recorded with the move.
	// The engine never interprets it.
	CorrelationID string `json:"correlationId,omitempty" validate:"omitempty,max=128"`
}
