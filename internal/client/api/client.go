// Package api is the HTTP client for the chessmatch server.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chessmatch/internal/archive"
	"chessmatch/internal/core"
	"chessmatch/internal/game"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// APIError carries the server's error payload.
type APIError struct {
	Status  int
	Payload core.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Payload.Details != "" {
		return fmt.Sprintf("%s (%s): %s", e.Payload.Error, e.Payload.Code, e.Payload.Details)
	}
	return fmt.Sprintf("%s (%s)", e.Payload.Error, e.Payload.Code)
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			// Long-poll waits run up to 25s server-side
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) doRequest(method, path string, body interface{}, result interface{}) error {
	url := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr.Payload); err != nil {
			apiErr.Payload = core.ErrorResponse{Error: strings.TrimSpace(string(respBody))}
		}
		return apiErr
	}

	if result != nil {
		return json.Unmarshal(respBody, result)
	}
	return nil
}

func (c *Client) CreateGame(whiteID string) (game.Record, error) {
	var rec game.Record
	err := c.doRequest(http.MethodPost, "/api/v1/games", core.CreateGameRequest{WhiteID: whiteID}, &rec)
	return rec, err
}

func (c *Client) ListGames(waitingOnly bool) ([]game.Record, error) {
	path := "/api/v1/games"
	if waitingOnly {
		path += "?waiting=true"
	}
	var recs []game.Record
	err := c.doRequest(http.MethodGet, path, nil, &recs)
	return recs, err
}

func (c *Client) GetGame(id string) (game.Record, error) {
	var rec game.Record
	err := c.doRequest(http.MethodGet, "/api/v1/games/"+id, nil, &rec)
	return rec, err
}

// WaitGame long-polls until the game advances past version or the server-side
// wait times out.
func (c *Client) WaitGame(id string, version uint64) (game.Record, error) {
	var rec game.Record
	path := fmt.Sprintf("/api/v1/games/%s?wait=true&version=%d", id, version)
	err := c.doRequest(http.MethodGet, path, nil, &rec)
	return rec, err
}

// MoveHistory fetches the server-side archived history for a game. Fails when
// the server runs without an archive.
func (c *Client) MoveHistory(id string) ([]archive.MoveRow, error) {
	var rows []archive.MoveRow
	err := c.doRequest(http.MethodGet, "/api/v1/games/"+id+"/history", nil, &rows)
	return rows, err
}

func (c *Client) JoinGame(id, blackID string) (game.Record, error) {
	var rec game.Record
	err := c.doRequest(http.MethodPost, "/api/v1/games/"+id+"/join", core.JoinGameRequest{BlackID: blackID}, &rec)
	return rec, err
}

func (c *Client) Move(id, playerID, move, correlationID string) (game.Record, error) {
	var rec game.Record
	req := core.MoveRequest{PlayerID: playerID, Move: move, CorrelationID: correlationID}
	err := c.doRequest(http.MethodPost, "/api/v1/games/"+id+"/moves", req, &rec)
	return rec, err
}
