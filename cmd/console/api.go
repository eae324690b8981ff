package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jwebster45206/journey-engine/pkg/content"
	"github.com/jwebster45206/journey-engine/pkg/turn"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func listCities(client *http.Client, baseURL string) ([]content.City, error) {
	resp, err := client.Get(baseURL + "/v1/cities")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body, "failed to list cities")
	}

	var out struct {
		Cities []content.City `json:"cities"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse cities response: %w", err)
	}
	return out.Cities, nil
}

// sendTurn posts one event and returns the engine's directive and the
// session to echo back on the next turn.
func sendTurn(client *http.Client, baseURL string, ev turn.Event) (*turn.Result, error) {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		baseURL+"/v1/turns",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body, "turn failed")
	}

	var res turn.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse turn response: %w", err)
	}
	return &res, nil
}

func apiError(status int, body []byte, what string) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("%s: %s", what, errorResp.Error)
}
