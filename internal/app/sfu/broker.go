// Package sfu talks to the forwarding unit's management API: room allocation
// and per-participant token issuance. It never touches media.
package sfu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

// Broker issues SFU credentials. A failure is returned as a value, never
// retried: the caller degrades the join (null token) instead of aborting it.
type Broker struct {
	baseURL string
	client  *http.Client
}

func NewBroker(baseURL string, timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Broker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IssueToken ensures the SFU room exists, then requests a token for the
// participant. Room creation is idempotent on the SFU side, so ensuring an
// existing room does not fail the flow.
func (b *Broker) IssueToken(ctx context.Context, roomID domain.RoomID, participantID domain.ConnectionID) (*core.SFUToken, error) {
	if err := b.ensureRoom(ctx, roomID); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{
		"room_id":        string(roomID),
		"participant_id": string(participantID),
	})
	res, err := b.post(ctx, "/token", body)
	if err != nil {
		return nil, fmt.Errorf("sfu token request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("sfu token request: unexpected status %d", res.StatusCode)
	}

	var token core.SFUToken
	if err := json.NewDecoder(res.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("sfu token decode: %w", err)
	}
	if token.RoomID == "" {
		token.RoomID = string(roomID)
	}
	log.Info().Str("module", "sfu.broker").
		Str("room", string(roomID)).
		Str("participant", string(participantID)).
		Msg("token issued")
	return &token, nil
}

func (b *Broker) ensureRoom(ctx context.Context, roomID domain.RoomID) error {
	body, _ := json.Marshal(map[string]string{"room_id": string(roomID)})
	res, err := b.post(ctx, "/rooms", body)
	if err != nil {
		return fmt.Errorf("sfu room ensure: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("sfu room ensure: unexpected status %d", res.StatusCode)
	}
	return nil
}

func (b *Broker) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.client.Do(req)
}
