package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const (
	DefaultTelegramURL = "https://api.telegram.org"
	parseModeHTML      = "HTML"
)

// TelegramSender posts messages through the Bot API.
type TelegramSender struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewTelegramSender(baseURL, token string, client *http.Client) *TelegramSender {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &TelegramSender{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, msg Message) error {
	method := "sendMessage"
	body := map[string]any{
		"chat_id":    chatID,
		"parse_mode": parseModeHTML,
	}
	if msg.PhotoID != "" {
		method = "sendPhoto"
		body["photo"] = msg.PhotoID
		body["caption"] = msg.Text
	} else {
		body["text"] = msg.Text
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// The request URL carries the bot token, so only the cause is kept.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%s to chat %d: %w", method, chatID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode %s response: status %d", method, resp.StatusCode)
	}
	if !result.OK {
		return fmt.Errorf("%s to chat %d rejected: %s", method, chatID, result.Description)
	}
	return nil
}
