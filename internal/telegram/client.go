package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/medekzamen/medbot-api/internal/models"
)

// Client wraps the Bot API for the pieces both frontends need: resolving
// opaque file references into download URLs, sending typed content, and
// streaming file bodies back through the HTTP API.
type Client struct {
	api    *tgbotapi.BotAPI
	token  string
	http   *http.Client
	logger *zap.Logger
}

// NewClient authenticates against the Bot API. The timeout bounds every
// outbound call, both API requests and file downloads.
func NewClient(token string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: timeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}

	return &Client{api: api, token: token, http: httpClient, logger: logger}, nil
}

// API exposes the underlying Bot API client for the update loop.
func (c *Client) API() *tgbotapi.BotAPI {
	return c.api
}

// Self returns the bot's own username.
func (c *Client) Self() string {
	return c.api.Self.UserName
}

// FileURL exchanges an opaque file reference for a time-limited direct
// download URL.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	file, err := c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file %s: %w", fileID, err)
	}
	return file.Link(c.token), nil
}

// Download fetches a resolved file URL, returning the streaming response.
// The caller owns the body.
func (c *Client) Download(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

// Send forwards an arbitrary chattable (keyboard messages and the like).
func (c *Client) Send(msg tgbotapi.Chattable) error {
	_, err := c.api.Send(msg)
	return err
}

// SendText sends a plain text message.
func (c *Client) SendText(chatID int64, text string) error {
	_, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendMaterial delivers one material with the platform-specific send
// operation for its content kind.
func (c *Client) SendMaterial(chatID int64, material models.Material, caption string) error {
	if material.Type == models.MaterialText {
		return c.SendText(chatID, caption)
	}
	if material.FileID == nil {
		return fmt.Errorf("material %d has no file reference", material.ID)
	}
	fileID := tgbotapi.FileID(*material.FileID)

	var msg tgbotapi.Chattable
	switch material.Type {
	case models.MaterialPhoto:
		m := tgbotapi.NewPhoto(chatID, fileID)
		m.Caption = caption
		msg = m
	case models.MaterialVideo:
		m := tgbotapi.NewVideo(chatID, fileID)
		m.Caption = caption
		msg = m
	case models.MaterialDocument:
		m := tgbotapi.NewDocument(chatID, fileID)
		m.Caption = caption
		msg = m
	case models.MaterialAudio:
		m := tgbotapi.NewAudio(chatID, fileID)
		m.Caption = caption
		msg = m
	case models.MaterialVoice:
		m := tgbotapi.NewVoice(chatID, fileID)
		m.Caption = caption
		msg = m
	case models.MaterialAnimation:
		m := tgbotapi.NewAnimation(chatID, fileID)
		m.Caption = caption
		msg = m
	default:
		return fmt.Errorf("unsupported material type %q", material.Type)
	}

	_, err := c.api.Send(msg)
	return err
}

// CopyMessage re-sends an existing message (of any content kind) to another
// chat. Used by broadcasts so the admin's original formatting survives.
func (c *Client) CopyMessage(toChatID, fromChatID int64, messageID int) error {
	_, err := c.api.CopyMessage(tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID))
	return err
}
