package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
)

// MaxBodyLength is the longest text body the Cloud API accepts.
const MaxBodyLength = 4096

// Client sends operator text messages.
type Client interface {
	SendText(ctx context.Context, msg TextMessage) (string, error)
}

// TextMessage is one outgoing text.
type TextMessage struct {
	To         string
	Body       string
	PreviewURL bool
}

// APIClient talks to the WhatsApp Cloud API over resty.
type APIClient struct {
	http    *resty.Client
	phoneID string
}

func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/") + "/" + cfg.APIVersion

	return &APIClient{
		http: resty.New().
			SetBaseURL(base).
			SetAuthToken(cfg.AccessToken).
			SetHeader("Content-Type", "application/json").
			SetTimeout(15 * time.Second),
		phoneID: cfg.PhoneNumberID,
	}
}

type textPayload struct {
	Product string   `json:"messaging_product"`
	To      string   `json:"to"`
	Type    string   `json:"type"`
	Text    textBody `json:"text"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type sendResult struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// APIError is a rejected send. Client errors unwrap to models.ErrValidation,
// everything else to models.ErrUnavailable.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests {
		return models.ErrValidation
	}
	return models.ErrUnavailable
}

// SendText posts msg and returns the message id assigned by Meta.
func (c *APIClient) SendText(ctx context.Context, msg TextMessage) (string, error) {
	switch {
	case msg.To == "":
		return "", fmt.Errorf("whatsapp: empty recipient: %w", models.ErrValidation)
	case msg.Body == "":
		return "", fmt.Errorf("whatsapp: empty body: %w", models.ErrValidation)
	case len(msg.Body) > MaxBodyLength:
		return "", fmt.Errorf("whatsapp: body exceeds %d bytes: %w", MaxBodyLength, models.ErrValidation)
	}

	var result sendResult
	var envelope errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(textPayload{
			Product: "whatsapp",
			To:      msg.To,
			Type:    "text",
			Text:    textBody{Body: msg.Body, PreviewURL: msg.PreviewURL},
		}).
		SetResult(&result).
		SetError(&envelope).
		Post(c.phoneID + "/messages")
	if err != nil {
		return "", fmt.Errorf("whatsapp: %v: %w", err, models.ErrUnavailable)
	}
	if resp.IsError() {
		return "", &APIError{StatusCode: resp.StatusCode(), Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if len(result.Messages) == 0 {
		return "", errors.New("whatsapp: response carried no message id")
	}
	return result.Messages[0].ID, nil
}
