package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
	client "github.com/mamadbah2/traystore/pkg/clients/whatsapp"
)

// ErrDisabled is returned when no WhatsApp credentials are configured.
var ErrDisabled = errors.New("whatsapp notifications disabled")

const sendTimeout = 10 * time.Second

// MessagingService pushes operator notifications.
type MessagingService interface {
	SendOutbound(ctx context.Context, req models.NotificationRequest) error
}

// MetaWhatsAppService delivers notifications through the WhatsApp Cloud API.
type MetaWhatsAppService struct {
	recipient string
	client    client.Client
	logger    *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance. client may be nil when
// notifications are disabled.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, c client.Client, logger *zap.Logger) *MetaWhatsAppService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetaWhatsAppService{recipient: cfg.ReportRecipient, client: c, logger: logger}
}

// SendOutbound sends req.Message, split on line boundaries when it is longer
// than one WhatsApp text allows.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.NotificationRequest) error {
	if s.client == nil {
		return ErrDisabled
	}
	to := req.To
	if to == "" {
		to = s.recipient
	}

	parts := chunk(req.Message, client.MaxBodyLength)
	for i, body := range parts {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		id, err := s.client.SendText(sendCtx, client.TextMessage{To: to, Body: body, PreviewURL: req.PreviewURL})
		cancel()
		if err != nil {
			return fmt.Errorf("send notification part %d/%d: %w", i+1, len(parts), err)
		}
		s.logger.Debug("notification sent", zap.String("to", to), zap.String("message_id", id))
	}
	return nil
}

// chunk splits text into pieces of at most limit bytes, breaking after a
// newline where one exists.
func chunk(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n') + 1
		if cut == 0 {
			cut = limit
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
