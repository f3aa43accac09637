package whatsapp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
	client "github.com/mamadbah2/traystore/pkg/clients/whatsapp"
)

type stubClient struct {
	sent []client.TextMessage
	err  error
}

func (s *stubClient) SendText(_ context.Context, msg client.TextMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, msg)
	return "wamid", nil
}

func TestSendOutboundDefaultsRecipient(t *testing.T) {
	stub := &stubClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{ReportRecipient: "221700000000"}, stub, nil)

	require.NoError(t, svc.SendOutbound(context.Background(), models.NotificationRequest{Message: "report"}))
	require.NoError(t, svc.SendOutbound(context.Background(), models.NotificationRequest{To: "33600000000", Message: "direct"}))

	require.Len(t, stub.sent, 2)
	assert.Equal(t, "221700000000", stub.sent[0].To)
	assert.Equal(t, "report", stub.sent[0].Body)
	assert.Equal(t, "33600000000", stub.sent[1].To)
}

func TestSendOutboundSplitsLongMessages(t *testing.T) {
	stub := &stubClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{ReportRecipient: "1"}, stub, nil)

	line := strings.Repeat("x", 1000) + "\n"
	require.NoError(t, svc.SendOutbound(context.Background(), models.NotificationRequest{Message: strings.Repeat(line, 5)}))

	require.Len(t, stub.sent, 2)
	assert.Equal(t, strings.Repeat(line, 4), stub.sent[0].Body)
	assert.Equal(t, line, stub.sent[1].Body)
}

func TestChunkWithoutNewlines(t *testing.T) {
	parts := chunk(strings.Repeat("a", 10), 4)
	assert.Equal(t, []string{"aaaa", "aaaa", "aa"}, parts)
}

func TestSendOutboundPropagatesClientError(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{ReportRecipient: "1"}, &stubClient{err: models.ErrUnavailable}, nil)
	err := svc.SendOutbound(context.Background(), models.NotificationRequest{Message: "x"})
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestSendOutboundDisabled(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, nil, nil)
	assert.ErrorIs(t, svc.SendOutbound(context.Background(), models.NotificationRequest{Message: "x"}), ErrDisabled)
}
