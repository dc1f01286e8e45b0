package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medekzamen/medbot-api/internal/models"
)

type mockSender struct {
	mu       sync.Mutex
	copies   []int64
	failFor  map[int64]bool
	messages []string
}

func (m *mockSender) CopyMessage(toChatID, fromChatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[toChatID] {
		return errors.New("bot was blocked by the user")
	}
	m.copies = append(m.copies, toChatID)
	return nil
}

func (m *mockSender) SendText(chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return nil
}

func (m *mockSender) sentMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

func TestBroadcastRunCountsFailures(t *testing.T) {
	repo := &mockUserRepo{audience: []int64{1, 2, 3, 4}}
	sender := &mockSender{failFor: map[int64]bool{3: true}}
	svc := NewBroadcastService(repo, sender, 0, zap.NewNop())

	result, err := svc.Run(context.Background(), BroadcastRequest{
		AdminChatID: 100, FromChatID: 100, MessageID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, []int64{1, 2, 4}, sender.copies)
}

func TestBroadcastRunPassesFilterThrough(t *testing.T) {
	repo := &mockUserRepo{audience: []int64{}}
	svc := NewBroadcastService(repo, &mockSender{}, 0, zap.NewNop())

	course := 3
	group := models.GroupRussian
	_, err := svc.Run(context.Background(), BroadcastRequest{
		Filter: models.AudienceFilter{Course: &course, GroupLang: &group},
	})
	require.NoError(t, err)
	require.NotNil(t, repo.lastAud.Course)
	assert.Equal(t, 3, *repo.lastAud.Course)
	require.NotNil(t, repo.lastAud.GroupLang)
	assert.Equal(t, models.GroupRussian, *repo.lastAud.GroupLang)
}

func TestBroadcastEnqueueReportsSummary(t *testing.T) {
	repo := &mockUserRepo{audience: []int64{1, 2}}
	sender := &mockSender{}
	svc := NewBroadcastService(repo, sender, 0, zap.NewNop())

	svc.Start(context.Background())
	defer svc.Stop()

	require.NoError(t, svc.Enqueue(BroadcastRequest{AdminChatID: 100, FromChatID: 100, MessageID: 1}))

	require.Eventually(t, func() bool {
		return len(sender.sentMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, sender.sentMessages()[0], "2 из 2")
}
