package service

import (
	"context"
	"strings"
	"testing"

	"murmur/internal/events"
	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageValidation(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		if id == 404 {
			return nil, models.NewNotFoundError("User", id)
		}
		return &models.User{ID: id}, nil
	}
	svc := NewMessageService(newConvRepoStub(), users, nil, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, SendMessageInput{SenderID: 1, ReceiverID: 1, Content: "hi"})
	assertValidationError(t, err)

	_, err = svc.Send(ctx, SendMessageInput{SenderID: 1, ReceiverID: 2, Content: "  "})
	assertValidationError(t, err)

	_, err = svc.Send(ctx, SendMessageInput{SenderID: 1, ReceiverID: 2, Content: strings.Repeat("m", 2001)})
	assertValidationError(t, err)

	_, err = svc.Send(ctx, SendMessageInput{SenderID: 1, ReceiverID: 404, Content: "hi"})
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestSendMessagePushesToReceiverOnly(t *testing.T) {
	t.Parallel()
	convs := newConvRepoStub()
	rt := &realtimeRecorder{}
	rec := &eventRecorder{}
	svc := NewMessageService(convs, noopUserRepo(), rt, rec)
	ctx := context.Background()

	msg, err := svc.Send(ctx, SendMessageInput{SenderID: 1, ReceiverID: 2, Content: "hello"})
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, uint(2), msg.ReceiverID)

	pushes := rt.events(EventNewMessage)
	require.Len(t, pushes, 1)
	assert.Equal(t, uint(2), pushes[0].userID)
	assert.Equal(t, msg, pushes[0].payload)
	assert.Equal(t, []string{events.MessageSent}, rec.keys)
}

func TestConversationIsOrderIndependent(t *testing.T) {
	t.Parallel()
	convs := newConvRepoStub()
	svc := NewMessageService(convs, noopUserRepo(), nil, nil)
	ctx := context.Background()

	empty, err := svc.ListMessages(ctx, 1, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.Send(ctx, SendMessageInput{SenderID: 1, ReceiverID: 2, Content: "one"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, SendMessageInput{SenderID: 2, ReceiverID: 1, Content: "two"})
	require.NoError(t, err)
	assert.Len(t, convs.convs, 1)

	fromA, err := svc.ListMessages(ctx, 1, 2)
	require.NoError(t, err)
	fromB, err := svc.ListMessages(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, fromA, fromB)
	require.Len(t, fromA, 2)
	assert.Equal(t, "one", fromA[0].Content)
	assert.Equal(t, "two", fromA[1].Content)
}

func TestMarkSeen(t *testing.T) {
	t.Parallel()
	convs := newConvRepoStub()
	svc := NewMessageService(convs, noopUserRepo(), nil, nil)
	ctx := context.Background()

	n, err := svc.MarkSeen(ctx, 2, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, c := range []string{"a", "b"} {
		_, err := svc.Send(ctx, SendMessageInput{SenderID: 1, ReceiverID: 2, Content: c})
		require.NoError(t, err)
	}
	_, err = svc.Send(ctx, SendMessageInput{SenderID: 2, ReceiverID: 1, Content: "c"})
	require.NoError(t, err)

	n, err = svc.MarkSeen(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = svc.MarkSeen(ctx, 2, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListConversationsNeverNil(t *testing.T) {
	t.Parallel()
	svc := NewMessageService(newConvRepoStub(), noopUserRepo(), nil, nil)

	list, err := svc.ListConversations(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, list)
}
