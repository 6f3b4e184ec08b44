package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentialsStore struct {
	creds map[string]Credentials
	calls int
}

func (f *fakeCredentialsStore) Get(ctx context.Context, businessID, platform string) (Credentials, error) {
	f.calls++
	c, ok := f.creds[businessID+":"+platform]
	if !ok {
		return Credentials{}, assert.AnError
	}
	return c, nil
}

type fakeSender struct {
	sent []Payload
}

func (f *fakeSender) SendMessage(ctx context.Context, to string, payload Payload) error {
	f.sent = append(f.sent, payload)
	return nil
}

func TestDispatcher_Send_UsesRegisteredFactory(t *testing.T) {
	creds := &fakeCredentialsStore{creds: map[string]Credentials{
		"biz-1:telegram": {BusinessID: "biz-1", Platform: "telegram", AccessToken: "tok"},
	}}
	sender := &fakeSender{}
	dispatcher := New(creds, map[string]SenderFactory{
		"telegram": func(c Credentials) (Sender, error) { return sender, nil },
	})

	err := dispatcher.Send(context.Background(), "biz-1", "telegram", "12345", Payload{Kind: PayloadText, Text: "hi"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "hi", sender.sent[0].Text)
}

func TestDispatcher_Send_UnknownPlatformErrors(t *testing.T) {
	dispatcher := New(&fakeCredentialsStore{}, map[string]SenderFactory{})
	err := dispatcher.Send(context.Background(), "biz-1", "carrier-pigeon", "x", Payload{Kind: PayloadText})
	require.Error(t, err)
}

func TestDispatcher_Send_CachesSenderAcrossCalls(t *testing.T) {
	creds := &fakeCredentialsStore{creds: map[string]Credentials{
		"biz-1:telegram": {BusinessID: "biz-1", Platform: "telegram", AccessToken: "tok"},
	}}
	sender := &fakeSender{}
	dispatcher := New(creds, map[string]SenderFactory{
		"telegram": func(c Credentials) (Sender, error) { return sender, nil },
	})

	require.NoError(t, dispatcher.Send(context.Background(), "biz-1", "telegram", "1", Payload{Kind: PayloadText}))
	require.NoError(t, dispatcher.Send(context.Background(), "biz-1", "telegram", "1", Payload{Kind: PayloadText}))
	assert.Equal(t, 1, creds.calls)
	assert.Len(t, sender.sent, 2)
}

func TestDispatcher_Invalidate_ForcesCredentialsReload(t *testing.T) {
	creds := &fakeCredentialsStore{creds: map[string]Credentials{
		"biz-1:telegram": {BusinessID: "biz-1", Platform: "telegram", AccessToken: "tok"},
	}}
	sender := &fakeSender{}
	dispatcher := New(creds, map[string]SenderFactory{
		"telegram": func(c Credentials) (Sender, error) { return sender, nil },
	})

	require.NoError(t, dispatcher.Send(context.Background(), "biz-1", "telegram", "1", Payload{Kind: PayloadText}))
	dispatcher.Invalidate("biz-1", "telegram")
	require.NoError(t, dispatcher.Send(context.Background(), "biz-1", "telegram", "1", Payload{Kind: PayloadText}))
	assert.Equal(t, 2, creds.calls)
}

func TestDispatcher_Send_PropagatesCredentialError(t *testing.T) {
	dispatcher := New(&fakeCredentialsStore{}, map[string]SenderFactory{
		"telegram": func(c Credentials) (Sender, error) { return &fakeSender{}, nil },
	})
	err := dispatcher.Send(context.Background(), "biz-unknown", "telegram", "1", Payload{Kind: PayloadText})
	require.Error(t, err)
}

func TestTokenRotator_RequiresTenantAndPlatform(t *testing.T) {
	rotator := NewTokenRotator(nil, nil, nil)
	require.Error(t, rotator.Rotate(context.Background(), Credentials{AccessToken: "tok"}))
	require.Error(t, rotator.Rotate(context.Background(), Credentials{BusinessID: "biz-1", AccessToken: "tok"}))
}
