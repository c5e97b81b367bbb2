package push

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeSubscriptionStore is an in-memory SubscriptionRepository keyed by endpoint.
type fakeSubscriptionStore struct {
	mu      sync.Mutex
	subs    map[string]models.PushSubscription
	deleted []string
	listErr error
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{subs: map[string]models.PushSubscription{}}
}

func (f *fakeSubscriptionStore) Upsert(_ context.Context, subscription *models.PushSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.subs[subscription.Endpoint]
	if !ok {
		subscription.ID = primitive.NewObjectID()
		subscription.CreatedAt = time.Now()
	} else {
		subscription.ID = existing.ID
		subscription.CreatedAt = existing.CreatedAt
	}
	subscription.UpdatedAt = time.Now()
	f.subs[subscription.Endpoint] = *subscription
	return nil
}

func (f *fakeSubscriptionStore) GetByEndpoint(_ context.Context, endpoint string) (*models.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subscription, ok := f.subs[endpoint]
	if !ok {
		return nil, repositories.ErrSubscriptionNotFound
	}
	copied := subscription
	return &copied, nil
}

func (f *fakeSubscriptionStore) ListByUser(_ context.Context, userID uint) ([]models.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.PushSubscription
	for _, subscription := range f.subs {
		if subscription.UserID == userID {
			out = append(out, subscription)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionStore) DeleteByEndpoint(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, endpoint)
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeSubscriptionStore) add(userID uint, endpoint string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[endpoint] = models.PushSubscription{
		ID:       primitive.NewObjectID(),
		UserID:   userID,
		Endpoint: endpoint,
		Keys:     models.SubscriptionKeys{P256dh: "p256dh-key", Auth: "auth-key"},
	}
}

func pushResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

// gatewayByEndpoint fakes the push gateway: one status code per endpoint.
func gatewayByEndpoint(codes map[string]int) sendFunc {
	return func(_ context.Context, _ []byte, s *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		code, ok := codes[s.Endpoint]
		if !ok {
			return nil, errors.New("unknown endpoint")
		}
		return pushResponse(code), nil
	}
}

func newSender(t *testing.T, store *fakeSubscriptionStore, send sendFunc) *WebPushSender {
	t.Helper()
	sender, err := NewWebPushSender(WebPushSenderParams{
		Logger:          testLogger(),
		Subscriptions:   store,
		VAPIDPublicKey:  "test-public-key",
		VAPIDPrivateKey: "test-private-key",
		Subscriber:      "mailto:ops@example.com",
		Send:            send,
	})
	require.NoError(t, err)
	return sender
}

func record(userID uint) models.PendingNotification {
	return models.PendingNotification{
		ID:     primitive.NewObjectID(),
		UserID: userID,
		Title:  "Title",
		Body:   "Body",
	}
}

func TestNewWebPushSenderRequiresVAPIDKeys(t *testing.T) {
	_, err := NewWebPushSender(WebPushSenderParams{
		Logger:        testLogger(),
		Subscriptions: newFakeSubscriptionStore(),
	})
	assert.Error(t, err)
}

func TestDeliverNoSubscriptions(t *testing.T) {
	store := newFakeSubscriptionStore()
	sender := newSender(t, store, gatewayByEndpoint(nil))

	notification := record(42)
	outcomes, err := sender.Deliver(context.Background(), []models.PendingNotification{notification})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, notification.ID.Hex(), outcomes[0].ID)
	assert.Equal(t, models.DeliveryNoSubscriptions, outcomes[0].Status)
}

func TestDeliverSuccess(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.add(1, "https://push.example.com/a")
	store.add(1, "https://push.example.com/b")
	sender := newSender(t, store, gatewayByEndpoint(map[string]int{
		"https://push.example.com/a": http.StatusCreated,
		"https://push.example.com/b": http.StatusCreated,
	}))

	outcomes, err := sender.Deliver(context.Background(), []models.PendingNotification{record(1)})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.DeliveryDelivered, outcomes[0].Status)
	require.NotNil(t, outcomes[0].Results)
	assert.Equal(t, 2, outcomes[0].Results.SuccessCount)
	assert.Zero(t, outcomes[0].Results.FailedCount)
}

func TestDeliverPrunesGoneEndpoints(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.add(1, "https://push.example.com/stale")
	store.add(1, "https://push.example.com/live")
	sender := newSender(t, store, gatewayByEndpoint(map[string]int{
		"https://push.example.com/stale": http.StatusGone,
		"https://push.example.com/live":  http.StatusCreated,
	}))

	outcomes, err := sender.Deliver(context.Background(), []models.PendingNotification{record(1)})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.DeliveryDelivered, outcomes[0].Status)
	assert.Equal(t, 1, outcomes[0].Results.SuccessCount)
	assert.Equal(t, 1, outcomes[0].Results.ExpiredCount)
	assert.Equal(t, []string{"https://push.example.com/stale"}, store.deleted)
}

func TestDeliverAllEndpointsExpired(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.add(1, "https://push.example.com/stale")
	sender := newSender(t, store, gatewayByEndpoint(map[string]int{
		"https://push.example.com/stale": http.StatusNotFound,
	}))

	outcomes, err := sender.Deliver(context.Background(), []models.PendingNotification{record(1)})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.DeliveryFailed, outcomes[0].Status)
	assert.Equal(t, "all subscriptions expired", outcomes[0].Error)
	assert.Equal(t, 1, outcomes[0].Results.ExpiredCount)
}

func TestDeliverGatewayErrorFailsRecord(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.add(1, "https://push.example.com/a")
	sender := newSender(t, store, gatewayByEndpoint(map[string]int{
		"https://push.example.com/a": http.StatusInternalServerError,
	}))

	outcomes, err := sender.Deliver(context.Background(), []models.PendingNotification{record(1)})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.DeliveryFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Error, "500")
}

func TestDeliverStoreErrorIsBatchLevel(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.listErr = errors.New("mongo down")
	sender := newSender(t, store, gatewayByEndpoint(nil))

	outcomes, err := sender.Deliver(context.Background(), []models.PendingNotification{record(1), record(2)})
	assert.Error(t, err)
	assert.Nil(t, outcomes)
}

func TestDeliverHighPriorityUsesHighUrgency(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.add(1, "https://push.example.com/a")

	var captured *webpush.Options
	send := sendFunc(func(_ context.Context, _ []byte, _ *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		captured = options
		return pushResponse(http.StatusCreated), nil
	})
	sender := newSender(t, store, send)

	notification := record(1)
	notification.Priority = models.PriorityHigh
	_, err := sender.Deliver(context.Background(), []models.PendingNotification{notification})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, webpush.UrgencyHigh, captured.Urgency)
	assert.Equal(t, "mailto:ops@example.com", captured.Subscriber)
}
