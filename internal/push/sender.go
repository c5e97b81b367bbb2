package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

const defaultPushTTL = 60

// sendFunc matches webpush.SendNotificationWithContext, injectable in tests.
type sendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// WebPushSenderParams configure the VAPID web push sender.
type WebPushSenderParams struct {
	Logger          *logger.Logger
	Subscriptions   repositories.SubscriptionRepository
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	Send            sendFunc
}

// WebPushSender delivers notification batches to each target user's
// registered web push endpoints. Endpoints reported gone by the gateway
// (404/410) are pruned so later attempts stop addressing them.
type WebPushSender struct {
	logg          *logger.Logger
	subscriptions repositories.SubscriptionRepository
	publicKey     string
	privateKey    string
	subscriber    string
	send          sendFunc
}

// NewWebPushSender builds a web push delivery handler.
func NewWebPushSender(params WebPushSenderParams) (*WebPushSender, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Subscriptions == nil {
		return nil, errors.New("subscription repository is required")
	}
	if params.VAPIDPublicKey == "" || params.VAPIDPrivateKey == "" {
		return nil, errors.New("VAPID key pair is required")
	}
	send := params.Send
	if send == nil {
		send = webpush.SendNotificationWithContext
	}
	return &WebPushSender{
		logg:          params.Logger,
		subscriptions: params.Subscriptions,
		publicKey:     params.VAPIDPublicKey,
		privateKey:    params.VAPIDPrivateKey,
		subscriber:    params.Subscriber,
		send:          send,
	}, nil
}

type pushPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	URL   string         `json:"url,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Deliver sends every record in the batch to its user's endpoints and
// reports one outcome per record. Only subscription-store errors are
// batch-level; individual gateway failures become per-record outcomes.
func (s *WebPushSender) Deliver(ctx context.Context, batch []models.PendingNotification) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(batch))
	for _, notification := range batch {
		subscriptions, err := s.subscriptions.ListByUser(ctx, notification.UserID)
		if err != nil {
			return nil, fmt.Errorf("list subscriptions for user %d: %w", notification.UserID, err)
		}

		id := notification.ID.Hex()
		if len(subscriptions) == 0 {
			outcomes = append(outcomes, Outcome{ID: id, Status: models.DeliveryNoSubscriptions})
			continue
		}

		payload, err := json.Marshal(pushPayload{
			Title: notification.Title,
			Body:  notification.Body,
			Icon:  notification.Icon,
			Tag:   notification.Tag,
			URL:   notification.URL,
			Data:  notification.Data,
		})
		if err != nil {
			outcomes = append(outcomes, Outcome{ID: id, Status: models.DeliveryFailed, Error: err.Error()})
			continue
		}

		outcomes = append(outcomes, s.deliverOne(ctx, id, payload, notification.Priority, subscriptions))
	}
	return outcomes, nil
}

func (s *WebPushSender) deliverOne(ctx context.Context, id string, payload []byte, priority models.NotificationPriority, subscriptions []models.PushSubscription) Outcome {
	options := &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             defaultPushTTL,
		Urgency:         webpush.UrgencyNormal,
	}
	if priority == models.PriorityHigh {
		options.Urgency = webpush.UrgencyHigh
	}

	results := &models.DeliveryResults{}
	lastError := ""
	for _, subscription := range subscriptions {
		target := &webpush.Subscription{
			Endpoint: subscription.Endpoint,
			Keys: webpush.Keys{
				P256dh: subscription.Keys.P256dh,
				Auth:   subscription.Keys.Auth,
			},
		}
		resp, err := s.send(ctx, payload, target, options)
		if err != nil {
			results.FailedCount++
			lastError = err.Error()
			continue
		}
		statusCode := resp.StatusCode
		resp.Body.Close()

		switch {
		case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
			results.ExpiredCount++
			if err := s.subscriptions.DeleteByEndpoint(ctx, subscription.Endpoint); err != nil {
				s.logg.Error(ctx, "failed to prune expired subscription", err)
			}
		case statusCode >= http.StatusBadRequest:
			results.FailedCount++
			lastError = fmt.Sprintf("push gateway returned %d", statusCode)
		default:
			results.SuccessCount++
		}
	}

	if results.SuccessCount > 0 {
		return Outcome{ID: id, Status: models.DeliveryDelivered, Results: results}
	}
	if lastError == "" {
		lastError = "all subscriptions expired"
	}
	return Outcome{ID: id, Status: models.DeliveryFailed, Error: lastError, Results: results}
}
