package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCMNotifier delivers notifications to the device through Firebase Cloud
// Messaging.
type FCMNotifier struct {
	client *messaging.Client
	token  string
	logger *zap.Logger
}

// NewFCMNotifier initializes the Firebase app and messaging client. token is
// the registration token of the device to notify.
func NewFCMNotifier(ctx context.Context, credentialsFile, token string, logger *zap.Logger) (*FCMNotifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client: %w", err)
	}
	return &FCMNotifier{client: client, token: token, logger: logger}, nil
}

func (n *FCMNotifier) Notify(ctx context.Context, title, body string, data map[string]string) error {
	id, err := n.client.Send(ctx, &messaging.Message{
		Token: n.token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	n.logger.Debug("notification delivered", zap.String("message_id", id))
	return nil
}
