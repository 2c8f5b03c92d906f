// Package push delivers ride offers to drivers whose app is backgrounded,
// via Firebase Cloud Messaging.
package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/shared/util"
)

type FCM struct {
	client *messaging.Client
	log    *util.Logger
}

func NewFCM(ctx context.Context, credentialsFile string, log *util.Logger) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return &FCM{client: client, log: log}, nil
}

// SendPush multicasts one notification to up to 500 device tokens. Per-token
// failures are collected, not fatal: a stale token must never block the
// remaining devices.
func (f *FCM) SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) (domain.PushReport, error) {
	if len(tokens) == 0 {
		return domain.PushReport{}, nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	resp, err := f.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return domain.PushReport{}, fmt.Errorf("send multicast: %w", err)
	}

	report := domain.PushReport{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
	}
	for i, r := range resp.Responses {
		if r.Error != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("token %d: %v", i, r.Error))
		}
	}
	if resp.FailureCount > 0 {
		f.log.Warn("Push", fmt.Sprintf("%d of %d tokens failed", resp.FailureCount, len(tokens)))
	}
	return report, nil
}
