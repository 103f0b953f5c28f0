// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/netSkope/ato-migration-tool/internal/subscription"
)

// SubscriptionLister lists the subscriptions visible to the credential.
type SubscriptionLister struct {
	client *armsubscriptions.Client
}

var _ subscription.Enumerator = (*SubscriptionLister)(nil)

func NewSubscriptionLister(cred azcore.TokenCredential) (*SubscriptionLister, error) {
	client, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}
	return &SubscriptionLister{client: client}, nil
}

func (l *SubscriptionLister) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	var subs []subscription.Subscription
	pager := l.client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range page.Value {
			if s == nil {
				continue
			}
			subs = append(subs, toSubscription(s))
		}
	}
	return subs, nil
}

func toSubscription(s *armsubscriptions.Subscription) subscription.Subscription {
	sub := subscription.Subscription{
		ID:       deref(s.SubscriptionID),
		Name:     deref(s.DisplayName),
		TenantID: deref(s.TenantID),
	}
	if s.State != nil {
		sub.State = string(*s.State)
	}
	return sub
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func tags(in map[string]*string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = deref(v)
	}
	return out
}
