// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// StateEnabled is the only subscription state the exporter processes.
const StateEnabled = "Enabled"

var (
	ErrNoMatch       = errors.New("no enabled subscription matches")
	ErrNoSelection   = errors.New("either --all or --subscription is required")
	ErrNoneAvailable = errors.New("no enabled subscriptions available")
)

// Subscription is an Azure subscription visible to the injected credential.
type Subscription struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TenantID string `json:"tenantId"`
	State    string `json:"state"`
}

// Enumerator lists the subscriptions reachable by a credential.
type Enumerator interface {
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
}

// Enabled lists subscriptions through e and keeps only enabled ones, preserving order.
func Enabled(ctx context.Context, e Enumerator) ([]Subscription, error) {
	subs, err := e.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return FilterEnabled(subs), nil
}

// FilterEnabled drops subscriptions whose state is not Enabled.
func FilterEnabled(subs []Subscription) []Subscription {
	enabled := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if strings.EqualFold(s.State, StateEnabled) {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

// Match finds the subscription identified by query. Candidates are tried
// in order of precedence: exact id, exact name, substring of id, then
// case-insensitive substring of name. Within a rule the first subscription
// in input order wins.
func Match(subs []Subscription, query string) (Subscription, error) {
	if query == "" {
		return Subscription{}, ErrNoSelection
	}

	lowered := strings.ToLower(query)
	rules := []func(Subscription) bool{
		func(s Subscription) bool { return s.ID == query },
		func(s Subscription) bool { return s.Name == query },
		func(s Subscription) bool { return strings.Contains(s.ID, query) },
		func(s Subscription) bool { return strings.Contains(strings.ToLower(s.Name), lowered) },
	}

	for _, rule := range rules {
		for _, s := range subs {
			if rule(s) {
				return s, nil
			}
		}
	}
	return Subscription{}, fmt.Errorf("%w %q", ErrNoMatch, query)
}

// Select returns every subscription when all is set, otherwise the single match for query.
func Select(subs []Subscription, all bool, query string) ([]Subscription, error) {
	if len(subs) == 0 {
		return nil, ErrNoneAvailable
	}
	if all {
		return subs, nil
	}
	s, err := Match(subs, query)
	if err != nil {
		return nil, err
	}
	return []Subscription{s}, nil
}
