package subscription

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"killfeed/internal/filter"
)

// PingAction names the prefix a notification is sent with.
type PingAction string

const (
	PingNone     PingAction = "None"
	PingHere     PingAction = "Here"
	PingEveryone PingAction = "Everyone"
)

// PingPolicy gates how aggressively a subscription's action pings.
type PingPolicy struct {
	Action PingAction `json:"action" validate:"oneof=None Here Everyone"`
	// MaxPingDelayMinutes: 0 means no age gate at all.
	MaxPingDelayMinutes int `json:"max_ping_delay_minutes,omitempty" validate:"gte=0"`
}

// Action is a subscription's delivery destination and ping policy.
type Action struct {
	ChannelID  string      `json:"channel_id" validate:"required"`
	PingPolicy *PingPolicy `json:"ping_policy,omitempty"`
}

// Subscription is one tenant's named rule: a root filter node plus its
// delivery action.
type Subscription struct {
	ID          string       `json:"id" validate:"required"`
	Description string       `json:"description"`
	Root        *filter.Node `json:"root" validate:"required"`
	Action      Action       `json:"action"`
}

var validate = validator.New()

// Validate checks the struct-level constraints a command handler must
// uphold before a subscription is stored: a non-empty id, a root
// filter, a destination channel, and a recognized ping action.
func (s *Subscription) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("subscription %q: %w", s.ID, err)
	}
	return nil
}
