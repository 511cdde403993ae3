package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"
	textCodeTerminalState     = "TERMINAL_USER_STATE"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from a deleted account.
var ErrTerminalState = goerrors.New("user state is terminal", goerrors.CategoryValidation).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeBadRequest)

// invalidTransitionError attaches per-call metadata to a clone so concurrent
// failures never write into the shared sentinel.
func invalidTransitionError(metadata map[string]any) error {
	clone := ErrInvalidTransition.Clone()
	if clone == nil {
		return ErrInvalidTransition
	}
	clone.Source = ErrInvalidTransition
	return clone.WithMetadata(metadata)
}

func terminalStateError(metadata map[string]any) error {
	clone := ErrTerminalState.Clone()
	if clone == nil {
		return ErrTerminalState
	}
	clone.Source = ErrTerminalState
	return clone.WithMetadata(metadata)
}

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the recorded activity event.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// UserStateMachine defines lifecycle operations for accounts. Persistence of
// a transition is a single conditional update in the repository; the machine
// enforces the transition table and publishes the activity event.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
	CurrentStatus(user *User) UserStatus
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewUserStateMachine returns the default implementation backed by the provided repository.
func NewUserStateMachine(users UserStore, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		users: users,
		transitions: map[UserStatus]map[UserStatus]struct{}{
			UserStatusActive: {
				UserStatusDeactivated: {},
				UserStatusDeleted:     {},
			},
			UserStatusDeactivated: {
				UserStatusActive: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type userStateMachine struct {
	users        UserStore
	transitions  map[UserStatus]map[UserStatus]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata TransitionMetadata
}

func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, invalidTransitionError(map[string]any{
			"target": target,
			"reason": "user is nil",
		})
	}

	user.EnsureStatus()
	from := user.Status
	if target == "" {
		return nil, invalidTransitionError(map[string]any{
			"reason": "target status is empty",
		})
	}

	if from == UserStatusDeleted {
		return nil, terminalStateError(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	// Re-deactivating or re-activating into the current status is rejected,
	// not silently accepted.
	if from == target || !sm.canTransition(from, target) {
		return nil, invalidTransitionError(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	updated, err := sm.persist(ctx, actor, user, target)
	if err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  statusEventType(target),
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   transitionMetadata(options.metadata),
	})

	return updated, nil
}

func (sm *userStateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	user.EnsureStatus()
	return user.Status
}

// persist maps the target status onto the repository's conditional updates,
// which guard on the expected current status so concurrent transitions
// cannot interleave.
func (sm *userStateMachine) persist(ctx context.Context, actor ActorRef, user *User, target UserStatus) (*User, error) {
	switch target {
	case UserStatusDeactivated:
		return sm.users.Deactivate(ctx, user.ID, actorUUID(actor), sm.now())
	case UserStatusActive:
		return sm.users.Reactivate(ctx, user.ID)
	case UserStatusDeleted:
		return sm.users.SoftDelete(ctx, user.ID, sm.now())
	default:
		return nil, invalidTransitionError(map[string]any{
			"to": target,
		})
	}
}

func (sm *userStateMachine) canTransition(from, to UserStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *userStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func statusEventType(target UserStatus) ActivityEventType {
	if target == UserStatusDeleted {
		return ActivityEventUserDeleted
	}
	return ActivityEventUserStatusChanged
}

func transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
