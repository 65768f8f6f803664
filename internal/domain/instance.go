package domain

import (
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseNotificationPending Phase = "notification_pending"
	PhaseAwaitingResponse    Phase = "awaiting_response"
	PhaseExtended            Phase = "extended"
	PhaseDeleted             Phase = "deleted"
)

// Terminal reports whether no further transitions can occur.
func (p Phase) Terminal() bool {
	return p == PhaseExtended || p == PhaseDeleted
}

// ExtendRequest is the value object handed to the workflow at start. It is
// built by the scanner and immutable thereafter.
type ExtendRequest struct {
	ResourceGroup string
	Email         string
	ExtendBy      time.Duration
	RespondWithin time.Duration
}

// Instance is the durable state of one extension workflow. The ID is an
// unguessable identifier that doubles as the routing key for external
// signals; knowing it is the only credential required to request an
// extension.
//
// ResponseDeadline is fixed the moment the notification send is confirmed
// and is never recomputed, so a resumed instance races against the same
// instant as an uninterrupted one. SignaledAt records the first observed
// extend signal; later signals never overwrite it.
type Instance struct {
	ID               string
	ResourceGroup    string
	Email            string
	ExtendBy         time.Duration
	RespondWithin    time.Duration
	Phase            Phase
	ResponseDeadline *time.Time
	SignaledAt       *time.Time
	Failure          *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewInstance(req ExtendRequest) *Instance {
	now := time.Now().UTC()
	return &Instance{
		ID:            uuid.NewString(),
		ResourceGroup: req.ResourceGroup,
		Email:         req.Email,
		ExtendBy:      req.ExtendBy,
		RespondWithin: req.RespondWithin,
		Phase:         PhaseNotificationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
