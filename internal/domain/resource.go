package domain

import (
	"fmt"
	"time"
)

// Tag keys read from resource group metadata. A group participates in the
// cleanup policy when TagParticipation carries the configured marker value;
// the remaining tags drive the per-group decision.
const (
	TagParticipation = "expiration-tag"
	TagExpiration    = "expiration-date"
	TagEmail         = "expiration-email"
	TagExtendPolicy  = "expiration-extend"

	// ExtendPolicyDisabled opts a group out of the extension workflow:
	// it is deleted on expiry without notification.
	ExtendPolicyDisabled = "disabled"
)

// ResourceRecord is a read-only view of one tagged resource group as
// returned by the resource store. The scanner never mutates it.
type ResourceRecord struct {
	Name string
	Tags map[string]string
}

type Action string

const (
	ActionSkip          Action = "skip"
	ActionDelete        Action = "delete"
	ActionStartWorkflow Action = "start-workflow"
)

const (
	ReasonNoExpirationTag   = "no expiration tag"
	ReasonInvalidExpiration = "invalid expiration tag"
	ReasonNotExpired        = "not expired"
	ReasonNoEmail           = "no notification email"
	ReasonOptedOut          = "extension opted out"
	ReasonExpired           = "expired"
)

// Evaluation is the outcome of applying the expiration policy to one
// resource record at a point in time.
type Evaluation struct {
	Action    Action
	Reason    string
	ExpiresAt time.Time
}

// EvaluateResource applies the expiration policy to rec as of now. It is
// pure: no side effects, safe to re-run. A group is expired strictly after
// its expiration instant; a group expiring exactly at now is not yet expired.
func EvaluateResource(rec ResourceRecord, now time.Time) Evaluation {
	raw, ok := rec.Tags[TagExpiration]
	if !ok || raw == "" {
		return Evaluation{Action: ActionSkip, Reason: ReasonNoExpirationTag}
	}

	expires, err := ParseExpiration(raw)
	if err != nil {
		return Evaluation{Action: ActionSkip, Reason: ReasonInvalidExpiration}
	}

	if !now.After(expires) {
		return Evaluation{Action: ActionSkip, Reason: ReasonNotExpired, ExpiresAt: expires}
	}

	if rec.Tags[TagEmail] == "" {
		return Evaluation{Action: ActionDelete, Reason: ReasonNoEmail, ExpiresAt: expires}
	}

	if rec.Tags[TagExtendPolicy] == ExtendPolicyDisabled {
		return Evaluation{Action: ActionDelete, Reason: ReasonOptedOut, ExpiresAt: expires}
	}

	return Evaluation{Action: ActionStartWorkflow, Reason: ReasonExpired, ExpiresAt: expires}
}

var expirationFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseExpiration parses an expiration-date tag value. Tags are written by
// humans and tooling alike, so a few common layouts are accepted.
func ParseExpiration(value string) (time.Time, error) {
	for _, layout := range expirationFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiration date %q", value)
}

// FormatExpiration renders an expiration instant the way it is stored in
// the expiration-date tag.
func FormatExpiration(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
