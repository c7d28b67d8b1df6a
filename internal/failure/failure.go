// Package failure classifies conversation errors and decides how the bot reacts.
package failure

import (
	"errors"
	"log/slog"
)

// Kind groups failures that share one recovery decision.
type Kind int

const (
	// KindUnexpected covers bugs, panics and upstream outages.
	KindUnexpected Kind = iota
	// KindUserInput means the user sent something the current step cannot accept.
	KindUserInput
	// KindSessionDataMissing means a step needed a slot that was never filled.
	KindSessionDataMissing
	// KindTransportStale means the chat platform rejected an outdated interaction.
	KindTransportStale
	// KindSilent covers platform errors that need no reaction at all.
	KindSilent
)

func (k Kind) String() string {
	switch k {
	case KindUserInput:
		return "user_input"
	case KindSessionDataMissing:
		return "session_data_missing"
	case KindTransportStale:
		return "transport_stale"
	case KindSilent:
		return "silent"
	default:
		return "unexpected"
	}
}

// Message keys used by the default decisions.
const (
	MsgGeneric = "error.generic"
	MsgSession = "error.session"
	MsgExpired = "error.expired"
)

// Decision tells the engine what to do after a failure.
type Decision struct {
	// Terminate ends the conversation and drops the session.
	Terminate bool
	// MessageKey is the translation key sent to the user; empty sends nothing.
	MessageKey string
	// Escalate forwards the error to the observability sink at Level.
	Escalate bool
	Level    slog.Level
}

// Error attaches a Kind, and optionally a user-facing message key, to an error.
type Error struct {
	Kind       Kind
	MessageKey string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	if e.MessageKey != "" {
		return e.Kind.String() + ": " + e.MessageKey
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// UserInput rejects the current input; the user is re-prompted with messageKey.
func UserInput(messageKey string) error {
	return &Error{Kind: KindUserInput, MessageKey: messageKey}
}

// Stale marks err as an expired interaction.
func Stale(err error) error {
	return &Error{Kind: KindTransportStale, Err: err}
}

// Silent marks err as one that needs no reaction.
func Silent(err error) error {
	return &Error{Kind: KindSilent, Err: err}
}

// Missing marks err as missing session data.
func Missing(err error) error {
	return &Error{Kind: KindSessionDataMissing, Err: err}
}

// Rule maps matching errors to a Kind.
type Rule struct {
	Kind  Kind
	Match func(error) bool
}

// Is builds a Rule matching errors that wrap target.
func Is(target error, kind Kind) Rule {
	return Rule{Kind: kind, Match: func(err error) bool { return errors.Is(err, target) }}
}

// Policy is an ordered rule table plus one Decision per Kind.
type Policy struct {
	rules     []Rule
	decisions map[Kind]Decision
}

// DefaultDecisions returns the recovery table used by NewPolicy.
func DefaultDecisions() map[Kind]Decision {
	return map[Kind]Decision{
		KindUserInput:          {},
		KindSessionDataMissing: {Terminate: true, MessageKey: MsgSession, Escalate: true, Level: slog.LevelWarn},
		KindTransportStale:     {Terminate: true, MessageKey: MsgExpired},
		KindUnexpected:         {Terminate: true, MessageKey: MsgGeneric, Escalate: true, Level: slog.LevelError},
		KindSilent:             {},
	}
}

// NewPolicy builds a policy. Errors of type *Error classify by their own Kind;
// the remaining errors go through rules in order and default to KindUnexpected.
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{
		rules:     append([]Rule(nil), rules...),
		decisions: DefaultDecisions(),
	}
}

// WithDecision overrides the decision for kind.
func (p *Policy) WithDecision(kind Kind, d Decision) *Policy {
	p.decisions[kind] = d
	return p
}

// Classify returns the Kind for err.
func (p *Policy) Classify(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for _, r := range p.rules {
		if r.Match != nil && r.Match(err) {
			return r.Kind
		}
	}
	return KindUnexpected
}

// Decide returns the table entry for kind.
func (p *Policy) Decide(kind Kind) Decision {
	if d, ok := p.decisions[kind]; ok {
		return d
	}
	return p.decisions[KindUnexpected]
}

// Resolve classifies err and returns the decision, using the message key
// carried by err when it has one.
func (p *Policy) Resolve(err error) (Kind, Decision) {
	kind := p.Classify(err)
	d := p.Decide(kind)
	var fe *Error
	if errors.As(err, &fe) && fe.MessageKey != "" {
		d.MessageKey = fe.MessageKey
	}
	return kind, d
}
