// Package chat drives one conversation: per user submission it resolves the
// API credential, issues the completion call, and appends the outcome to the
// transcript. Every failure becomes an error turn plus a notification;
// nothing propagates raw to the presentation layer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/keys"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/transcript"
)

// notificationBuffer bounds the notification channel. Sends never block;
// when a consumer lags this far behind, new notifications are dropped.
const notificationBuffer = 16

// Completer issues one completion request per call.
type Completer interface {
	Complete(ctx context.Context, credential, utterance string, history []llm.Message) (string, error)

	// SourceLabel identifies the provider/model for turn annotations.
	SourceLabel() string
}

// Orchestrator is the per-conversation state machine. Collaborators are
// injected at construction; there is no ambient global state.
type Orchestrator struct {
	keys     *keys.Store
	client   Completer
	credName string
	logger   *zap.Logger

	log     *transcript.Log
	pending atomic.Int64
	notifs  chan Notification
}

// NewOrchestrator creates an orchestrator with an empty transcript. The keys
// store is shared across conversations; the transcript is owned here.
func NewOrchestrator(store *keys.Store, client Completer, credName string, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		keys:     store,
		client:   client,
		credName: credName,
		logger:   logger,
		log:      transcript.NewLog(),
		notifs:   make(chan Notification, notificationBuffer),
	}
}

// Submit runs one submission cycle: append the user turn, resolve the
// credential, call the completion client, append the outcome.
//
// Empty or whitespace-only text is a no-op and returns (nil, nil). On
// success the appended assistant turn carries the response text and a
// source annotation. On failure the assistant turn renders the error
// ("Error: " + message), a notification is emitted, and the classified
// error is returned as information for status mapping; the failure is
// already fully handled here.
//
// Concurrent submissions are allowed: each one's turns are appended
// independently and atomically, so interleaved cycles cannot corrupt the
// log. User turns are appended synchronously at submit time, so a user turn
// always precedes its own response turn.
func (o *Orchestrator) Submit(ctx context.Context, text string) (*transcript.Turn, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	o.log.Append(transcript.RoleUser, trimmed, nil)
	o.pending.Add(1)
	defer o.pending.Add(-1)

	o.logger.Debug("submission started",
		zap.String("credential", o.credName),
		zap.Int("utterance_len", len(trimmed)),
	)

	reply, err := o.complete(ctx, trimmed)
	if err != nil {
		kind, message := classify(err, o.credName)
		turn := o.log.Append(transcript.RoleAssistant, "Error: "+message, nil)

		o.logger.Warn("submission failed",
			zap.String("kind", string(kind)),
			zap.String("message", message),
		)
		o.notify(Notification{
			Title:       "Completion failed",
			Description: message,
			Severity:    SeverityError,
			Kind:        kind,
		})
		return &turn, err
	}

	turn := o.log.Append(transcript.RoleAssistant, reply, []string{o.client.SourceLabel()})
	o.logger.Debug("submission succeeded", zap.Int("reply_len", len(reply)))
	return &turn, nil
}

// complete resolves the credential and issues the completion call.
func (o *Orchestrator) complete(ctx context.Context, utterance string) (string, error) {
	secret, ok, err := o.keys.Get(ctx, o.credName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", llm.ErrNoCredential
	}

	return o.client.Complete(ctx, secret, utterance, nil)
}

// Transcript returns an ordered snapshot of the conversation.
func (o *Orchestrator) Transcript() []transcript.Turn {
	return o.log.Snapshot()
}

// InFlight reports whether any submission is pending. The UI renders this
// as the typing indicator.
func (o *Orchestrator) InFlight() bool {
	return o.pending.Load() > 0
}

// Notifications returns the stream of failure notifications.
func (o *Orchestrator) Notifications() <-chan Notification {
	return o.notifs
}

func (o *Orchestrator) notify(n Notification) {
	select {
	case o.notifs <- n:
	default:
		o.logger.Warn("notification dropped", zap.String("kind", string(n.Kind)))
	}
}

// classify maps an error from the credential store or completion client to
// its kind and user-visible message.
func classify(err error, credName string) (Kind, string) {
	var provErr *llm.ProviderError
	var transErr *llm.TransportError

	switch {
	case errors.Is(err, keys.ErrUnavailable):
		return KindConfigUnavailable, "API configuration could not be loaded. Check the keys file."
	case errors.Is(err, llm.ErrNoCredential):
		return KindAuthMissing, fmt.Sprintf("No API credential found for %s. Add it to the keys file.", credName)
	case errors.As(err, &provErr):
		return KindProvider, provErr.Message
	case errors.As(err, &transErr):
		return KindTransport, "The completion service could not be reached: " + transErr.Err.Error()
	default:
		return KindProvider, err.Error()
	}
}
