package automation

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"stealthtrack/internal/constants"
	"stealthtrack/internal/events"
	"stealthtrack/internal/logger"
	"stealthtrack/pkg/errors"
	"stealthtrack/pkg/logging"
	"stealthtrack/pkg/metrics"
)

// Listener consumes identification events and fires every matching
// enabled rule. Rules are dispatched concurrently per event, bounded by
// the configured concurrency, and joined before the event is considered
// processed. One rule's failure never touches its siblings.
type Listener struct {
	rules       Repository
	dispatcher  *Dispatcher
	recorder    *Recorder
	log         logger.Logger
	concurrency int
}

func NewListener(rules Repository, dispatcher *Dispatcher, recorder *Recorder, log logger.Logger, concurrency int) *Listener {
	if concurrency <= 0 {
		concurrency = constants.DefaultDispatchConcurrency
	}
	return &Listener{
		rules:       rules,
		dispatcher:  dispatcher,
		recorder:    recorder,
		log:         log,
		concurrency: concurrency,
	}
}

// Start consumes the subscription until the context is cancelled or the
// channel is closed. Run it on its own goroutine.
func (l *Listener) Start(ctx context.Context, sub <-chan events.ContactIdentified) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			l.HandleEvent(ctx, event)
		}
	}
}

// HandleEvent runs the full pipeline for one identification event:
// load enabled rules, then per rule evaluate, map, dispatch, record.
func (l *Listener) HandleEvent(ctx context.Context, event events.ContactIdentified) {
	ctx = logging.WithContactID(ctx, event.ContactID)

	rules, err := l.rules.ListEnabledRules(ctx)
	if err != nil {
		l.log.ErrorwCtx(ctx, "Failed to load enabled rules", "error", err)
		return
	}
	metrics.SetActiveRules(len(rules))
	if len(rules) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i := range rules {
		rule := rules[i]
		g.Go(func() error {
			l.fireRule(gctx, rule, event)
			return nil
		})
	}
	g.Wait()

	l.log.DebugwCtx(ctx, "Identification event processed", "rules_evaluated", len(rules))
}

func (l *Listener) fireRule(ctx context.Context, rule Rule, event events.ContactIdentified) {
	ctx = logging.WithRuleID(ctx, rule.ID)
	defer func() {
		if err := errors.RecoverPanic(recover()); err != nil {
			l.log.ErrorwCtx(ctx, "Panic in rule dispatch", "error", err)
		}
	}()

	if !Evaluate(event.Attributes, rule.Filters) {
		return
	}

	payload := BuildPayload(event.Attributes, rule.FieldMap)
	result := l.dispatcher.Dispatch(ctx, rule.WebhookURL, payload)
	metrics.IncDispatch(constants.RunTypeLive, result.Success)
	metrics.ObserveDispatchDuration(time.Duration(result.DurationMs)*time.Millisecond, result.Success)

	contactID := event.ContactID
	if _, err := l.recorder.Record(ctx, rule.ID, constants.RunTypeLive, &contactID, payload, rule.WebhookURL, result); err != nil {
		l.log.ErrorwCtx(ctx, "Failed to record run", "error", err)
		return
	}

	if result.Success {
		l.log.InfowCtx(ctx, "Webhook dispatched",
			"duration_ms", result.DurationMs,
		)
	} else {
		l.log.WarnwCtx(ctx, "Webhook dispatch failed",
			"http_status", result.HTTPStatus,
			"error", result.Error,
			"duration_ms", result.DurationMs,
		)
	}
}
