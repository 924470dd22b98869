package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gmatbot/internal/domain"
	"gmatbot/internal/journal"
	"gmatbot/internal/metrics"
)

const (
	defaultRunFor      = 23 * time.Hour
	defaultPollTimeout = 30 * time.Second
	defaultBackoffBase = 2 * time.Second
	defaultBackoffCap  = 5 * time.Minute

	defaultHelpText = "Send a category to get a question: ps, ds, cr, sc, or any."
	defaultCaption  = "Here's your GMAT question!"
)

// Journal records dispatch outcomes. Optional; a nil journal disables it.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Loop is the service core: long-poll the messenger, interpret each message,
// dispatch recognized category requests and reply.
//
// The poll cursor lives only in memory and only moves forward. It advances
// past every observed message before the message is handled, so a failing
// dispatch drops that message for good instead of being retried on the next
// poll. Replies are at most once.
type Loop struct {
	messenger   domain.Messenger
	dispatcher  Dispatcher
	interp      *Interpreter
	journal     Journal
	logger      *slog.Logger
	now         func() time.Time
	runFor      time.Duration
	pollTimeout time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration
	helpText    string
	caption     string
	sleep       func(ctx context.Context, d time.Duration) bool

	offset int64
}

// LoopConfig holds all dependencies and tuning parameters for the loop.
type LoopConfig struct {
	Messenger   domain.Messenger
	Dispatcher  Dispatcher
	Interpreter *Interpreter
	Journal     Journal // optional
	Logger      *slog.Logger
	Now         func() time.Time // injectable for tests; defaults to time.Now
	RunFor      time.Duration
	PollTimeout time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
	HelpText    string
	Caption     string

	// ResumeOffset seeds the cursor, normally 0 so the first poll drains
	// the platform's backlog.
	ResumeOffset int64
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RunFor <= 0 {
		cfg.RunFor = defaultRunFor
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = defaultBackoffCap
	}
	if cfg.HelpText == "" {
		cfg.HelpText = defaultHelpText
	}
	if cfg.Caption == "" {
		cfg.Caption = defaultCaption
	}
	return &Loop{
		messenger:   cfg.Messenger,
		dispatcher:  cfg.Dispatcher,
		interp:      cfg.Interpreter,
		journal:     cfg.Journal,
		logger:      cfg.Logger,
		now:         cfg.Now,
		runFor:      cfg.RunFor,
		pollTimeout: cfg.PollTimeout,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		helpText:    cfg.HelpText,
		caption:     cfg.Caption,
		sleep:       sleepWithContext,
		offset:      cfg.ResumeOffset,
	}
}

// Run polls until the run duration elapses or the context is canceled.
// Transient and protocol poll failures back off exponentially up to the cap
// and the backoff resets after any successful poll. An authentication
// failure is fatal: the token will not fix itself.
func (l *Loop) Run(ctx context.Context) error {
	deadline := l.now().Add(l.runFor)
	backoff := l.backoffBase

	l.logger.Info("service loop started",
		"channel", l.messenger.Name(),
		"run_for", l.runFor,
		"offset", l.offset)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.now().Before(deadline) {
			l.logger.Info("run duration elapsed, stopping", "offset", l.offset)
			return nil
		}

		messages, err := l.messenger.Poll(ctx, l.offset, l.pollTimeout)
		if err != nil {
			if errors.Is(err, domain.ErrAuth) {
				return fmt.Errorf("polling %s: %w", l.messenger.Name(), err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.PollErrors.Inc()
			l.logger.Warn("poll failed, backing off", "err", err, "backoff", backoff)
			if !l.sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, l.backoffCap)
			continue
		}
		backoff = l.backoffBase

		sort.Slice(messages, func(i, j int) bool { return messages[i].Seq < messages[j].Seq })
		for _, m := range messages {
			if m.Seq >= l.offset {
				l.offset = m.Seq + 1
				metrics.PollCursor.Set(l.offset)
			}
			l.handle(ctx, m)
		}
	}
}

// handle processes one message. The cursor has already moved past it, so
// failures here are logged, journaled and dropped.
func (l *Loop) handle(ctx context.Context, m domain.InboundMessage) {
	// Platform updates without an originating chat (edits, channel posts)
	// only advance the cursor. Anything with a chat gets a reply: empty or
	// non-text content falls through to the unrecognized → help path.
	if m.ChatID == "" {
		return
	}
	metrics.MessagesTotal.Inc()

	category, ok := l.interp.Interpret(m.Text)
	if !ok {
		if err := l.messenger.ReplyText(ctx, m.ChatID, l.helpText); err != nil {
			l.logger.Warn("help reply failed", "chat", m.ChatID, "seq", m.Seq, "err", err)
			l.record(ctx, m, domain.CategoryUnknown, "", journal.OutcomeFailed, err)
			return
		}
		metrics.HelpReplies.Inc()
		l.record(ctx, m, domain.CategoryUnknown, "", journal.OutcomeHelp, nil)
		return
	}

	start := l.now()
	asset, q, err := l.dispatcher.Dispatch(ctx, category)
	metrics.PipelineLatency.Observe(l.now().Sub(start).Seconds())
	if err != nil {
		metrics.PipelineFailures.Inc()
		l.logger.Error("dispatch failed, message dropped",
			"chat", m.ChatID, "seq", m.Seq, "category", string(category), "err", err)
		l.record(ctx, m, category, q.ID, journal.OutcomeFailed, err)
		return
	}

	caption := fmt.Sprintf("%s\n\nQuestion ID: %s (%s)\nFrom: %s",
		l.caption, q.ID, q.Category.DisplayName(), q.Source)
	if err := l.messenger.ReplyPhoto(ctx, m.ChatID, asset.URL, caption); err != nil {
		metrics.PipelineFailures.Inc()
		l.logger.Error("photo reply failed, message dropped",
			"chat", m.ChatID, "seq", m.Seq, "question", q.ID, "err", err)
		l.record(ctx, m, category, q.ID, journal.OutcomeFailed, err)
		return
	}

	metrics.PhotoReplies.Inc()
	l.record(ctx, m, category, q.ID, journal.OutcomeReplied, nil)
}

func (l *Loop) record(ctx context.Context, m domain.InboundMessage, category domain.Category, questionID string, outcome journal.Outcome, cause error) {
	if l.journal == nil {
		return
	}
	e := journal.Entry{
		Seq:        m.Seq,
		ChatID:     m.ChatID,
		Category:   string(category),
		QuestionID: questionID,
		Outcome:    outcome,
		CreatedAt:  l.now(),
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	if err := l.journal.Record(ctx, e); err != nil {
		l.logger.Warn("journal write failed", "seq", m.Seq, "err", err)
	}
}

// sleepWithContext waits for d or until the context is canceled. Returns
// false on cancellation.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
