package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	common "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/adapters/common"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/models"
)

// Config contains the runtime settings the worker engine relies on to
// orchestrate processing, retries, and DLQ handling.
type Config struct {
	Channel           string
	MsgMaxBytes       int
	MaxAttempts       int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	WorkerConcurrency int
}

// Record is a Kafka message delivered to the worker together with the
// function that commits its offset.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	commit func(context.Context) error
}

// Commit marks the record as processed. Records built without a commit
// function commit as a no-op.
func (r *Record) Commit(ctx context.Context) error {
	if r == nil || r.commit == nil {
		return nil
	}
	return r.commit(ctx)
}

// Clone returns a deep copy of the record that shares the commit function.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	clone := *r
	clone.Key = cloneBytes(r.Key)
	clone.Value = cloneBytes(r.Value)
	clone.Headers = cloneHeaders(r.Headers)
	return &clone
}

// FailureType enumerates the DLQ failure classifications.
type FailureType string

const (
	FailureTypePermanent  FailureType = models.FailureTypePermanent
	FailureTypeTransient  FailureType = models.FailureTypeTransient
	FailureTypeValidation FailureType = models.FailureTypeValidation
	FailureTypeUnknown    FailureType = models.FailureTypeUnknown
)

// Validator parses and validates inbound Kafka records. On a validation error
// the returned message may be nil or partially populated.
type Validator interface {
	ParseAndValidate(ctx context.Context, channel string, payload []byte) (*common.ValidatedMessage, error)
}

// StatusPublisher publishes lifecycle updates for a message.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event models.StatusEvent) error
}

// DLQPublisher writes failed messages to the DLQ topic.
type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record models.DLQRecord) error
}

// Committer commits Kafka offsets after a terminal outcome.
type Committer interface {
	Commit(ctx context.Context, record *Record) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(ctx context.Context, record *Record) error

// Commit calls f.
func (f CommitFunc) Commit(ctx context.Context, record *Record) error {
	return f(ctx, record)
}

// RecordCommitter commits through the function bound to each record.
var RecordCommitter = CommitFunc(func(ctx context.Context, record *Record) error {
	return record.Commit(ctx)
})

// Dependencies collects the runtime collaborators required by the engine.
type Dependencies struct {
	Adapter         common.Adapter
	Validator       Validator
	StatusPublisher StatusPublisher
	DLQPublisher    DLQPublisher
	Committer       Committer
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Engine validates records, delivers them through the adapter with retries
// and backoff, and publishes status and DLQ events before committing.
type Engine struct {
	cfg             Config
	adapter         common.Adapter
	validator       Validator
	statusPublisher StatusPublisher
	dlqPublisher    DLQPublisher
	committer       Committer
	logger          zerolog.Logger

	semaphore *semaphore.Weighted
	inflight  sync.WaitGroup

	now func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand
}

// NewEngine constructs a worker engine using the supplied configuration and
// collaborators.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.Channel == "" {
		return nil, errors.New("worker: channel must be provided")
	}
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("worker: max attempts must be >= 1")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, errors.New("worker: worker concurrency must be >= 1")
	}
	if cfg.MsgMaxBytes < 0 {
		return nil, errors.New("worker: msg max bytes cannot be negative")
	}
	if deps.Adapter == nil {
		return nil, errors.New("worker: adapter dependency is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("worker: validator dependency is required")
	}
	if deps.StatusPublisher == nil {
		return nil, errors.New("worker: status publisher dependency is required")
	}
	if deps.DLQPublisher == nil {
		return nil, errors.New("worker: DLQ publisher dependency is required")
	}
	if deps.Committer == nil {
		return nil, errors.New("worker: committer dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "worker_engine").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Engine{
		cfg:             cfg,
		adapter:         deps.Adapter,
		validator:       deps.Validator,
		statusPublisher: deps.StatusPublisher,
		dlqPublisher:    deps.DLQPublisher,
		committer:       deps.Committer,
		logger:          logger,
		semaphore:       semaphore.NewWeighted(int64(cfg.WorkerConcurrency)),
		now:             nowFunc,
		rnd:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// HandleRecord checks the record size, validates the payload and starts
// asynchronous delivery. It blocks only while all workers are busy.
func (e *Engine) HandleRecord(ctx context.Context, record *Record) {
	if record == nil {
		return
	}

	if e.cfg.MsgMaxBytes > 0 && len(record.Value) > e.cfg.MsgMaxBytes {
		err := fmt.Errorf("payload exceeds maximum size: got %d bytes, limit %d bytes", len(record.Value), e.cfg.MsgMaxBytes)
		msg := e.partialMessageFromRecord(record)
		e.logger.Warn().
			Str("message_id", msg.MessageID).
			Err(err).
			Msg("worker: record discarded because it exceeds configured size limit")
		e.reject(ctx, record, msg, err)
		return
	}

	validated, err := e.validator.ParseAndValidate(ctx, e.cfg.Channel, record.Value)
	if validated == nil {
		validated = e.partialMessageFromRecord(record)
	}
	e.fillFromRecord(validated, record)

	if err != nil {
		e.logger.Warn().
			Str("message_id", validated.MessageID).
			Err(err).
			Msg("worker: validation failed for record")
		e.reject(ctx, record, validated, err)
		return
	}

	if err := e.semaphore.Acquire(ctx, 1); err != nil {
		e.logger.Error().
			Str("message_id", validated.MessageID).
			Err(err).
			Msg("worker: failed to acquire concurrency semaphore")
		return
	}

	e.inflight.Add(1)
	go e.processRecord(ctx, record.Clone(), validated)
}

// Wait blocks until every record handed to HandleRecord has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) reject(ctx context.Context, record *Record, msg *common.ValidatedMessage, err error) {
	now := e.now()
	e.publishStatus(ctx, e.statusEvent(msg, models.StatusEventFailed, 0, nil, err, 0, now))
	e.publishDLQ(ctx, e.dlqRecord(msg, FailureTypeValidation, 0, err, now, now))
	e.commitRecord(ctx, record)
}

func (e *Engine) processRecord(ctx context.Context, record *Record, msg *common.ValidatedMessage) {
	defer e.inflight.Done()
	defer e.semaphore.Release(1)

	if ctx.Err() != nil {
		e.logger.Warn().
			Str("message_id", msg.MessageID).
			Msg("worker: context cancelled before processing began")
		return
	}

	e.publishStatus(ctx, e.statusEvent(msg, models.StatusEventQueued, 0, nil, nil, 0, e.now()))

	attempt := 1
	firstFailedAt := time.Time{}

	for {
		e.publishStatus(ctx, e.statusEvent(msg, models.StatusEventAttempt, attempt, nil, nil, 0, e.now()))
		start := e.now()
		providerResp, err := e.adapter.Send(ctx, msg)
		duration := e.now().Sub(start)

		logEvent := e.logger.With().
			Str("message_id", msg.MessageID).
			Str("kind", string(msg.Kind)).
			Int("attempt", attempt).
			Dur("duration", duration).
			Logger()

		if err == nil {
			logEvent.Info().Msg("worker: message sent successfully")
			e.publishStatus(ctx, e.statusEvent(msg, models.StatusEventSent, attempt, providerResp, nil, duration, e.now()))
			e.commitRecord(ctx, record)
			return
		}

		if ctx.Err() != nil {
			logEvent.Warn().Err(err).Msg("worker: context cancelled during send; deferring commit for reprocessing")
			return
		}

		logEvent.Warn().Err(err).Msg("worker: adapter returned error")

		now := e.now()
		if firstFailedAt.IsZero() {
			firstFailedAt = now
		}

		if errors.Is(err, common.ErrPermanent) {
			e.publishStatus(ctx, e.statusEvent(msg, models.StatusEventFailed, attempt, providerResp, err, duration, now))
			e.publishDLQ(ctx, e.dlqRecord(msg, FailureTypePermanent, attempt, err, firstFailedAt, now))
			e.commitRecord(ctx, record)
			return
		}

		if attempt >= e.cfg.MaxAttempts {
			e.publishStatus(ctx, e.statusEvent(msg, models.StatusEventFailed, attempt, providerResp, err, duration, now))
			failureType := FailureTypeTransient
			if !errors.Is(err, common.ErrTransient) {
				failureType = FailureTypeUnknown
			}
			e.publishDLQ(ctx, e.dlqRecord(msg, failureType, attempt, err, firstFailedAt, now))
			e.commitRecord(ctx, record)
			return
		}

		backoff := e.computeBackoff(attempt)
		if backoff > 0 {
			logEvent.Info().Dur("backoff", backoff).Msg("worker: scheduling retry after transient error")
		}

		if !e.wait(ctx, backoff) {
			logEvent.Warn().Msg("worker: context cancelled while waiting for retry; message will be retried on next poll")
			return
		}

		attempt++
	}
}

func (e *Engine) computeBackoff(attempt int) time.Duration {
	if e.cfg.BaseBackoff <= 0 {
		return 0
	}

	multiplier := math.Pow(2, float64(attempt-1))
	raw := time.Duration(float64(e.cfg.BaseBackoff) * multiplier)
	if e.cfg.MaxBackoff > 0 && raw > e.cfg.MaxBackoff {
		raw = e.cfg.MaxBackoff
	}

	return e.fullJitter(raw)
}

func (e *Engine) fullJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	e.randMu.Lock()
	defer e.randMu.Unlock()

	return time.Duration(e.rnd.Int63n(int64(max) + 1))
}

func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Engine) statusEvent(msg *common.ValidatedMessage, typ string, attempt int, resp *common.ProviderResponse, err error, d time.Duration, ts time.Time) models.StatusEvent {
	event := models.StatusEvent{
		MessageID:        msg.MessageID,
		Channel:          msg.Channel,
		Kind:             string(msg.Kind),
		EventType:        typ,
		Attempt:          attempt,
		ProviderResponse: resp,
		DurationMS:       d.Milliseconds(),
		TraceID:          msg.TraceID,
		Timestamp:        ts.UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

func (e *Engine) dlqRecord(msg *common.ValidatedMessage, ft FailureType, attempts int, err error, first, last time.Time) models.DLQRecord {
	rec := models.DLQRecord{
		MessageID:       msg.MessageID,
		Channel:         msg.Channel,
		Kind:            string(msg.Kind),
		OriginalMessage: models.OriginalMessage(msg.RawPayload),
		Attempts:        attempts,
		FailureType:     string(ft),
		FirstFailedAt:   first.UTC(),
		LastAttemptAt:   last.UTC(),
		TraceID:         msg.TraceID,
		Meta:            msg.Metadata,
	}
	if err != nil {
		rec.LastError = err.Error()
	}
	return rec
}

func (e *Engine) publishStatus(ctx context.Context, event models.StatusEvent) {
	if err := e.statusPublisher.PublishStatus(ctx, event); err != nil {
		e.logger.Error().
			Str("message_id", event.MessageID).
			Str("event", event.EventType).
			Bool("terminal", event.Terminal()).
			Err(err).
			Msg("worker: failed to publish status event")
	}
}

func (e *Engine) publishDLQ(ctx context.Context, record models.DLQRecord) {
	if err := e.dlqPublisher.PublishDLQ(ctx, record); err != nil {
		e.logger.Error().
			Str("message_id", record.MessageID).
			Err(err).
			Msg("worker: failed to publish DLQ record")
	}
}

func (e *Engine) commitRecord(ctx context.Context, record *Record) {
	if record == nil {
		return
	}
	if err := e.committer.Commit(ctx, record); err != nil {
		e.logger.Error().
			Str("topic", record.Topic).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Err(err).
			Msg("worker: failed to commit record offset")
	}
}

func (e *Engine) partialMessageFromRecord(record *Record) *common.ValidatedMessage {
	return &common.ValidatedMessage{
		Channel:      e.cfg.Channel,
		MessageID:    string(record.Key),
		RawPayload:   cloneBytes(record.Value),
		Key:          cloneBytes(record.Key),
		KafkaHeaders: cloneHeaders(record.Headers),
	}
}

func (e *Engine) fillFromRecord(msg *common.ValidatedMessage, record *Record) {
	if msg.Channel == "" {
		msg.Channel = e.cfg.Channel
	}
	if msg.MessageID == "" {
		msg.MessageID = string(record.Key)
	}
	if len(msg.RawPayload) == 0 {
		msg.RawPayload = cloneBytes(record.Value)
	}
	if len(msg.Key) == 0 {
		msg.Key = cloneBytes(record.Key)
	}
	if len(msg.KafkaHeaders) == 0 {
		msg.KafkaHeaders = cloneHeaders(record.Headers)
	}
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}

func cloneHeaders(headers map[string][]byte) map[string][]byte {
	if len(headers) == 0 {
		return nil
	}
	clone := make(map[string][]byte, len(headers))
	for k, v := range headers {
		clone[k] = cloneBytes(v)
	}
	return clone
}
