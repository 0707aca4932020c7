// Package nats carries document ingestion jobs and escalation alerts over
// core NATS subjects. Ingest messages are the document ID as raw payload;
// alerts are JSON-encoded.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const (
	defaultIngestSubject = "documents.ingest"
	defaultAlertSubject  = "alerts.escalation"
	workerQueueGroup     = "workers"
)

type Queue struct {
	conn          *nats.Conn
	ingestSubject string
	alertSubject  string
	executor      *resilience.Executor
}

var _ ports.MessageQueue = (*Queue)(nil)

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

type Options struct {
	IngestSubject        string
	AlertSubject         string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url string, options Options) (*Queue, error) {
	ingestSubject := options.IngestSubject
	if ingestSubject == "" {
		ingestSubject = defaultIngestSubject
	}
	alertSubject := options.AlertSubject
	if alertSubject == "" {
		alertSubject = defaultAlertSubject
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ayurmitra"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		ingestSubject: ingestSubject,
		alertSubject:  alertSubject,
		executor:      options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngest(ctx context.Context, documentID string) error {
	return q.publish(ctx, "nats.publish_ingest", q.ingestSubject, []byte(documentID))
}

// PublishEscalationAlert fans an alert out to monitoring consumers. Alert
// delivery is fire-and-forget for the dialogue: the caller logs a failure
// but the patient-facing turn is never blocked on it.
func (q *Queue) PublishEscalationAlert(ctx context.Context, alert domain.EscalationAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal escalation alert: %w", err)
	}
	return q.publish(ctx, "nats.publish_alert", q.alertSubject, payload)
}

func (q *Queue) publish(ctx context.Context, operation, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(operation, err)
	}
	return nil
}

// SubscribeDocumentIngest consumes ingest jobs in the shared worker queue
// group and blocks until ctx is cancelled, then drains in-flight messages.
func (q *Queue) SubscribeDocumentIngest(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.ingestSubject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			slog.Error("ingest_handler_failed", "document_id", string(msg.Data), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
