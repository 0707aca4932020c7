package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"
)

func TestClassifyConnectionLossRetryable(t *testing.T) {
	for _, cause := range []error{
		nats.ErrNoServers,
		nats.ErrTimeout,
		nats.ErrConnectionClosed,
		nats.ErrDisconnected,
	} {
		class := classifyNATSError(fmt.Errorf("nats publish documents.ingest: %w", cause))
		if !class.Retryable {
			t.Fatalf("expected %v to be retryable", cause)
		}
		if !class.RecordFailure {
			t.Fatalf("expected %v to count against the breaker", cause)
		}
	}
}

func TestClassifyContextCancellationNotRecorded(t *testing.T) {
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		class := classifyNATSError(cause)
		if class.Retryable {
			t.Fatalf("expected %v not to be retried", cause)
		}
		if class.RecordFailure {
			t.Fatalf("expected %v not to count against the breaker", cause)
		}
	}
}

func TestClassifyOpenCircuitRetryable(t *testing.T) {
	class := classifyNATSError(gobreaker.ErrOpenState)
	if !class.Retryable || !class.RecordFailure {
		t.Fatalf("expected open circuit to stay retryable, got %+v", class)
	}
}

func TestClassifyUnknownErrorRecordedOnly(t *testing.T) {
	class := classifyNATSError(errors.New("invalid subject"))
	if class.Retryable {
		t.Fatalf("expected unknown error not to be retried")
	}
	if !class.RecordFailure {
		t.Fatalf("expected unknown error to count against the breaker")
	}
}

func TestWrapMarksConnectionLossTemporary(t *testing.T) {
	err := wrapTemporaryIfNeeded("nats.publish_ingest", fmt.Errorf("nats publish documents.ingest: %w", nats.ErrTimeout))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if got := err.Error(); !errors.Is(err, nats.ErrTimeout) {
		t.Fatalf("expected original cause preserved, got %q", got)
	}
}

func TestWrapLeavesPermanentErrorAlone(t *testing.T) {
	cause := errors.New("invalid subject")
	err := wrapTemporaryIfNeeded("nats.publish_alert", cause)
	if err != cause {
		t.Fatalf("expected permanent error unchanged, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent error must not become temporary")
	}
}

func TestWrapDoesNotDoubleWrap(t *testing.T) {
	already := domain.WrapError(domain.ErrTemporary, "nats.publish_ingest", nats.ErrDisconnected)
	err := wrapTemporaryIfNeeded("nats.publish_ingest", already)
	if err != already {
		t.Fatalf("expected already-wrapped error returned as is, got %v", err)
	}
}
