package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// fakeMsg records which acknowledgement path a task took.
type fakeMsg struct {
	acks  int
	naks  int
	terms int
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) { return &jetstream.MsgMetadata{}, nil }
func (m *fakeMsg) Data() []byte                              { return nil }
func (m *fakeMsg) Headers() nats.Header                      { return nil }
func (m *fakeMsg) Subject() string                           { return ResolveSubjectBase + ".1" }
func (m *fakeMsg) Reply() string                             { return "" }
func (m *fakeMsg) Ack() error                                { m.acks++; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error           { m.acks++; return nil }
func (m *fakeMsg) Nak() error                                { m.naks++; return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error          { m.naks++; return nil }
func (m *fakeMsg) InProgress() error                         { return nil }
func (m *fakeMsg) Term() error                               { m.terms++; return nil }
func (m *fakeMsg) TermWithReason(string) error               { m.terms++; return nil }

func TestSettleResolveAcksSuccess(t *testing.T) {
	msg := &fakeMsg{}

	settleResolve(0, msg, nil)

	if msg.acks != 1 {
		t.Errorf("acks = %d, want 1", msg.acks)
	}
	if msg.naks != 0 || msg.terms != 0 {
		t.Errorf("naks = %d, terms = %d, want 0 and 0", msg.naks, msg.terms)
	}
}

func TestSettleResolveTerminatesFailedJob(t *testing.T) {
	msg := &fakeMsg{}

	// A failed job must not be redelivered: recovery happens only through
	// an explicit reconciliation pass.
	settleResolve(0, msg, errors.New("extraction failed"))

	if msg.terms != 1 {
		t.Errorf("terms = %d, want 1", msg.terms)
	}
	if msg.naks != 0 {
		t.Errorf("naks = %d, want 0 (failed task must not be requeued)", msg.naks)
	}
	if msg.acks != 0 {
		t.Errorf("acks = %d, want 0", msg.acks)
	}
}
