package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/dealership-quote/internal/catalog"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testLead() catalog.Lead {
	return catalog.Lead{
		ID:        uuid.MustParse("6f1c2b1e-4d8a-4c3e-9b7a-0e2f5a1d3c4b"),
		Kind:      catalog.LeadTestDrive,
		Name:      "Nguyễn Văn An",
		Phone:     "0912345678",
		CarModel:  "VF 8",
		CreatedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher(t *testing.T) {
	writer := &fakeWriter{}
	pub := newKafkaPublisher(writer, "dealership.leads", nil)
	lead := testLead()

	if err := pub.PublishLeadCaptured(context.Background(), lead); err != nil {
		t.Fatalf("PublishLeadCaptured() error = %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}

	msg := writer.messages[0]
	if string(msg.Key) != lead.ID.String() {
		t.Errorf("expected message key %s, got %s", lead.ID, msg.Key)
	}

	var event LeadEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("message value is not JSON: %v", err)
	}
	if event.Type != EventTypeLeadCaptured || event.LeadID != lead.ID.String() || event.Lead.Name != lead.Name {
		t.Errorf("unexpected event %+v", event)
	}
	if _, err := uuid.Parse(event.ID); err != nil {
		t.Errorf("event id %q is not a uuid", event.ID)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event_type"] != string(EventTypeLeadCaptured) || headers["event_id"] != event.ID {
		t.Errorf("unexpected headers %v", headers)
	}

	if err := pub.Close(); err != nil || !writer.closed {
		t.Errorf("Close() = %v, closed = %v", err, writer.closed)
	}
}

func TestKafkaPublisherError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unavailable")}
	pub := newKafkaPublisher(writer, "dealership.leads", nil)
	if err := pub.PublishLeadCaptured(context.Background(), testLead()); err == nil {
		t.Error("expected write error to be returned")
	}
}

func TestNewLeadEventIDsAreUnique(t *testing.T) {
	lead := testLead()
	now := time.Now()
	a, b := newLeadEvent(lead, now), newLeadEvent(lead, now)
	if a.ID == b.ID {
		t.Error("expected distinct event ids")
	}
	if a.Timestamp.Location() != time.UTC {
		t.Error("expected UTC timestamp")
	}
}

func TestRecordingPublisher(t *testing.T) {
	rec := &RecordingPublisher{}
	var pub LeadPublisher = rec
	if err := pub.PublishLeadCaptured(context.Background(), testLead()); err != nil {
		t.Fatal(err)
	}
	if len(rec.Leads()) != 1 {
		t.Errorf("expected 1 recorded lead, got %d", len(rec.Leads()))
	}

	rec.Err = errors.New("down")
	if err := pub.PublishLeadCaptured(context.Background(), testLead()); err == nil {
		t.Error("expected configured error")
	}
	if err := (NopPublisher{}).PublishLeadCaptured(context.Background(), testLead()); err != nil {
		t.Error(err)
	}
}
