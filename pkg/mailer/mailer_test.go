package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct {
	To, Subject, Text, HTML string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (s *recordingSender) Send(_ context.Context, to, subject, text, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to, subject, text, html})
	return nil
}

func TestDeliverRendersTemplate(t *testing.T) {
	sender := &recordingSender{}
	err := Deliver(context.Background(), sender, EmailJob{
		To:       "jane@ucla.edu",
		Template: "new_conversation",
		Data:     map[string]any{"Name": "Jane", "From": "joe@ucla.edu"},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "New Conversation", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Text, "new message from joe@ucla.edu")
}

func TestDeliverRawAndErrors(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, Deliver(context.Background(), sender, EmailJob{To: "a@ucla.edu", Subject: "hi", HTML: "<p>x</p>"}))
	assert.Equal(t, "hi", sender.sent[0].Subject)

	assert.ErrorIs(t, Deliver(context.Background(), sender, EmailJob{Subject: "nobody"}), ErrNoRecipient)
	assert.Error(t, Deliver(context.Background(), sender, EmailJob{To: "a@ucla.edu", Template: "missing"}))
}

func TestLogSender(t *testing.T) {
	log, hook := test.NewNullLogger()
	require.NoError(t, LogSender{Logger: log}.Send(context.Background(), "a@ucla.edu", "Subject", "", ""))
	assert.Equal(t, "a@ucla.edu", hook.LastEntry().Data["to"])
}

func TestBuildMIME(t *testing.T) {
	raw, err := buildMIME("Bot <bot@example.com>", "jane@ucla.edu", "Hello", "plain body", "<p>html body</p>")
	require.NoError(t, err)
	msg := string(raw)
	assert.True(t, strings.HasPrefix(msg, "From: Bot <bot@example.com>\r\nTo: jane@ucla.edu\r\nSubject: Hello\r\n"))
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "plain body")
	assert.Contains(t, msg, "<p>html body</p>")
}

func TestAsyncDispatcher(t *testing.T) {
	log, hook := test.NewNullLogger()
	sender := &recordingSender{}
	d := NewAsyncDispatcher(sender, log, 0)

	require.NoError(t, d.Dispatch(context.Background(), EmailJob{To: "a@ucla.edu", Subject: "s"}))
	assert.ErrorIs(t, d.Dispatch(context.Background(), EmailJob{}), ErrNoRecipient)
	d.Wait()
	assert.Len(t, sender.sent, 1)
	assert.Empty(t, hook.AllEntries())

	sender.err = errors.New("smtp down")
	require.NoError(t, d.Dispatch(context.Background(), EmailJob{To: "a@ucla.edu", Subject: "s"}))
	d.Wait()
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "email delivery failed", hook.LastEntry().Message)
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}
func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func delivery(t *testing.T, ack amqp.Acknowledger, body any, redelivered bool) amqp.Delivery {
	t.Helper()
	b, ok := body.([]byte)
	if !ok {
		var err error
		b, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: b, Redelivered: redelivered}
}

func TestWorkerHandle(t *testing.T) {
	log, _ := test.NewNullLogger()
	sender := &recordingSender{}
	w := &Worker{Sender: sender, Logger: log}

	ack := &fakeAck{}
	w.Handle(context.Background(), delivery(t, ack, EmailJob{To: "a@ucla.edu", Subject: "s"}, false))
	assert.True(t, ack.acked)
	assert.Len(t, sender.sent, 1)

	ack = &fakeAck{}
	w.Handle(context.Background(), delivery(t, ack, []byte("{not json"), false))
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)

	sender.err = errors.New("down")
	ack = &fakeAck{}
	w.Handle(context.Background(), delivery(t, ack, EmailJob{To: "a@ucla.edu", Subject: "s"}, false))
	assert.True(t, ack.requeued)

	ack = &fakeAck{}
	w.Handle(context.Background(), delivery(t, ack, EmailJob{To: "a@ucla.edu", Subject: "s"}, true))
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
}

func TestWorkerRunStopsWhenChannelCloses(t *testing.T) {
	log, _ := test.NewNullLogger()
	sender := &recordingSender{}
	w := &Worker{Sender: sender, Logger: log}

	msgs := make(chan amqp.Delivery, 2)
	msgs <- delivery(t, &fakeAck{}, EmailJob{To: "a@ucla.edu", Subject: "1"}, false)
	msgs <- delivery(t, &fakeAck{}, EmailJob{To: "b@ucla.edu", Subject: "2"}, false)
	close(msgs)

	w.Run(context.Background(), msgs)
	assert.Len(t, sender.sent, 2)
}
