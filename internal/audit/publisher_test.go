package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/kevanbtc/cleargate/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error {
	return errors.New("store unavailable")
}

func (failingStore) ListBySubject(context.Context, string) ([]Event, error) {
	return nil, errors.New("store unavailable")
}

type PublisherSuite struct {
	suite.Suite
	ctx       context.Context
	store     *InMemoryStore
	publisher *Publisher
}

func (s *PublisherSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()

	var err error
	s.publisher, err = NewPublisher(s.store)
	s.Require().NoError(err)
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) TestEmitEnriches() {
	ctx := requestcontext.WithRequestID(s.ctx, "req-42")
	s.Require().NoError(s.publisher.Emit(ctx, Event{
		Action:  EventClaimApplied,
		Subject: "0xabc",
	}))

	events := s.store.All()
	s.Require().Len(events, 1)

	e := events[0]
	s.NotEmpty(e.ID)
	s.False(e.Timestamp.IsZero())
	s.Equal(CategoryOperations, e.Category)
	s.Equal("req-42", e.RequestID)
}

func (s *PublisherSuite) TestEmitRequiresAction() {
	s.Require().Error(s.publisher.Emit(s.ctx, Event{Subject: "0xabc"}))
	s.Empty(s.store.All())
}

func (s *PublisherSuite) TestEmitFailsClosed() {
	p, err := NewPublisher(failingStore{})
	s.Require().NoError(err)

	s.Require().Error(p.Emit(s.ctx, Event{Action: EventPolicyDenied}))
}

func (s *PublisherSuite) TestListBySubject() {
	s.Require().NoError(s.publisher.Emit(s.ctx, Event{Action: EventTransferPrepared, Subject: "a"}))
	s.Require().NoError(s.publisher.Emit(s.ctx, Event{Action: EventTransferReleased, Subject: "a"}))
	s.Require().NoError(s.publisher.Emit(s.ctx, Event{Action: EventTransferPrepared, Subject: "b"}))

	events, err := s.publisher.List(s.ctx, "a")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(EventTransferPrepared, events[0].Action)
	s.Equal(EventTransferReleased, events[1].Action)
}
