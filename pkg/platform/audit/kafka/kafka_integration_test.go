//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "fecguard/pkg/domain"
	audit "fecguard/pkg/platform/audit"
	auditkafka "fecguard/pkg/platform/audit/kafka"
	"fecguard/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	broker string
}

func TestKafkaSinkSuite(t *testing.T) {
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *KafkaSinkSuite) consume(topic string, want int) []*kgo.Record {
	s.T().Helper()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	deadline := time.Now().Add(15 * time.Second)
	var records []*kgo.Record
	for len(records) < want && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		fetches := consumer.PollFetches(ctx)
		cancel()
		fetches.EachRecord(func(record *kgo.Record) {
			records = append(records, record)
		})
	}
	s.Require().Len(records, want)
	return records
}

func (s *KafkaSinkSuite) TestAppendDeliversEvent() {
	ctx := context.Background()

	sink, err := auditkafka.NewSink(ctx, []string{s.broker}, "fecguard.audit.append")
	s.Require().NoError(err)
	defer sink.Close()

	event := audit.Event{
		Category:        audit.CategoryCompliance,
		Timestamp:       time.Now().UTC(),
		DonorID:         id.DonorID("donor-1"),
		CampaignID:      id.CampaignID("campaign-1"),
		Action:          "contribution_recorded",
		Amount:          decimal.NewFromInt(100),
		TransactionCode: "TXN-TESTTEST-0001",
		Decision:        "allowed",
	}
	s.Require().NoError(sink.Append(ctx, event))

	records := s.consume("fecguard.audit.append", 1)
	s.Equal("donor-1", string(records[0].Key))

	var got audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event.Action, got.Action)
	s.Equal(event.TransactionCode, got.TransactionCode)
	s.True(event.Amount.Equal(got.Amount))
}

func (s *KafkaSinkSuite) TestDonorKeyKeepsTrailOrdered() {
	ctx := context.Background()

	sink, err := auditkafka.NewSink(ctx, []string{s.broker}, "fecguard.audit.ordered")
	s.Require().NoError(err)
	defer sink.Close()

	for i := 0; i < 5; i++ {
		event := audit.Event{
			Category:   audit.CategoryCompliance,
			Timestamp:  time.Now().UTC(),
			DonorID:    id.DonorID("donor-ordered"),
			CampaignID: id.CampaignID("campaign-1"),
			Action:     "limit_check_denied",
			Amount:     decimal.NewFromInt(int64(i + 1)),
		}
		s.Require().NoError(sink.Append(ctx, event))
	}

	records := s.consume("fecguard.audit.ordered", 5)
	for i, record := range records {
		var got audit.Event
		s.Require().NoError(json.Unmarshal(record.Value, &got))
		s.True(got.Amount.Equal(decimal.NewFromInt(int64(i + 1))))
	}
}

func (s *KafkaSinkSuite) TestNewSinkCreatesTopicIdempotently() {
	ctx := context.Background()

	first, err := auditkafka.NewSink(ctx, []string{s.broker}, "fecguard.audit.idem")
	s.Require().NoError(err)
	first.Close()

	second, err := auditkafka.NewSink(ctx, []string{s.broker}, "fecguard.audit.idem")
	s.Require().NoError(err)
	second.Close()
}

func TestNewSinkUnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := auditkafka.NewSink(ctx, []string{"127.0.0.1:1"}, "fecguard.audit.down")
	require.Error(t, err)
}
