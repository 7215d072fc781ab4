package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/cleanup/pkg/channels/kafka"
	"github.com/stretchr/testify/require"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	t.Parallel()

	for _, brokers := range [][]string{nil, {""}} {
		_, _, err := kafka.CreateChannel(watermill.NopLogger{}, brokers, "cleanup")
		require.ErrorIs(t, err, kafka.ErrNoBrokers)
	}
}
