// Package kafka provides the Kafka-backed event channel.
package kafka

import (
	"errors"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/nodeflow/pkg/events"
)

var ErrNoBrokers = errors.New("no Kafka brokers configured")

// PartitionKey keys a message by its event key, the execution id, so that
// the events of one execution keep their order.
func PartitionKey(_ string, msg *message.Message) (string, error) {
	if key := msg.Metadata.Get(events.EventMetadataKey); key != "" {
		return key, nil
	}

	return msg.UUID, nil
}

func brokerList(brokers []string) []string {
	list := make([]string, 0, len(brokers))

	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			list = append(list, broker)
		}
	}

	return list
}

// CreateChannel creates a Kafka publisher and a subscriber in the consumer
// group "cg-<serviceName>". Workers sharing a service name split the
// partitions between them.
func CreateChannel(logger watermill.LoggerAdapter, brokers []string, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers = brokerList(brokers)
	if len(brokers) == 0 {
		return nil, nil, ErrNoBrokers
	}

	marshaler := kafka.NewWithPartitioningMarshaler(PartitionKey)

	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           marshaler,
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         "cg-" + serviceName,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	saramaPublisherConfig := kafka.DefaultSaramaSyncPublisherConfig()
	saramaPublisherConfig.Producer.RequiredAcks = sarama.WaitForAll

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             marshaler,
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		_ = subscriber.Close()

		return nil, nil, err
	}

	return publisher, subscriber, nil
}
