package consumer_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-messaging/internal/kafka/consumer"
)

func TestNewValidatesConfig(t *testing.T) {
	cases := map[string]consumer.Config{
		"no brokers": {GroupID: "g", Topic: "t"},
		"no group":   {Brokers: []string{"localhost:9092"}, Topic: "t"},
		"no topic":   {Brokers: []string{"localhost:9092"}, GroupID: "g"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := consumer.New(cfg, zerolog.Nop()); err == nil {
				t.Fatalf("expected configuration error")
			}
		})
	}
}

func TestCommitRequiresSession(t *testing.T) {
	var c consumer.Consumer
	if err := c.Commit(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil record")
	}
	if err := c.Commit(context.Background(), &consumer.Record{Topic: "t"}); err == nil {
		t.Fatalf("expected error for record without session")
	}
}
