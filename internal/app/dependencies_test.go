package app

import (
	"context"
	"reflect"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSplitBrokers(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: []string{}},
		{raw: "localhost:9092", want: []string{"localhost:9092"}},
		{raw: "a:9092,b:9092", want: []string{"a:9092", "b:9092"}},
		{raw: " a:9092 , b:9092 ", want: []string{"a:9092", "b:9092"}},
		{raw: ",,a:9092,", want: []string{"a:9092"}},
		{raw: " , ", want: []string{}},
	}

	for _, tt := range tests {
		if got := splitBrokers(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitBrokers(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNewDependenciesInMemory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, log.WithField("component", "test"))
	if err != nil {
		t.Fatalf("NewDependencies failed: %v", err)
	}
	defer deps.Close()

	if deps.Orders == nil {
		t.Error("Orders repository should not be nil")
	}
	if deps.Products == nil {
		t.Error("Products repository should not be nil")
	}
	if deps.Outbox == nil {
		t.Error("Outbox repository should not be nil")
	}
	if deps.Idempotency == nil {
		t.Error("Idempotency repository should not be nil")
	}
	if deps.Store != nil {
		t.Error("Store should be nil without a DSN")
	}
	if deps.Producer != nil {
		t.Error("Producer should be nil without brokers")
	}
}

func TestNewDependenciesNilLogger(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDependencies failed: %v", err)
	}
	defer deps.Close()

	if deps.Logger == nil {
		t.Error("Logger should be defaulted when nil is passed")
	}
}

func TestNewDependenciesUnreachableKafkaIsNotFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KafkaBrokers = "localhost:1"

	deps, err := NewDependencies(context.Background(), cfg, log.WithField("component", "test"))
	if err != nil {
		t.Fatalf("NewDependencies should not fail on unreachable kafka: %v", err)
	}
	defer deps.Close()

	if deps.Producer != nil {
		t.Error("Producer should be nil when brokers are unreachable")
	}
}

func TestDependenciesCloseIsIdempotent(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDependencies failed: %v", err)
	}

	deps.Close()
	deps.Close()
}
