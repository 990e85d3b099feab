package id

import (
	"context"
	"strings"
	"testing"
)

func TestLogIDRoundTrip(t *testing.T) {
	ctx := WithLogID(context.Background(), "log-1")
	if got := LogIDFromContext(ctx); got != "log-1" {
		t.Fatalf("expected log-1, got %q", got)
	}
}

func TestEmptyIDsLeaveContextUntouched(t *testing.T) {
	base := context.Background()
	if WithLogID(base, "") != base {
		t.Fatal("expected empty log id to return the same context")
	}
	if WithCampaignID(base, "") != base {
		t.Fatal("expected empty campaign id to return the same context")
	}
	if got := CampaignIDFromContext(base); got != "" {
		t.Fatalf("expected empty campaign id, got %q", got)
	}
}

func TestGeneratorsProduceDistinctIDs(t *testing.T) {
	if NewLogID() == NewLogID() {
		t.Fatal("expected distinct log ids")
	}
	if NewCampaignID() == NewCampaignID() {
		t.Fatal("expected distinct campaign ids")
	}
	if batch := NewBatchID(); !strings.HasPrefix(batch, "batch-") {
		t.Fatalf("expected batch prefix, got %q", batch)
	}
}
