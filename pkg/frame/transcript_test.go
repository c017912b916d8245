package frame_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/fastbot-dev/fastbot/pkg/frame"
)

func TestTranscriptSeedAndAppend(t *testing.T) {
	tr := frame.NewTranscript(frame.NewSystemMessage("be brief"))

	tr.Append(frame.NewUserMessage("hello"))
	tr.Append(frame.NewAssistantMessage("hi there"))

	msgs := tr.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != frame.RoleSystem || msgs[0].Content != "be brief" {
		t.Errorf("unexpected seed message: %+v", msgs[0])
	}
	if msgs[1].Role != frame.RoleUser {
		t.Errorf("expected user role, got %s", msgs[1].Role)
	}
	if msgs[2].Role != frame.RoleAssistant {
		t.Errorf("expected assistant role, got %s", msgs[2].Role)
	}
}

func TestTranscriptSnapshotIsolation(t *testing.T) {
	tr := frame.NewTranscript()
	tr.Append(frame.NewUserMessage("one"))

	snap := tr.Messages()
	tr.Append(frame.NewUserMessage("two"))

	if len(snap) != 1 {
		t.Errorf("snapshot grew after append: %d", len(snap))
	}
	if tr.Len() != 2 {
		t.Errorf("expected transcript length 2, got %d", tr.Len())
	}

	// Mutating a snapshot must not leak back.
	snap[0].Content = "mutated"
	if tr.Messages()[0].Content != "one" {
		t.Error("snapshot mutation leaked into transcript")
	}
}

func TestTranscriptConcurrentAppend(t *testing.T) {
	tr := frame.NewTranscript()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Append(frame.NewUserMessage(fmt.Sprintf("w%d-%d", n, j)))
			}
		}(i)
	}
	wg.Wait()

	if tr.Len() != 1000 {
		t.Errorf("expected 1000 messages, got %d", tr.Len())
	}
}
