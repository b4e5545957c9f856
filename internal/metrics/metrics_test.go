package metrics

import (
	"sync"
	"testing"
)

func TestInMemoryCountsPerKindAndName(t *testing.T) {
	rec := NewInMemory()

	rec.RecordMessage("text")
	rec.RecordMessage("text")
	rec.RecordMessage("photo")
	rec.RecordCommand("start")
	rec.RecordCommand("help")
	rec.RecordCommand("start")

	msgs := rec.Messages()
	if msgs["text"] != 2 || msgs["photo"] != 1 {
		t.Fatalf("unexpected message counters: %v", msgs)
	}

	cmds := rec.Commands()
	if cmds["start"] != 2 || cmds["help"] != 1 {
		t.Fatalf("unexpected command counters: %v", cmds)
	}

	if got := rec.TotalMessages(); got != 3 {
		t.Fatalf("TotalMessages = %d, want 3", got)
	}
	if got := rec.TotalCommands(); got != 3 {
		t.Fatalf("TotalCommands = %d, want 3", got)
	}
}

func TestInMemoryIgnoresEmptyKeys(t *testing.T) {
	rec := NewInMemory()

	rec.RecordMessage("")
	rec.RecordCommand("")

	if len(rec.Messages()) != 0 || len(rec.Commands()) != 0 {
		t.Fatal("empty keys should not create counters")
	}
}

func TestInMemorySnapshotsAreCopies(t *testing.T) {
	rec := NewInMemory()
	rec.RecordMessage("text")

	snapshot := rec.Messages()
	snapshot["text"] = 100

	if got := rec.Messages()["text"]; got != 1 {
		t.Fatalf("mutating a snapshot leaked into the recorder: %d", got)
	}
}

func TestInMemoryConcurrentUse(t *testing.T) {
	rec := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec.RecordMessage("text")
				rec.RecordCommand("start")
			}
		}()
	}
	wg.Wait()

	if got := rec.Messages()["text"]; got != 800 {
		t.Fatalf("text counter = %d, want 800", got)
	}
	if got := rec.Commands()["start"]; got != 800 {
		t.Fatalf("start counter = %d, want 800", got)
	}
}

func TestInMemoryNilReceiverIsSafe(t *testing.T) {
	var rec *InMemory

	rec.RecordMessage("text")
	rec.RecordCommand("start")

	if rec.Messages() != nil || rec.Commands() != nil {
		t.Fatal("nil recorder should report nothing")
	}
	if rec.TotalMessages() != 0 || rec.TotalCommands() != 0 {
		t.Fatal("nil recorder totals should be zero")
	}
}
