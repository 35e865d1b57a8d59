package store

import (
	"testing"

	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/remote"
)

func TestDecodeNodeCoercesTimestamps(t *testing.T) {
	t.Parallel()

	doc := remote.Document{
		"id":         "n1",
		"title":      "wrapped",
		"node_type":  "task",
		"created_at": map[string]any{"seconds": float64(1767348000), "nanoseconds": float64(0)},
		"updated_at": "2026-01-02T10:00:00Z",
	}

	n, err := decodeNode(doc)
	if err != nil {
		t.Fatalf("decodeNode() error = %v", err)
	}
	if n.CreatedAt != "2026-01-02T10:00:00Z" {
		t.Errorf("CreatedAt = %q, wrapper was not coerced", n.CreatedAt)
	}
	if n.UpdatedAt != "2026-01-02T10:00:00Z" {
		t.Errorf("UpdatedAt = %q", n.UpdatedAt)
	}
}

func TestDecodeNodePreservesUnknownTimestampShape(t *testing.T) {
	t.Parallel()

	doc := remote.Document{
		"id":         "n2",
		"title":      "odd",
		"node_type":  "task",
		"created_at": map[string]any{"weird": "shape"},
	}

	n, err := decodeNode(doc)
	if err != nil {
		t.Fatalf("decodeNode() error = %v", err)
	}
	if n.CreatedAt != `{"weird":"shape"}` {
		t.Errorf("CreatedAt = %q, want preserved JSON text", n.CreatedAt)
	}
}

func TestDecodeNodeSalvagesMalformedRecord(t *testing.T) {
	t.Parallel()

	doc := remote.Document{
		"id":        "n3",
		"title":     "salvage me",
		"node_type": "bogus-but-string",
		"tags":      []any{"work", 7, "home"},
		"urgency":   "not a number",
		"completed": true,
	}

	n, err := decodeNode(doc)
	if err != nil {
		t.Fatalf("decodeNode() error = %v", err)
	}
	if n.ID != "n3" {
		t.Errorf("ID = %q, want n3", n.ID)
	}
	if n.Title != "salvage me" {
		t.Errorf("Title = %q", n.Title)
	}
	if len(n.Tags) != 2 {
		t.Errorf("Tags = %v, want the two string tags", n.Tags)
	}
	if !n.Completed {
		t.Error("Completed = false, want true")
	}
}

func TestEncodeNodeOmitsUnsetFields(t *testing.T) {
	t.Parallel()

	doc, err := encodeNode(&models.Node{ID: "n4", Title: "bare", Type: models.NodeTypeTask})
	if err != nil {
		t.Fatalf("encodeNode() error = %v", err)
	}
	for _, key := range []string{"due_date", "parent_id", "completed_at", "recurrence"} {
		if v, ok := doc[key]; ok {
			t.Errorf("doc[%q] = %v, want field omitted", key, v)
		}
	}
}
