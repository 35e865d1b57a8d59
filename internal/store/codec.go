package store

import (
	"encoding/json"

	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/remote"
)

// encodeNode renders a node as its remote document. Unset optional fields
// are omitted entirely, never written as null placeholders, so later merge
// updates cannot clobber fields the caller did not touch.
func encodeNode(n *models.Node) (remote.Document, error) {
	raw, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	var doc remote.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// decodeNode turns a remote document back into a node. Timestamp fields are
// coerced into the canonical string form first; a record whose remaining
// shape still does not decode is salvaged field-by-field with safe defaults
// rather than rejected.
func decodeNode(doc remote.Document) (*models.Node, error) {
	sanitized := remote.Document{}
	for k, v := range doc {
		sanitized[k] = v
	}
	for _, k := range []string{"created_at", "updated_at", "completed_at"} {
		if v, ok := sanitized[k]; ok && v != nil {
			sanitized[k] = CoerceTimestamp(v)
		}
	}

	raw, err := json.Marshal(sanitized)
	if err != nil {
		return nil, err
	}
	var n models.Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return salvageNode(sanitized), nil
	}
	if n.ID == "" {
		return salvageNode(sanitized), nil
	}
	return &n, nil
}

// salvageNode extracts whatever well-typed fields a malformed record still
// has. Availability of the rest of the collection outranks fidelity of one
// bad record.
func salvageNode(doc remote.Document) *models.Node {
	n := &models.Node{
		ID:      stringField(doc, "id"),
		OwnerID: stringField(doc, "owner_id"),
		Title:   stringField(doc, "title"),
		Type:    models.NodeType(stringField(doc, "node_type")),
	}
	if n.Title == "" {
		n.Title = "Untitled"
	}
	if n.Type == "" {
		n.Type = models.DefaultNodeType
	}
	if v, ok := doc["created_at"].(string); ok {
		n.CreatedAt = v
	}
	if v, ok := doc["updated_at"].(string); ok {
		n.UpdatedAt = v
	}
	if tags, ok := doc["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				n.Tags = append(n.Tags, s)
			}
		}
	}
	if completed, ok := doc["completed"].(bool); ok {
		n.Completed = completed
	}
	return n
}

func stringField(doc remote.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}
