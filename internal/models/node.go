package models

// NodeType classifies a node for presentation and filtering.
// It has no effect on structural invariants.
type NodeType string

const (
	NodeTypeTask     NodeType = "task"
	NodeTypeProject  NodeType = "project"
	NodeTypeIdea     NodeType = "idea"
	NodeTypeGoal     NodeType = "goal"
	NodeTypeThought  NodeType = "thought"
	NodeTypeCategory NodeType = "category"
)

// DefaultNodeType is assigned when a node is created without an explicit type.
const DefaultNodeType = NodeTypeTask

// DefaultTag is the single tag assigned to nodes created without tags.
const DefaultTag = "misc"

// UpdateKind classifies an annotation appended to a node.
type UpdateKind string

const (
	UpdateKindNote     UpdateKind = "note"
	UpdateKindStatus   UpdateKind = "status"
	UpdateKindProgress UpdateKind = "progress"
)

// NodeUpdate is an append-only annotation on a node. Annotations are
// independently deletable by id.
type NodeUpdate struct {
	ID        string     `json:"id"`
	Kind      UpdateKind `json:"kind"`
	Text      string     `json:"text"`
	Author    string     `json:"author,omitempty"`
	CreatedAt string     `json:"created_at"`
}

// Node is the core record of the productivity graph: a task, project, idea,
// goal, thought or category. Parent/child links are weak references by id;
// the store enforces that they form a forest.
//
// Timestamps are canonical RFC3339 strings. The remote collaborator may hand
// back other representations; the store coerces them on load.
type Node struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Type        NodeType `json:"node_type"`
	Tags        []string `json:"tags"`

	// Urgency and Importance are 1-10 scores used to derive a priority
	// quadrant. Absent means unscored.
	Urgency    *int    `json:"urgency,omitempty"`
	Importance *int    `json:"importance,omitempty"`
	DueDate    *string `json:"due_date,omitempty"`

	ParentID *string  `json:"parent_id,omitempty"`
	ChildIDs []string `json:"child_ids,omitempty"`

	Completed   bool    `json:"completed"`
	CompletedAt *string `json:"completed_at,omitempty"`

	Updates []NodeUpdate `json:"updates,omitempty"`

	TaskType   TaskType    `json:"task_type,omitempty"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`

	CalendarEventID *string `json:"calendar_event_id,omitempty"`
	CalendarID      *string `json:"calendar_id,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// HasChild reports whether id appears in the node's child list.
func (n *Node) HasChild(id string) bool {
	for _, c := range n.ChildIDs {
		if c == id {
			return true
		}
	}
	return false
}

// RemoveChild drops id from the node's child list. Removing an id that is
// not present is a no-op.
func (n *Node) RemoveChild(id string) {
	out := n.ChildIDs[:0]
	for _, c := range n.ChildIDs {
		if c != id {
			out = append(out, c)
		}
	}
	n.ChildIDs = out
	if len(n.ChildIDs) == 0 {
		n.ChildIDs = nil
	}
}

// HasTag reports whether the node carries the given tag.
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the node. The store hands the copy to the
// optimistic mutation engine as the rollback snapshot.
func (n *Node) Clone() *Node {
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	if n.ChildIDs != nil {
		c.ChildIDs = append([]string(nil), n.ChildIDs...)
	}
	if n.Updates != nil {
		c.Updates = append([]NodeUpdate(nil), n.Updates...)
	}
	c.Urgency = clonePtr(n.Urgency)
	c.Importance = clonePtr(n.Importance)
	c.DueDate = clonePtr(n.DueDate)
	c.ParentID = clonePtr(n.ParentID)
	c.CompletedAt = clonePtr(n.CompletedAt)
	c.CalendarEventID = clonePtr(n.CalendarEventID)
	c.CalendarID = clonePtr(n.CalendarID)
	if n.Recurrence != nil {
		rc := *n.Recurrence
		rc.DaysOfWeek = append([]int(nil), n.Recurrence.DaysOfWeek...)
		rc.DayOfMonth = clonePtr(n.Recurrence.DayOfMonth)
		rc.EndDate = clonePtr(n.Recurrence.EndDate)
		c.Recurrence = &rc
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
