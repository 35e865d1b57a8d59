package models

// NodePatch is a partial update over a Node. Only non-nil fields are
// applied and only non-nil fields are sent to the remote collaborator, so a
// patch can never clobber unrelated fields with null placeholders.
//
// Clearable optional fields get an explicit Clear flag rather than
// overloading nil, which already means "leave untouched".
type NodePatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Type        *NodeType `json:"node_type,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`

	Urgency    *int    `json:"urgency,omitempty"`
	Importance *int    `json:"importance,omitempty"`
	DueDate    *string `json:"due_date,omitempty"`

	Completed   *bool   `json:"completed,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`

	TaskType   *TaskType   `json:"task_type,omitempty"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`

	Updates *[]NodeUpdate `json:"updates,omitempty"`

	ClearDueDate     bool `json:"clear_due_date,omitempty"`
	ClearCompletedAt bool `json:"clear_completed_at,omitempty"`
	ClearRecurrence  bool `json:"clear_recurrence,omitempty"`
}

// IsZero reports whether the patch sets nothing at all.
func (p *NodePatch) IsZero() bool {
	return len(p.Fields()) == 0
}

// Fields returns the merge document for the remote collaborator: exactly the
// explicitly-set fields, with nil values standing for field deletion.
func (p *NodePatch) Fields() map[string]any {
	f := map[string]any{}
	if p.Title != nil {
		f["title"] = *p.Title
	}
	if p.Description != nil {
		f["description"] = *p.Description
	}
	if p.Type != nil {
		f["node_type"] = string(*p.Type)
	}
	if p.Tags != nil {
		f["tags"] = *p.Tags
	}
	if p.Urgency != nil {
		f["urgency"] = *p.Urgency
	}
	if p.Importance != nil {
		f["importance"] = *p.Importance
	}
	if p.DueDate != nil {
		f["due_date"] = *p.DueDate
	}
	if p.Completed != nil {
		f["completed"] = *p.Completed
	}
	if p.CompletedAt != nil {
		f["completed_at"] = *p.CompletedAt
	}
	if p.TaskType != nil {
		f["task_type"] = string(*p.TaskType)
	}
	if p.Recurrence != nil {
		f["recurrence"] = p.Recurrence
	}
	if p.Updates != nil {
		f["updates"] = *p.Updates
	}
	if p.ClearDueDate {
		f["due_date"] = nil
	}
	if p.ClearCompletedAt {
		f["completed_at"] = nil
	}
	if p.ClearRecurrence {
		f["recurrence"] = nil
	}
	return f
}

// Apply merges the patch into the node in place.
func (p *NodePatch) Apply(n *Node) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Tags != nil {
		n.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Urgency != nil {
		n.Urgency = clonePtr(p.Urgency)
	}
	if p.Importance != nil {
		n.Importance = clonePtr(p.Importance)
	}
	if p.DueDate != nil {
		n.DueDate = clonePtr(p.DueDate)
	}
	if p.Completed != nil {
		n.Completed = *p.Completed
	}
	if p.CompletedAt != nil {
		n.CompletedAt = clonePtr(p.CompletedAt)
	}
	if p.TaskType != nil {
		n.TaskType = *p.TaskType
	}
	if p.Recurrence != nil {
		r := *p.Recurrence
		n.Recurrence = &r
	}
	if p.Updates != nil {
		n.Updates = append([]NodeUpdate(nil), (*p.Updates)...)
	}
	if p.ClearDueDate {
		n.DueDate = nil
	}
	if p.ClearCompletedAt {
		n.CompletedAt = nil
	}
	if p.ClearRecurrence {
		n.Recurrence = nil
	}
}
