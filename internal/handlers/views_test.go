package handlers

import (
	"net/http"
	"testing"

	"github.com/daygraph/daygraph/internal/models"
)

type unscheduledResponse struct {
	Date  string        `json:"date"`
	Nodes []models.Node `json:"nodes"`
	Total int           `json:"total"`
}

func TestUnscheduledView(t *testing.T) {
	t.Parallel()

	sessions := newSessions()
	nodes := nodeRouter(sessions)
	timeboxes := timeboxRouter(sessions, nil)
	router := viewRouter(sessions)

	work := createNode(t, nodes, map[string]any{"title": "Quarterly report", "tags": []string{"work"}})
	createNode(t, nodes, map[string]any{"title": "Buy groceries"})
	onGrid := createNode(t, nodes, map[string]any{"title": "Standup prep"})

	// Scheduling a task against a node removes it from the unscheduled set.
	status, env := do(t, timeboxes, request(t, "POST",
		"/timebox/"+testDate+"/slots/slot-0900/tasks",
		map[string]any{"title": onGrid.Title, "node_id": onGrid.ID}, testOwner))
	if status != http.StatusCreated {
		t.Fatalf("schedule: status = %d, message %q", status, env.Message)
	}

	status, env = do(t, router, request(t, "GET", "/views/unscheduled?date="+testDate, nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var data unscheduledResponse
	decodeData(t, env, &data)
	if data.Total != 2 {
		t.Fatalf("total = %d, want 2: %+v", data.Total, data.Nodes)
	}
	for _, n := range data.Nodes {
		if n.ID == onGrid.ID {
			t.Error("scheduled node listed as unscheduled")
		}
	}

	status, env = do(t, router, request(t, "GET",
		"/views/unscheduled?date="+testDate+"&visibility=work", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	decodeData(t, env, &data)
	if data.Total != 1 || data.Nodes[0].ID != work.ID {
		t.Errorf("work view = %+v", data.Nodes)
	}

	status, env = do(t, router, request(t, "GET",
		"/views/unscheduled?date="+testDate+"&q=groceries", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	decodeData(t, env, &data)
	if data.Total != 1 || data.Nodes[0].Title != "Buy groceries" {
		t.Errorf("query view = %+v", data.Nodes)
	}
}

func TestUnscheduledViewValidation(t *testing.T) {
	t.Parallel()

	router := viewRouter(newSessions())

	status, _ := do(t, router, request(t, "GET", "/views/unscheduled?date=bogus", nil, testOwner))
	if status != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", status)
	}
	status, _ = do(t, router, request(t, "GET",
		"/views/unscheduled?date="+testDate+"&visibility=team", nil, testOwner))
	if status != http.StatusBadRequest {
		t.Errorf("bad visibility status = %d, want 400", status)
	}
	status, _ = do(t, router, request(t, "GET",
		"/views/unscheduled?date="+testDate+"&node_type=epic", nil, testOwner))
	if status != http.StatusBadRequest {
		t.Errorf("bad node_type status = %d, want 400", status)
	}
}

func TestQuadrantView(t *testing.T) {
	t.Parallel()

	sessions := newSessions()
	nodes := nodeRouter(sessions)
	router := viewRouter(sessions)

	urgent := createNode(t, nodes, map[string]any{"title": "Fire", "urgency": 9, "importance": 9})
	createNode(t, nodes, map[string]any{"title": "Someday", "urgency": 2, "importance": 2})

	status, env := do(t, router, request(t, "GET", "/views/quadrant", nil, testOwner))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var data struct {
		Quadrants map[string][]models.Node `json:"quadrants"`
	}
	decodeData(t, env, &data)

	if got := data.Quadrants["do_first"]; len(got) != 1 || got[0].ID != urgent.ID {
		t.Errorf("do_first = %+v", got)
	}
	if got := data.Quadrants["eliminate"]; len(got) != 1 {
		t.Errorf("eliminate = %+v", got)
	}
}
