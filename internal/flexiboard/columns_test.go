package flexiboard

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/flexiboard/internal/models"
)

func formulaBoard() *models.Board {
	b := testBoard()
	b.Columns = append(b.Columns,
		models.Column{ID: "price", Title: "Price", Type: models.ColumnNumber},
		models.Column{ID: "qty", Title: "Qty", Type: models.ColumnNumber},
	)
	return b
}

func TestFormulaEvaluation(t *testing.T) {
	e := testEngine(formulaBoard())
	item := e.AddItem(NewItem{Data: map[string]any{"name": "Widget", "price": 10.0, "qty": 2.0}})

	tests := []struct {
		name       string
		expression string
		resultType string
		want       any
	}{
		{"arithmetic by title", "{Price} * {Qty}", "number", 20.0},
		{"arithmetic by id", "{price} + {qty}", "", 12.0},
		{"missing reference is zero", "{Nope} + 1", "number", 1.0},
		{"sum builtin", "SUM({Price}, {Qty}, 3)", "number", 15.0},
		{"if builtin", `IF({Qty} > 1, "many", "few")`, "text", "many"},
		{"concatenate", `CONCATENATE(UPPER({Name}), "-", {Qty})`, "text", "WIDGET-2"},
		{"len", "LEN({Name})", "number", 6.0},
		{"round", "ROUND({Price} / 3, 2)", "number", 3.33},
		{"boolean cast", "{Qty} > 5", "boolean", false},
		{"today", "DATEADD(TODAY(), 1)", "date", "2026-03-11T00:00:00Z"},
		{"division by zero", "{Price} / 0", "number", FormulaError},
		{"syntax error", "{Price} *", "number", FormulaError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := &models.Column{
				ID:      "f",
				Type:    models.ColumnFormula,
				Formula: &models.Formula{Expression: tt.expression, ResultType: tt.resultType},
			}
			got := e.Evaluate(col, item)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormulaProgramCacheIsClockFree(t *testing.T) {
	b := formulaBoard()
	item := &models.Item{ID: "i", Data: map[string]any{}}
	b.Items = []*models.Item{item}
	col := &models.Column{ID: "f", Type: models.ColumnFormula, Formula: &models.Formula{Expression: "TODAY()", ResultType: "date"}}

	first := testEngine(b).Evaluate(col, item)
	later := New(b, WithClock(func() time.Time { return testNow.AddDate(0, 0, 5) })).Evaluate(col, item)
	if first == later {
		t.Errorf("cached program reused a stale clock: %v", later)
	}
}

func connectedBoards() (*models.Board, *models.Board) {
	src := &models.Board{
		ID: "clients",
		Items: []*models.Item{
			{ID: "c1", Data: map[string]any{"code": "ACME", "company": "Acme Corp", "tier": "gold"}},
			{ID: "c2", Data: map[string]any{"code": "INIT", "company": "Initech"}},
		},
	}
	b := testBoard()
	b.Columns = append(b.Columns,
		models.Column{ID: "client", Title: "Client", Type: models.ColumnText},
		models.Column{ID: "client_name", Title: "Client Name", Type: models.ColumnLookup,
			Lookup: &models.Lookup{SourceBoard: "clients", SourceColumn: "code", LinkColumn: "client", DisplayColumn: "company"}},
		models.Column{ID: "links", Title: "Links", Type: models.ColumnConnectBoards,
			ConnectBoards: &models.ConnectBoards{LinkedBoard: "clients", LinkType: models.LinkManyToMany, MirrorColumns: []string{"tier"}}},
		models.Column{ID: "owner", Title: "Owner", Type: models.ColumnConnectBoards,
			ConnectBoards: &models.ConnectBoards{LinkedBoard: "clients", LinkType: models.LinkOneToMany}},
		models.Column{ID: "tiers", Title: "Tiers", Type: models.ColumnMirror,
			ConnectBoards: &models.ConnectBoards{LinkedBoard: "clients", MirrorColumns: []string{"tier"}}},
	)
	return b, src
}

func TestLookupColumn(t *testing.T) {
	b, src := connectedBoards()
	e := testEngine(b, WithConnectedBoard(src))
	item := e.AddItem(NewItem{Data: map[string]any{"client": "ACME"}})
	col := b.Column("client_name")

	if got := e.Evaluate(col, item); got != "Acme Corp" {
		t.Errorf("lookup = %v, want Acme Corp", got)
	}
	item.Data["client"] = "c2"
	if got := e.Evaluate(col, item); got != "Initech" {
		t.Errorf("lookup by id = %v, want Initech", got)
	}

	opts := e.LookupOptions(col)
	want := []LookupOption{{Label: "Acme Corp", Value: "ACME"}, {Label: "Initech", Value: "INIT"}}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options (-want +got):\n%s", diff)
	}

	orphan := testEngine(b)
	if got := orphan.Evaluate(col, item); got != FormulaError {
		t.Errorf("missing source board = %v, want %s", got, FormulaError)
	}
}

func TestConnectBoards(t *testing.T) {
	b, src := connectedBoards()
	e := testEngine(b, WithConnectedBoard(src))
	item := e.AddItem(NewItem{Data: map[string]any{}})

	for _, target := range []string{"c1", "c2"} {
		if ok, err := e.AddConnection("links", item.ID, target); err != nil || !ok {
			t.Fatalf("AddConnection(%s) = %v, %v", target, ok, err)
		}
	}
	if ok, _ := e.AddConnection("links", item.ID, "c1"); ok {
		t.Error("duplicate connection accepted")
	}
	if got := e.ConnectedItems(b.Column("links"), item); len(got) != 2 {
		t.Errorf("connected = %d, want 2", len(got))
	}

	e.AddConnection("owner", item.ID, "c1")
	e.AddConnection("owner", item.ID, "c2")
	if diff := cmp.Diff([]any{"c2"}, item.Data["owner"]); diff != "" {
		t.Errorf("one-to-many should replace (-want +got):\n%s", diff)
	}

	item.Data["tiers"] = item.Data["links"]
	mirrored := e.MirroredValues(b.Column("tiers"), item)
	if diff := cmp.Diff(map[string][]any{"tier": {"gold"}}, mirrored); diff != "" {
		t.Errorf("mirror (-want +got):\n%s", diff)
	}

	if ok, _ := e.RemoveConnection("owner", item.ID, "c2"); !ok {
		t.Error("RemoveConnection returned false")
	}
	if _, ok := item.Data["owner"]; ok {
		t.Error("emptied connection cell should be cleared")
	}
}

func TestProgressColumn(t *testing.T) {
	e := testEngine(testBoard())
	parent := e.AddItem(NewItem{Data: map[string]any{"progress": 140.0}})
	manual := &models.Column{ID: "progress", Type: models.ColumnProgress}
	if got := e.Progress(manual, parent); got != 100 {
		t.Errorf("manual progress = %v, want clamped 100", got)
	}

	auto := &models.Column{ID: "progress", Type: models.ColumnProgress, Settings: &models.ColumnSettings{AutoCalculate: true}}
	if got := e.Progress(auto, parent); got != 0 {
		t.Errorf("no sub-items = %v, want 0", got)
	}
	e.AddItem(NewItem{ParentID: parent.ID, Status: "Done"})
	e.AddItem(NewItem{ParentID: parent.ID, Status: "Working"})
	e.AddItem(NewItem{ParentID: parent.ID, Status: "Completed"})
	if got := e.Progress(auto, parent); got != 67 {
		t.Errorf("auto progress = %v, want 67", got)
	}
}

func TestProgressCountsStatusCells(t *testing.T) {
	e := testEngine(testBoard())
	parent := e.AddItem(NewItem{Data: map[string]any{"name": "Launch"}})
	e.AddItem(NewItem{ParentID: parent.ID, Data: map[string]any{"status": "done"}})
	e.AddItem(NewItem{ParentID: parent.ID, Data: map[string]any{"status": "todo"}})

	auto := &models.Column{ID: "progress", Type: models.ColumnProgress, Settings: &models.ColumnSettings{AutoCalculate: true}}
	if got := e.Progress(auto, parent); got != 50 {
		t.Errorf("auto progress = %v, want 50", got)
	}
	if s := e.Statistics(); s.CompletedItems != 1 {
		t.Errorf("completed = %d, want 1", s.CompletedItems)
	}
}

func TestTimelineColumn(t *testing.T) {
	e := testEngine(testBoard())
	col := &models.Column{ID: "span", Type: models.ColumnTimeline}
	item := e.AddItem(NewItem{Data: map[string]any{"span": map[string]any{
		"start": "2026-03-01T12:00:00Z",
		"end":   "2026-03-21T12:00:00Z",
	}}})
	tv := e.Timeline(col, item)
	if tv.Duration != 20*24*time.Hour {
		t.Errorf("duration = %v", tv.Duration)
	}
	if tv.Progress != 45 {
		t.Errorf("progress = %v, want 45", tv.Progress)
	}
	if empty := e.Timeline(col, &models.Item{Data: map[string]any{}}); empty.Start != nil || empty.Progress != 0 {
		t.Errorf("empty timeline = %+v", empty)
	}
}
