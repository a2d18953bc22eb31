package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artpar/dinogen/adapters/clock"
	"github.com/artpar/dinogen/adapters/idgen"
	"github.com/artpar/dinogen/adapters/memory"
	"github.com/artpar/dinogen/app"
	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/field"
	"github.com/artpar/dinogen/domain/schemadoc"
	"github.com/artpar/dinogen/domain/validation"
	"github.com/artpar/dinogen/ports"
	"github.com/rs/zerolog"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

var testTypes = []datatype.DataType{
	{Value: "string", Type: "string"},
	{Value: "email", Type: "string", Format: "email"},
	{Value: "integer", Type: "integer"},
	{Value: "object", Type: "object"},
	{Value: "array", Type: "array"},
	{Value: "autoIncrement", Type: "integer"},
}

// fakeGenerator answers each call with the next queued response. A call with
// a gate waits for it to close first.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []schemadoc.Request
	gates []chan struct{}
	resps []json.RawMessage
	err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, req schemadoc.Request) (json.RawMessage, error) {
	g.mu.Lock()
	n := len(g.calls)
	g.calls = append(g.calls, req)
	var gate chan struct{}
	if n < len(g.gates) {
		gate = g.gates[n]
	}
	resp := json.RawMessage(`[]`)
	if n < len(g.resps) {
		resp = g.resps[n]
	}
	err := g.err
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (g *fakeGenerator) Calls() []schemadoc.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]schemadoc.Request(nil), g.calls...)
}

type testEnv struct {
	svc     *app.SessionService
	catalog *memory.CatalogSource
	gen     *fakeGenerator
	store   *memory.SubmissionStore
}

func newTestEnv(cfg app.SessionConfig) testEnv {
	env := testEnv{
		catalog: memory.NewCatalogSource(testTypes),
		gen:     &fakeGenerator{},
		store:   memory.NewSubmissionStore(),
	}
	env.svc = app.NewSessionService(app.SessionDeps{
		Catalog:   env.catalog,
		Generator: env.gen,
		Store:     env.store,
		Clock:     clock.NewFake(baseTime, time.Second),
		IDGen:     idgen.NewSequential("s"),
		FieldIDs:  idgen.NewSequential("f"),
		Logger:    zerolog.Nop(),
	}, cfg)
	return env
}

func newSession(t *testing.T, env testEnv) *app.Session {
	t.Helper()
	sess, err := env.svc.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sess
}

// fillValid builds: name:string, tags:array<string>.
func fillValid(t *testing.T, sess *app.Session) {
	t.Helper()
	if err := sess.SetMeta(app.Meta{Title: "People", Description: "Fake people", NumSamples: 2}); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	name, _ := sess.AddField("")
	tags, _ := sess.AddField("")
	tag, err := sess.AddItems(tags)
	if err != nil {
		t.Fatalf("AddItems: %v", err)
	}
	for _, cmd := range []field.Command{
		field.UpdateField{ID: name, Key: field.KeyTitle, Value: "name"},
		field.UpdateField{ID: name, Key: field.KeyDataType, Value: "string"},
		field.UpdateField{ID: tags, Key: field.KeyTitle, Value: "tags"},
		field.UpdateField{ID: tags, Key: field.KeyDataType, Value: "array"},
		field.UpdateField{ID: tag, Key: field.KeyTitle, Value: "tag"},
		field.UpdateField{ID: tag, Key: field.KeyDataType, Value: "string"},
	} {
		if _, err := sess.Apply(cmd); err != nil {
			t.Fatalf("Apply(%T): %v", cmd, err)
		}
	}
}

func TestSession_AddFieldAndNested(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)

	root, err := sess.AddField("")
	if err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if root != "f1" {
		t.Errorf("id = %s, want f1", root)
	}
	child, err := sess.AddField(root)
	if err != nil {
		t.Fatalf("nested AddField: %v", err)
	}

	fields := sess.Fields()
	if len(fields) != 1 || len(fields[0].Properties) != 1 || fields[0].Properties[0].ID != child {
		t.Errorf("fields = %+v", fields)
	}

	if _, err := sess.AddField("missing"); !errors.Is(err, field.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSession_RejectedCommandKeepsTree(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)
	id, _ := sess.AddField("")

	if _, err := sess.Apply(field.UpdateField{ID: id, Key: field.KeyTitle, Value: 42}); !errors.Is(err, field.ErrValueType) {
		t.Errorf("err = %v, want ErrValueType", err)
	}
	if got := sess.Fields()[0].KeyTitle; got != "" {
		t.Errorf("KeyTitle = %q, want unchanged", got)
	}
}

func TestSession_Reorder(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)
	a, _ := sess.AddField("")
	b, _ := sess.AddField("")
	c, _ := sess.AddField("")

	fields, err := sess.Reorder([]string{c, a, b})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if fields[0].ID != c || fields[1].ID != a || fields[2].ID != b {
		t.Errorf("order = %s %s %s", fields[0].ID, fields[1].ID, fields[2].ID)
	}

	for _, ids := range [][]string{{a, b}, {a, a, b}, {a, b, "zzz"}} {
		if _, err := sess.Reorder(ids); !errors.Is(err, app.ErrInvalidOrder) {
			t.Errorf("Reorder(%v) err = %v, want ErrInvalidOrder", ids, err)
		}
	}
}

func TestSession_SetMeta(t *testing.T) {
	env := newTestEnv(app.SessionConfig{MaxSamples: 10})
	sess := newSession(t, env)

	if got := sess.Snapshot().Meta.NumSamples; got != 3 {
		t.Errorf("default NumSamples = %d, want 3", got)
	}
	if err := sess.SetMeta(app.Meta{Title: "T", NumSamples: 11}); !errors.Is(err, app.ErrInvalidSamples) {
		t.Errorf("err = %v, want ErrInvalidSamples", err)
	}
	if err := sess.SetMeta(app.Meta{Title: "T", NumSamples: -1}); !errors.Is(err, app.ErrInvalidSamples) {
		t.Errorf("err = %v, want ErrInvalidSamples", err)
	}
	if err := sess.SetMeta(app.Meta{Title: "T"}); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if m := sess.Snapshot().Meta; m.Title != "T" || m.NumSamples != 3 {
		t.Errorf("meta = %+v", m)
	}
}

func TestSession_ValidateCollectsEverything(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)
	sess.AddField("")

	v := sess.Validate()
	want := []string{
		"Schema Title is required.",
		"Schema Description is required.",
		"Key Title is required for Row 1.",
		"Data Type is required for Row 1.",
	}
	got := v.Messages()
	if len(got) != len(want) {
		t.Fatalf("messages = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSession_SubmitRejectsInvalid(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)

	_, err := sess.Submit(context.Background())
	var v validation.Violations
	if !errors.As(err, &v) || len(v) != 2 {
		t.Fatalf("err = %v, want header violations", err)
	}
	if len(env.gen.Calls()) != 0 {
		t.Error("generator must not be called when validation fails")
	}
}

func TestSession_SubmitSuccess(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	env.gen.resps = []json.RawMessage{json.RawMessage(`[{"name":"Ada","tags":["x"]}]`)}
	sess := newSession(t, env)
	fillValid(t, sess)

	res, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Superseded || res.Submission.Status != ports.SubmissionSucceeded {
		t.Errorf("result = %+v", res)
	}

	calls := env.gen.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	req := calls[0]
	if req.NumSamples != 2 || req.Format != "json" || req.Schema.Title != "People" {
		t.Errorf("request = %+v", req)
	}
	if req.Schema.Properties.Len() != 2 {
		t.Errorf("properties = %d, want 2", req.Schema.Properties.Len())
	}

	snap := sess.Snapshot()
	if snap.Result == nil || string(snap.Result.Response) != `[{"name":"Ada","tags":["x"]}]` {
		t.Errorf("result = %+v", snap.Result)
	}

	stored, err := env.store.Get(context.Background(), res.Submission.ID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored.Status != ports.SubmissionSucceeded || stored.SessionID != sess.ID() || stored.Seq != 1 {
		t.Errorf("stored = %+v", stored)
	}
}

func TestSession_SubmitTransportError(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	env.gen.err = errors.New("connection refused")
	sess := newSession(t, env)
	fillValid(t, sess)
	before := sess.Fields()

	res, err := sess.Submit(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Submission.Status != ports.SubmissionFailed {
		t.Errorf("status = %s", res.Submission.Status)
	}
	if sess.Snapshot().Result != nil {
		t.Error("failed submission must not set a result")
	}
	after := sess.Fields()
	if len(after) != len(before) || after[0] != before[0] {
		t.Error("transport failure must not touch the tree")
	}

	list, _ := env.svc.Submissions(context.Background(), sess.ID(), 0)
	if len(list) != 1 || list[0].Error != "connection refused" {
		t.Errorf("history = %+v", list)
	}
}

func TestSession_LatestSubmissionWins(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	slow := make(chan struct{})
	env.gen.gates = []chan struct{}{slow, nil}
	env.gen.resps = []json.RawMessage{json.RawMessage(`"first"`), json.RawMessage(`"second"`)}
	sess := newSession(t, env)
	fillValid(t, sess)

	var (
		wg    sync.WaitGroup
		first app.SubmitResult
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, _ = sess.Submit(context.Background())
	}()

	// Wait until the first request is in flight.
	for len(env.gen.Calls()) == 0 {
		time.Sleep(time.Millisecond)
	}

	second, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	close(slow)
	wg.Wait()

	if second.Superseded {
		t.Error("latest submission reported as superseded")
	}
	if !first.Superseded || first.Submission.Status != ports.SubmissionSuperseded {
		t.Errorf("first = %+v, want superseded", first)
	}
	if got := string(sess.Snapshot().Result.Response); got != `"second"` {
		t.Errorf("displayed result = %s, want \"second\"", got)
	}

	stored, _ := env.store.Get(context.Background(), first.Submission.ID)
	if stored.Status != ports.SubmissionSuperseded || string(stored.Response) != `"first"` {
		t.Errorf("stored first = %+v", stored)
	}
}

func TestSession_EditableDuringSubmission(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	gate := make(chan struct{})
	env.gen.gates = []chan struct{}{gate}
	sess := newSession(t, env)
	fillValid(t, sess)

	done := make(chan struct{})
	go func() {
		sess.Submit(context.Background())
		close(done)
	}()
	for len(env.gen.Calls()) == 0 {
		time.Sleep(time.Millisecond)
	}

	if _, err := sess.AddField(""); err != nil {
		t.Errorf("AddField during submission: %v", err)
	}
	close(gate)
	<-done

	if got := env.gen.Calls()[0].Schema.Properties.Len(); got != 2 {
		t.Errorf("submitted properties = %d, want the 2 present at submit time", got)
	}
}

func TestSession_SubmitSendsOnlyValidatedTrees(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)
	fillValid(t, sess)
	name := sess.Fields()[0].ID

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		titles := []string{"", "name"}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			sess.Apply(field.UpdateField{ID: name, Key: field.KeyTitle, Value: titles[i%2]})
		}
	}()

	accepted := 0
	for i := 0; i < 5000; i++ {
		if _, err := sess.Submit(context.Background()); err == nil {
			accepted++
		}
	}
	close(stop)
	wg.Wait()

	calls := env.gen.Calls()
	if len(calls) != accepted {
		t.Fatalf("generator calls = %d, accepted = %d", len(calls), accepted)
	}
	for i, req := range calls {
		if _, ok := req.Schema.Properties.Get("name"); !ok {
			t.Fatalf("request %d was sent without the name property", i)
		}
	}
}

func TestSession_SchemaReportsMisses(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)
	id, _ := sess.AddField("")
	sess.Apply(field.UpdateField{ID: id, Key: field.KeyTitle, Value: "x"})
	sess.Apply(field.UpdateField{ID: id, Key: field.KeyDataType, Value: "mystery"})

	doc, report := sess.Schema()
	if len(report.Misses) != 1 || report.Misses[0].DataType != "mystery" {
		t.Errorf("report = %+v", report)
	}
	if doc.Title != schemadoc.DefaultTitle {
		t.Errorf("Title = %q", doc.Title)
	}
}

func TestSession_Draft(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)
	fillValid(t, sess)

	d := sess.Draft()
	if d.Title != "People" || d.NumSamples != 2 || len(d.Fields) != 2 {
		t.Errorf("draft = %+v", d)
	}

	copied, err := env.svc.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create from draft: %v", err)
	}
	if v := copied.Validate(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		cmd  field.Command
		want string
	}{
		{field.AddField{}, "add"},
		{field.AddItems{}, "add_items"},
		{field.RemoveField{}, "remove"},
		{field.UpdateField{}, "update"},
		{field.SetAttribute{}, "set_attribute"},
		{field.ReorderFields{}, "reorder"},
		{field.MoveField{}, "move"},
	}
	for _, tt := range tests {
		if got := app.CommandName(tt.cmd); got != tt.want {
			t.Errorf("CommandName(%T) = %s, want %s", tt.cmd, got, tt.want)
		}
	}
}
