package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/artpar/dinogen/app"
	"github.com/artpar/dinogen/domain/draft"
)

func TestSessionService_CreateFetchesCatalogOnce(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)

	if sess.Catalog().Len() != len(testTypes) {
		t.Errorf("catalog len = %d, want %d", sess.Catalog().Len(), len(testTypes))
	}
	sess.AddField("")
	sess.Validate()
	sess.Schema()

	if n := env.catalog.Calls(); n != 1 {
		t.Errorf("catalog fetched %d times, want 1", n)
	}
}

func TestSessionService_CatalogFailureKeepsEmptyCatalog(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	env.catalog.Err = errors.New("upstream down")

	sess, err := env.svc.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Catalog().Len() != 0 {
		t.Errorf("catalog len = %d, want 0", sess.Catalog().Len())
	}
	if _, err := sess.AddField(""); err != nil {
		t.Errorf("session should stay editable: %v", err)
	}
}

func TestSessionService_GetDelete(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)

	got, err := env.svc.Get(sess.ID())
	if err != nil || got != sess {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if ids := env.svc.List(); len(ids) != 1 || ids[0] != sess.ID() {
		t.Errorf("List = %v", ids)
	}

	if err := env.svc.Delete(sess.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.svc.Get(sess.ID()); !errors.Is(err, app.ErrSessionNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if err := env.svc.Delete(sess.ID()); !errors.Is(err, app.ErrSessionNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
}

func TestSessionService_MaxSessions(t *testing.T) {
	env := newTestEnv(app.SessionConfig{MaxSessions: 2})
	newSession(t, env)
	newSession(t, env)

	if _, err := env.svc.Create(context.Background(), nil); !errors.Is(err, app.ErrTooManySessions) {
		t.Errorf("err = %v, want ErrTooManySessions", err)
	}

	env.svc.UpdateConfig(app.SessionConfig{MaxSessions: 3})
	if _, err := env.svc.Create(context.Background(), nil); err != nil {
		t.Errorf("after raising the limit: %v", err)
	}
}

func TestSessionService_CreateFromDraft(t *testing.T) {
	env := newTestEnv(app.SessionConfig{MaxSamples: 5})
	d, err := draft.Parse([]byte(`
title: Orders
description: Order records
num_samples: 4
fields:
  - keyTitle: id
    dataType: autoIncrement
    description: "1"
  - keyTitle: lines
    dataType: array
    items:
      keyTitle: line
      dataType: object
      properties:
        - keyTitle: sku
          dataType: string
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sess, err := env.svc.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	snap := sess.Snapshot()
	if snap.Meta.Title != "Orders" || snap.Meta.NumSamples != 4 || len(snap.Fields) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Fields[0].ID == "" || snap.Fields[1].Items.Properties[0].ID == "" {
		t.Error("draft fields should receive ids")
	}
	if v := sess.Validate(); len(v) != 0 {
		t.Errorf("violations = %v", v.Messages())
	}

	d.NumSamples = 9
	if _, err := env.svc.Create(context.Background(), d); !errors.Is(err, app.ErrInvalidSamples) {
		t.Errorf("err = %v, want ErrInvalidSamples", err)
	}
}

func TestSessionService_Submissions(t *testing.T) {
	env := newTestEnv(app.SessionConfig{})
	sess := newSession(t, env)
	fillValid(t, sess)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := sess.Submit(ctx); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	list, err := env.svc.Submissions(ctx, sess.ID(), 2)
	if err != nil {
		t.Fatalf("Submissions: %v", err)
	}
	if len(list) != 2 || list[0].Seq != 3 || list[1].Seq != 2 {
		t.Errorf("list = %+v", list)
	}

	one, err := env.svc.Submission(ctx, list[0].ID)
	if err != nil || one.ID != list[0].ID {
		t.Errorf("Submission = %+v, %v", one, err)
	}
}
