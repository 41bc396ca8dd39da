package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/promptlab-backend/internal/data/aggregates"
	"github.com/yungbote/promptlab-backend/internal/data/repos"
	repotest "github.com/yungbote/promptlab-backend/internal/data/repos/testutil"
	types "github.com/yungbote/promptlab-backend/internal/domain"
	domainagg "github.com/yungbote/promptlab-backend/internal/domain/aggregates"
	"github.com/yungbote/promptlab-backend/internal/observability"
)

type spyPublisher struct {
	mu     sync.Mutex
	events []types.VersionEvent
	err    error
}

func (p *spyPublisher) Publish(_ context.Context, ev types.VersionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func newTestService(t *testing.T, pub VersionPublisher) (PromptVersionService, *observability.Metrics) {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	prompts := repos.NewPromptRepo(db, log)
	versions := repos.NewPromptVersionRepo(db, log)
	metrics := observability.NewMetrics()
	agg := aggregates.NewPromptVersionAggregate(aggregates.PromptVersionAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
		},
		Prompts:  prompts,
		Versions: versions,
	})
	return NewPromptVersionService(log, agg, prompts, versions, pub, metrics), metrics
}

func TestPromptVersionServiceCreateThenUpdate(t *testing.T) {
	pub := &spyPublisher{}
	svc, _ := newTestService(t, pub)
	ctx := context.Background()

	v1, err := svc.Create(ctx, CreatePromptInput{Content: "Hello {{name}}"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v1.VersionNumber != 1 || !v1.IsCurrent {
		t.Fatalf("Create: want current v1 got v%d current=%v", v1.VersionNumber, v1.IsCurrent)
	}

	v2, err := svc.Update(ctx, v1.PromptID, UpdatePromptInput{Content: "Hi {{name}}"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v2.VersionNumber != 2 || !v2.IsCurrent {
		t.Fatalf("Update: want current v2 got v%d current=%v", v2.VersionNumber, v2.IsCurrent)
	}

	cur, err := svc.GetCurrent(ctx, v1.PromptID)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionNumber != 2 || cur.Content != "Hi {{name}}" {
		t.Fatalf("GetCurrent: want v2 got v%d %q", cur.VersionNumber, cur.Content)
	}
	old, err := svc.GetVersion(ctx, v1.PromptID, 1)
	if err != nil {
		t.Fatalf("GetVersion(1): %v", err)
	}
	if old.IsCurrent {
		t.Fatalf("GetVersion(1): expected non-current")
	}

	if len(pub.events) != 2 {
		t.Fatalf("published events: want=2 got=%d", len(pub.events))
	}
	if pub.events[0].Kind != types.VersionKindCreate || pub.events[1].Kind != types.VersionKindUpdate {
		t.Fatalf("event kinds: got=%s,%s", pub.events[0].Kind, pub.events[1].Kind)
	}
	if pub.events[1].DemotedVersion != 1 {
		t.Fatalf("event demoted: want=1 got=%d", pub.events[1].DemotedVersion)
	}
}

func TestPromptVersionServiceRollback(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	v1, err := svc.Create(ctx, CreatePromptInput{Content: "Hello {{name}}"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Update(ctx, v1.PromptID, UpdatePromptInput{Content: "Hi {{name}}"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	v3, err := svc.Rollback(ctx, v1.PromptID, 1, RollbackInput{})
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if v3.VersionNumber != 3 || v3.Content != "Hello {{name}}" || !v3.IsCurrent {
		t.Fatalf("Rollback: got v%d %q current=%v", v3.VersionNumber, v3.Content, v3.IsCurrent)
	}
	if v3.ChangeSummary == nil || *v3.ChangeSummary != "Rolled back to version 1" {
		t.Fatalf("Rollback summary: got=%v", v3.ChangeSummary)
	}

	list, err := svc.ListVersions(ctx, v1.PromptID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListVersions: want=3 got=%d", len(list))
	}
	for i, want := range []int{3, 2, 1} {
		if list[i].VersionNumber != want {
			t.Fatalf("ListVersions[%d]: want=%d got=%d", i, want, list[i].VersionNumber)
		}
		if list[i].IsCurrent != (want == 3) {
			t.Fatalf("ListVersions[%d]: is_current=%v", i, list[i].IsCurrent)
		}
	}

	if _, err := svc.Rollback(ctx, v1.PromptID, 99, RollbackInput{}); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Rollback(99): want=not_found got=%v", err)
	}
	if _, err := svc.Rollback(ctx, v1.PromptID, -1, RollbackInput{}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("Rollback(-1): want=validation got=%v", err)
	}
}

func TestPromptVersionServiceGetVersion(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	v1, err := svc.Create(ctx, CreatePromptInput{Content: "one", CreatedBy: repotest.PtrString("bob")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, err := svc.GetVersion(ctx, v1.PromptID, 1)
	if err != nil {
		t.Fatalf("GetVersion first: %v", err)
	}
	b, err := svc.GetVersion(ctx, v1.PromptID, 1)
	if err != nil {
		t.Fatalf("GetVersion second: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("GetVersion not idempotent: %+v vs %+v", a, b)
	}

	if _, err := svc.GetVersion(ctx, v1.PromptID, 99); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("GetVersion(99): want=not_found got=%v", err)
	}
	if _, err := svc.GetVersion(ctx, v1.PromptID, 0); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("GetVersion(0): want=validation got=%v", err)
	}
	if _, err := svc.GetVersion(ctx, uuid.New(), 1); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("GetVersion(unknown prompt): want=not_found got=%v", err)
	}
}

func TestPromptVersionServiceValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Create(ctx, CreatePromptInput{Content: content}); !domainagg.IsCode(err, domainagg.CodeValidation) {
			t.Fatalf("Create(%q): want=validation got=%v", content, err)
		}
	}
	if _, err := svc.Update(ctx, uuid.Nil, UpdatePromptInput{Content: "x"}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("Update(nil id): want=validation got=%v", err)
	}
	if _, err := svc.Update(ctx, uuid.New(), UpdatePromptInput{Content: "x"}); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Update(unknown): want=not_found got=%v", err)
	}
}

func TestPromptVersionServiceDelete(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	v1, err := svc.Create(ctx, CreatePromptInput{Content: "one"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := svc.GetPrompt(ctx, v1.PromptID)
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if got.Prompt.ID != v1.PromptID || got.Current.VersionNumber != 1 {
		t.Fatalf("GetPrompt: unexpected %+v", got)
	}

	if err := svc.Delete(ctx, v1.PromptID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, v1.PromptID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Delete(again): want=not_found got=%v", err)
	}
	if _, err := svc.Update(ctx, v1.PromptID, UpdatePromptInput{Content: "two"}); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Update(deleted): want=not_found got=%v", err)
	}
	for name, call := range map[string]func() error{
		"GetPrompt":    func() error { _, err := svc.GetPrompt(ctx, v1.PromptID); return err },
		"GetCurrent":   func() error { _, err := svc.GetCurrent(ctx, v1.PromptID); return err },
		"ListVersions": func() error { _, err := svc.ListVersions(ctx, v1.PromptID); return err },
	} {
		if err := call(); !domainagg.IsCode(err, domainagg.CodeNotFound) {
			t.Fatalf("%s(deleted): want=not_found got=%v", name, err)
		}
	}
}

func TestPromptVersionServicePublishFailureKeepsWrite(t *testing.T) {
	pub := &spyPublisher{err: errors.New("redis down")}
	svc, _ := newTestService(t, pub)
	ctx := context.Background()

	v1, err := svc.Create(ctx, CreatePromptInput{Content: "one"})
	if err != nil {
		t.Fatalf("Create with failing publisher: %v", err)
	}
	cur, err := svc.GetCurrent(ctx, v1.PromptID)
	if err != nil || cur.ID != v1.ID {
		t.Fatalf("GetCurrent: err=%v cur=%v", err, cur)
	}
	if len(pub.events) != 1 {
		t.Fatalf("publish attempts: want=1 got=%d", len(pub.events))
	}
}

func TestPromptVersionServiceListPrompts(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if got, err := svc.ListPrompts(ctx); err != nil || len(got) != 0 {
		t.Fatalf("ListPrompts(empty): err=%v n=%d", err, len(got))
	}

	var ids []uuid.UUID
	for _, content := range []string{"first", "second", "third"} {
		v, err := svc.Create(ctx, CreatePromptInput{Content: content})
		if err != nil {
			t.Fatalf("Create %s: %v", content, err)
		}
		ids = append(ids, v.PromptID)
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := svc.Update(ctx, ids[0], UpdatePromptInput{Content: "first v2"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err := svc.ListPrompts(ctx)
	if err != nil {
		t.Fatalf("ListPrompts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListPrompts: want=2 got=%d", len(got))
	}
	if got[0].Prompt.ID != ids[2] || got[1].Prompt.ID != ids[0] {
		t.Fatalf("ListPrompts order: want=[%s %s] got=[%s %s]", ids[2], ids[0], got[0].Prompt.ID, got[1].Prompt.ID)
	}
	if got[1].Current.VersionNumber != 2 || got[1].Current.Content != "first v2" {
		t.Fatalf("ListPrompts current: unexpected %+v", got[1].Current)
	}
}
