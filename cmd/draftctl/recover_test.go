package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/the-pantry/internal/backup"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/persist"
	"github.com/debemdeboas/the-pantry/internal/repository"
)

func recoverFixture(t *testing.T) (*repository.MemoryDraftRepository, *backup.MemoryStore, func(model.UserID) repository.DraftRepository) {
	t.Helper()
	repo := repository.NewMemoryDraftRepository()
	return repo, backup.NewMemoryStore(), func(model.UserID) repository.DraftRepository { return repo }
}

func stored(t *testing.T, repo repository.DraftRepository, title string) *model.DraftDocument {
	t.Helper()
	ctx := context.Background()
	res, err := repo.Create(ctx, "cook", model.RecipeContent{BasicInfo: model.BasicInfo{Title: title}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	doc, err := repo.Get(ctx, res.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return doc
}

func byKey(results []recovered) map[string]recovered {
	m := make(map[string]recovered, len(results))
	for _, r := range results {
		m[r.Key] = r
	}
	return m
}

func TestRecoverBackups(t *testing.T) {
	ctx := context.Background()
	repo, local, remoteFor := recoverFixture(t)

	fresh := model.NewDraft("cook")
	fresh.Content.BasicInfo.Title = "Never saved soup"
	local.Put(fresh.BackupKey(), fresh)

	edited := stored(t, repo, "Leek soup")
	snap := edited.Clone()
	snap.Content.BasicInfo.Title = "Leek and potato soup"
	snap.ModifiedAt = edited.ModifiedAt.Add(time.Minute)
	local.Put(snap.BackupKey(), snap)

	same := stored(t, repo, "Rye bread")
	local.Put(same.BackupKey(), *same)

	results := byKey(recoverBackups(ctx, local, remoteFor, persist.DefaultConfig(), false, false, zerolog.Nop()))

	if r := results[fresh.ProvisionalID]; r.Outcome != outcomeCreated || r.DraftID == "" {
		t.Errorf("Expected the never saved draft to be created, got %+v", r)
	}
	if r := results[string(edited.ID)]; r.Outcome != outcomeUpdated {
		t.Errorf("Expected the edited draft to be updated, got %+v", r)
	}
	if r := results[string(same.ID)]; r.Outcome != outcomeUnchanged {
		t.Errorf("Expected the saved draft to be unchanged, got %+v", r)
	}

	got, err := repo.Get(ctx, edited.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content.BasicInfo.Title != "Leek and potato soup" {
		t.Errorf("Expected the backup content in the store, got %q", got.Content.BasicInfo.Title)
	}

	all, _ := repo.List(ctx, "cook")
	if len(all) != 3 {
		t.Errorf("Expected 3 drafts in the store, got %d", len(all))
	}
	if keys, _ := local.Keys(); len(keys) != 0 {
		t.Errorf("Expected every backup evicted, got %v", keys)
	}
}

func TestRecoverDryRun(t *testing.T) {
	ctx := context.Background()
	repo, local, remoteFor := recoverFixture(t)

	fresh := model.NewDraft("cook")
	fresh.Content.BasicInfo.Title = "Never saved soup"
	local.Put(fresh.BackupKey(), fresh)

	results := recoverBackups(ctx, local, remoteFor, persist.DefaultConfig(), true, false, zerolog.Nop())
	if len(results) != 1 || results[0].Outcome != outcomePending {
		t.Fatalf("Expected one pending draft, got %+v", results)
	}
	if all, _ := repo.List(ctx, ""); len(all) != 0 {
		t.Errorf("Dry run wrote drafts: %+v", all)
	}
	if keys, _ := local.Keys(); len(keys) != 1 {
		t.Errorf("Dry run evicted backups: %v", keys)
	}
}

func TestRecoverRecreatesRemovedDraft(t *testing.T) {
	ctx := context.Background()
	repo, local, remoteFor := recoverFixture(t)

	gone := stored(t, repo, "Leek soup")
	local.Put(gone.BackupKey(), *gone)
	if err := repo.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	results := recoverBackups(ctx, local, remoteFor, persist.DefaultConfig(), false, true, zerolog.Nop())
	if len(results) != 1 || results[0].Outcome != outcomeCreated {
		t.Fatalf("Expected the draft created again, got %+v", results)
	}
	if _, err := repo.Get(ctx, results[0].DraftID); err != nil {
		t.Errorf("Expected the new draft in the store: %v", err)
	}
	// --keep stores the backup under the new id.
	if doc, _ := local.Get(string(results[0].DraftID)); doc == nil {
		t.Error("Expected the backup kept under the new id")
	}
}
