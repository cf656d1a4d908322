package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/debemdeboas/the-pantry/internal/backup"
	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/repository"
)

func writeConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := fmt.Sprintf("storage:\n  backend: fs\n  fs_dir: %q\nbackup:\n  backend: fs\n  dir: %q\n",
		filepath.Join(dir, "drafts"), filepath.Join(dir, "backups"))
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	return path, cfg
}

func seedDraft(t *testing.T, cfg *config.Config, title string) model.DraftID {
	t.Helper()
	ctx := context.Background()
	repo, closeFn, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer closeFn()
	res, err := repo.Create(ctx, "cook", model.RecipeContent{
		BasicInfo:   model.BasicInfo{Title: title},
		Ingredients: []model.Ingredient{{Name: "leek", Quantity: "2"}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return res.ID
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	path, cfg := writeConfig(t)
	id := seedDraft(t, cfg, "Leek soup")

	out, err := execute(t, "--config", path, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "Leek soup") || !strings.Contains(out, string(id)) {
		t.Errorf("Expected the draft in the list, got:\n%s", out)
	}

	out, err = execute(t, "--config", path, "list", "--owner", "baker")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No drafts") {
		t.Errorf("Expected no drafts for another owner, got:\n%s", out)
	}

	out, err = execute(t, "--config", path, "show", string(id))
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "Leek soup") || !strings.Contains(out, "2 leek") {
		t.Errorf("Unexpected show output:\n%s", out)
	}

	out, err = execute(t, "--config", path, "show", "--json", string(id))
	if err != nil {
		t.Fatalf("show --json failed: %v", err)
	}
	if !strings.Contains(out, `"completionPercentage": 20`) {
		t.Errorf("Expected JSON with the completion, got:\n%s", out)
	}

	if _, err := execute(t, "--config", path, "show", "missing"); err == nil {
		t.Error("Expected an error for a missing draft")
	}

	out, err = execute(t, "--config", path, "rm", string(id))
	if err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if !strings.Contains(out, "deleted") {
		t.Errorf("Unexpected rm output:\n%s", out)
	}

	out, _ = execute(t, "--config", path, "list")
	if !strings.Contains(out, "No drafts") {
		t.Errorf("Expected an empty list after rm, got:\n%s", out)
	}
}

func TestBackupsAndRecoverCommands(t *testing.T) {
	path, cfg := writeConfig(t)

	out, err := execute(t, "--config", path, "backups")
	if err != nil {
		t.Fatalf("backups failed: %v", err)
	}
	if !strings.Contains(out, "No local backups") {
		t.Errorf("Expected no backups, got:\n%s", out)
	}

	doc := model.NewDraft("cook")
	doc.Content.BasicInfo.Title = "Offline soup"
	local, err := backup.Open(cfg.Backup)
	if err != nil {
		t.Fatalf("backup.Open failed: %v", err)
	}
	if err := local.Put(doc.BackupKey(), doc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	out, err = execute(t, "--config", path, "backups")
	if err != nil {
		t.Fatalf("backups failed: %v", err)
	}
	if !strings.Contains(out, "Offline soup") || !strings.Contains(out, "never saved") {
		t.Errorf("Expected the snapshot listed, got:\n%s", out)
	}

	out, err = execute(t, "--config", path, "recover")
	if err != nil {
		t.Fatalf("recover failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "created") {
		t.Errorf("Expected the draft created, got:\n%s", out)
	}

	out, _ = execute(t, "--config", path, "list")
	if !strings.Contains(out, "Offline soup") {
		t.Errorf("Expected the recovered draft in the store, got:\n%s", out)
	}
}
