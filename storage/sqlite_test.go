package storage

import (
	"path/filepath"
	"testing"
	"time"

	"bolig_scrooper/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Runs(t *testing.T) {
	store := newTestStore(t)

	run := &models.ScrapeRun{
		UUID:      "5f0c2a9e-3b7d-4c1a-9e2f-1a2b3c4d5e6f",
		SiteID:    "boligsiden",
		Kind:      models.RunKindDetails,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	run.ID = id

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ItemsTotal, run.ItemsOK, run.ItemsFailed = 10, 9, 1
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	got, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != models.RunStatusCompleted || got.ItemsOK != 9 || got.FinishedAt == nil {
		t.Fatalf("unexpected run %+v", got)
	}

	missing, err := store.GetRun(id + 100)
	if err != nil || missing != nil {
		t.Fatalf("expected nil run, got %+v, %v", missing, err)
	}

	if err := store.Log(&id, models.LogLevelWarn, "missing fields", "boligsiden"); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	logs, err := store.GetLogs(id)
	if err != nil || len(logs) != 1 || logs[0].Level != models.LogLevelWarn {
		t.Fatalf("unexpected logs %+v, %v", logs, err)
	}
}

func TestSQLiteStore_Records(t *testing.T) {
	store := newTestStore(t)

	rec := models.NewPropertyRecord("p1", "https://x/p1", "boligsiden", time.Now())
	rec.Set(models.FieldRooms, "4")
	if err := store.SaveRecord(1, "boligsiden", rec); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}
	rec.Set(models.FieldRooms, "5")
	if err := store.SaveRecord(2, "boligsiden", rec); err != nil {
		t.Fatalf("SaveRecord update failed: %v", err)
	}

	got, err := store.GetRecord("p1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Get(models.FieldRooms) != "5" {
		t.Fatalf("expected latest value, got %s", got.Get(models.FieldRooms))
	}

	count, err := store.GetRecordCount("boligsiden")
	if err != nil || count != 1 {
		t.Fatalf("expected 1 record, got %d, %v", count, err)
	}
	ids, err := store.ScrapedIDs("boligsiden")
	if err != nil || !ids["p1"] {
		t.Fatalf("expected p1 in scraped ids, got %v, %v", ids, err)
	}
}

func TestSQLiteStore_FailuresAndResume(t *testing.T) {
	store := newTestStore(t)

	err := store.RecordFailure(&models.FailedItem{
		RunID: 3, PropertyID: "p9", URL: "https://x/p9", Attempts: 3, Error: "timeout", FailedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	failures, err := store.GetFailures(3)
	if err != nil || len(failures) != 1 || failures[0].Attempts != 3 {
		t.Fatalf("unexpected failures %+v, %v", failures, err)
	}

	if page, _ := store.GetResumePage("boligsiden"); page != 0 {
		t.Fatalf("expected no resume page, got %d", page)
	}
	if err := store.SetResumePage("boligsiden", 4); err != nil {
		t.Fatalf("SetResumePage failed: %v", err)
	}
	if page, _ := store.GetResumePage("boligsiden"); page != 4 {
		t.Fatalf("expected resume page 4, got %d", page)
	}
	if err := store.ClearResumePage("boligsiden"); err != nil {
		t.Fatalf("ClearResumePage failed: %v", err)
	}
	if page, _ := store.GetResumePage("boligsiden"); page != 0 {
		t.Fatalf("expected cleared resume page, got %d", page)
	}
}

func TestSQLiteStore_Commands(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.EnqueueCommand(models.CmdRunIndex, models.CommandParams{Site: "boligsiden"}); err != nil {
		t.Fatalf("EnqueueCommand failed: %v", err)
	}
	if _, err := store.EnqueueCommand(models.CmdRunDetails, models.CommandParams{Sample: 5}); err != nil {
		t.Fatalf("EnqueueCommand failed: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("GetPendingCommands failed: %v", err)
	}
	if len(cmds) != 2 || cmds[0].Command != models.CmdRunIndex {
		t.Fatalf("unexpected commands %+v", cmds)
	}

	params, err := ParseCommandParams(&cmds[1])
	if err != nil || params.Sample != 5 {
		t.Fatalf("unexpected params %+v (%v)", params, err)
	}

	if err := store.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("MarkCommandProcessed failed: %v", err)
	}
	cmds, _ = store.GetPendingCommands()
	if len(cmds) != 1 || cmds[0].Command != models.CmdRunDetails {
		t.Fatalf("expected one pending command, got %+v", cmds)
	}
}

func TestSQLiteStore_SitesWithResumePage(t *testing.T) {
	store := newTestStore(t)
	store.SetResumePage("boligsiden", 4)
	store.SetResumePage("other", 2)
	store.ClearResumePage("other")

	sites, err := store.GetSitesWithResumePage()
	if err != nil {
		t.Fatalf("GetSitesWithResumePage failed: %v", err)
	}
	if len(sites) != 1 || sites[0] != "boligsiden" {
		t.Fatalf("unexpected sites %v", sites)
	}
}
