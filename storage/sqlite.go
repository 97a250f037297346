package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bolig_scrooper/identity"
	"bolig_scrooper/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		uuid TEXT,
		site_id TEXT,
		kind TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		items_total INTEGER DEFAULT 0,
		items_ok INTEGER DEFAULT 0,
		items_failed INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS property_records (
		property_id TEXT PRIMARY KEY,
		site_id TEXT,
		run_id INTEGER,
		fingerprint TEXT,
		filled_fields INTEGER,
		data JSON,
		scraped_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS failed_items (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		property_id TEXT,
		url TEXT,
		attempts INTEGER,
		error TEXT,
		failed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		scrape_resume_page INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_records_site ON property_records(site_id, scraped_at);
	CREATE INDEX IF NOT EXISTS idx_records_fingerprint ON property_records(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_failed_run ON failed_items(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (uuid, site_id, kind, started_at, status, items_total)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.UUID, run.SiteID, run.Kind, run.StartedAt, run.Status, run.ItemsTotal)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, items_total = ?,
			items_ok = ?, items_failed = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ItemsTotal, run.ItemsOK, run.ItemsFailed, run.ID)
	if err != nil {
		return err
	}
	if run.FinishedAt == nil {
		return nil
	}
	_, err = s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status)
		VALUES (?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status`,
		run.SiteID, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ScrapeRun, error) {
	row := s.db.QueryRow(`
		SELECT id, COALESCE(uuid, ''), site_id, kind, started_at, finished_at, status,
			items_total, items_ok, items_failed
		FROM scrape_runs WHERE id = ?`, id)

	var run models.ScrapeRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.UUID, &run.SiteID, &run.Kind, &run.StartedAt, &finished,
		&run.Status, &run.ItemsTotal, &run.ItemsOK, &run.ItemsFailed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) GetLogs(runID int64) ([]models.ScrapeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, site_id
		FROM scrape_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		var rid sql.NullInt64
		if err := rows.Scan(&l.ID, &rid, &l.Timestamp, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		if rid.Valid {
			l.RunID = &rid.Int64
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SaveRecord stores the latest scrape of a property, replacing any earlier one.
func (s *SQLiteStore) SaveRecord(runID int64, siteID string, rec *models.PropertyRecord) error {
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO property_records (property_id, site_id, run_id, fingerprint, filled_fields, data, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(property_id) DO UPDATE SET
			site_id = excluded.site_id,
			run_id = excluded.run_id,
			fingerprint = excluded.fingerprint,
			filled_fields = excluded.filled_fields,
			data = excluded.data,
			scraped_at = excluded.scraped_at`,
		rec.ID, siteID, runID, identity.Fingerprint(rec), rec.FilledCount(), string(data), time.Now())
	return err
}

func (s *SQLiteStore) GetRecord(propertyID string) (*models.PropertyRecord, error) {
	var data string
	err := s.db.QueryRow(`
		SELECT data FROM property_records WHERE property_id = ?`, propertyID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &models.PropertyRecord{ID: propertyID}
	if err := json.Unmarshal([]byte(data), &rec.Fields); err != nil {
		return nil, err
	}
	return rec, nil
}

// ScrapedIDs returns the property ids already stored for siteID.
func (s *SQLiteStore) ScrapedIDs(siteID string) (map[string]bool, error) {
	rows, err := s.db.Query(`
		SELECT property_id FROM property_records WHERE site_id = ?`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) GetRecordCount(siteID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM property_records WHERE site_id = ?`, siteID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) RecordFailure(f *models.FailedItem) error {
	_, err := s.db.Exec(`
		INSERT INTO failed_items (run_id, property_id, url, attempts, error, failed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.RunID, f.PropertyID, f.URL, f.Attempts, f.Error, f.FailedAt)
	return err
}

func (s *SQLiteStore) GetFailures(runID int64) ([]models.FailedItem, error) {
	rows, err := s.db.Query(`
		SELECT run_id, property_id, url, attempts, error, failed_at
		FROM failed_items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.FailedItem
	for rows.Next() {
		var f models.FailedItem
		if err := rows.Scan(&f.RunID, &f.PropertyID, &f.URL, &f.Attempts, &f.Error, &f.FailedAt); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) GetResumePage(siteID string) (int, error) {
	var page int
	err := s.db.QueryRow(`
		SELECT COALESCE(scrape_resume_page, 0) FROM site_stats WHERE site_id = ?`, siteID).Scan(&page)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return page, err
}

func (s *SQLiteStore) SetResumePage(siteID string, page int) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, scrape_resume_page)
		VALUES (?, ?)
		ON CONFLICT(site_id) DO UPDATE SET scrape_resume_page = ?`, siteID, page, page)
	return err
}

func (s *SQLiteStore) ClearResumePage(siteID string) error {
	_, err := s.db.Exec(`
		UPDATE site_stats SET scrape_resume_page = 0 WHERE site_id = ?`, siteID)
	return err
}

func (s *SQLiteStore) GetSitesWithResumePage() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT site_id FROM site_stats WHERE scrape_resume_page > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var siteID string
		if err := rows.Scan(&siteID); err != nil {
			return nil, err
		}
		sites = append(sites, siteID)
	}
	return sites, rows.Err()
}

func (s *SQLiteStore) GetLastRunTime(siteID string) (time.Time, error) {
	var lastRun sql.NullTime
	err := s.db.QueryRow(`
		SELECT last_run_at FROM site_stats WHERE site_id = ?`, siteID).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return lastRun.Time, err
}

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params models.CommandParams) (int64, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	result, err := s.db.Exec(`
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, string(data), time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
