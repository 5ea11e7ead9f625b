// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package safenet

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
)

const ledgerVersion = 1
const ledgerApplicationID = 1396786766
const timeFormat = "2006-01-02T15:04:05Z"

// An Entity is a device or account from the entity master registry. The
// registry is read-only to the pipeline; rows are provisioned out of band.
type Entity struct {
	ID     int64  `json:"entity_id"`
	Label  string `json:"entity_label"`
	Serial string `json:"serial,omitempty"`
	Kind   string `json:"kind"`
}

// The Ledger is the persisted acquisition-run tracking store. It owns the
// acquisition_runs table and enforces at most one logical record per
// (entity, run, tool, tool version). It is the only shared mutable resource
// between concurrent workers; every write is a single transaction.
type Ledger struct {
	cursor *sqlite.Conn
}

var ErrLedgerExists = fmt.Errorf("ledger already exists")
var ErrLedgerNotExists = fmt.Errorf("ledger does not exist")

// NewLedger creates a new acquisition ledger.
func NewLedger(url string) (*Ledger, error) {
	return openLedger(url, true)
}

// OpenLedger opens an existing acquisition ledger.
func OpenLedger(url string) (*Ledger, error) {
	return openLedger(url, false)
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	_, err = stmt.Step()
	if err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare("PRAGMA " + name + " = " + fmt.Sprint(i))
	if err != nil {
		return err
	}
	_, err = stmt.Step()
	if err != nil {
		return err
	}
	return stmt.Finalize()
}

func openLedger(url string, create bool) (*Ledger, error) { // nolint:gocyclo
	if url != ":memory:" {
		url = strings.TrimRight(url, "/")

		exists := true
		_, err := os.Stat(url)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, ErrLedgerExists
		}
		if !create && !exists {
			return nil, ErrLedgerNotExists
		}

		if create {
			err = os.MkdirAll(path.Dir(url), 0750)
			if err != nil {
				return nil, err
			}
		}
	}

	ledger := &Ledger{}

	var err error
	ledger.cursor, err = sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}
	ledger.cursor.SetBusyTimeout(5 * time.Second)

	err = ledger.exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}

	if create {
		err = setPragma(ledger.cursor, "application_id", ledgerApplicationID)
		if err != nil {
			return nil, err
		}

		err = setPragma(ledger.cursor, "user_version", ledgerVersion)
		if err != nil {
			return nil, err
		}

		err = ledger.createSchema()
		if err != nil {
			return nil, err
		}
	} else {
		applicationID, err := pragma(ledger.cursor, "application_id")
		if err != nil {
			return nil, err
		}
		if applicationID != ledgerApplicationID {
			msg := "wrong file format (application_id is %d, requires %d)"
			return nil, fmt.Errorf(msg, applicationID, ledgerApplicationID)
		}

		version, err := pragma(ledger.cursor, "user_version")
		if err != nil {
			return nil, err
		}
		if version != ledgerVersion {
			msg := "wrong file format (user_version is %d, requires %d)"
			return nil, fmt.Errorf(msg, version, ledgerVersion)
		}
	}

	return ledger, nil
}

func (ledger *Ledger) createSchema() error {
	for _, query := range []string{
		`CREATE TABLE IF NOT EXISTS entity_master (
			entity_id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_label TEXT NOT NULL UNIQUE,
			serial TEXT UNIQUE,
			kind TEXT NOT NULL DEFAULT 'device'
		)`,
		`CREATE TABLE IF NOT EXISTS acquisition_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id INTEGER NOT NULL REFERENCES entity_master (entity_id),
			run_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			tool_version TEXT NOT NULL,
			source_path TEXT NOT NULL,
			target_path TEXT NOT NULL,
			acquisition_time_utc TEXT,
			validation_status TEXT NOT NULL DEFAULT 'UNVALIDATED',
			notes TEXT NOT NULL DEFAULT '',
			UNIQUE (entity_id, run_id, tool_name, tool_version)
		)`,
	} {
		if err := ledger.exec(query); err != nil {
			return errors.Wrap(err, "could not create schema")
		}
	}
	return nil
}

/* ################################
#   Entity master registry
################################ */

// LookupEntity resolves a logical label or a raw serial to its master record.
// It never creates entities; unknown labels return an UnmappedEntityError.
func (ledger *Ledger) LookupEntity(label string) (Entity, error) {
	stmt, err := ledger.cursor.Prepare(
		"SELECT entity_id, entity_label, serial, kind FROM entity_master " +
			"WHERE entity_label = $label OR serial = $label")
	if err != nil {
		return Entity{}, err
	}
	stmt.SetText("$label", label)

	hasRow, err := stmt.Step()
	if err != nil {
		return Entity{}, err
	}
	if !hasRow {
		_ = stmt.Finalize()
		return Entity{}, &UnmappedEntityError{Label: label}
	}

	entity := Entity{
		ID:     stmt.GetInt64("entity_id"),
		Label:  stmt.GetText("entity_label"),
		Serial: stmt.GetText("serial"),
		Kind:   stmt.GetText("kind"),
	}
	return entity, stmt.Finalize()
}

// AddEntity provisions a master record. The normalization pipeline never
// calls this; it exists for setup tooling and tests.
func (ledger *Ledger) AddEntity(label, serial, kind string) (int64, error) {
	stmt, err := ledger.cursor.Prepare(
		"INSERT INTO entity_master (entity_label, serial, kind) VALUES ($label, $serial, $kind)")
	if err != nil {
		return 0, err
	}
	stmt.SetText("$label", label)
	if serial == "" {
		stmt.SetNull("$serial")
	} else {
		stmt.SetText("$serial", serial)
	}
	stmt.SetText("$kind", kind)
	_, err = stmt.Step()
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("could not add entity %q", label))
	}
	err = stmt.Finalize()
	if err != nil {
		return 0, err
	}
	return ledger.cursor.LastInsertRowID(), nil
}

/* ################################
#   Acquisition runs
################################ */

// Register upserts a single acquisition run. The upsert is keyed on
// (entity, run id, tool name, tool version): an existing row has its
// provenance fields refreshed and keeps its identifier, so re-running the
// normalizer never duplicates a run. The whole write is one transaction.
func (ledger *Ledger) Register(run *AcquisitionRun) (int64, error) {
	err := ledger.exec("BEGIN IMMEDIATE")
	if err != nil {
		return 0, err
	}

	id, err := ledger.register(run)
	if err != nil {
		_ = ledger.exec("ROLLBACK")
		return 0, err
	}

	return id, ledger.exec("COMMIT")
}

func (ledger *Ledger) register(run *AcquisitionRun) (int64, error) {
	hasEntity, err := ledger.entityExists(run.EntityID)
	if err != nil {
		return 0, err
	}
	if !hasEntity {
		return 0, &ReferentialIntegrityError{EntityID: run.EntityID, EntityLabel: run.EntityLabel}
	}

	stmt, err := ledger.cursor.Prepare(`INSERT INTO acquisition_runs (
			entity_id, run_id, tool_name, tool_version,
			source_path, target_path, acquisition_time_utc, validation_status, notes
		) VALUES ($entity, $run, $tool, $version, $source, $target, $acquired, $status, $notes)
		ON CONFLICT (entity_id, run_id, tool_name, tool_version) DO UPDATE SET
			source_path = excluded.source_path,
			target_path = excluded.target_path,
			acquisition_time_utc = excluded.acquisition_time_utc,
			validation_status = excluded.validation_status`)
	if err != nil {
		return 0, err
	}
	stmt.SetInt64("$entity", run.EntityID)
	stmt.SetText("$run", run.RunID)
	stmt.SetText("$tool", run.ToolName)
	stmt.SetText("$version", run.ToolVersion)
	stmt.SetText("$source", run.SourcePath)
	stmt.SetText("$target", run.TargetPath)
	if run.AcquisitionTime == nil {
		stmt.SetNull("$acquired")
	} else {
		stmt.SetText("$acquired", run.AcquisitionTime.UTC().Format(timeFormat))
	}
	stmt.SetText("$status", string(StatusUnvalidated))
	stmt.SetText("$notes", run.Notes)
	_, err = stmt.Step()
	if err != nil {
		return 0, errors.Wrap(err, "could not upsert acquisition run")
	}
	err = stmt.Finalize()
	if err != nil {
		return 0, err
	}

	// The conflict path does not report an insert id; read the row back.
	return ledger.runID(run.EntityID, run.RunID, run.ToolName, run.ToolVersion)
}

func (ledger *Ledger) entityExists(entityID int64) (bool, error) {
	stmt, err := ledger.cursor.Prepare("SELECT entity_id FROM entity_master WHERE entity_id = $id")
	if err != nil {
		return false, err
	}
	stmt.SetInt64("$id", entityID)
	hasRow, err := stmt.Step()
	if err != nil {
		return false, err
	}
	return hasRow, stmt.Finalize()
}

func (ledger *Ledger) runID(entityID int64, runID, toolName, toolVersion string) (int64, error) {
	stmt, err := ledger.cursor.Prepare(
		"SELECT id FROM acquisition_runs WHERE entity_id = $entity AND run_id = $run " +
			"AND tool_name = $tool AND tool_version = $version")
	if err != nil {
		return 0, err
	}
	stmt.SetInt64("$entity", entityID)
	stmt.SetText("$run", runID)
	stmt.SetText("$tool", toolName)
	stmt.SetText("$version", toolVersion)
	hasRow, err := stmt.Step()
	if err != nil {
		return 0, err
	}
	if !hasRow {
		_ = stmt.Finalize()
		return 0, errors.New("acquisition run vanished during upsert")
	}
	id := stmt.GetInt64("id")
	return id, stmt.Finalize()
}

// UpdateStatus sets the validation status of a run. Notes are append-only:
// a non-empty note is added on its own line, existing notes are never
// rewritten.
func (ledger *Ledger) UpdateStatus(id int64, status ValidationStatus, notes string) error {
	stmt, err := ledger.cursor.Prepare(`UPDATE acquisition_runs SET
			validation_status = $status,
			notes = CASE
				WHEN $notes = '' THEN notes
				WHEN notes = '' THEN $notes
				ELSE notes || char(10) || $notes
			END
		WHERE id = $id`)
	if err != nil {
		return err
	}
	stmt.SetText("$status", string(status))
	stmt.SetText("$notes", notes)
	stmt.SetInt64("$id", id)
	_, err = stmt.Step()
	if err != nil {
		return errors.Wrap(err, "could not update validation status")
	}
	err = stmt.Finalize()
	if err != nil {
		return err
	}
	if ledger.cursor.Changes() == 0 {
		return errors.Errorf("acquisition run %d does not exist", id)
	}
	return nil
}

// Run retrieves a single acquisition run by its ledger id.
func (ledger *Ledger) Run(id int64) (*AcquisitionRun, error) {
	stmt, err := ledger.cursor.Prepare(selectRuns + " WHERE r.id = $id")
	if err != nil {
		return nil, err
	}
	stmt.SetInt64("$id", id)
	runs, err := ledger.rowsToRuns(stmt)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.Errorf("acquisition run %d does not exist", id)
	}
	return runs[0], nil
}

// FindRun retrieves a single acquisition run by its logical key.
func (ledger *Ledger) FindRun(entityID int64, runID, toolName, toolVersion string) (*AcquisitionRun, error) {
	stmt, err := ledger.cursor.Prepare(selectRuns +
		" WHERE r.entity_id = $entity AND r.run_id = $run AND r.tool_name = $tool AND r.tool_version = $version")
	if err != nil {
		return nil, err
	}
	stmt.SetInt64("$entity", entityID)
	stmt.SetText("$run", runID)
	stmt.SetText("$tool", toolName)
	stmt.SetText("$version", toolVersion)
	runs, err := ledger.rowsToRuns(stmt)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.Errorf("acquisition run %s/%s/%s does not exist", runID, toolName, toolVersion)
	}
	return runs[0], nil
}

// Runs returns every registered acquisition run, ordered by id.
func (ledger *Ledger) Runs() ([]*AcquisitionRun, error) {
	stmt, err := ledger.cursor.Prepare(selectRuns + " ORDER BY r.id")
	if err != nil {
		return nil, err
	}
	return ledger.rowsToRuns(stmt)
}

const selectRuns = `SELECT r.id, r.entity_id, e.entity_label, r.run_id,
	r.tool_name, r.tool_version, r.source_path, r.target_path,
	r.acquisition_time_utc, r.validation_status, r.notes
	FROM acquisition_runs r JOIN entity_master e ON e.entity_id = r.entity_id`

func (ledger *Ledger) rowsToRuns(stmt *sqlite.Stmt) ([]*AcquisitionRun, error) {
	var runs []*AcquisitionRun
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return nil, err
		} else if !hasRow {
			break
		}

		run := &AcquisitionRun{
			ID:               stmt.GetInt64("id"),
			EntityID:         stmt.GetInt64("entity_id"),
			EntityLabel:      stmt.GetText("entity_label"),
			RunID:            stmt.GetText("run_id"),
			ToolName:         stmt.GetText("tool_name"),
			ToolVersion:      stmt.GetText("tool_version"),
			SourcePath:       stmt.GetText("source_path"),
			TargetPath:       stmt.GetText("target_path"),
			ValidationStatus: ValidationStatus(stmt.GetText("validation_status")),
			Notes:            stmt.GetText("notes"),
		}
		if acquired := stmt.GetText("acquisition_time_utc"); acquired != "" {
			t, err := time.Parse(timeFormat, acquired)
			if err != nil {
				return nil, errors.Wrap(err, "malformed acquisition time in ledger")
			}
			run.AcquisitionTime = &t
		}
		runs = append(runs, run)
	}
	return runs, stmt.Finalize()
}

// Close closes the ledger database.
func (ledger *Ledger) Close() error {
	return ledger.cursor.Close()
}

func (ledger *Ledger) exec(query string) error {
	stmt, err := ledger.cursor.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Step()
	if err != nil {
		return err
	}

	return stmt.Finalize()
}
