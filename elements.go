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

import "time"

// ValidationStatus is the verdict recorded for an acquisition run.
type ValidationStatus string

// Validation statuses of an acquisition run.
const (
	StatusUnvalidated ValidationStatus = "UNVALIDATED"
	StatusOK          ValidationStatus = "OK"
	StatusWarn        ValidationStatus = "WARN"
	StatusError       ValidationStatus = "ERROR"
)

// An AcquisitionRun is one physical collection event for one entity with one
// tool. The tuple (EntityID, RunID, ToolName, ToolVersion) is unique in the
// ledger; re-running normalization updates the existing row.
type AcquisitionRun struct {
	ID               int64            `json:"id"`
	EntityID         int64            `json:"entity_id"`
	EntityLabel      string           `json:"entity_label"`
	RunID            string           `json:"run_id"`
	ToolName         string           `json:"tool_name"`
	ToolVersion      string           `json:"tool_version"`
	SourcePath       string           `json:"source_path"`
	TargetPath       string           `json:"target_path"`
	AcquisitionTime  *time.Time       `json:"acquisition_time_utc,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Notes            string           `json:"notes,omitempty"`
}

// EntryStatus describes what the normalizer did with a single file.
type EntryStatus string

// Manifest entry statuses.
const (
	EntryNew       EntryStatus = "new"
	EntryUnchanged EntryStatus = "unchanged"
	EntryChanged   EntryStatus = "changed"
	EntryFailed    EntryStatus = "failed"
)

// A ManifestEntry describes a single file inside the canonical tree.
type ManifestEntry struct {
	RelPath       string      `json:"rel_path"`
	Category      string      `json:"category"`
	Size          int64       `json:"size"`
	SHA256        string      `json:"sha256"`
	SourceRelPath string      `json:"source_rel_path"`
	Status        EntryStatus `json:"status"`
	Detail        string      `json:"detail,omitempty"`
}

// A Manifest is the ordered list of files a normalization pass produced.
type Manifest []ManifestEntry

// Changed returns all entries that were rewritten because the existing copy
// did not match the source.
func (m Manifest) Changed() []ManifestEntry {
	return m.filter(EntryChanged)
}

// Failed returns all entries whose copy failed.
func (m Manifest) Failed() []ManifestEntry {
	return m.filter(EntryFailed)
}

// New returns all entries that were copied for the first time.
func (m Manifest) New() []ManifestEntry {
	return m.filter(EntryNew)
}

// TotalBytes sums the sizes of all successfully mirrored files.
func (m Manifest) TotalBytes() int64 {
	var total int64
	for _, entry := range m {
		if entry.Status != EntryFailed {
			total += entry.Size
		}
	}
	return total
}

func (m Manifest) filter(status EntryStatus) []ManifestEntry {
	var entries []ManifestEntry
	for _, entry := range m {
		if entry.Status == status {
			entries = append(entries, entry)
		}
	}
	return entries
}
