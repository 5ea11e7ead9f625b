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

// Package runid derives a stable (entity, run id) pair from a raw acquisition
// folder name. The tokenization is acquisition-tool-specific, so the naming
// convention is pluggable via the Scheme interface; the entity mapping itself
// comes from the authoritative master registry behind EntityDirectory.
package runid

import (
	"regexp"
	"time"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/safenet"
)

// A Scheme tokenizes one acquisition tool's run folder naming convention
// into an entity label and a run id.
type Scheme interface {
	Parse(folderName string) (label, runID string, err error)
}

// An EntityDirectory resolves labels and serials against the entity master
// registry. Implemented by safenet.Ledger.
type EntityDirectory interface {
	LookupEntity(label string) (safenet.Entity, error)
}

// A Resolution is the identity of one acquisition run.
type Resolution struct {
	EntityID        int64
	EntityLabel     string
	RunID           string
	AcquisitionTime *time.Time
	// Degraded is set when no timestamp token was found and the raw folder
	// name is used as the run id verbatim.
	Degraded bool
}

var adbRunName = regexp.MustCompile(`^(.+)_(20\d{6}_\d{6})$`)
var timestampToken = regexp.MustCompile(`20\d{6}_\d{6}`)

// ADBScheme parses folders produced by the Android log dump tooling:
// <brand>_<model>_<serial>_<YYYYMMDD_HHMMSS>.
type ADBScheme struct{}

func (ADBScheme) Parse(folderName string) (string, string, error) {
	m := adbRunName.FindStringSubmatch(folderName)
	if m == nil {
		return folderName, "", &safenet.MalformedRunNameError{Name: folderName}
	}
	return m[1], m[2], nil
}

// LabelScheme serves sources whose folder names carry no entity token, such
// as Takeout export archives: the entity label is supplied externally and
// the folder name only contributes the timestamp.
type LabelScheme struct {
	Label string
}

func (s LabelScheme) Parse(folderName string) (string, string, error) {
	if s.Label == "" {
		return "", "", errors.New("label scheme requires an entity label")
	}
	runID := timestampToken.FindString(folderName)
	if runID == "" {
		return s.Label, "", &safenet.MalformedRunNameError{Name: folderName}
	}
	return s.Label, runID, nil
}

// A Resolver combines a naming Scheme with the entity master registry.
type Resolver struct {
	Scheme    Scheme
	Directory EntityDirectory
}

// Resolve maps a raw run folder name to its entity and run id. A missing
// timestamp token degrades to the folder name as run id; an unmapped entity
// is a hard failure because downstream referential integrity depends on the
// master record.
func (r Resolver) Resolve(folderName string) (Resolution, error) {
	label, runID, err := r.Scheme.Parse(folderName)
	degraded := false
	if err != nil {
		var malformed *safenet.MalformedRunNameError
		if !errors.As(err, &malformed) {
			return Resolution{}, err
		}
		runID = folderName
		degraded = true
	}

	entity, err := r.Directory.LookupEntity(label)
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		EntityID:        entity.ID,
		EntityLabel:     entity.Label,
		RunID:           runID,
		AcquisitionTime: ParseRunTime(runID),
		Degraded:        degraded,
	}, nil
}

// ParseRunTime interprets a YYYYMMDD_HHMMSS run id as a UTC acquisition
// timestamp. Run ids without a valid timestamp yield nil; the acquisition
// time stays unknown rather than invented.
func ParseRunTime(runID string) *time.Time {
	t, err := time.ParseInLocation("20060102_150405", runID, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}
