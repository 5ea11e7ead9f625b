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

// Package validate independently re-derives the completeness and integrity
// of a normalized acquisition run. It builds one manifest from the raw
// source tree and one from the canonical RAW_ALL mirror and compares them;
// category folders are derived views and are only checked for drift against
// RAW_ALL, never against the source. The validator mutates nothing.
package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/safenet"
	"github.com/forensicanalysis/safenet/normalize"
	"github.com/forensicanalysis/safenet/taxonomy"
)

// Kind classifies a single discrepancy.
type Kind string

// Discrepancy kinds, ordered from most to least severe in practice.
const (
	MissingFile       Kind = "MissingFile"
	UnexpectedFile    Kind = "UnexpectedFile"
	SizeMismatch      Kind = "SizeMismatch"
	ChecksumMismatch  Kind = "ChecksumMismatch"
	CategoryDrift     Kind = "CategoryDrift"
	DescriptorInvalid Kind = "DescriptorInvalid"
)

// Severity of a finding. Only ERROR findings fail a run.
type Severity string

// Finding severities.
const (
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// A Finding is a single discrepancy between the source tree and the
// canonical mirror.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	RelPath  string   `json:"rel_path"`
	Detail   string   `json:"detail"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", f.Severity, f.Kind, f.RelPath, f.Detail)
}

// A Report is the ordered sequence of findings of one validation pass. It is
// transient; only its verdict is persisted in the ledger.
type Report struct {
	Findings    []Finding `json:"findings"`
	SourceFiles int       `json:"source_files"`
	MirrorFiles int       `json:"mirror_files"`
}

// Verdict folds the findings into the persisted run status: ERROR when any
// error finding exists, OK when there are none at all. Warnings never fail
// a run, but a warning-only report is deliberately recorded as WARN rather
// than OK so tolerated discrepancies stay visible in the ledger.
func (r *Report) Verdict() safenet.ValidationStatus {
	verdict := safenet.StatusOK
	for _, finding := range r.Findings {
		if finding.Severity == SeverityError {
			return safenet.StatusError
		}
		verdict = safenet.StatusWarn
	}
	return verdict
}

// Summary renders a one-line result for the ledger notes.
func (r *Report) Summary() string {
	var errs, warns int
	for _, finding := range r.Findings {
		if finding.Severity == SeverityError {
			errs++
		} else {
			warns++
		}
	}
	return fmt.Sprintf("validated %d source files against %d mirrored files: %d errors, %d warnings",
		r.SourceFiles, r.MirrorFiles, errs, warns)
}

// A Validator compares source and canonical trees.
type Validator struct {
	FS afero.Fs
}

// Validate builds manifests of the source run directory and of the RAW_ALL
// subtree of the canonical run directory and compares them by relative
// path. Findings are sorted by path so repeated validation of unchanged
// trees yields identical reports.
func (v *Validator) Validate(sourceRunDir, canonicalRunDir string) (*Report, error) {
	source, err := v.manifest(sourceRunDir)
	if err != nil {
		return nil, errors.Wrap(err, "could not read source tree")
	}
	mirror, err := v.manifest(path.Join(canonicalRunDir, string(taxonomy.RawAll)))
	if err != nil {
		return nil, errors.Wrap(err, "could not read canonical tree")
	}

	report := &Report{SourceFiles: len(source), MirrorFiles: len(mirror)}

	for rel, src := range source {
		dst, ok := mirror[rel]
		switch {
		case !ok:
			report.add(MissingFile, SeverityError, rel, "present in source, absent in RAW_ALL")
		case src.size != dst.size:
			report.add(SizeMismatch, SeverityError, rel,
				fmt.Sprintf("source %d bytes, mirror %d bytes", src.size, dst.size))
		case src.sum != dst.sum:
			report.add(ChecksumMismatch, SeverityError, rel,
				fmt.Sprintf("source %s, mirror %s", src.sum, dst.sum))
		}
	}
	for rel := range mirror {
		if _, ok := source[rel]; !ok {
			report.add(UnexpectedFile, SeverityWarn, rel, "present in RAW_ALL, absent in source")
		}
	}

	err = v.checkCategoryDrift(canonicalRunDir, mirror, report)
	if err != nil {
		return nil, err
	}
	v.checkDescriptor(canonicalRunDir, report)

	sort.Slice(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.RelPath != b.RelPath {
			return a.RelPath < b.RelPath
		}
		return a.Kind < b.Kind
	})
	return report, nil
}

// checkCategoryDrift verifies that the derived category views agree with
// RAW_ALL in both directions: every file inside a category folder must be a
// byte-identical copy of its RAW_ALL counterpart, and every classified
// RAW_ALL file must have its category copy. A category copy the normalizer
// failed or skipped therefore surfaces here even though the mirror itself
// is complete.
func (v *Validator) checkCategoryDrift(canonicalRunDir string, mirror map[string]fileSum, report *Report) error {
	views := map[taxonomy.Category]map[string]fileSum{}
	for _, category := range taxonomy.Semantic() {
		files, err := v.manifest(path.Join(canonicalRunDir, string(category)))
		if err != nil {
			if !os.IsNotExist(errors.Cause(err)) {
				return errors.Wrap(err, "could not read category tree")
			}
			files = map[string]fileSum{}
		}
		views[category] = files

		for rel, view := range files {
			if category == taxonomy.Meta && isDescriptorFile(rel) {
				continue
			}
			rawRel := path.Join(string(category), rel)
			raw, ok := mirror[rel]
			switch {
			case !ok:
				report.add(CategoryDrift, SeverityError, rawRel, "no RAW_ALL counterpart")
			case view.size != raw.size || view.sum != raw.sum:
				report.add(CategoryDrift, SeverityError, rawRel, "differs from RAW_ALL counterpart")
			}
		}
	}

	for rel := range mirror {
		category := taxonomy.Classify(rel)
		if category == taxonomy.Unclassified {
			continue
		}
		if _, ok := views[category][rel]; !ok {
			report.add(CategoryDrift, SeverityError, path.Join(string(category), rel),
				"classified file missing from category folder")
		}
	}
	return nil
}

type fileSum struct {
	size int64
	sum  string
}

// manifest walks a tree and returns relative path -> (size, sha256) for
// every regular file.
func (v *Validator) manifest(root string) (map[string]fileSum, error) {
	files := map[string]fileSum{}
	err := afero.Walk(v.FS, root, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, name)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		size, sum, err := v.hashFile(name)
		if err != nil {
			return err
		}
		files[rel] = fileSum{size: size, sum: sum}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (v *Validator) hashFile(name string) (int64, string, error) {
	f, err := v.FS.Open(name)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}

func (r *Report) add(kind Kind, severity Severity, rel, detail string) {
	r.Findings = append(r.Findings, Finding{Kind: kind, Severity: severity, RelPath: rel, Detail: detail})
}

func isDescriptorFile(rel string) bool {
	return rel == normalize.DescriptorName || strings.HasSuffix(rel, ".tmp")
}
