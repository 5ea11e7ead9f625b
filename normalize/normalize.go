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

// Package normalize copies one acquisition run from its raw source folder
// into the canonical safenet tree. Every file is mirrored into RAW_ALL and,
// when a taxonomy rule matches, duplicated into its category folder as a
// derived view. The operation is convergent: re-running it skips files whose
// copy already matches by size and checksum, overwrites the rest and reports
// what it did in the returned manifest. The source tree is never written.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/safenet"
	"github.com/forensicanalysis/safenet/runid"
	"github.com/forensicanalysis/safenet/taxonomy"
)

// A Normalizer writes acquisition runs into the canonical tree below
// TargetRoot. It is the only component allowed to write there.
type Normalizer struct {
	FS          afero.Fs
	TargetRoot  string
	ToolName    string
	ToolVersion string
}

// RunBase returns the canonical run directory for a resolution:
// <target>/<entity>/<tool>-<version>/<run_id>.
func (n *Normalizer) RunBase(res runid.Resolution) string {
	return path.Join(n.TargetRoot, res.EntityLabel, n.ToolName+"-"+n.ToolVersion, res.RunID)
}

// Run normalizes a single flat source run directory. It returns a manifest
// ordered by relative path; per-file copy failures are recorded as failed
// entries and do not abort the run.
func (n *Normalizer) Run(sourceRunDir string, res runid.Resolution) (safenet.Manifest, error) {
	runBase := n.RunBase(res)

	for _, sub := range taxonomy.RunSubdirs() {
		if err := n.FS.MkdirAll(path.Join(runBase, string(sub)), 0755); err != nil {
			return nil, errors.Wrap(err, "could not create canonical tree")
		}
	}

	infos, err := afero.ReadDir(n.FS, sourceRunDir)
	if err != nil {
		return nil, errors.Wrap(err, "could not read source run directory")
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	var manifest safenet.Manifest
	var uncategorized []string
	counts := map[string]int{}
	for _, sub := range taxonomy.RunSubdirs() {
		counts[string(sub)] = 0
	}

	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}
		name := info.Name()
		category := taxonomy.Classify(name)

		entry := safenet.ManifestEntry{
			RelPath:       path.Join(string(taxonomy.RawAll), name),
			Category:      string(category),
			SourceRelPath: name,
		}

		size, sum, status, err := n.mirror(path.Join(sourceRunDir, name), path.Join(runBase, entry.RelPath))
		if err != nil {
			entry.Status = safenet.EntryFailed
			entry.Detail = err.Error()
			manifest = append(manifest, entry)
			continue
		}
		entry.Size = size
		entry.SHA256 = sum
		entry.Status = status
		counts[string(taxonomy.RawAll)]++

		if category == taxonomy.Unclassified {
			uncategorized = append(uncategorized, name)
		} else {
			// Derived view, copied from the RAW_ALL mirror so both copies
			// share one byte source.
			_, _, err = n.copyFile(path.Join(runBase, entry.RelPath), path.Join(runBase, string(category), name))
			if err != nil {
				entry.Status = safenet.EntryFailed
				entry.Detail = errors.Wrap(err, "category copy").Error()
			} else {
				counts[string(category)]++
			}
		}

		manifest = append(manifest, entry)
	}

	descriptor := NewDescriptor(res, n.ToolName, n.ToolVersion, sourceRunDir, runBase)
	descriptor.TotalFiles = len(manifest) - len(manifest.Failed())
	descriptor.TotalBytes = manifest.TotalBytes()
	descriptor.CategoryCounts = counts
	descriptor.UncategorizedFiles = uncategorized

	err = MergeDescriptor(n.FS, path.Join(runBase, string(taxonomy.Meta)), descriptor)
	if err != nil {
		return manifest, err
	}
	return manifest, nil
}

// mirror copies src into the RAW_ALL tree. The recorded checksum is
// computed on the write stream, so it always describes the bytes that
// landed in the mirror, even when the source changes mid-run. An existing
// destination that already matches by size and checksum is left untouched;
// only that skip check hashes in a separate pass.
func (n *Normalizer) mirror(src, dst string) (int64, string, safenet.EntryStatus, error) {
	status := safenet.EntryNew
	if exists, _ := afero.Exists(n.FS, dst); exists {
		srcSize, srcSum, err := hashFile(n.FS, src)
		if err != nil {
			return 0, "", "", err
		}
		if dstSize, dstSum, err := hashFile(n.FS, dst); err == nil && dstSize == srcSize && dstSum == srcSum {
			return srcSize, srcSum, safenet.EntryUnchanged, nil
		}
		status = safenet.EntryChanged
	}

	size, sum, err := n.copyFile(src, dst)
	if err != nil {
		return 0, "", "", err
	}
	return size, sum, status, nil
}

// copyFile streams src to dst and returns the size and sha256 of the
// written stream.
func (n *Normalizer) copyFile(src, dst string) (int64, string, error) {
	in, err := n.FS.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	out, err := n.FS.Create(dst)
	if err != nil {
		return 0, "", err
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, h), in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(fs afero.Fs, name string) (int64, string, error) {
	f, err := fs.Open(name)
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
