// Copyright (c) 2019 Siemens AG
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

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/safenet"
	"github.com/forensicanalysis/safenet/normalize"
	"github.com/forensicanalysis/safenet/runid"
)

// Normalize is the safenet normalize commandline subcommand.
func Normalize() *cobra.Command {
	var source, target, db string
	var deviceLabel, accountLabel string
	var toolName, toolVersion string
	var dryRun bool

	normalizeCommand := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize raw acquisition runs into the canonical dataset tree",
		Long: "Normalize copies every run folder below --source into the canonical " +
			"tree below --target and registers each run in the ledger. Re-running " +
			"is safe: unchanged files are skipped and ledger rows are updated, " +
			"never duplicated. A run whose entity has no master record fails and " +
			"is skipped; the batch continues.",
		RunE: func(cmd *cobra.Command, args []string) error {
			namingScheme, err := scheme(deviceLabel, accountLabel)
			if err != nil {
				return err
			}

			ledger, err := openOrCreateLedger(db)
			if err != nil {
				return err
			}
			defer ledger.Close()

			fs := afero.NewOsFs()
			resolver := runid.Resolver{Scheme: namingScheme, Directory: ledger}
			normalizer := &normalize.Normalizer{
				FS:          fs,
				TargetRoot:  filepath.ToSlash(target),
				ToolName:    toolName,
				ToolVersion: toolVersion,
			}

			runDirs, err := runFolders(fs, source)
			if err != nil {
				return errors.Wrap(err, "could not read source root")
			}

			failed := 0
			for _, runDir := range runDirs {
				failed += normalizeRun(ledger, resolver, normalizer, runDir, dryRun)
			}

			if failed > 0 {
				return errors.Errorf("%d of %d runs failed", failed, len(runDirs))
			}
			return nil
		},
	}

	flags := normalizeCommand.Flags()
	flags.StringVar(&source, "source", "", "root of the raw acquisition run folders")
	flags.StringVar(&target, "target", "", "root of the canonical dataset tree")
	flags.StringVar(&db, "db", "", "path to the acquisition ledger")
	flags.StringVar(&deviceLabel, "device-label", "", "entity label for device dumps whose folder name should not be mapped")
	flags.StringVar(&accountLabel, "account-label", "", "entity label for account exports (e.g. Takeout archives)")
	flags.StringVar(&toolName, "tool-name", "android_log_dump", "name of the collection tool")
	flags.StringVar(&toolVersion, "tool-version", "0.2", "version of the collection tool")
	flags.BoolVar(&dryRun, "dry-run", false, "resolve and report without copying or writing the ledger")
	_ = normalizeCommand.MarkFlagRequired("source")
	_ = normalizeCommand.MarkFlagRequired("target")
	_ = normalizeCommand.MarkFlagRequired("db")
	return normalizeCommand
}

// normalizeRun processes one run folder end-to-end and returns 1 when the
// run failed. Per-run failures never abort the batch.
func normalizeRun(ledger *safenet.Ledger, resolver runid.Resolver, normalizer *normalize.Normalizer, runDir string, dryRun bool) int {
	folderName := filepath.Base(runDir)
	log := logrus.WithField("run_folder", folderName)

	res, err := resolver.Resolve(folderName)
	if err != nil {
		log.WithError(err).Error("resolution failed, skipping run")
		return 1
	}
	if res.Degraded {
		log.WithField("run_id", res.RunID).Warn("no timestamp token, using folder name as run id")
	}

	log = log.WithFields(logrus.Fields{"entity": res.EntityLabel, "run_id": res.RunID})

	if dryRun {
		log.WithField("target", normalizer.RunBase(res)).Info("dry run, would normalize")
		return 0
	}

	manifest, err := normalizer.Run(filepath.ToSlash(runDir), res)
	if err != nil {
		log.WithError(err).Error("normalization failed, skipping run")
		return 1
	}

	run := &safenet.AcquisitionRun{
		EntityID:        res.EntityID,
		EntityLabel:     res.EntityLabel,
		RunID:           res.RunID,
		ToolName:        normalizer.ToolName,
		ToolVersion:     normalizer.ToolVersion,
		SourcePath:      runDir,
		TargetPath:      normalizer.RunBase(res),
		AcquisitionTime: res.AcquisitionTime,
	}
	id, err := ledger.Register(run)
	if err != nil {
		log.WithError(err).Error("could not register run in ledger, skipping run")
		return 1
	}

	if failures := manifest.Failed(); len(failures) > 0 {
		note := fmt.Sprintf("%d file copies failed during normalization", len(failures))
		if err := ledger.UpdateStatus(id, safenet.StatusUnvalidated, note); err != nil {
			log.WithError(err).Error("could not record copy failures")
		}
	}

	log.WithFields(logrus.Fields{
		"ledger_id": id,
		"files":     len(manifest),
		"new":       len(manifest.New()),
		"changed":   len(manifest.Changed()),
		"failed":    len(manifest.Failed()),
	}).Info("run normalized")
	return 0
}
