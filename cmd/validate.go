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
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/safenet"
	"github.com/forensicanalysis/safenet/runid"
	"github.com/forensicanalysis/safenet/validate"
)

// Validate is the safenet validate commandline subcommand. Exit code 0 means
// every run verdict is OK, 1 means ERROR findings exist and 2 means a tree
// could not be read.
func Validate() *cobra.Command {
	var source, target, db string
	var deviceLabel, accountLabel string
	var toolName, toolVersion string

	validateCommand := &cobra.Command{
		Use:   "validate",
		Short: "Verify that the canonical tree is a faithful mirror of the source",
		Long: "Validate independently recomputes a manifest from every source run " +
			"below --source and from the RAW_ALL mirror below --target, compares " +
			"them and records the verdict in the ledger. Discrepancies are " +
			"reported, never repaired; repair requires re-running normalize.",
		RunE: func(cmd *cobra.Command, args []string) error {
			namingScheme, err := scheme(deviceLabel, accountLabel)
			if err != nil {
				return err
			}

			ledger, err := safenet.OpenLedger(db)
			if err != nil {
				return err
			}
			defer ledger.Close()

			fs := afero.NewOsFs()
			resolver := runid.Resolver{Scheme: namingScheme, Directory: ledger}
			validator := &validate.Validator{FS: fs}

			runDirs, err := runFolders(fs, source)
			if err != nil {
				return &ExitError{Code: 2, Err: errors.Wrap(err, "could not read source root")}
			}

			worst := safenet.StatusOK
			for _, runDir := range runDirs {
				verdict, err := validateRun(ledger, resolver, validator, runDir, target, toolName, toolVersion)
				if err != nil {
					return err
				}
				if severity(verdict) > severity(worst) {
					worst = verdict
				}
			}

			if worst == safenet.StatusError {
				return &ExitError{Code: 1, Err: errors.New("validation found errors")}
			}
			return nil
		},
	}

	flags := validateCommand.Flags()
	flags.StringVar(&source, "source", "", "root of the raw acquisition run folders")
	flags.StringVar(&target, "target", "", "root of the canonical dataset tree")
	flags.StringVar(&db, "db", "", "path to the acquisition ledger")
	flags.StringVar(&deviceLabel, "device-label", "", "entity label for device dumps whose folder name should not be mapped")
	flags.StringVar(&accountLabel, "account-label", "", "entity label for account exports (e.g. Takeout archives)")
	flags.StringVar(&toolName, "tool-name", "android_log_dump", "name of the collection tool")
	flags.StringVar(&toolVersion, "tool-version", "0.2", "version of the collection tool")
	_ = validateCommand.MarkFlagRequired("source")
	_ = validateCommand.MarkFlagRequired("target")
	_ = validateCommand.MarkFlagRequired("db")
	return validateCommand
}

func validateRun(ledger *safenet.Ledger, resolver runid.Resolver, validator *validate.Validator,
	runDir, target, toolName, toolVersion string) (safenet.ValidationStatus, error) {
	folderName := filepath.Base(runDir)
	log := logrus.WithField("run_folder", folderName)

	res, err := resolver.Resolve(folderName)
	if err != nil {
		log.WithError(err).Error("resolution failed, cannot locate canonical run")
		return safenet.StatusError, nil
	}

	canonical := path.Join(filepath.ToSlash(target), res.EntityLabel, toolName+"-"+toolVersion, res.RunID)

	report, err := validator.Validate(filepath.ToSlash(runDir), canonical)
	if err != nil {
		return "", &ExitError{Code: 2, Err: err}
	}

	verdict := report.Verdict()
	for _, finding := range report.Findings {
		fmt.Println(finding)
	}

	run, err := ledger.FindRun(res.EntityID, res.RunID, toolName, toolVersion)
	if err != nil {
		log.WithError(err).Warn("run validated but not registered in ledger")
	} else if err := ledger.UpdateStatus(run.ID, verdict, report.Summary()); err != nil {
		return "", err
	}

	log.WithFields(logrus.Fields{
		"entity":   res.EntityLabel,
		"run_id":   res.RunID,
		"verdict":  verdict,
		"findings": len(report.Findings),
	}).Info("run validated")
	return verdict, nil
}

func severity(status safenet.ValidationStatus) int {
	switch status {
	case safenet.StatusError:
		return 2
	case safenet.StatusWarn:
		return 1
	default:
		return 0
	}
}
