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

// Package cmd implements the safenet commandline subcommands.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/forensicanalysis/safenet"
	"github.com/forensicanalysis/safenet/runid"
)

// An ExitError carries an explicit process exit code through cobra.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

// openOrCreateLedger opens the ledger at db, creating it on first use.
func openOrCreateLedger(db string) (*safenet.Ledger, error) {
	if _, err := os.Stat(db); os.IsNotExist(err) {
		return safenet.NewLedger(db)
	}
	return safenet.OpenLedger(db)
}

// runFolders lists the run directories below a source root. A source root
// without subdirectories is treated as a single run folder itself.
func runFolders(fs afero.Fs, source string) ([]string, error) {
	infos, err := afero.ReadDir(fs, source)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, filepath.Join(source, info.Name()))
		}
	}
	if len(dirs) == 0 {
		return []string{source}, nil
	}
	sort.Strings(dirs)
	return dirs, nil
}

// scheme picks the naming convention for the acquisition source type:
// device dumps encode the entity in the folder name, account exports get
// the label from the commandline.
func scheme(deviceLabel, accountLabel string) (runid.Scheme, error) {
	switch {
	case deviceLabel != "" && accountLabel != "":
		return nil, fmt.Errorf("--device-label and --account-label are mutually exclusive")
	case accountLabel != "":
		return runid.LabelScheme{Label: accountLabel}, nil
	case deviceLabel != "":
		return runid.LabelScheme{Label: deviceLabel}, nil
	default:
		return runid.ADBScheme{}, nil
	}
}
