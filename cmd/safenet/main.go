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

// Package main implements the safenet command line tool that normalizes raw
// forensic acquisition dumps into the canonical dataset tree and validates
// the result against the source.
//     normalize  Normalize raw acquisition runs into the canonical dataset tree
//     validate   Verify that the canonical tree is a faithful mirror of the source
//     entity     Manage the entity master registry
//
// Usage
//
// Provision an entity and normalize a batch of Android log dumps
//     safenet entity add Samsung_S24 --serial samsung_SM-S921B_R58N123456X --db ledger.db
//     safenet normalize --source ./android_logs --target ./DataSetGlobal --db ledger.db
//
// Validate the normalized runs and record the verdicts
//     safenet validate --source ./android_logs --target ./DataSetGlobal --db ledger.db
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/safenet/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "safenet",
		Short:         "Normalize and validate forensic acquisition runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(cmd.Normalize(), cmd.Validate(), cmd.Entity())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
