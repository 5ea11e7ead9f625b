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

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Entity is the safenet entity commandline subcommand. It provisions the
// entity master registry; the normalization pipeline itself only reads it.
func Entity() *cobra.Command {
	entityCommand := &cobra.Command{
		Use:   "entity",
		Short: "Manage the entity master registry",
	}
	entityCommand.AddCommand(entityAddCommand())
	return entityCommand
}

func entityAddCommand() *cobra.Command {
	var db, serial, kind string

	addCommand := &cobra.Command{
		Use:   "add <label>",
		Short: "Add an entity master record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "device" && kind != "account" {
				return errors.Errorf("invalid kind %q, must be device or account", kind)
			}

			ledger, err := openOrCreateLedger(db)
			if err != nil {
				return err
			}
			defer ledger.Close()

			id, err := ledger.AddEntity(args[0], serial, kind)
			if err != nil {
				return err
			}
			fmt.Printf("entity %s added with id %d\n", args[0], id)
			return nil
		},
	}

	addCommand.Flags().StringVar(&db, "db", "", "path to the acquisition ledger")
	addCommand.Flags().StringVar(&serial, "serial", "", "raw serial or brand_model_serial token that maps to this entity")
	addCommand.Flags().StringVar(&kind, "kind", "device", "entity kind: device or account")
	_ = addCommand.MarkFlagRequired("db")
	return addCommand
}
