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

import "fmt"

// UnmappedEntityError is returned when a serial or label has no record in the
// entity master registry. The registry is authoritative; the pipeline never
// invents entities, so this fails the affected run.
type UnmappedEntityError struct {
	Label string
}

func (e *UnmappedEntityError) Error() string {
	return fmt.Sprintf("entity %q has no master record", e.Label)
}

// MalformedRunNameError is returned when no timestamp token can be extracted
// from a raw run folder name. Resolution degrades to using the folder name as
// the run id instead of aborting the batch.
type MalformedRunNameError struct {
	Name string
}

func (e *MalformedRunNameError) Error() string {
	return fmt.Sprintf("run folder name %q contains no timestamp token", e.Name)
}

// ReferentialIntegrityError is returned when a ledger row would reference an
// entity id without a master record. A dangling entity reference is
// forensically worthless, so this always propagates.
type ReferentialIntegrityError struct {
	EntityID    int64
	EntityLabel string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("entity id %d (%q) has no master record", e.EntityID, e.EntityLabel)
}
