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

package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/qri-io/jsonschema"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/safenet/normalize"
	"github.com/forensicanalysis/safenet/taxonomy"
)

// descriptorSchema is the structural contract of acquisition_meta.json.
// Descriptor findings are warnings: the descriptor is run metadata, not
// evidence, so a broken one must be reported but never fails the mirror.
var descriptorSchema = []byte(`{
	"type": "object",
	"required": ["entity_label", "run_id", "tool_name", "tool_version", "total_files", "total_bytes"],
	"properties": {
		"entity_label": {"type": "string", "minLength": 1},
		"run_id": {"type": "string", "minLength": 1},
		"tool_name": {"type": "string", "minLength": 1},
		"tool_version": {"type": "string"},
		"source_run_dir": {"type": "string"},
		"target_run_base": {"type": "string"},
		"total_files": {"type": "integer", "minimum": 0},
		"total_bytes": {"type": "integer", "minimum": 0},
		"category_counts": {"type": "object"},
		"normalization_id": {"type": "string"}
	}
}`)

// checkDescriptor validates META/acquisition_meta.json against the
// descriptor schema and cross-checks its identity fields against the
// canonical path the run actually lives under.
func (v *Validator) checkDescriptor(canonicalRunDir string, report *Report) {
	rel := path.Join(string(taxonomy.Meta), normalize.DescriptorName)

	raw, err := afero.ReadFile(v.FS, path.Join(canonicalRunDir, rel))
	if err != nil {
		report.add(DescriptorInvalid, SeverityWarn, rel, "descriptor is missing or unreadable")
		return
	}

	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(descriptorSchema, schema); err != nil {
		report.add(DescriptorInvalid, SeverityWarn, rel, "descriptor schema is broken: "+err.Error())
		return
	}
	keyErrs, err := schema.ValidateBytes(context.Background(), raw)
	if err != nil {
		report.add(DescriptorInvalid, SeverityWarn, rel, "descriptor is not valid json: "+err.Error())
		return
	}
	for _, keyErr := range keyErrs {
		report.add(DescriptorInvalid, SeverityWarn, rel, keyErr.Error())
	}

	// The run id and entity label recorded in the descriptor must match the
	// canonical path: <root>/<entity>/<tool>-<version>/<run_id>.
	runID := path.Base(canonicalRunDir)
	entityLabel := path.Base(path.Dir(path.Dir(canonicalRunDir)))

	if got := gjson.GetBytes(raw, "run_id").String(); got != "" && got != runID {
		report.add(DescriptorInvalid, SeverityWarn, rel,
			fmt.Sprintf("run_id %q does not match run folder %q", got, runID))
	}
	if got := gjson.GetBytes(raw, "entity_label").String(); got != "" && got != entityLabel {
		report.add(DescriptorInvalid, SeverityWarn, rel,
			fmt.Sprintf("entity_label %q does not match entity folder %q", got, entityLabel))
	}
}
