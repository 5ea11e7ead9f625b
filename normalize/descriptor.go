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

package normalize

import (
	"encoding/json"
	"path"
	"reflect"
	"time"

	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stoewer/go-strcase"

	"github.com/forensicanalysis/safenet/runid"
)

// DescriptorName is the run metadata document inside the META folder.
const DescriptorName = "acquisition_meta.json"

// A Descriptor is the run-level metadata record written into
// META/acquisition_meta.json. On re-runs it is merged over the existing
// document, so annotations added by hand between runs survive.
type Descriptor struct {
	EntityLabel        string         `json:"entity_label"`
	RunID              string         `json:"run_id"`
	ToolName           string         `json:"tool_name"`
	ToolVersion        string         `json:"tool_version"`
	SourceRunDir       string         `json:"source_run_dir"`
	TargetRunBase      string         `json:"target_run_base"`
	AcquisitionTimeUTC string         `json:"acquisition_time_utc,omitempty"`
	TotalFiles         int            `json:"total_files"`
	TotalBytes         int64          `json:"total_bytes"`
	CategoryCounts     map[string]int `json:"category_counts"`
	UncategorizedFiles []string       `json:"uncategorized_files,omitempty"`
	NormalizedUTC      string         `json:"normalized_utc"`
	NormalizationID    string         `json:"normalization_id"`
	Notes              string         `json:"notes,omitempty"`
}

// NewDescriptor builds a fresh descriptor for one normalization pass. Each
// pass gets its own normalization id.
func NewDescriptor(res runid.Resolution, toolName, toolVersion, sourceRunDir, runBase string) *Descriptor {
	descriptor := &Descriptor{
		EntityLabel:     res.EntityLabel,
		RunID:           res.RunID,
		ToolName:        toolName,
		ToolVersion:     toolVersion,
		SourceRunDir:    sourceRunDir,
		TargetRunBase:   runBase,
		NormalizedUTC:   time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		NormalizationID: uuid.New().String(),
	}
	if res.AcquisitionTime != nil {
		descriptor.AcquisitionTimeUTC = res.AcquisitionTime.UTC().Format("2006-01-02T15:04:05Z")
	}
	return descriptor
}

// MergeDescriptor writes the descriptor into metaDir. An existing document
// is read first and the fresh fields are merged over it in place of a
// wholesale replace. The result is written to a temporary file and renamed,
// so a failure mid-write never leaves a truncated descriptor.
func MergeDescriptor(fs afero.Fs, metaDir string, descriptor *Descriptor) error {
	name := path.Join(metaDir, DescriptorName)

	document := map[string]interface{}{}
	if raw, err := afero.ReadFile(fs, name); err == nil {
		// A corrupt descriptor is not worth failing the run over; it gets
		// replaced by the fresh record.
		_ = json.Unmarshal(raw, &document)
	}

	snaked, err := json.Marshal(lower(structs.Map(descriptor)))
	if err != nil {
		return err
	}
	fresh := map[string]interface{}{}
	if err := json.Unmarshal(snaked, &fresh); err != nil {
		return err
	}

	if err := mergo.Merge(&document, fresh, mergo.WithOverride); err != nil {
		return errors.Wrap(err, "could not merge descriptor")
	}

	raw, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return err
	}

	tmp := name + ".tmp"
	if err := afero.WriteFile(fs, tmp, raw, 0644); err != nil {
		return errors.Wrap(err, "could not write descriptor")
	}
	return fs.Rename(tmp, name)
}

// lower converts map keys to snake_case, recursively.
func lower(f interface{}) interface{} {
	switch f := f.(type) {
	case []interface{}:
		for i := range f {
			if !isEmptyValue(reflect.ValueOf(f[i])) {
				f[i] = lower(f[i])
			}
		}
		return f
	case map[string]interface{}:
		lf := make(map[string]interface{}, len(f))
		for k, v := range f {
			if !isEmptyValue(reflect.ValueOf(v)) {
				lf[strcase.SnakeCase(k)] = lower(v)
			}
		}
		return lf
	default:
		return f
	}
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}
