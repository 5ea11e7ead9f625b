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
	"reflect"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/safenet"
	"github.com/forensicanalysis/safenet/normalize"
	"github.com/forensicanalysis/safenet/runid"
)

const sourceDir = "raw/device_X_20250101_000000"
const runBase = "dataset/Samsung_S24/android_log_dump-0.2/20250101_000000"

// setup normalizes a small run so the validator has a real canonical tree
// to compare against.
func setup(t *testing.T) (afero.Fs, *Validator) {
	t.Helper()
	fs := afero.NewMemMapFs()

	files := map[string]string{
		"logcat_main_1.txt":   "0123456789",
		"dumpsys_wifi_1.txt":  "01234567890123456789",
		"random_artifact.bin": "unclassified content",
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, sourceDir+"/"+name, []byte(content), 0644))
	}

	normalizer := &normalize.Normalizer{
		FS:          fs,
		TargetRoot:  "dataset",
		ToolName:    "android_log_dump",
		ToolVersion: "0.2",
	}
	_, err := normalizer.Run(sourceDir, runid.Resolution{
		EntityID:    201,
		EntityLabel: "Samsung_S24",
		RunID:       "20250101_000000",
	})
	require.NoError(t, err)

	return fs, &Validator{FS: fs}
}

func kinds(report *Report) map[Kind]int {
	counts := map[Kind]int{}
	for _, finding := range report.Findings {
		counts[finding.Kind]++
	}
	return counts
}

func TestValidateOK(t *testing.T) {
	_, validator := setup(t)

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
	assert.Equal(t, safenet.StatusOK, report.Verdict())
	assert.Equal(t, 3, report.SourceFiles)
	assert.Equal(t, 3, report.MirrorFiles)
}

func TestValidateMissingFile(t *testing.T) {
	fs, validator := setup(t)

	// deleting an unclassified file from RAW_ALL leaves exactly one finding
	require.NoError(t, fs.Remove(runBase+"/RAW_ALL/random_artifact.bin"))

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, MissingFile, report.Findings[0].Kind)
	assert.Equal(t, SeverityError, report.Findings[0].Severity)
	assert.Equal(t, "random_artifact.bin", report.Findings[0].RelPath)
	assert.Equal(t, safenet.StatusError, report.Verdict())
}

func TestValidateChecksumMismatch(t *testing.T) {
	fs, validator := setup(t)

	// one flipped byte in the canonical mirror, size unchanged
	require.NoError(t, afero.WriteFile(fs, runBase+"/RAW_ALL/dumpsys_wifi_1.txt",
		[]byte("0123456789012345678X"), 0644))

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	assert.Equal(t, safenet.StatusError, report.Verdict())
	counts := kinds(report)
	assert.Equal(t, 1, counts[ChecksumMismatch])
	// the untouched category copy now differs from the corrupted mirror
	assert.Equal(t, 1, counts[CategoryDrift])
}

func TestValidateSizeMismatch(t *testing.T) {
	fs, validator := setup(t)

	require.NoError(t, afero.WriteFile(fs, runBase+"/RAW_ALL/random_artifact.bin",
		[]byte("truncated"), 0644))

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, SizeMismatch, report.Findings[0].Kind)
	assert.Equal(t, safenet.StatusError, report.Verdict())
}

func TestValidateUnexpectedFile(t *testing.T) {
	fs, validator := setup(t)

	require.NoError(t, afero.WriteFile(fs, runBase+"/RAW_ALL/added_later.txt",
		[]byte("not part of the acquisition"), 0644))

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, UnexpectedFile, report.Findings[0].Kind)
	assert.Equal(t, SeverityWarn, report.Findings[0].Severity)
	// warnings are surfaced but do not fail the run
	assert.Equal(t, safenet.StatusWarn, report.Verdict())
}

func TestValidateCategoryDrift(t *testing.T) {
	fs, validator := setup(t)

	// the derived view diverges from the RAW_ALL ground truth
	require.NoError(t, afero.WriteFile(fs, runBase+"/CORE_SYSTEM/logcat_main_1.txt",
		[]byte("tampered"), 0644))

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, CategoryDrift, report.Findings[0].Kind)
	assert.Equal(t, SeverityError, report.Findings[0].Severity)
	assert.Equal(t, "CORE_SYSTEM/logcat_main_1.txt", report.Findings[0].RelPath)
}

func TestValidateCategoryCopyMissing(t *testing.T) {
	fs, validator := setup(t)

	// a classified file whose category copy is gone, e.g. because the
	// normalizer failed that copy, must not validate OK
	require.NoError(t, fs.Remove(runBase+"/CORE_SYSTEM/logcat_main_1.txt"))

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, CategoryDrift, report.Findings[0].Kind)
	assert.Equal(t, SeverityError, report.Findings[0].Severity)
	assert.Equal(t, "CORE_SYSTEM/logcat_main_1.txt", report.Findings[0].RelPath)
	assert.Equal(t, safenet.StatusError, report.Verdict())
}

func TestValidateDescriptorMissing(t *testing.T) {
	fs, validator := setup(t)

	require.NoError(t, fs.Remove(runBase+"/META/"+normalize.DescriptorName))

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, DescriptorInvalid, report.Findings[0].Kind)
	assert.Equal(t, SeverityWarn, report.Findings[0].Severity)
	assert.Equal(t, safenet.StatusWarn, report.Verdict())
}

func TestValidateDescriptorMismatch(t *testing.T) {
	fs, validator := setup(t)

	descriptor := `{"entity_label": "OtherPhone", "run_id": "20250101_000000",
		"tool_name": "android_log_dump", "tool_version": "0.2",
		"total_files": 3, "total_bytes": 50}`
	require.NoError(t, afero.WriteFile(fs, runBase+"/META/"+normalize.DescriptorName,
		[]byte(descriptor), 0644))

	report, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)

	counts := kinds(report)
	assert.Equal(t, 1, counts[DescriptorInvalid])
	assert.Equal(t, safenet.StatusWarn, report.Verdict())
}

func TestValidateDeterminism(t *testing.T) {
	fs, validator := setup(t)

	// force several findings of different kinds
	require.NoError(t, fs.Remove(runBase+"/RAW_ALL/random_artifact.bin"))
	require.NoError(t, afero.WriteFile(fs, runBase+"/RAW_ALL/added_later.txt", []byte("x"), 0644))
	require.NoError(t, afero.WriteFile(fs, runBase+"/CORE_SYSTEM/logcat_main_1.txt", []byte("tampered"), 0644))

	first, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)
	second, err := validator.Validate(sourceDir, runBase)
	require.NoError(t, err)

	assert.True(t, reflect.DeepEqual(first, second))
	for i := 1; i < len(first.Findings); i++ {
		assert.LessOrEqual(t, first.Findings[i-1].RelPath, first.Findings[i].RelPath)
	}
}

func TestValidateUnreadableTrees(t *testing.T) {
	_, validator := setup(t)

	_, err := validator.Validate("raw/missing_run", runBase)
	assert.Error(t, err)

	_, err = validator.Validate(sourceDir, "dataset/missing_run")
	assert.Error(t, err)
}
