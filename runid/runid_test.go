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

package runid

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/safenet"
)

type fakeDirectory struct {
	entities map[string]safenet.Entity
}

func (d fakeDirectory) LookupEntity(label string) (safenet.Entity, error) {
	if entity, ok := d.entities[label]; ok {
		return entity, nil
	}
	return safenet.Entity{}, &safenet.UnmappedEntityError{Label: label}
}

func testDirectory() fakeDirectory {
	return fakeDirectory{entities: map[string]safenet.Entity{
		"samsung_SM-S921B_R58N123456X": {ID: 201, Label: "Samsung_S24"},
		"SpartacusAccount":             {ID: 301, Label: "SpartacusAccount"},
	}}
}

func TestADBSchemeParse(t *testing.T) {
	tests := []struct {
		name      string
		folder    string
		wantLabel string
		wantRun   string
		wantErr   bool
	}{
		{"Full", "samsung_SM-S921B_R58N123456X_20250101_000000", "samsung_SM-S921B_R58N123456X", "20250101_000000", false},
		{"ShortSerial", "device_X_20250101_000000", "device_X", "20250101_000000", false},
		{"NoTimestamp", "samsung_SM-S921B_R58N123456X", "samsung_SM-S921B_R58N123456X", "", true},
		{"BadTimestamp", "device_X_20250101", "device_X_20250101", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, runID, err := ADBScheme{}.Parse(tt.folder)
			assert.Equal(t, tt.wantLabel, label)
			assert.Equal(t, tt.wantRun, runID)
			if tt.wantErr {
				var malformed *safenet.MalformedRunNameError
				assert.True(t, errors.As(err, &malformed))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLabelSchemeParse(t *testing.T) {
	label, runID, err := LabelScheme{Label: "SpartacusAccount"}.Parse("takeout_20250301_120000")
	require.NoError(t, err)
	assert.Equal(t, "SpartacusAccount", label)
	assert.Equal(t, "20250301_120000", runID)

	_, _, err = LabelScheme{Label: "SpartacusAccount"}.Parse("takeout_export")
	var malformed *safenet.MalformedRunNameError
	assert.True(t, errors.As(err, &malformed))

	_, _, err = LabelScheme{}.Parse("takeout_20250301_120000")
	assert.Error(t, err)
	assert.False(t, errors.As(err, &malformed))
}

func TestResolve(t *testing.T) {
	resolver := Resolver{Scheme: ADBScheme{}, Directory: testDirectory()}

	res, err := resolver.Resolve("samsung_SM-S921B_R58N123456X_20250101_000000")
	require.NoError(t, err)
	assert.Equal(t, int64(201), res.EntityID)
	assert.Equal(t, "Samsung_S24", res.EntityLabel)
	assert.Equal(t, "20250101_000000", res.RunID)
	assert.False(t, res.Degraded)
	require.NotNil(t, res.AcquisitionTime)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), res.AcquisitionTime.UTC())
}

func TestResolveDegraded(t *testing.T) {
	resolver := Resolver{Scheme: ADBScheme{}, Directory: testDirectory()}

	// Without a timestamp token the raw folder name becomes the run id.
	res, err := resolver.Resolve("samsung_SM-S921B_R58N123456X")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "samsung_SM-S921B_R58N123456X", res.RunID)
	assert.Nil(t, res.AcquisitionTime)
}

func TestResolveUnmappedEntity(t *testing.T) {
	resolver := Resolver{Scheme: ADBScheme{}, Directory: testDirectory()}

	_, err := resolver.Resolve("unknown_device_ABC123_20250101_000000")
	var unmapped *safenet.UnmappedEntityError
	require.True(t, errors.As(err, &unmapped))
	assert.Equal(t, "unknown_device_ABC123", unmapped.Label)
}

func TestParseRunTime(t *testing.T) {
	ts := ParseRunTime("20250101_123456")
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 34, 56, 0, time.UTC), ts.UTC())

	assert.Nil(t, ParseRunTime("not_a_timestamp"))
	assert.Nil(t, ParseRunTime("20251301_000000"))
}
