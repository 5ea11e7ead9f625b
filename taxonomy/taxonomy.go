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

// Package taxonomy maps raw acquisition file names to the fixed semantic
// categories of the safenet dataset tree. Classification is pure pattern
// matching on the base name; it performs no I/O.
package taxonomy

import (
	"path"
	"strings"
)

// A Category is one of the fixed semantic folders of a normalized run.
type Category string

// The fixed category set. RawAll is not a classification result: every file
// is mirrored into RAW_ALL unconditionally, whatever Classify returns.
const (
	Meta         Category = "META"
	CoreSystem   Category = "CORE_SYSTEM"
	Connectivity Category = "CONNECTIVITY"
	AppsPackages Category = "APPS_PACKAGES"
	Unclassified Category = "UNCLASSIFIED"
	RawAll       Category = "RAW_ALL"
)

type rule struct {
	prefix   string
	category Category
}

// Rules are evaluated top to bottom; the first match wins. Overlapping
// prefixes resolve by declared order, never by map iteration order.
var rules = []rule{
	{"device_info_", Meta},
	{"getprop_", Meta},
	{"report_summary_", Meta},

	{"logcat_main_", CoreSystem},
	{"logcat_events_", CoreSystem},
	{"logcat_radio_", CoreSystem},
	{"logcat_crash_", CoreSystem},
	{"dmesg_su_", CoreSystem},
	{"dmesg_", CoreSystem},
	{"dumpsys_activity_", CoreSystem},
	{"dumpsys_power_", CoreSystem},
	{"settings_system_", CoreSystem},
	{"settings_global_", CoreSystem},
	{"settings_secure_", CoreSystem},
	{"df_", CoreSystem},
	{"mounts_", CoreSystem},

	{"netstat_", Connectivity},
	{"ip_addr_", Connectivity},
	{"ip_route_", Connectivity},
	{"dumpsys_connectivity_", Connectivity},
	{"dumpsys_wifi_", Connectivity},
	{"dumpsys_battery_", Connectivity},

	{"dumpsys_package_", AppsPackages},
	{"packages_all_", AppsPackages},
	{"packages_third_party_", AppsPackages},
	{"ps_full_", AppsPackages},
}

// Classify returns the semantic category for a raw file name, or
// Unclassified when no rule matches. The match is case-insensitive on the
// base name.
func Classify(filename string) Category {
	name := strings.ToLower(path.Base(filepathToSlash(filename)))
	for _, r := range rules {
		if strings.HasPrefix(name, r.prefix) {
			return r.category
		}
	}
	return Unclassified
}

// RunSubdirs returns the canonical subfolders of a normalized run in
// creation order.
func RunSubdirs() []Category {
	return []Category{Meta, CoreSystem, Connectivity, AppsPackages, RawAll}
}

// Semantic returns the category folders that hold derived views, excluding
// the RAW_ALL ground-truth mirror.
func Semantic() []Category {
	return []Category{Meta, CoreSystem, Connectivity, AppsPackages}
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
