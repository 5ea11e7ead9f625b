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

// Package safenet normalizes raw forensic acquisition dumps into a canonical,
// audit-stable dataset tree and tracks every acquisition run in a sqlite
// ledger.
//
// The safenet dataset format
//
// The dataset format implements the following conventions:
//     - The dataset is a folder containing one subtree per entity (a device or account from the entity master registry).
//     - Every acquisition run lives under <entity>/<tool>-<version>/<run_id>/.
//     - RAW_ALL holds a byte-identical mirror of every file of the raw acquisition; it is the ground truth.
//     - META, CORE_SYSTEM, CONNECTIVITY and APPS_PACKAGES hold derived category views; a category copy is never authoritative.
//     - META/acquisition_meta.json describes the run and is merged, never replaced, on re-runs.
//     - The acquisition ledger holds exactly one row per (entity, run, tool, tool version); rows are never deleted.
//
// Structure
//
// An example directory structure for a dataset:
//     DataSetGlobal/
//     ├── Samsung_S24
//     │   └── android_log_dump-0.2
//     │       └── 20250101_000000
//     │           ├── RAW_ALL
//     │           │   ├── dumpsys_wifi_1.txt
//     │           │   └── logcat_main_1.txt
//     │           ├── META
//     │           │   └── acquisition_meta.json
//     │           ├── CORE_SYSTEM
//     │           │   └── logcat_main_1.txt
//     │           ├── CONNECTIVITY
//     │           │   └── dumpsys_wifi_1.txt
//     │           └── APPS_PACKAGES
//     └── ledger.db
package safenet
