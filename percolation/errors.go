// Copyright 2019 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package percolation

import "github.com/grailbio/base/errors"

var (
	// ErrInvalidConfig is returned when Opts are inconsistent (sample count
	// below one, reversed window, percentage trim outside [0, 100]).
	ErrInvalidConfig = errors.New("percolation: invalid configuration")
	// ErrEmptySweep is returned when the configured window selects no sweep
	// positions.  An input consisting only of excluded sentinels is not an
	// error; it yields an empty table.
	ErrEmptySweep = errors.New("percolation: empty sweep window")
	// ErrSnapshotOutOfRange is returned when SnapshotAt names a sample index
	// beyond the rows the run emitted.  The emitted rows stand.
	ErrSnapshotOutOfRange = errors.New("percolation: snapshot sample out of range")
)
