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

// Package unionfind implements a fixed-capacity disjoint-set forest over
// dense int32 ids.  Slots start out unset and are added one at a time with
// MakeSet or ExtendSetByRoot; Find and Union use iterative path compression
// and union by size, so chains stay shallow even for forests with 10^8
// elements.
package unionfind

import (
	"github.com/grailbio/base/log"
)

// unset marks a slot that has not been added to any set.
const unset = int32(-1)

// U is a disjoint-set forest over [0, n).  A root slot r has parent[r] == r;
// size is maintained for roots only.
type U struct {
	parent  []int32
	size    []int32
	numSets int
}

// New returns a forest with capacity n.  All slots start unset.
func New(n int) *U {
	u := &U{
		parent: make([]int32, n),
		size:   make([]int32, n),
	}
	for i := range u.parent {
		u.parent[i] = unset
	}
	return u
}

// Len returns the capacity of the forest.
func (u *U) Len() int { return len(u.parent) }

// NumSets returns the number of live sets.
func (u *U) NumSets() int { return u.numSets }

// MakeSet turns the unset slot id into a singleton set.
func (u *U) MakeSet(id int32) {
	if u.parent[id] != unset {
		log.Panicf("unionfind: MakeSet(%d) on a slot that is already set", id)
	}
	u.parent[id] = id
	u.size[id] = 1
	u.numSets++
}

// Find returns the representative of the set containing id, or -1 if id is
// unset.  Path compression is iterative: a first pass walks to the root, a
// second pass repoints every node on the path directly at it.
func (u *U) Find(id int32) int32 {
	root := u.parent[id]
	if root == unset {
		return unset
	}
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[id] != root {
		id, u.parent[id] = u.parent[id], root
	}
	return root
}

// Union merges the sets containing a and b and returns the surviving
// representative.  The smaller set is attached under the larger; on a size
// tie the lower representative id survives, keeping results deterministic.
// Union of two members of the same set is a no-op returning their root.
func (u *U) Union(a, b int32) int32 {
	ra, rb := u.Find(a), u.Find(b)
	if ra == unset || rb == unset {
		log.Panicf("unionfind: Union(%d, %d) with an unset operand", a, b)
	}
	if ra == rb {
		return ra
	}
	if u.size[ra] < u.size[rb] || (u.size[ra] == u.size[rb] && rb < ra) {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
	u.numSets--
	return ra
}

// ExtendSetByRoot attaches the unset slot id as a direct child of root.
// root must be a representative.
func (u *U) ExtendSetByRoot(root, id int32) {
	if u.parent[root] != root {
		log.Panicf("unionfind: ExtendSetByRoot(%d, %d): %d is not a representative", root, id, root)
	}
	if u.parent[id] != unset {
		log.Panicf("unionfind: ExtendSetByRoot(%d, %d): %d is already set", root, id, id)
	}
	u.parent[id] = root
	u.size[root]++
}
