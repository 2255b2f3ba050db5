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

import (
	"math/rand"

	"github.com/grailbio/perc/dataset"
)

// ShuffleChannel returns a copy of c with its per-vertex elements randomly
// permuted under the given seed.  Shuffled channels serve as null-model
// baselines: the value histogram is preserved, all spatial structure is
// destroyed.  Multi-component channels are permuted element-wise, keeping
// the components of one vertex together.
func ShuffleChannel(c *dataset.Channel, seed int64) *dataset.Channel {
	out := &dataset.Channel{
		Name:   "Shuffled " + c.Name,
		Arity:  c.Arity,
		Values: append([]float64(nil), c.Values...),
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(out.Len(), func(i, j int) {
		a, b := i*c.Arity, j*c.Arity
		for k := 0; k < c.Arity; k++ {
			out.Values[a+k], out.Values[b+k] = out.Values[b+k], out.Values[a+k]
		}
	})
	return out
}
