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
	"bytes"
	"context"
	"encoding/gob"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

// StatCache accumulates sample rows across successive runs.  It is owned by
// the caller and passed to Run; Clear starts a fresh iteration.  All values
// are kept in float64; narrowing happens at table write-out.
type StatCache struct {
	RunID       []int32
	H           []float64
	NormH       []float64
	NumComps    []int32
	TotalVol    []float64
	NormVol     []float64
	LargestVol  []float64
	Percolating []bool
}

// NumRows returns the number of cached rows.
func (c *StatCache) NumRows() int { return len(c.H) }

// Clear drops all cached rows.
func (c *StatCache) Clear() {
	c.RunID = c.RunID[:0]
	c.H = c.H[:0]
	c.NormH = c.NormH[:0]
	c.NumComps = c.NumComps[:0]
	c.TotalVol = c.TotalVol[:0]
	c.NormVol = c.NormVol[:0]
	c.LargestVol = c.LargestVol[:0]
	c.Percolating = c.Percolating[:0]
}

func (c *StatCache) grow(n int) {
	c.RunID = append(make([]int32, 0, len(c.RunID)+n), c.RunID...)
	c.H = append(make([]float64, 0, len(c.H)+n), c.H...)
	c.NormH = append(make([]float64, 0, len(c.NormH)+n), c.NormH...)
	c.NumComps = append(make([]int32, 0, len(c.NumComps)+n), c.NumComps...)
	c.TotalVol = append(make([]float64, 0, len(c.TotalVol)+n), c.TotalVol...)
	c.NormVol = append(make([]float64, 0, len(c.NormVol)+n), c.NormVol...)
	c.LargestVol = append(make([]float64, 0, len(c.LargestVol)+n), c.LargestVol...)
	c.Percolating = append(make([]bool, 0, len(c.Percolating)+n), c.Percolating...)
}

func (c *StatCache) appendRow(runID int32, h, normH float64, numComps int, totalVol, normVol, largestVol float64, percolating bool) {
	c.RunID = append(c.RunID, runID)
	c.H = append(c.H, h)
	c.NormH = append(c.NormH, normH)
	c.NumComps = append(c.NumComps, int32(numComps))
	c.TotalVol = append(c.TotalVol, totalVol)
	c.NormVol = append(c.NormVol, normVol)
	c.LargestVol = append(c.LargestVol, largestVol)
	c.Percolating = append(c.Percolating, percolating)
}

const (
	cacheVersionHeader = "percstatsversion"
	cacheVersion       = "PERCSTATS_V1"
)

// Save writes the cache to path as a zstd-compressed recordio file, so a
// multi-run sweep can accumulate across process invocations.
func (c *StatCache) Save(ctx context.Context, path string) (err error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(cacheVersionHeader, cacheVersion)
	b := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(b).Encode(c); err != nil {
		return err
	}
	w.Append(b.Bytes())
	return w.Finish()
}

// Load replaces the cache contents with the rows stored at path.
func (c *StatCache) Load(ctx context.Context, path string) (err error) {
	recordiozstd.Init()
	in, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == cacheVersionHeader {
			if kv.Value.(string) != cacheVersion {
				return errors.New("percolation: stat cache version mismatch: " + kv.Value.(string))
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return errors.New("percolation: not a stat cache file: " + path)
	}
	if !r.Scan() {
		if e := r.Err(); e != nil {
			return e
		}
		return errors.New("percolation: stat cache file has no record: " + path)
	}
	loaded := StatCache{}
	if err := gob.NewDecoder(bytes.NewReader(r.Get().([]byte))).Decode(&loaded); err != nil {
		return err
	}
	*c = loaded
	log.Printf("Loaded %d cached stat rows from %s", c.NumRows(), path)
	return r.Err()
}
