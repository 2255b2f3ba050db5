package main

// perc-analysis sweeps a scalar derived from raw velocity time-slices and
// reports percolation statistics.
//
// Example 1: sweep slices 1..16 of a channel-flow dataset, value-based
// sampling, percolation along x:
//
//    perc-analysis -dir=/scratch/duct -dims=384,96,96 -slices=1-16 \
//        -rms=/scratch/duct/STAT/uv_rms -perc-dim=x -stats-output=stats.tsv
//
// Example 2: null-model baseline of the same sweep (shuffled scalar):
//
//    perc-analysis -dir=/scratch/duct -dims=384,96,96 -slices=1-16 \
//        -rms=/scratch/duct/STAT/uv_rms -shuffle -fixed-seed -seed=17
//
// Example 3: freeze cluster output at sample 40 and classify clusters
// against an 8^3 block partition:
//
//    perc-analysis -dir=/scratch/duct -dims=384,96,96 -slices=7-7 \
//        -rms=/scratch/duct/STAT/uv_rms -snapshot-at=40 -stop-early \
//        -local-global -block-size=8,8,8 -clusters-output=clusters.tsv

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/perc/dataset"
	"github.com/grailbio/perc/encoding/rawvel"
	"github.com/grailbio/perc/lattice"
	"github.com/grailbio/perc/percolation"
	"github.com/grailbio/perc/transform"
)

// peakMem records high-water memory use across the sweep loop.  The sweep
// table and the union-find arena dominate, so the peak is what matters when
// sizing a machine for a dataset, not the instantaneous numbers.
type peakMem struct {
	mu         sync.Mutex
	heapInuse  uint64
	sys        uint64
	totalAlloc uint64
}

func (p *peakMem) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heapInuse < ms.HeapInuse {
		p.heapInuse = ms.HeapInuse
	}
	if p.sys < ms.Sys {
		p.sys = ms.Sys
	}
	p.totalAlloc = ms.TotalAlloc
}

func (p *peakMem) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("peak heap %d MiB, peak sys %d MiB, cumulative alloc %d MiB",
		p.heapInuse>>20, p.sys>>20, p.totalAlloc>>20)
}

// Collection of options set via cmdline flags
type analysisFlags struct {
	dir           string
	dims          string
	slices        string
	periodicX     bool
	periodicY     bool
	periodicZ     bool
	rmsPath       string
	scalarChannel string

	shuffle   bool
	fixedSeed bool
	seed      int64

	sampleMode  string
	percDim     string
	usePercent  bool
	clearCache  bool
	localGlobal bool
	blockSize   string

	statsOutputPath    string
	clustersOutputPath string
	cachePath          string
}

func parseTriple(s, flagName string) [3]int32 {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		log.Fatalf("-%s must be three comma-separated integers, got %q", flagName, s)
	}
	var t [3]int32
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			log.Fatalf("-%s: %v", flagName, err)
		}
		t[i] = int32(v)
	}
	return t
}

func parseSliceRange(s string) (first, last int) {
	parts := strings.SplitN(s, "-", 2)
	var err error
	if first, err = strconv.Atoi(parts[0]); err != nil {
		log.Fatalf("-slices: %v", err)
	}
	last = first
	if len(parts) == 2 {
		if last, err = strconv.Atoi(parts[1]); err != nil {
			log.Fatalf("-slices: %v", err)
		}
	}
	if first < 1 || last < first {
		log.Fatalf("-slices: bad range %q", s)
	}
	return first, last
}

func parsePercDim(s string) lattice.PercDim {
	switch strings.ToLower(s) {
	case "x":
		return lattice.X
	case "y":
		return lattice.Y
	case "z":
		return lattice.Z
	case "any":
		return lattice.Any
	case "all":
		return lattice.All
	}
	log.Fatalf("-perc-dim must be one of x, y, z, any, all; got %q", s)
	panic("unreachable")
}

// sweepScalar prepares the scalar channel for one slice: the RMS-normalized
// transform when -rms is given, a named channel otherwise, shuffled when the
// null model is requested.
func sweepScalar(ctx context.Context, ds *dataset.D, flags analysisFlags, seed int64) (*dataset.Scalar, error) {
	name := flags.scalarChannel
	if flags.rmsPath != "" {
		variantName, variant, err := transform.VariantForFile(flags.rmsPath)
		if err != nil {
			return nil, err
		}
		nPlane := int(ds.Lattice.Dims[0]) * int(ds.Lattice.Dims[1])
		rms, err := rawvel.LoadComponent(ctx, flags.rmsPath, nPlane)
		if err != nil {
			return nil, err
		}
		if _, err := transform.Apply(ds, rms, variant, transform.DefaultOpts); err != nil {
			return nil, err
		}
		log.Printf("Transformed velocity with variant %s", variantName)
		name = transform.ScalarName
	}
	if flags.shuffle {
		c, ok := ds.Channel(name)
		if !ok {
			return nil, fmt.Errorf("no channel %q to shuffle", name)
		}
		shuffled := percolation.ShuffleChannel(c, seed)
		ds.Add(shuffled)
		name = shuffled.Name
		log.Printf("Shuffled %q with seed %d", c.Name, seed)
	}
	return ds.Scalar(name)
}

func writeTable(ctx context.Context, path string, write func(out file.File) error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panic(err)
	}
	if err := write(out); err != nil {
		log.Panic(err)
	}
	if err := out.Close(ctx); err != nil {
		log.Panic(err)
	}
}

func main() {
	opts := percolation.DefaultOpts
	flags := analysisFlags{}
	flag.StringVar(&flags.dir, "dir", "", "Directory holding VELOCITY/ and STAT/ raw data.")
	flag.StringVar(&flags.dims, "dims", "", "Grid vertex counts as nx,ny,nz.")
	flag.StringVar(&flags.slices, "slices", "1-1", "Time slice range, e.g. 1-71 or 7.")
	flag.BoolVar(&flags.periodicX, "periodic-x", false, "Wrap-around adjacency along x.")
	flag.BoolVar(&flags.periodicY, "periodic-y", false, "Wrap-around adjacency along y.")
	flag.BoolVar(&flags.periodicZ, "periodic-z", false, "Wrap-around adjacency along z.")
	flag.StringVar(&flags.rmsPath, "rms", "", `RMS mask file. When set, the sweep scalar is
|variant|/rms with the variant picked from the file name prefix (uv_..., uw_..., vw_..., v2w2_..., K_..., k_...).`)
	flag.StringVar(&flags.scalarChannel, "scalar-channel", transform.ScalarName,
		"Channel to sweep when -rms is not given. Must be single-component.")

	flag.BoolVar(&flags.shuffle, "shuffle", false, "Sweep a shuffled copy of the scalar (null-model baseline).")
	flag.BoolVar(&flags.fixedSeed, "fixed-seed", false, "Use -seed for shuffling instead of a fresh seed.")
	flag.Int64Var(&flags.seed, "seed", 0, "Shuffle seed when -fixed-seed is set.")

	flag.StringVar(&flags.sampleMode, "sample-mode", "value", "Sample placement: value or voxel.")
	flag.IntVar(&opts.NumSamples, "num-samples", opts.NumSamples, "Target sample count per run.")
	flag.BoolVar(&flags.usePercent, "use-percent", true, "Trim the sweep window by percentage instead of an absolute H range.")
	flag.Float64Var(&opts.Percent, "percent", opts.Percent, "Percentage of sweep positions trimmed from the high end.")
	flag.BoolVar(&opts.CutBothEnds, "cut-both-ends", opts.CutBothEnds, "Also trim the low end (super- vs sub-level comparison).")
	flag.Float64Var(&opts.HMin, "hmin", 0, "Lower end of the absolute sweep window.")
	flag.Float64Var(&opts.HMax, "hmax", 0, "Upper end of the absolute sweep window.")
	flag.StringVar(&flags.percDim, "perc-dim", "x", "Percolation test dimension: x, y, z, any, all.")
	flag.IntVar(&opts.SnapshotAt, "snapshot-at", -1, "Sample index at which to emit cluster output (-1: never).")
	flag.BoolVar(&opts.StopEarly, "stop-early", false, "Halt the sweep once the cluster snapshot is emitted.")

	flag.BoolVar(&flags.localGlobal, "local-global", false, "Classify snapshot clusters as local/global per block partition.")
	flag.StringVar(&flags.blockSize, "block-size", "8,8,8", "Block partition size bx,by,bz for -local-global.")

	flag.StringVar(&flags.statsOutputPath, "stats-output", "./percolation-stats.tsv", "TSV file for the per-sample statistics table.")
	flag.StringVar(&flags.clustersOutputPath, "clusters-output", "./cluster-stats.tsv", "TSV file for the per-cluster snapshot table.")
	flag.StringVar(&flags.cachePath, "cache", "", "Recordio file carrying the stat cache across invocations.")
	flag.BoolVar(&flags.clearCache, "clear-cache", false, "Start a fresh iteration: drop cached rows before the first run.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()
	var mem peakMem
	go func() {
		for range time.Tick(time.Second) {
			mem.sample()
		}
	}()

	if flags.dir == "" || flags.dims == "" {
		log.Fatal("-dir and -dims are required")
	}
	dims := parseTriple(flags.dims, "dims")
	lat := lattice.New(dims[0], dims[1], dims[2], flags.periodicX, flags.periodicY, flags.periodicZ)
	first, last := parseSliceRange(flags.slices)
	switch flags.sampleMode {
	case "value":
		opts.SampleMode = percolation.ValueBased
	case "voxel":
		opts.SampleMode = percolation.VoxelBased
	default:
		log.Fatalf("-sample-mode must be value or voxel, got %q", flags.sampleMode)
	}
	if !flags.usePercent {
		opts.Window = percolation.Absolute
	}
	opts.PercDim = parsePercDim(flags.percDim)

	seed := flags.seed
	if flags.shuffle && !flags.fixedSeed {
		seed = time.Now().UnixNano()
		log.Printf("Shuffle seed: %d", seed)
	}

	cache := &percolation.StatCache{}
	if flags.cachePath != "" && !flags.clearCache {
		if err := cache.Load(ctx, flags.cachePath); err != nil {
			log.Printf("No usable stat cache at %s (%v), starting fresh", flags.cachePath, err)
		}
	}

	var (
		table *percolation.StatsTable
		snap  *percolation.Snapshot
	)
	for slice := first; slice <= last; slice++ {
		ds, err := rawvel.LoadTimeSlice(ctx, flags.dir, slice, lat)
		if err != nil {
			log.Error.Printf("t=%d: %v", slice, err)
			continue
		}
		scalar, err := sweepScalar(ctx, ds, flags, seed)
		if err != nil {
			log.Error.Printf("t=%d: %v", slice, err)
			continue
		}
		opts.RunID = int32(slice)
		t, s, err := percolation.Run(ctx, scalar, dataset.ConstVolume(1), lat, cache, opts)
		if err != nil {
			log.Error.Printf("t=%d: sweep: %v", slice, err)
			continue
		}
		table = t
		if s != nil {
			snap = s
			log.Printf("t=%d: snapshot at H=%g with %d clusters", slice, s.Threshold, len(s.Clusters))
		}
		log.Printf("t=%d: %d accumulated rows", slice, cache.NumRows())
	}

	if table != nil {
		writeTable(ctx, flags.statsOutputPath, func(out file.File) error {
			return table.WriteTSV(out.Writer(ctx))
		})
		log.Printf("Wrote %d stat rows to %s", table.NumRows(), flags.statsOutputPath)
	}
	if snap != nil {
		writeTable(ctx, flags.clustersOutputPath, func(out file.File) error {
			return snap.WriteClusterTSV(out.Writer(ctx))
		})
		log.Printf("Wrote %d cluster rows to %s", len(snap.Clusters), flags.clustersOutputPath)
		if flags.localGlobal {
			stats, err := percolation.ClassifyLocalGlobal(snap, lat, parseTriple(flags.blockSize, "block-size"))
			if err != nil {
				log.Error.Printf("local/global: %v", err)
			} else {
				log.Printf("Local/global: %d local, %d global clusters (%.2f%% global), %.2f%% global voxels",
					stats.LocalClusters, stats.GlobalClusters,
					stats.GlobalClusterPercent, stats.GlobalVoxelPercent)
			}
		}
	}
	if flags.cachePath != "" {
		if err := cache.Save(ctx, flags.cachePath); err != nil {
			log.Error.Printf("save cache: %v", err)
		} else {
			log.Printf("Saved %d cached rows to %s", cache.NumRows(), flags.cachePath)
		}
	}
	mem.sample()
	log.Printf("Memory: %s", mem.String())
	log.Printf("All done")
}
