package join

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	dberror "spilljoin/pkg/error"
	"spilljoin/pkg/execution/join/internal/hashindex"
	"spilljoin/pkg/execution/join/internal/spill"
	"spilljoin/pkg/iterator"
	"spilljoin/pkg/logging"
	"spilljoin/pkg/resource"
	"spilljoin/pkg/table"
	"spilljoin/pkg/tuple"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const component = "HybridHashJoin"

// progressEvery is the row interval between progress reports.
const progressEvery = 1024

// HybridHashJoin joins two tables by indexing one in memory and streaming
// the other past it. When the index outgrows the memory budget, buckets are
// moved to disk and the matching streamed rows follow them; every spilled
// bucket pair is then joined by the same procedure one level deeper.
//
// A HybridHashJoin runs once.
type HybridHashJoin struct {
	spec *Specification
	opts Options
	ran  atomic.Bool
}

// NewHybridHashJoin validates opts and prepares a join of spec.
func NewHybridHashJoin(spec *Specification, opts Options) (*HybridHashJoin, error) {
	if spec == nil {
		return nil, dberror.InvalidSpecification("specification is nil")
	}
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &HybridHashJoin{spec: spec, opts: o}, nil
}

// JoinOutputCombined runs the join and returns all retained rows in one
// table with the combined schema.
func (j *HybridHashJoin) JoinOutputCombined(ctx context.Context) (*JoinResult[OutputCombined], error) {
	tables, stats, err := j.run(ctx, "JoinOutputCombined", false)
	if err != nil {
		return nil, err
	}
	return &JoinResult[OutputCombined]{
		Output:     OutputCombined{Table: tables.Combined},
		Statistics: stats,
	}, nil
}

// JoinOutputSplit runs the join and returns matches, unmatched left rows
// and unmatched right rows as separate tables.
func (j *HybridHashJoin) JoinOutputSplit(ctx context.Context) (*JoinResult[OutputSplit], error) {
	tables, stats, err := j.run(ctx, "JoinOutputSplit", true)
	if err != nil {
		return nil, err
	}
	return &JoinResult[OutputSplit]{
		Output: OutputSplit{
			Matches:    tables.Matches,
			LeftOuter:  tables.LeftOuter,
			RightOuter: tables.RightOuter,
		},
		Statistics: stats,
	}, nil
}

func (j *HybridHashJoin) run(ctx context.Context, op string, split bool) (*Tables, Statistics, error) {
	if !j.ran.CompareAndSwap(false, true) {
		return nil, Statistics{}, dberror.InvalidSpecification("join already executed, create a new HybridHashJoin")
	}
	if j.spec.OutputOrder() == OrderProbeHash && j.opts.AssumeMemoryLow {
		return nil, Statistics{}, errProbeHashOnDisk()
	}

	start := time.Now()
	r, err := newJoinRun(ctx, j.spec, j.opts, split)
	if err != nil {
		return nil, Statistics{}, dberror.Wrap(err, dberror.KindStorageFailure, op, component)
	}
	defer r.cleanup()

	tables, err := r.execute(ctx)
	if err != nil {
		r.log.Error("join failed", "error", err)
		return nil, Statistics{}, dberror.Wrap(r.classify(ctx, err), dberror.KindStorageFailure, op, component)
	}

	stats := r.statistics(time.Since(start))
	r.log.Info("join finished",
		"mode", stats.Mode,
		"matches", stats.Matches,
		"partitions", stats.Partitions,
		"spilled_bytes", stats.SpilledBytes,
		"duration", stats.Duration)
	return tables, stats, nil
}

func errProbeHashOnDisk() error {
	return dberror.UnsupportedCombination(
		"PROBE_HASH output order is only available for in-memory execution",
		"use LEFT_RIGHT or ARBITRARY order, or raise the memory budget")
}

// ==================== Run state ====================

// joinRun is the state of one invocation shared by all partition passes.
type joinRun struct {
	spec      *Specification
	opts      Options
	id        string
	log       *slog.Logger
	monitor   ExecutionMonitor
	ctrl      *resource.Controller
	container JoinContainer

	hashed       Side
	hashedCols   []int
	streamedCols []int
	rowsTotal    int64

	dirMu sync.Mutex
	dir   *spill.Dir

	mode     ExecutionMode
	spilling atomic.Bool

	rowsRead       atomic.Int64
	leftRows       atomic.Int64
	rightRows      atomic.Int64
	matches        atomic.Int64
	leftUnmatched  atomic.Int64
	rightUnmatched atomic.Int64
	partitions     atomic.Int64
	partsTotal     atomic.Int64
	partsDone      atomic.Int64
	skewFallbacks  atomic.Int64
	maxLevel       atomic.Int64
}

func newJoinRun(ctx context.Context, spec *Specification, opts Options, split bool) (*joinRun, error) {
	id := uuid.NewString()
	log := logging.WithJoin(id)

	monitor := opts.Monitor
	if monitor == nil {
		monitor = NewContextMonitor(ctx, nil)
	}

	plan, err := NewCostEstimator(opts.MemoryBudgetBytes).Plan(spec, opts.HashSide)
	if err != nil {
		return nil, fmt.Errorf("estimate inputs: %w", err)
	}

	hashedSettings := spec.Settings(plan.HashedSide)
	streamedSettings := spec.Settings(plan.HashedSide.Other())

	r := &joinRun{
		spec:    spec,
		opts:    opts,
		id:      id,
		log:     log,
		monitor: monitor,
		ctrl: resource.NewController(resource.Config{
			MemoryLimitBytes:   opts.MemoryBudgetBytes,
			MaxWorkers:         int64(opts.Parallelism),
			IOLimitBytesPerSec: opts.SpillBytesPerSec,
		}),
		container:    NewJoinContainer(spec, split, plan.HashedSide, opts.NewBuilder),
		hashed:       plan.HashedSide,
		hashedCols:   hashedSettings.joinIndices,
		streamedCols: streamedSettings.joinIndices,
		rowsTotal:    max(hashedSettings.RowCountEstimate(), 0) + max(streamedSettings.RowCountEstimate(), 0),
	}

	log.Info("starting join",
		"hashed_side", plan.HashedSide,
		"hashed_rows", plan.Hashed.Rows,
		"streamed_rows", plan.Streamed.Rows,
		"order", spec.OutputOrder(),
		"budget", opts.MemoryBudgetBytes,
		"expect_spill", plan.ExpectSpill)
	if plan.ExpectSpill && spec.OutputOrder() == OrderProbeHash {
		log.Warn("hashed input is predicted to exceed the memory budget, PROBE_HASH order will fail if it spills",
			"predicted_bytes", plan.Hashed.Bytes())
	}
	return r, nil
}

func (r *joinRun) execute(ctx context.Context) (*Tables, error) {
	r.monitor.SetProgress(0, "reading inputs")

	root := pass{
		level:    0,
		bucket:   -1,
		hashed:   input{table: r.spec.Settings(r.hashed).Table()},
		streamed: input{table: r.spec.Settings(r.hashed.Other()).Table()},
	}
	if err := r.joinPass(ctx, root); err != nil {
		return nil, err
	}
	if err := r.checkCanceled(ctx); err != nil {
		return nil, err
	}

	tables, err := r.container.Drain()
	if err != nil {
		return nil, err
	}
	r.monitor.SetProgress(1, "done")
	return tables, nil
}

// cleanup removes the spill directory. A failure is logged, not returned.
func (r *joinRun) cleanup() {
	r.dirMu.Lock()
	defer r.dirMu.Unlock()
	if r.dir == nil {
		return
	}
	if err := r.dir.Close(); err != nil {
		r.log.Warn("failed to remove spill directory", "path", r.dir.Path(), "error", err)
		return
	}
	r.log.Debug("removed spill directory", "path", r.dir.Path())
}

// spillDir creates the spill directory on first use.
func (r *joinRun) spillDir() (*spill.Dir, error) {
	r.dirMu.Lock()
	defer r.dirMu.Unlock()
	if r.dir != nil {
		return r.dir, nil
	}

	dir, err := spill.NewDir(spill.Config{
		FS:          r.opts.SpillFS,
		Parent:      r.opts.SpillDir,
		Name:        "spilljoin-" + r.id,
		Compression: r.opts.Compression.codec(),
		BlockSize:   r.opts.SpillBlockSize,
		Controller:  r.ctrl,
	})
	if err != nil {
		return nil, err
	}
	r.dir = dir
	r.log.Info("created spill directory", "path", dir.Path(), "compression", r.opts.Compression)
	return dir, nil
}

func (r *joinRun) checkCanceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return dberror.Cancelled(context.Cause(ctx))
	}
	if err := r.monitor.CheckCanceled(); err != nil {
		return dberror.Cancelled(err)
	}
	return nil
}

// classify maps context errors surfacing from IO waits to Cancelled. Other
// errors keep their kind; untyped ones become storage failures in run.
func (r *joinRun) classify(ctx context.Context, err error) error {
	if errors.Is(err, dberror.ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if cause := context.Cause(ctx); cause != nil {
			return dberror.Cancelled(cause)
		}
		return dberror.Cancelled(err)
	}
	return err
}

func (r *joinRun) statistics(d time.Duration) Statistics {
	stats := Statistics{
		JoinID:         r.id,
		Mode:           r.mode,
		HashedSide:     r.hashed,
		Partitions:     r.partitions.Load(),
		MaxLevel:       int(r.maxLevel.Load()),
		LeftRows:       r.leftRows.Load(),
		RightRows:      r.rightRows.Load(),
		Matches:        r.matches.Load(),
		LeftUnmatched:  r.leftUnmatched.Load(),
		RightUnmatched: r.rightUnmatched.Load(),
		PeakMemory:     r.ctrl.PeakMemoryUsage(),
		SkewFallbacks:  r.skewFallbacks.Load(),
		Duration:       d,
	}
	r.dirMu.Lock()
	if r.dir != nil {
		stats.SpilledBytes = r.dir.BytesWritten()
		stats.SpillFiles = r.dir.Files()
	}
	r.dirMu.Unlock()
	return stats
}

// ==================== Output ====================

func (r *joinRun) match(hashedRow, streamedRow *tuple.Tuple) error {
	r.matches.Add(1)
	if !r.spec.RetainMatches() {
		return nil
	}
	if r.hashed == SideLeft {
		return r.container.AddMatch(hashedRow, streamedRow)
	}
	return r.container.AddMatch(streamedRow, hashedRow)
}

func (r *joinRun) unmatched(side Side, row *tuple.Tuple) error {
	if side == SideLeft {
		r.leftUnmatched.Add(1)
		if r.spec.RetainLeftUnmatched() {
			return r.container.AddLeftOuter(row)
		}
		return nil
	}
	r.rightUnmatched.Add(1)
	if r.spec.RetainRightUnmatched() {
		return r.container.AddRightOuter(row)
	}
	return nil
}

// rowRead counts an input row of side at level 0 and reports progress.
func (r *joinRun) rowRead(side Side, level int) {
	if level > 0 {
		return
	}
	if side == SideLeft {
		r.leftRows.Add(1)
	} else {
		r.rightRows.Add(1)
	}
	if n := r.rowsRead.Add(1); n%progressEvery == 0 {
		r.progress()
	}
}

// progress reports rows read while the inputs are scanned. Once buckets are
// spilled the scan covers the first half and finished partitions the second.
func (r *joinRun) progress() {
	if total := r.partsTotal.Load(); total > 0 {
		done := r.partsDone.Load()
		r.monitor.SetProgress(0.5+0.5*float64(done)/float64(total),
			fmt.Sprintf("joined %d of %d partitions", done, total))
		return
	}
	if r.rowsTotal <= 0 {
		return
	}
	read := r.rowsRead.Load()
	fraction := float64(read) / float64(r.rowsTotal)
	if r.spilling.Load() {
		fraction /= 2
	}
	r.monitor.SetProgress(fraction, fmt.Sprintf("read %d of %d rows", read, r.rowsTotal))
}

func (r *joinRun) noteLevel(level int) {
	for {
		cur := r.maxLevel.Load()
		if int64(level) <= cur || r.maxLevel.CompareAndSwap(cur, int64(level)) {
			return
		}
	}
}

// ==================== Partition passes ====================

// input is the row source of one side in one pass: an input table at the
// top level, a spilled partition below it.
type input struct {
	table     table.Table
	partition *spill.Partition
}

type source interface {
	iterator.TupleIterator
	Close() error
}

func (r *joinRun) open(ctx context.Context, in input) (source, error) {
	if in.partition == nil {
		return table.Rows(in.table, r.opts.BlockSize), nil
	}
	reader, err := in.partition.Open(ctx)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// drainUnmatched reports every row of in as unmatched on side.
func (r *joinRun) drainUnmatched(ctx context.Context, in input, side Side) error {
	src, err := r.open(ctx, in)
	if err != nil {
		return err
	}
	defer src.Close()

	return iterator.ForEach[*tuple.Tuple](src, func(row *tuple.Tuple) error {
		if err := r.checkCanceled(ctx); err != nil {
			return err
		}
		return r.unmatched(side, row)
	})
}

// pass is one partitioning level over a pair of inputs.
type pass struct {
	level    int
	bucket   int
	path     string
	hashed   input
	streamed input
}

// child is a spilled bucket pair waiting to be joined. Either partition may
// be nil when no row of that side landed in the bucket.
type child struct {
	pass
	hashedPart   *spill.Partition
	streamedPart *spill.Partition
}

func (r *joinRun) joinPass(ctx context.Context, p pass) error {
	log := r.log
	if p.level > 0 {
		log = logging.WithPartition(r.log, p.level, p.bucket)
	}
	r.noteLevel(p.level)

	n := r.opts.NumPartitions
	part := hashindex.NewPartitioner(p.level, n)
	ix := hashindex.New(n)
	sp := newSpiller(r, p.path)

	var reserved, forced int64
	release := func() {
		r.ctrl.ReleaseMemory(reserved)
		r.ctrl.ReleaseForced(forced)
		reserved, forced = 0, 0
	}
	defer release()

	force := p.level > 0 && p.level >= r.opts.MaxRecursionDepth
	if force {
		r.skewFallbacks.Add(1)
		log.Warn("recursion limit reached, joining partition in memory past the budget",
			"max_depth", r.opts.MaxRecursionDepth)
	}
	if p.level == 0 && r.opts.AssumeMemoryLow {
		for b := range n {
			ix.Evict(b)
		}
		r.spilling.Store(true)
	}

	// Build: index the hashed input, evicting buckets under memory pressure.
	evict := func(victim int) error {
		rows, freed := ix.Evict(victim)
		r.ctrl.ReleaseMemory(freed)
		reserved -= freed
		if p.level == 0 {
			r.spilling.Store(true)
		}
		log.Debug("evicted bucket", "victim", victim, "rows", len(rows), "resident", ix.Resident())
		for _, row := range rows {
			if err := sp.writeHashed(ctx, victim, row); err != nil {
				return err
			}
		}
		return nil
	}

	hashedSrc, err := r.open(ctx, p.hashed)
	if err != nil {
		return err
	}
	defer hashedSrc.Close()

	var key []byte
	err = iterator.ForEach[*tuple.Tuple](hashedSrc, func(row *tuple.Tuple) error {
		if err := r.checkCanceled(ctx); err != nil {
			return err
		}
		r.rowRead(r.hashed, p.level)

		var ok bool
		var err error
		if key, ok, err = hashindex.AppendKey(key[:0], row, r.hashedCols, r.spec.ComparisonMode()); err != nil {
			return err
		}
		if !ok {
			return r.unmatched(r.hashed, row)
		}
		b := part.Bucket(key)
		if ix.IsEvicted(b) {
			return sp.writeHashed(ctx, b, row)
		}

		size := hashindex.EstimateSize(row)
		if force {
			r.ctrl.ForceMemory(size)
			forced += size
			return ix.Insert(b, key, row, size)
		}
		for {
			err := r.ctrl.AcquireMemory(size)
			if err == nil {
				reserved += size
				return ix.Insert(b, key, row, size)
			}
			if !errors.Is(err, resource.ErrMemoryLimitExceeded) {
				return err
			}
			if r.spec.OutputOrder() == OrderProbeHash {
				return errProbeHashOnDisk()
			}
			victim, _ := ix.HighestResident()
			if err := evict(victim); err != nil {
				return err
			}
			if victim == b {
				return sp.writeHashed(ctx, b, row)
			}
		}
	})
	if err != nil {
		return err
	}

	if p.level == 0 {
		switch ix.Resident() {
		case n:
			r.mode = InMemory
		case 0:
			r.mode = OnDisk
		default:
			r.mode = PartiallyInMemory
		}
		if r.mode != InMemory {
			log.Info("switching to partitioned execution",
				"mode", r.mode, "resident_buckets", ix.Resident(), "buckets", n)
		}
	}

	// Probe: stream the other input past the resident buckets.
	streamedSrc, err := r.open(ctx, p.streamed)
	if err != nil {
		return err
	}
	defer streamedSrc.Close()

	streamed := r.hashed.Other()
	err = iterator.ForEach[*tuple.Tuple](streamedSrc, func(row *tuple.Tuple) error {
		if err := r.checkCanceled(ctx); err != nil {
			return err
		}
		r.rowRead(streamed, p.level)

		var ok bool
		var err error
		if key, ok, err = hashindex.AppendKey(key[:0], row, r.streamedCols, r.spec.ComparisonMode()); err != nil {
			return err
		}
		if !ok {
			return r.unmatched(streamed, row)
		}
		b := part.Bucket(key)
		if ix.IsEvicted(b) {
			if !sp.hasHashed(b) {
				return r.unmatched(streamed, row)
			}
			return sp.writeStreamed(ctx, b, row)
		}

		hits := ix.Lookup(b, key)
		if len(hits) == 0 {
			return r.unmatched(streamed, row)
		}
		for _, h := range hits {
			ix.MarkMatched(h.Offset)
			if err := r.match(h, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := ix.ForEachUnmatched(func(row *tuple.Tuple) error {
		return r.unmatched(r.hashed, row)
	}); err != nil {
		return err
	}
	release()

	children, err := sp.finish(p)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}
	r.partsTotal.Add(int64(len(children)))
	log.Debug("joining spilled partitions", "count", len(children))

	if p.level == 0 && r.opts.Parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range children {
			g.Go(func() error {
				if err := r.ctrl.AcquireWorker(gctx); err != nil {
					return err
				}
				defer r.ctrl.ReleaseWorker()
				return r.joinChild(gctx, c)
			})
		}
		return g.Wait()
	}
	for _, c := range children {
		if err := r.joinChild(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *joinRun) joinChild(ctx context.Context, c child) error {
	defer c.remove(r.log)
	if err := r.checkCanceled(ctx); err != nil {
		return err
	}

	var err error
	switch {
	case c.hashedPart == nil:
		err = r.drainUnmatched(ctx, c.streamed, r.hashed.Other())
	case c.streamedPart == nil:
		err = r.drainUnmatched(ctx, c.hashed, r.hashed)
	default:
		r.partitions.Add(1)
		err = r.joinPass(ctx, c.pass)
	}
	if err != nil {
		return err
	}

	r.partsDone.Add(1)
	r.progress()
	return nil
}

func (c child) remove(log *slog.Logger) {
	for _, p := range []*spill.Partition{c.hashedPart, c.streamedPart} {
		if p == nil {
			continue
		}
		if err := p.Remove(); err != nil {
			log.Warn("failed to remove partition", "partition", p.Name(), "error", err)
		}
	}
}

// ==================== Spilling ====================

// spiller owns the partition writers of one pass.
type spiller struct {
	r        *joinRun
	path     string
	hashed   []*spill.Writer
	streamed []*spill.Writer
}

func newSpiller(r *joinRun, path string) *spiller {
	n := r.opts.NumPartitions
	return &spiller{r: r, path: path, hashed: make([]*spill.Writer, n), streamed: make([]*spill.Writer, n)}
}

// bucketPath names bucket b below the spiller's own path, e.g. "b3.b5".
func (s *spiller) bucketPath(b int) string {
	if s.path == "" {
		return fmt.Sprintf("b%d", b)
	}
	return fmt.Sprintf("%s.b%d", s.path, b)
}

func (s *spiller) hasHashed(b int) bool {
	return s.hashed[b] != nil
}

func (s *spiller) writeHashed(ctx context.Context, b int, row *tuple.Tuple) error {
	return s.write(ctx, s.hashed, b, "hashed", s.r.spec.Settings(s.r.hashed).Schema(), row)
}

func (s *spiller) writeStreamed(ctx context.Context, b int, row *tuple.Tuple) error {
	return s.write(ctx, s.streamed, b, "streamed", s.r.spec.Settings(s.r.hashed.Other()).Schema(), row)
}

func (s *spiller) write(ctx context.Context, writers []*spill.Writer, b int, suffix string, td *tuple.TupleDescription, row *tuple.Tuple) error {
	w := writers[b]
	if w == nil {
		dir, err := s.r.spillDir()
		if err != nil {
			return err
		}
		if w, err = dir.Create(ctx, s.bucketPath(b)+"-"+suffix, td); err != nil {
			return err
		}
		writers[b] = w
	}
	return w.Append(row)
}

// finish closes all writers and pairs up the partitions of each bucket.
func (s *spiller) finish(parent pass) ([]child, error) {
	var children []child
	for b := range s.hashed {
		hw, sw := s.hashed[b], s.streamed[b]
		if hw == nil && sw == nil {
			continue
		}

		c := child{pass: pass{level: parent.level + 1, bucket: b, path: s.bucketPath(b)}}
		if hw != nil {
			hp, err := hw.Finish()
			if err != nil {
				return nil, err
			}
			c.hashedPart, c.hashed = hp, input{partition: hp}
		}
		if sw != nil {
			spp, err := sw.Finish()
			if err != nil {
				return nil, err
			}
			c.streamedPart, c.streamed = spp, input{partition: spp}
		}
		children = append(children, c)
	}
	return children, nil
}
