// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdlfs/pdlfs-common/base"
	"github.com/pdlfs/pdlfs-common/compactionpacer"
	"github.com/pdlfs/pdlfs-common/record"
	"github.com/pdlfs/pdlfs-common/tablecache"
	"github.com/pdlfs/pdlfs-common/vfs"
)

// Pacer is the collaborator LogAndApply consults before each MANIFEST
// fsync. compactionpacer.Limiter satisfies it directly.
type Pacer interface {
	Wait(ctx context.Context) error
}

// VersionSet owns the chain of Versions a database has ever had live
// readers for, the MANIFEST descriptor currently being appended to, and
// every counter (file numbers, log numbers, the last assigned sequence
// number) that must survive a restart.
//
// The live-version chain is threaded through container/list rather than
// Version carrying its own prev/next pointers, so the list's invariants
// (head/tail, removal) live in one well-tested place instead of being
// reimplemented as raw self-referential struct fields.
type VersionSet struct {
	mu sync.Mutex

	dirname string
	opts    *base.Options
	icmp    base.InternalKeyComparer
	cache   tablecache.Cache
	fs      vfs.FS
	pacer   Pacer

	files *fileRegistry

	versions *list.List
	current  *Version

	// compactPointer remembers, per level, the largest key of the last
	// compaction picked there, for classic round-robin input selection. It
	// grows alongside the level vector and stays empty in sublevel mode.
	compactPointer []base.InternalKey

	nextFileNumber  uint64
	manifestFileNum uint64
	lastSequence    uint64
	logNumber       uint64
	prevLogNumber   uint64

	manifestFile vfs.File
	manifestLog  *record.Writer

	// applyHook, when set, is called once after every successful
	// LogAndApply. It exists so an observability layer (debug.Server) can
	// count completed edits without this package importing a metrics
	// library itself.
	applyHook func()
}

// SetApplyHook registers fn to be called after every successful
// LogAndApply. Only one hook may be registered at a time; a later call
// replaces the previous one.
func (vs *VersionSet) SetApplyHook(fn func()) { vs.applyHook = fn }

// NewVersionSet returns a VersionSet with a single, empty current Version,
// ready to have Recover or an initial LogAndApply called on it.
func NewVersionSet(dirname string, opts *base.Options, cache tablecache.Cache) *VersionSet {
	vs := &VersionSet{
		dirname:        dirname,
		opts:           opts,
		icmp:           base.InternalKeyComparer{UserKeyComparer: opts.GetComparer()},
		cache:          cache,
		fs:             opts.GetFS(),
		pacer:          compactionpacer.NoLimit(),
		files:          newFileRegistry(),
		versions:       list.New(),
		nextFileNumber: 2,
	}
	if !opts.EnableSublevel {
		vs.compactPointer = make([]base.InternalKey, maxMemCompactLevel+1)
	}
	vs.appendVersion(newVersion(opts.EnableSublevel))
	return vs
}

// SetPacer overrides the fsync pacer used by LogAndApply, e.g. with a
// rate-limited compactionpacer.Limiter in production or a no-op pacer in
// tests.
func (vs *VersionSet) SetPacer(p Pacer) { vs.pacer = p }

func (vs *VersionSet) compactPointerAt(level int) base.InternalKey {
	if level >= len(vs.compactPointer) {
		return nil
	}
	return vs.compactPointer[level]
}

func (vs *VersionSet) setCompactPointer(level int, key base.InternalKey) {
	for len(vs.compactPointer) <= level {
		vs.compactPointer = append(vs.compactPointer, nil)
	}
	vs.compactPointer[level] = key
}

// Current returns the currently installed Version with a reference
// already taken on it; the caller drops that reference with ReleaseVersion
// once it is done with the Version.
func (vs *VersionSet) Current() *Version {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	v := vs.current
	v.Ref()
	return v
}

// LastSequence returns the last assigned sequence number.
func (vs *VersionSet) LastSequence() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.lastSequence
}

// NewFileNumber allocates and returns a fresh file number.
func (vs *VersionSet) NewFileNumber() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.nextFile()
}

// MarkFileNumberUsed ensures no future file-number allocation returns a
// number at or below n, used when a recovered log file's number must stay
// reserved.
func (vs *VersionSet) MarkFileNumberUsed(n uint64) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.markFileNumberUsed(n)
}

func (vs *VersionSet) markFileNumberUsed(n uint64) {
	if vs.nextFileNumber <= n {
		vs.nextFileNumber = n + 1
	}
}

// ReleaseVersion drops a reference taken via Current, unlinking v from the
// live-version chain and releasing the files it alone still pinned if that
// was its last reference.
func (vs *VersionSet) ReleaseVersion(v *Version) {
	if !v.Unref() {
		return
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.destroyVersion(v)
}

// destroyVersion unlinks v from the live-version chain and drops one
// FileMetaData reference for every file v names, evicting a file from the
// table cache and the file registry the moment its last Version releases
// it. Called only once a Version's refcount has reached zero.
func (vs *VersionSet) destroyVersion(v *Version) {
	if v.elem != nil {
		vs.versions.Remove(v.elem)
		v.elem = nil
	}
	for level := range v.Files {
		for _, f := range v.Files[level] {
			f.Refs--
			if f.Refs == 0 && vs.files.removeIf(f) {
				vs.cache.Evict(f.Number)
			}
		}
	}
}

// Get resolves a point lookup against the currently installed Version,
// taking and releasing the reference itself and charging any wasted seek
// the probe incurred, so a caller never needs to juggle
// Current/ReleaseVersion/UpdateStats for a single read.
func (vs *VersionSet) Get(key base.InternalKey) (found bool, value []byte, deleted bool, err error) {
	v := vs.Current()
	defer vs.ReleaseVersion(v)
	ro := tablecache.ReadOptions{VerifyChecksums: vs.opts.ParanoidChecks, FillCache: true}
	found, value, deleted, stats, err := v.Get(vs.icmp, vs.cache, ro, key)
	if err != nil {
		vs.opts.GetLogger().Errorf("manifest: table cache error resolving %q: %v", key.UserKey(), err)
		return found, value, deleted, err
	}
	if stats.SeekFile != nil {
		vs.mu.Lock()
		v.UpdateStats(stats)
		vs.mu.Unlock()
	}
	return found, value, deleted, nil
}

func (vs *VersionSet) appendVersion(v *Version) {
	if vs.current != nil {
		old := vs.current
		if old.Unref() {
			vs.destroyVersion(old)
		}
	}
	v.Ref()
	v.elem = vs.versions.PushBack(v)
	vs.current = v
}

func (vs *VersionSet) nextFile() uint64 {
	n := vs.nextFileNumber
	vs.nextFileNumber++
	return n
}

// LogAndApply installs a new Version built by applying edit on top of the
// current one. The steps mirror the original design precisely because the
// ordering is load-bearing, not incidental:
//
//  1. Fill edit's missing bookkeeping fields (comparator name, log
//     numbers, next file number, last sequence) from the current
//     counters.
//  2. Build the candidate Version with a Builder, Finalize it (and, in
//     sublevel mode, reorganise its pools), and create a fresh MANIFEST
//     seeded with a full snapshot if none is open — all while holding
//     vs.mu.
//  3. Release vs.mu and append edit's encoded bytes to the MANIFEST,
//     pacing the fsync through vs.pacer — the one part of the sequence
//     allowed to block on I/O without the mutex, since the candidate
//     Version is not yet visible to any reader. If the MANIFEST was
//     freshly created, commit it afterwards: point CURRENT at it, or, in
//     rotating mode, delete the alternative descriptor and any stale
//     CURRENT.
//  4. Re-acquire vs.mu and, only if everything succeeded, install the
//     candidate as vs.current and roll the counters forward. On failure
//     the candidate and any half-created MANIFEST are destroyed.
//
// compact_pointer advances taken by PickCompaction before this call are
// not rolled back on failure; that asymmetry is carried over deliberately
// rather than guessed away.
func (vs *VersionSet) LogAndApply(ctx context.Context, edit *VersionEdit) error {
	vs.mu.Lock()

	if edit.ComparatorName == "" {
		edit.ComparatorName = vs.icmp.Name()
	} else if edit.ComparatorName != vs.icmp.Name() {
		vs.mu.Unlock()
		return base.ErrInvalidArgument("manifest: comparator name mismatch: %q vs %q", edit.ComparatorName, vs.icmp.Name())
	}
	if edit.LogNumber == 0 {
		edit.LogNumber = vs.logNumber
	}
	if edit.PrevLogNumber == 0 {
		edit.PrevLogNumber = vs.prevLogNumber
	}
	edit.NextFileNumber = vs.nextFileNumber
	if !edit.HasLastSeq {
		edit.LastSequence = vs.lastSequence
		edit.HasLastSeq = true
	}

	b := NewBuilder(vs.icmp, vs.current, vs.files, vs.opts.EnableSublevel)
	defer b.Close()
	b.Apply(edit)
	newV, err := b.SaveTo()
	if err != nil {
		vs.mu.Unlock()
		return err
	}
	if vs.opts.EnableSublevel {
		if err := vs.reorganizeSublevels(newV, edit); err != nil {
			vs.destroyVersion(newV)
			vs.mu.Unlock()
			return err
		}
	}
	newV.Finalize(vs.opts)

	freshManifest := false
	if vs.manifestLog == nil {
		if err := vs.createManifest(); err != nil {
			vs.destroyVersion(newV)
			vs.mu.Unlock()
			return err
		}
		// Creating the descriptor may itself have consumed a file number.
		edit.NextFileNumber = vs.nextFileNumber
		freshManifest = true
	}

	vs.mu.Unlock()

	err = func() error {
		if err := vs.pacer.Wait(ctx); err != nil {
			return err
		}
		if err := vs.appendManifest(edit); err != nil {
			return err
		}
		if freshManifest {
			return vs.commitManifest()
		}
		return nil
	}()

	vs.mu.Lock()
	if err != nil {
		vs.destroyVersion(newV)
		if freshManifest {
			vs.removeManifest()
		}
		vs.mu.Unlock()
		vs.opts.GetLogger().Errorf("manifest: MANIFEST write: %v", err)
		return err
	}

	vs.appendVersion(newV)
	vs.logNumber = edit.LogNumber
	vs.prevLogNumber = edit.PrevLogNumber
	if edit.LastSequence > vs.lastSequence {
		vs.lastSequence = edit.LastSequence
	}
	for _, cp := range b.compactPointers {
		vs.setCompactPointer(cp.level, cp.key)
	}
	vs.mu.Unlock()

	vs.opts.GetLogger().Infof("manifest: applied edit, next_file=%d last_seq=%d", edit.NextFileNumber, edit.LastSequence)
	if vs.applyHook != nil {
		vs.applyHook()
	}
	return nil
}

// ForeignApply installs an edit without writing it to the MANIFEST, used
// when adopting table files produced under another database's descriptor
// (their sequence numbers offset via FileMetaData.SeqOff). The edit's
// counters only ever move this VersionSet's counters forward, and the new
// Version is not finalized: adopting files never schedules a compaction by
// itself.
func (vs *VersionSet) ForeignApply(edit *VersionEdit) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if edit.ComparatorName != "" && edit.ComparatorName != vs.icmp.Name() {
		return base.ErrInvalidArgument("manifest: comparator name mismatch: %q vs %q", edit.ComparatorName, vs.icmp.Name())
	}

	b := NewBuilder(vs.icmp, vs.current, vs.files, vs.opts.EnableSublevel)
	defer b.Close()
	b.Apply(edit)
	newV, err := b.SaveTo()
	if err != nil {
		return err
	}
	if vs.opts.EnableSublevel {
		if err := vs.reorganizeSublevels(newV, edit); err != nil {
			vs.destroyVersion(newV)
			return err
		}
	}
	vs.appendVersion(newV)

	if edit.LogNumber > vs.logNumber {
		vs.logNumber = edit.LogNumber
	}
	if edit.PrevLogNumber > vs.prevLogNumber {
		vs.prevLogNumber = edit.PrevLogNumber
	}
	if edit.NextFileNumber > vs.nextFileNumber {
		vs.nextFileNumber = edit.NextFileNumber
	}
	if edit.HasLastSeq && edit.LastSequence > vs.lastSequence {
		vs.lastSequence = edit.LastSequence
	}
	return nil
}

// LookupFile resolves a file number to its metadata through the lock-free
// file registry, without touching the VersionSet mutex. The result is the
// newest metadata registered under that number and stays valid only while
// some live Version still pins the file.
func (vs *VersionSet) LookupFile(number uint64) (*FileMetaData, bool) {
	return vs.files.get(number)
}

// LiveFileNumbers returns the numbers of every file referenced by any live
// Version — the set a garbage collector must not delete from the database
// directory, which is strictly larger than the current Version's file set
// whenever readers still pin older Versions.
func (vs *VersionSet) LiveFileNumbers() map[uint64]struct{} {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	live := make(map[uint64]struct{})
	for e := vs.versions.Front(); e != nil; e = e.Next() {
		v := e.Value.(*Version)
		for _, files := range v.Files {
			for _, f := range files {
				live[f.Number] = struct{}{}
			}
		}
	}
	return live
}

// appendManifest writes edit as one framed record and syncs the
// descriptor.
func (vs *VersionSet) appendManifest(edit *VersionEdit) error {
	w, err := vs.manifestLog.Next()
	if err != nil {
		return err
	}
	if err := edit.encode(w); err != nil {
		return err
	}
	if err := vs.manifestLog.Flush(); err != nil {
		return err
	}
	return vs.manifestFile.Sync()
}

// rotatingSlot returns the other of the two fixed descriptor numbers a
// rotating-manifest database cycles between, so a crash mid-write always
// leaves the previous descriptor intact in the opposite slot.
func rotatingSlot(cur uint64) uint64 {
	if cur == 1 {
		return 2
	}
	return 1
}

// createManifest opens a fresh descriptor at vs.manifestFileNum (choosing
// one if none is assigned yet) and writes the full-state snapshot as its
// first record. The new descriptor is not yet committed: until
// commitManifest runs, recovery still finds the previous one.
func (vs *VersionSet) createManifest() error {
	if vs.manifestFileNum == 0 {
		if vs.opts.RotatingManifest {
			vs.manifestFileNum = 1
		} else {
			vs.manifestFileNum = vs.nextFile()
		}
	}
	name := dbFilename(vs.dirname, fileTypeManifest, vs.manifestFileNum)
	f, err := vs.fs.Create(name)
	if err != nil {
		return base.ErrIOError("create", name, err)
	}
	vs.manifestFile = f
	vs.manifestLog = record.NewWriter(f)

	snap := vs.snapshotEdit()
	w, err := vs.manifestLog.Next()
	if err == nil {
		err = snap.encode(w)
	}
	if err == nil {
		err = vs.manifestLog.Flush()
	}
	if err != nil {
		vs.removeManifest()
		return err
	}
	return nil
}

// commitManifest makes the freshly created descriptor the one recovery
// will find: by pointing CURRENT at it, or, in rotating mode, by deleting
// the alternative descriptor and any leftover CURRENT file.
func (vs *VersionSet) commitManifest() error {
	if !vs.opts.RotatingManifest {
		return setCurrentFile(vs.dirname, vs.fs, vs.manifestFileNum)
	}
	vs.fs.Remove(dbFilename(vs.dirname, fileTypeManifest, rotatingSlot(vs.manifestFileNum)))
	vs.fs.Remove(dbFilename(vs.dirname, fileTypeCurrent, 0))
	return nil
}

// removeManifest tears down a descriptor that failed before being
// committed.
func (vs *VersionSet) removeManifest() {
	if vs.manifestFile != nil {
		vs.manifestFile.Close()
	}
	vs.manifestLog = nil
	vs.manifestFile = nil
	vs.fs.Remove(dbFilename(vs.dirname, fileTypeManifest, vs.manifestFileNum))
}

// snapshotEdit describes the whole current Version as a single edit:
// every new MANIFEST opens with one of these so a reader never needs the
// file set's entire edit history.
func (vs *VersionSet) snapshotEdit() *VersionEdit {
	edit := &VersionEdit{
		ComparatorName: vs.icmp.Name(),
		LogNumber:      vs.logNumber,
		PrevLogNumber:  vs.prevLogNumber,
		NextFileNumber: vs.nextFileNumber,
		LastSequence:   vs.lastSequence,
		HasLastSeq:     true,
	}
	for level, key := range vs.compactPointer {
		if key != nil {
			edit.CompactPointers = append(edit.CompactPointers, compactPointerEntry{level, key})
		}
	}
	for level, files := range vs.current.Files {
		for _, f := range files {
			edit.AddFile(level, *f)
		}
	}
	return edit
}

// WriteSnapshot rolls the MANIFEST over to a fresh descriptor seeded with
// a snapshot of the current state, compacting away the edit history
// accumulated since the last one. Callers use this to bound MANIFEST
// replay time after many small edits.
func (vs *VersionSet) WriteSnapshot() error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.manifestLog != nil {
		if err := vs.manifestLog.Close(); err != nil {
			return err
		}
		vs.manifestFile.Close()
		vs.manifestLog, vs.manifestFile = nil, nil
		if vs.opts.RotatingManifest {
			vs.manifestFileNum = rotatingSlot(vs.manifestFileNum)
		} else {
			vs.manifestFileNum = 0
		}
	}
	if err := vs.createManifest(); err != nil {
		return err
	}
	if err := vs.manifestFile.Sync(); err != nil {
		return err
	}
	return vs.commitManifest()
}

// recoverCandidate is one of up to three manifest descriptors Recover
// considers: the two fixed rotating slots and the one CURRENT names.
type recoverCandidate struct {
	fileNum uint64

	lastSequence   uint64
	nextFileNumber uint64
	logNumber      uint64
	prevLogNumber  uint64

	hasLastSeq     bool
	hasNextFileNum bool
	hasLogNumber   bool

	builder *Builder
}

// moreRecentThan orders candidates by (last_sequence, next_file_number,
// log_number, prev_log_number), lexicographically.
func (rc *recoverCandidate) moreRecentThan(other *recoverCandidate) bool {
	if rc.lastSequence != other.lastSequence {
		return rc.lastSequence > other.lastSequence
	}
	if rc.nextFileNumber != other.nextFileNumber {
		return rc.nextFileNumber > other.nextFileNumber
	}
	if rc.logNumber != other.logNumber {
		return rc.logNumber > other.logNumber
	}
	return rc.prevLogNumber > other.prevLogNumber
}

// Recover replays a database's MANIFEST history, rebuilding the current
// Version and every counter needed to resume appending to it.
//
// Up to three candidate descriptors are considered: the two fixed rotating
// slots and the one CURRENT names, whichever of them exist. All are read
// concurrently (via errgroup, since the reads share nothing and none may
// fail another); a candidate that cannot be read or is missing a mandatory
// field is logged and dropped rather than aborting the scan, because
// another candidate may still succeed. Among the survivors, the winner is
// the lexicographic maximum of (last_sequence, next_file_number,
// log_number, prev_log_number): whichever descriptor saw the most history.
func (vs *VersionSet) Recover(ctx context.Context) error {
	var candidates []uint64
	for _, slot := range []uint64{1, 2} {
		if _, err := vs.fs.Stat(dbFilename(vs.dirname, fileTypeManifest, slot)); err == nil {
			candidates = append(candidates, slot)
		}
	}
	if _, err := vs.fs.Stat(dbFilename(vs.dirname, fileTypeCurrent, 0)); err == nil {
		fileNum, err := readCurrentFile(vs.dirname, vs.fs)
		if err != nil {
			vs.opts.GetLogger().Errorf("manifest: CURRENT read: %v", err)
		} else if fileNum != 1 && fileNum != 2 {
			candidates = append(candidates, fileNum)
		}
	}

	results := make([]*recoverCandidate, len(candidates))
	errs := make([]error, len(candidates))
	var g errgroup.Group
	for i, fileNum := range candidates {
		i, fileNum := i, fileNum
		g.Go(func() error {
			rc, err := vs.recoverOne(fileNum)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = rc
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			vs.opts.GetLogger().Errorf("manifest: rejected descriptor %d during recovery: %v", candidates[i], err)
		}
	}

	var best *recoverCandidate
	for _, rc := range results {
		if rc == nil {
			continue
		}
		if best == nil || rc.moreRecentThan(best) {
			best = rc
		}
	}
	if best == nil {
		return base.ErrCorruption("manifest: no valid MANIFEST found in %s", vs.dirname)
	}

	// Every candidate but the winner never gets its builder published:
	// release the file-registry entries it provisionally added.
	for _, rc := range results {
		if rc != nil && rc != best {
			rc.builder.Close()
		}
	}

	newV, err := best.builder.SaveTo()
	if err != nil {
		return err
	}
	if vs.opts.EnableSublevel {
		rebuildRecoveredPools(newV)
		if err := vs.reorganizeSublevels(newV, nil); err != nil {
			return err
		}
	}
	newV.Finalize(vs.opts)
	vs.appendVersion(newV)

	vs.lastSequence = best.lastSequence
	vs.logNumber = best.logNumber
	vs.prevLogNumber = best.prevLogNumber
	if vs.opts.RotatingManifest {
		vs.nextFileNumber = best.nextFileNumber
		if best.fileNum == 1 {
			vs.manifestFileNum = 2
		} else {
			vs.manifestFileNum = 1
		}
	} else {
		// The recovered next_file_number itself is consumed by the next
		// descriptor this VersionSet will write.
		vs.manifestFileNum = best.nextFileNumber
		vs.nextFileNumber = best.nextFileNumber + 1
	}
	vs.markFileNumberUsed(best.logNumber)
	vs.markFileNumberUsed(best.prevLogNumber)
	for _, cp := range best.builder.compactPointers {
		vs.setCompactPointer(cp.level, cp.key)
	}

	vs.opts.GetLogger().Infof("manifest: recovered from %s, next_file=%d last_seq=%d",
		dbFilename(vs.dirname, fileTypeManifest, best.fileNum), vs.nextFileNumber, vs.lastSequence)
	return nil
}

// rebuildRecoveredPools derives a sublevel pool layout for a Version
// rebuilt from a MANIFEST, which records rows but not pool boundaries:
// each recovered row becomes its own level with an empty output pool, and
// the reorganiser then restores whatever splits the sizes call for.
func rebuildRecoveredPools(v *Version) {
	rows := len(v.Files)
	if rows < 2 {
		return
	}
	v.InputPool = make([]sublevelRun, rows)
	v.OutputPool = make([]sublevelRun, rows)
	v.InputPool[0] = sublevelRun{Base: 0, Count: 1}
	v.OutputPool[0] = sublevelRun{Base: 0, Count: 1}
	for level := 1; level < rows; level++ {
		v.InputPool[level] = sublevelRun{Base: level, Count: 1}
		v.OutputPool[level] = sublevelRun{Base: level + 1, Count: 0}
	}
}

func (vs *VersionSet) recoverOne(fileNum uint64) (*recoverCandidate, error) {
	name := dbFilename(vs.dirname, fileTypeManifest, fileNum)
	f, err := vs.fs.Open(name)
	if err != nil {
		return nil, base.ErrIOError("open", name, err)
	}
	defer f.Close()

	rc := &recoverCandidate{fileNum: fileNum}
	rc.builder = NewBuilder(vs.icmp, newVersion(vs.opts.EnableSublevel), vs.files, vs.opts.EnableSublevel)

	r := record.NewReader(f)
	for {
		rr, err := r.Next()
		if err != nil {
			// A torn tail record is how a crash mid-append presents;
			// everything before it is still a usable candidate.
			break
		}
		var edit VersionEdit
		if err := edit.decode(rr, maxEditLevel); err != nil {
			rc.builder.Close()
			return nil, err
		}
		if edit.ComparatorName != "" && edit.ComparatorName != vs.icmp.Name() {
			rc.builder.Close()
			return nil, base.ErrInvalidArgument("manifest: comparator name mismatch: %q vs %q", edit.ComparatorName, vs.icmp.Name())
		}
		rc.builder.Apply(&edit)
		if edit.HasLastSeq {
			rc.lastSequence = edit.LastSequence
			rc.hasLastSeq = true
		}
		if edit.NextFileNumber != 0 {
			rc.nextFileNumber = edit.NextFileNumber
			rc.hasNextFileNum = true
		}
		if edit.LogNumber != 0 {
			rc.logNumber = edit.LogNumber
			rc.hasLogNumber = true
		}
		if edit.PrevLogNumber != 0 {
			rc.prevLogNumber = edit.PrevLogNumber
		}
	}
	if !rc.hasNextFileNum {
		rc.builder.Close()
		return nil, base.ErrCorruption("manifest: descriptor %s missing next_file_number", name)
	}
	if !rc.hasLogNumber {
		rc.builder.Close()
		return nil, base.ErrCorruption("manifest: descriptor %s missing log_number", name)
	}
	if !rc.hasLastSeq {
		rc.builder.Close()
		return nil, base.ErrCorruption("manifest: descriptor %s missing last_sequence", name)
	}
	return rc, nil
}

func (vs *VersionSet) String() string {
	return fmt.Sprintf("manifest: next_file=%d last_seq=%d log=%d", vs.nextFileNumber, vs.lastSequence, vs.logNumber)
}
