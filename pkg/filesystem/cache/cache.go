// Package cache implements the filesystem-watching cache at the core of the
// agent: a mirrored in-memory tree of every file, directory, and symlink
// reachable from a configured set of roots, reconciled against the debounced
// event stream of the watch adapter and exposed to downstream tailers as a
// stream of semantic events.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"

	"github.com/logtide-io/logtide/pkg/filesystem/watching"
	"github.com/logtide-io/logtide/pkg/logging"
	"github.com/logtide-io/logtide/pkg/metrics"
	"github.com/logtide-io/logtide/pkg/rules"
)

// ruleDecisionCacheCapacity is the capacity of the initial-dir rule decision
// cache. Decisions are pure functions of the (static) initial-dir rule set,
// so cached values never go stale.
const ruleDecisionCacheCapacity = 16 * 1024

// FileSystem is the cache core: the entry store, its indices, and the
// reconciler state machine that keeps them synchronized with the watch
// adapter's event stream.
type FileSystem struct {
	// mu serializes all access to the entry store and indices. It is held
	// for the duration of one event's handling and never across suspension
	// points.
	mu sync.Mutex
	// watcher is the watch adapter.
	watcher *watching.Watcher
	// entries is the entry store.
	entries *EntryMap
	// symlinks indexes symlink entry keys by their target path.
	symlinks map[string][]EntryKey
	// watchDescriptors indexes entry keys by their watch path. A path maps
	// to more than one key when it is referenced both by a direct tree entry
	// and a symlink re-watch.
	watchDescriptors map[string][]EntryKey
	// masterRules is the configured inclusion/exclusion rule set.
	masterRules *rules.Set
	// initialDirs are the configured roots. Their entries survive removal
	// events so that re-created content can be tracked.
	initialDirs []DirPath
	// initialDirRules admits any path within the roots, plus the roots'
	// ancestor chains so that those directories can be named in the tree.
	initialDirRules *rules.Set
	// initialDirDecisions memoizes initialDirRules evaluations.
	initialDirDecisions *lru.Cache
	// initialEvents buffers the events produced during bootstrap, drained
	// exactly once by the first stream consumer.
	initialEvents []Event
	// dropped holds keys whose entries have been unregistered but whose
	// arena slots are retained until the containing event batch has been
	// forwarded, honoring the Delete key validity contract.
	dropped []EntryKey
	// bootstrapping indicates that insertions are part of bootstrap, which
	// seeds file tail offsets at end-of-file.
	bootstrapping bool
	// logger is the cache's logger.
	logger *logging.Logger
}

// New constructs the cache over the specified initial directories, performing
// bootstrap insertion of all reachable, rule-passing entries. It panics if
// any initial directory does not reference a directory. Bootstrap events are
// buffered as Initialize events for the first stream consumer.
func New(initialDirs []DirPath, masterRules *rules.Set, delay time.Duration, logger *logging.Logger) (*FileSystem, error) {
	// Enforce the initial directory contract.
	for _, dir := range initialDirs {
		if info, err := os.Stat(dir.String()); err != nil || !info.IsDir() {
			panic("initial dirs must be dirs")
		}
	}

	// Create the watch adapter.
	watcher, err := watching.NewWatcher(delay, logger.Sublogger("watch"))
	if err != nil {
		return nil, errors.Wrap(err, "unable to create watch adapter")
	}

	// Derive the initial-dir rule set: each root, every ancestor of each
	// root, and the subtree glob for each root.
	initialDirRules := rules.NewSet()
	for _, dir := range initialDirs {
		if err := appendPathRules(initialDirRules, dir.String()); err != nil {
			watcher.Terminate()
			return nil, errors.Wrap(err, "unable to derive initial directory rules")
		}
	}

	// Create the cache.
	f := &FileSystem{
		watcher:             watcher,
		entries:             NewEntryMap(),
		symlinks:            make(map[string][]EntryKey),
		watchDescriptors:    make(map[string][]EntryKey),
		masterRules:         masterRules,
		initialDirs:         initialDirs,
		initialDirRules:     initialDirRules,
		initialDirDecisions: lru.New(ruleDecisionCacheCapacity),
		logger:              logger,
	}

	// Bootstrap. Each root may be missing at startup, in which case its
	// closest existing ancestor stands in until the root appears.
	f.mu.Lock()
	f.bootstrapping = true
	var bootstrapEvents []Event
	for _, dir := range initialDirs {
		path := dir.String()
		for {
			if _, err := os.Lstat(path); err == nil {
				break
			}
			parent := filepath.Dir(path)
			if parent == path {
				break
			}
			path = parent
		}
		if _, err := f.insert(path, &bootstrapEvents); err != nil {
			// Insertion can fail due to permissions or some other
			// restriction.
			f.logger.Debugf("initial insertion of %s failed: %v", path, err)
		}
	}
	f.bootstrapping = false
	f.mu.Unlock()

	// Rewrite bootstrap events to Initialize events.
	for _, event := range bootstrapEvents {
		if event.Kind != EventNew {
			panic("unexpected event in initialization")
		}
		f.initialEvents = append(f.initialEvents, Event{Kind: EventInitialize, Key: event.Key})
	}

	// Success.
	return f, nil
}

// Stream starts event delivery and returns the semantic event channel. The
// buffered Initialize events are delivered first, in insertion order, then
// each raw adapter event is processed to completion and its semantic events
// forwarded before the next raw event is read. The stream is single-consumer;
// the consumer is responsible for draining promptly. The channel is closed
// when the context is cancelled or the adapter terminates.
func (f *FileSystem) Stream(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		// Drain the initial event buffer exactly once.
		f.mu.Lock()
		initial := f.initialEvents
		f.initialEvents = nil
		f.mu.Unlock()
		for _, event := range initial {
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}

		// Process raw events one at a time.
		raw := f.watcher.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-raw:
				if !ok {
					return
				}
				for _, semantic := range f.process(event) {
					select {
					case out <- semantic:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

// Terminate shuts down the watch adapter.
func (f *FileSystem) Terminate() error {
	return f.watcher.Terminate()
}

// Lookup returns the entry key representing the specified path, if any.
func (f *FileSystem) Lookup(path string) (EntryKey, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.firstEntry(path)
}

// View returns a copy of the entry's externally relevant state.
func (f *FileSystem) View(key EntryKey) (EntryView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.entries.Get(key)
	if entry == nil {
		return EntryView{}, false
	}
	return EntryView{
		Kind: entry.kind,
		Name: entry.name,
		Path: entry.wd,
		Link: entry.link,
	}, true
}

// process handles a single raw adapter event and returns the semantic events
// it produced.
func (f *FileSystem) process(raw watching.Event) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Release arena slots for entries dropped by the previous event, whose
	// Delete keys have now passed out of validity.
	f.collectDropped()

	metrics.IncrementEvents()
	f.logger.Debugf("handling notify event %v", raw)

	var events []Event
	var err error
	switch raw.Op {
	case watching.OpCreate:
		err = f.processCreate(raw.Path, &events)
	case watching.OpWrite:
		err = f.processModify(raw.Path, &events)
	case watching.OpRemove:
		err = f.processDelete(raw.Path, &events)
	case watching.OpRename:
		// The source must be tracked and still rule-passing for this to be a
		// move; the destination must pass the rules to be tracked.
		fromOk := false
		if key, ok := f.firstEntry(raw.OldPath); ok {
			fromOk = f.entryPathPasses(key)
		}
		toOk := f.passes(raw.Path)
		if fromOk && toOk {
			err = f.processRename(raw.OldPath, raw.Path, &events)
		} else if toOk {
			err = f.processCreate(raw.Path, &events)
		} else if fromOk {
			err = f.processDelete(raw.OldPath, &events)
		} else {
			// Most likely the parent was removed, dropping all child watches,
			// and the child event is already queued up.
			f.logger.Debug("rename event received for targets that are not watched anymore")
		}
	case watching.OpRescan:
		f.rebuild(&events)
	case watching.OpError:
		if errors.Is(raw.Err, watching.ErrOverflow) {
			err = ErrWatchOverflow
		} else {
			metrics.IncrementErrors()
			f.logger.Warnf("there was an error mapping a file change: %v (%s)", raw.Err, raw.Path)
		}
	}

	if err != nil {
		var pathNotValid *PathNotValidError
		if errors.Is(err, ErrWatchOverflow) {
			f.logger.Error(err)
			panic("overflowed kernel queue")
		} else if errors.As(err, &pathNotValid) {
			f.logger.Debugf("path is no longer valid: %s", pathNotValid.Path)
		} else {
			metrics.IncrementErrors()
			f.logger.Warnf("processing watch event resulted in error: %v", err)
		}
	}

	return events
}

// collectDropped releases retained arena slots.
func (f *FileSystem) collectDropped() {
	for _, key := range f.dropped {
		f.entries.Remove(key)
	}
	f.dropped = nil
}

// processCreate handles a create notification.
func (f *FileSystem) processCreate(path string, events *[]Event) error {
	_, err := f.insert(path, events)
	return err
}

// processModify handles a write notification by emitting a Write for every
// entry indexed under the path.
func (f *FileSystem) processModify(path string, events *[]Event) error {
	keys, ok := f.watchDescriptors[path]
	if !ok {
		return &UntrackedWatchError{Path: path}
	}
	for _, key := range keys {
		*events = append(*events, Event{Kind: EventWrite, Key: key})
	}
	return nil
}

// processDelete handles a removal notification. Removal of an initial root is
// suppressed so that re-created content under it can still be tracked.
func (f *FileSystem) processDelete(path string, events *[]Event) error {
	key, ok := f.firstEntry(path)
	if !ok {
		return &UntrackedWatchError{Path: path}
	}
	entry := f.entries.Get(key)
	if entry == nil {
		return ErrLookup
	}
	for _, dir := range f.initialDirs {
		if dir.String() == entry.wd {
			return nil
		}
	}
	return f.remove(entry.wd, events)
}

// insert tracks a new entry when the path passes the inclusion/exclusion
// rules, emitting New for every entry created. Directories are entered
// non-recursively and their children inserted one by one, with per-child
// errors swallowed so that a single bad child does not prevent siblings from
// being tracked. Returns the zero key when the path was ignored.
func (f *FileSystem) insert(path string, events *[]Event) (EntryKey, error) {
	// Insertion is idempotent: a path can surface both through directory
	// enumeration and through its own create notification.
	if key, ok := f.firstEntry(path); ok {
		return key, nil
	}

	if !f.passes(path) {
		f.logger.Infof("ignoring %s", path)
		return EntryKey{}, nil
	}

	// Probe the path without following symlinks. A dangling symlink is still
	// insertable; anything else that fails to probe is gone already.
	info, err := os.Lstat(path)
	if err != nil {
		f.logger.Warnf("attempted to insert non existent path %s", path)
		return EntryKey{}, nil
	}

	if info.IsDir() {
		// Enumerate the directory first. A listing failure skips the subtree
		// but the directory entry itself remains tracked.
		contents, listErr := os.ReadDir(path)
		if listErr != nil {
			f.logger.Warn(&DirectoryListError{Path: path, Reason: listErr})
			contents = nil
		}

		f.logger.Tracef("inserting directory %s", path)
		entry := &Entry{
			kind:     EntryDir,
			name:     filepath.Base(path),
			children: make(map[string]EntryKey),
			wd:       path,
		}
		if err := f.watcher.Watch(path); err != nil {
			return EntryKey{}, &WatchError{Path: path, Reason: err}
		}
		key, err := f.registerAsChild(entry)
		if err != nil {
			return EntryKey{}, err
		}
		*events = append(*events, Event{Kind: EventNew, Key: key})

		for _, child := range contents {
			if _, err := f.insert(filepath.Join(path, child.Name()), events); err != nil {
				f.logger.Infof("error found when inserting child entry for %s: %v", path, err)
			}
		}
		return key, nil
	}

	var entry *Entry
	if info.Mode()&os.ModeSymlink != 0 {
		// Resolve the link target relative to the containing directory. The
		// stored target is fixed at creation time; it is not rewritten if the
		// target is later renamed.
		target, err := os.Readlink(path)
		if err != nil {
			return EntryKey{}, &PathNotValidError{Path: path}
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		f.logger.Tracef("inserting symlink %s with target %s", path, target)

		// The symlink's local scope admits its target and the target's
		// subtree through the master rules. Unlike the initial-dir rules, it
		// does not cover the target's ancestor chain.
		scope := rules.NewSet()
		if err := appendTargetRules(scope, target); err != nil {
			return EntryKey{}, errors.Wrap(err, "unable to derive symlink scope rules")
		}
		entry = &Entry{
			kind:  EntrySymlink,
			name:  filepath.Base(path),
			wd:    path,
			link:  target,
			rules: scope,
		}
	} else {
		f.logger.Tracef("inserting file %s", path)
		tail, err := NewTailedFile(path)
		if err != nil {
			return EntryKey{}, &FileError{Reason: err}
		}
		if f.bootstrapping {
			// Historical content is not replayed for files that predate the
			// agent.
			if err := tail.SeekEnd(); err != nil {
				f.logger.Debugf("unable to seek tail state for %s: %v", path, err)
			}
		}
		metrics.IncrementTrackedFiles()
		entry = &Entry{
			kind: EntryFile,
			name: filepath.Base(path),
			wd:   path,
			tail: tail,
		}
	}

	if err := f.watcher.Watch(path); err != nil {
		if entry.tail != nil {
			entry.tail.Close()
			metrics.DecrementTrackedFiles()
		}
		return EntryKey{}, &WatchError{Path: path, Reason: err}
	}
	key, err := f.registerAsChild(entry)
	if err != nil {
		return EntryKey{}, err
	}
	*events = append(*events, Event{Kind: EventNew, Key: key})

	// A symlink grants admission to its target: bring the target into the
	// tree now that the scope rules are in place. Per-target errors don't
	// fail the symlink itself.
	if entry.kind == EntrySymlink {
		if _, ok := f.firstEntry(entry.link); !ok {
			if _, err := f.insert(entry.link, events); err != nil {
				f.logger.Infof("error found when inserting symlink target for %s: %v", path, err)
			}
		}
	}

	return key, nil
}

// registerAsChild inserts the entry into the arena, publishes it into the
// indices, and attaches it to its parent directory if the parent is tracked.
func (f *FileSystem) registerAsChild(entry *Entry) (EntryKey, error) {
	component := entry.name
	parentPath := filepath.Dir(entry.wd)
	key := f.entries.Insert(entry)
	f.register(key, entry)

	// Try to find the parent. An entry whose parent is not tracked (an
	// ancestor stand-in or a symlink target outside the roots) is still
	// actively tracked, just unattached.
	if parentPath != entry.wd {
		if parentKeys, ok := f.watchDescriptors[parentPath]; ok {
			if len(parentKeys) == 0 {
				return EntryKey{}, ErrParentLookup
			}
			parentKey := parentKeys[0]
			parent := f.entries.Get(parentKey)
			if parent == nil {
				return EntryKey{}, ErrParentLookup
			} else if parent.kind != EntryDir {
				return EntryKey{}, ErrParentNotValid
			}
			if _, exists := parent.children[component]; exists {
				return EntryKey{}, ErrExistingEntry
			}
			entry.parent = parentKey
			parent.children[component] = key
		} else {
			f.logger.Tracef("parent with path %s not found", parentPath)
		}
	}

	return key, nil
}

// register publishes the entry's key into the watch-descriptor index and, for
// symlinks, the symlink index.
func (f *FileSystem) register(key EntryKey, entry *Entry) {
	f.watchDescriptors[entry.wd] = append(f.watchDescriptors[entry.wd], key)
	if entry.kind == EntrySymlink {
		f.symlinks[entry.link] = append(f.symlinks[entry.link], key)
	}
	f.logger.Infof("watching %s", entry.wd)
}

// unregister removes the entry's key from the indices, releasing the kernel
// watch when the last key for a path goes away.
func (f *FileSystem) unregister(key EntryKey) {
	entry := f.entries.Get(key)
	if entry == nil {
		f.logger.Errorf("failed to find entry to unregister")
		return
	}

	keys, ok := f.watchDescriptors[entry.wd]
	if !ok {
		f.logger.Errorf("attempted to remove untracked watch descriptor %s", entry.wd)
		return
	}
	keys = removeKey(keys, key)
	if len(keys) == 0 {
		delete(f.watchDescriptors, entry.wd)
		if err := f.watcher.Unwatch(entry.wd); err != nil {
			// Log and continue. This is expected for dangling symlinks.
			f.logger.Debugf("unwatching %s resulted in an error: %v", entry.wd, err)
		}
	} else {
		f.watchDescriptors[entry.wd] = keys
	}

	if entry.kind == EntrySymlink {
		links, ok := f.symlinks[entry.link]
		if !ok {
			f.logger.Errorf("attempted to remove untracked symlink %s", entry.wd)
			return
		}
		links = removeKey(links, key)
		if len(links) == 0 {
			delete(f.symlinks, entry.link)
		} else {
			f.symlinks[entry.link] = links
		}
	}

	f.logger.Infof("unwatching %s", entry.wd)
}

// remove detaches the entry at the specified path from its parent and drops
// it along with its descendants.
func (f *FileSystem) remove(path string, events *[]Event) error {
	key, ok := f.firstEntry(path)
	if !ok {
		return ErrLookup
	}

	// Detach from the parent's children, if the parent is tracked.
	if parentKey, ok := f.firstEntry(filepath.Dir(path)); ok {
		if parent := f.entries.Get(parentKey); parent != nil && parent.children != nil {
			delete(parent.children, filepath.Base(path))
		}
	}

	f.dropEntry(key, events)
	return nil
}

// dropEntry unregisters the entry, emits Delete for file and symlink
// variants, and recurses into directory children. Directories do not emit
// Delete themselves; their disappearance is represented by the deletion of
// their contents. When the last symlink referencing a target goes away and
// the target no longer passes the rules, the target is removed as well.
func (f *FileSystem) dropEntry(key EntryKey, events *[]Event) {
	f.unregister(key)
	entry := f.entries.Get(key)
	if entry == nil {
		return
	}

	var children []EntryKey
	var orphanedTargets []string
	switch entry.kind {
	case EntryDir:
		for _, child := range entry.children {
			children = append(children, child)
		}
	case EntrySymlink:
		// With this symlink unregistered, the target is orphaned unless
		// another symlink (or the initial-dir rules) still admit it.
		if !f.passes(entry.link) {
			orphanedTargets = append(orphanedTargets, entry.link)
		}
		*events = append(*events, Event{Kind: EventDelete, Key: key})
	case EntryFile:
		metrics.DecrementTrackedFiles()
		if entry.tail != nil {
			entry.tail.Close()
		}
		*events = append(*events, Event{Kind: EventDelete, Key: key})
	}

	// Retain the arena slot until the batch has been forwarded.
	f.dropped = append(f.dropped, key)

	for _, child := range children {
		f.dropEntry(child, events)
	}

	for _, target := range orphanedTargets {
		if err := f.remove(target, events); err != nil {
			f.logger.Debugf("unable to remove orphaned symlink target %s: %v", target, err)
		}
	}
}

// processRename handles a rename whose source is tracked and whose
// destination passes the rules. If the source is somehow untracked, the
// destination is inserted fresh.
func (f *FileSystem) processRename(fromPath, toPath string, events *[]Event) error {
	key, ok := f.firstEntry(fromPath)
	if !ok {
		_, err := f.insert(toPath, events)
		return err
	}

	newParentKey, haveNewParent := f.firstEntry(filepath.Dir(toPath))

	entry := f.entries.Get(key)
	if entry == nil {
		return ErrLookup
	}

	// Detach from the current parent under the old name.
	if !entry.parent.IsZero() {
		parent := f.entries.Get(entry.parent)
		if parent == nil {
			return ErrParentLookup
		} else if parent.children == nil {
			return ErrParentNotValid
		}
		delete(parent.children, entry.name)
	}

	// Rewrite the entry's name, path, and index membership. Any stale
	// mapping at the destination is discarded. The kernel watch itself is
	// untouched: the adapter tracks by path and the next touch uses the new
	// path. Descendant paths move with a renamed directory.
	delete(f.watchDescriptors, toPath)
	f.repath(key, toPath)
	entry.name = filepath.Base(toPath)

	// Attach to the new parent, if tracked.
	if haveNewParent {
		parent := f.entries.Get(newParentKey)
		if parent == nil {
			return ErrParentLookup
		} else if parent.children == nil {
			return ErrParentNotValid
		}
		entry.parent = newParentKey
		parent.children[entry.name] = key
	}

	return nil
}

// repath moves an entry (and, for directories, its descendants) to a new
// path in the watch-descriptor index. Symlink entries keep the link target
// recorded at creation time.
func (f *FileSystem) repath(key EntryKey, newPath string) {
	entry := f.entries.Get(key)
	if entry == nil {
		return
	}

	if keys := removeKey(f.watchDescriptors[entry.wd], key); len(keys) == 0 {
		delete(f.watchDescriptors, entry.wd)
	} else {
		f.watchDescriptors[entry.wd] = keys
	}
	entry.wd = newPath
	f.watchDescriptors[newPath] = append(f.watchDescriptors[newPath], key)

	for name, childKey := range entry.children {
		f.repath(childKey, filepath.Join(newPath, name))
	}
}

// rebuild implements the rescan policy: all non-root state is dropped (with
// Delete events for files and symlinks so consumers can release tail state)
// and the roots' contents are re-inserted, surfacing as New events.
func (f *FileSystem) rebuild(events *[]Event) {
	f.logger.Warnf("watch adapter lost state, rebuilding mirrored tree")

	// Identify the protected root entries.
	rootKeys := make(map[EntryKey]bool)
	for _, dir := range f.initialDirs {
		if key, ok := f.firstEntry(dir.String()); ok {
			rootKeys[key] = true
		}
	}

	// Drop the children of every root, then every remaining unattached
	// non-root entry (ancestor stand-ins keep their place; symlink targets
	// fall with their admitting symlinks).
	for key := range rootKeys {
		entry := f.entries.Get(key)
		if entry == nil {
			continue
		}
		for name, childKey := range entry.children {
			delete(entry.children, name)
			f.dropEntry(childKey, events)
		}
	}
	for {
		var victim EntryKey
		found := false
		for _, keys := range f.watchDescriptors {
			for _, key := range keys {
				entry := f.entries.Get(key)
				if entry == nil || rootKeys[key] {
					continue
				}
				if entry.parent.IsZero() && !f.isAncestorOfRoot(entry.wd) {
					victim = key
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			break
		}
		if err := f.remove(f.entries.Get(victim).wd, events); err != nil {
			f.dropEntry(victim, events)
		}
	}

	// Re-insert the roots' contents.
	for _, dir := range f.initialDirs {
		contents, err := os.ReadDir(dir.String())
		if err != nil {
			f.logger.Warn(&DirectoryListError{Path: dir.String(), Reason: err})
			continue
		}
		for _, child := range contents {
			if _, err := f.insert(filepath.Join(dir.String(), child.Name()), events); err != nil {
				f.logger.Infof("error found when re-inserting %s: %v", child.Name(), err)
			}
		}
	}
}

// isAncestorOfRoot indicates whether the path is a strict ancestor of one of
// the initial roots (a bootstrap stand-in that must survive rescans).
func (f *FileSystem) isAncestorOfRoot(path string) bool {
	for _, dir := range f.initialDirs {
		root := dir.String()
		for {
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
			if root == path {
				return true
			}
		}
	}
	return false
}

// firstEntry returns the first entry key indexed under the specified path.
func (f *FileSystem) firstEntry(path string) (EntryKey, bool) {
	keys, ok := f.watchDescriptors[path]
	if !ok || len(keys) == 0 {
		return EntryKey{}, false
	}
	return keys[0], true
}

// entryPathPasses indicates whether the entry's current path still passes the
// rules.
func (f *FileSystem) entryPathPasses(key EntryKey) bool {
	entry := f.entries.Get(key)
	if entry == nil {
		return false
	}
	return f.passes(entry.wd)
}

// passes indicates whether a path may be tracked: it must either be an
// initial-dir target or be admitted by a tracked symlink's scope.
func (f *FileSystem) passes(path string) bool {
	return f.isInitialDirTarget(path) || f.isSymlinkTarget(path)
}

// isInitialDirTarget determines whether the path is within the initial dirs
// and either passes the master rules or is a directory. Directories are
// admitted regardless of the master rules so that rule-passing descendants
// remain reachable.
func (f *FileSystem) isInitialDirTarget(path string) bool {
	// Must be within the initial dirs (or their ancestor chains).
	if !f.withinInitialDirs(path) {
		return false
	}

	// The path must validate the master rules or be a directory.
	if !f.masterRules.Passes(path).Ok() {
		if info, err := os.Stat(path); err == nil {
			return info.IsDir()
		}
		return false
	}

	return true
}

// withinInitialDirs evaluates the initial-dir rule set, memoizing decisions.
func (f *FileSystem) withinInitialDirs(path string) bool {
	if decision, ok := f.initialDirDecisions.Get(path); ok {
		return decision.(bool)
	}
	decision := f.initialDirRules.Passes(path).Ok()
	f.initialDirDecisions.Add(path, decision)
	return decision
}

// isSymlinkTarget determines whether the path is admitted by the local scope
// of a tracked symlink. A symlink that is itself tracked grants its target
// (and the target's subtree) passage regardless of the master rules.
func (f *FileSystem) isSymlinkTarget(path string) bool {
	for _, keys := range f.symlinks {
		for _, key := range keys {
			entry := f.entries.Get(key)
			if entry == nil {
				f.logger.Errorf("failed to find symlink entry")
				continue
			}
			if entry.kind != EntrySymlink {
				panic("did not expect non symlink entry in symlink index")
			}
			if entry.rules.Passes(path).Ok() {
				return true
			}
		}
	}
	return false
}

// removeKey removes the specified key from a key slice, preserving order.
func removeKey(keys []EntryKey, key EntryKey) []EntryKey {
	filtered := keys[:0]
	for _, other := range keys {
		if other != key {
			filtered = append(filtered, other)
		}
	}
	return filtered
}

// appendTargetRules adds inclusion rules admitting the specified path and its
// subtree.
func appendTargetRules(set *rules.Set, path string) error {
	subtree, err := rules.NewGlobRule(filepath.Join(path, "**"))
	if err != nil {
		return errors.Wrapf(err, "unable to compile subtree rule for %s", path)
	}
	set.AddInclusion(subtree)

	literal, err := rules.NewGlobRule(path)
	if err != nil {
		return errors.Wrapf(err, "unable to compile path rule for %s", path)
	}
	set.AddInclusion(literal)
	return nil
}

// appendPathRules adds inclusion rules admitting the specified path, its
// subtree, and its ancestor chain up to the filesystem root.
func appendPathRules(set *rules.Set, path string) error {
	if err := appendTargetRules(set, path); err != nil {
		return err
	}

	for {
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
		literal, err := rules.NewGlobRule(path)
		if err != nil {
			return errors.Wrapf(err, "unable to compile path rule for %s", path)
		}
		set.AddInclusion(literal)
	}
	return nil
}
