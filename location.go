// location.go - per-call-site location registry.
//
// A Location is resolved once per (call site, tag) and then served from a
// copy-on-write index, so repeated traversals of the same return path do not
// allocate.
//
// Resolution uses runtime.Callers + runtime.CallersFrames so inlined frames
// report the user's source position. The Go runtime does not expose columns;
// runtime-resolved locations carry Column 0. Generated code that knows the
// column can build locations with NewLocation.
package ertrace

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

// Location describes a single call site that created or rewrapped an error.
// Locations are immutable and live for the life of the process.
type Location struct {
	Tag        string // error kind recorded at this site
	File       string
	Line       int
	Column     int    // 0 when unknown
	ModulePath string // package import path of the call site
}

// NewLocation builds a fully specified Location. Callers should store the
// result in a package-level variable so each site owns exactly one instance.
func NewLocation(tag, file string, line, column int, modulePath string) *Location {
	return &Location{
		Tag:        tag,
		File:       file,
		Line:       line,
		Column:     column,
		ModulePath: modulePath,
	}
}

// String formats the location as "<tag> at <file>:<line>:<column> in <module>".
func (l *Location) String() string {
	if l == nil {
		return "<nil location>"
	}
	return fmt.Sprintf("%s at %s:%d:%d in %s", l.Tag, l.File, l.Line, l.Column, l.ModulePath)
}

// Here returns the Location of its caller, tagged with tag.
func Here(tag string) *Location {
	return HereSkip(tag, 1)
}

// HereSkip is like Here but skips additional frames, for helpers that want
// the location of their own caller. HereSkip(tag, 0) reports the caller of
// HereSkip itself.
//
// Tags are expected to be static (a fixed set per call site). A site that
// produces more than maxTagsPerSite distinct tags still gets correct
// locations, but the extra ones are built per call instead of cached.
func HereSkip(tag string, skip int) *Location {
	var pcs [1]uintptr
	// +2 skips runtime.Callers and HereSkip.
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return sites.lookup(0, tag, nil)
	}
	return sites.lookup(pcs[0], tag, resolveFrame)
}

// maxTagsPerSite bounds how many tags one call site may cache.
const maxTagsPerSite = 8

// siteIndex is the process-wide registry, keyed by program counter with a
// short tag list per site. Reads are lock-free against an immutable map
// snapshot; misses take mu and publish a new snapshot.
type siteIndex struct {
	mu   sync.Mutex
	snap atomic.Pointer[map[uintptr][]*Location]
}

var sites siteIndex

func findTag(locs []*Location, tag string) *Location {
	for _, loc := range locs {
		if loc.Tag == tag {
			return loc
		}
	}
	return nil
}

func (s *siteIndex) lookup(pc uintptr, tag string, resolve func(pc uintptr, tag string) *Location) *Location {
	if m := s.snap.Load(); m != nil {
		if loc := findTag((*m)[pc], tag); loc != nil {
			return loc
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var old map[uintptr][]*Location
	if m := s.snap.Load(); m != nil {
		old = *m
	}
	if loc := findTag(old[pc], tag); loc != nil {
		return loc
	}

	var loc *Location
	if resolve != nil {
		loc = resolve(pc, tag)
	} else {
		loc = &Location{Tag: tag, File: "?"}
	}
	if len(old[pc]) >= maxTagsPerSite {
		return loc
	}

	next := make(map[uintptr][]*Location, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	tags := make([]*Location, len(old[pc]), len(old[pc])+1)
	copy(tags, old[pc])
	next[pc] = append(tags, loc)
	s.snap.Store(&next)
	return loc
}

// len reports the number of cached locations.
func (s *siteIndex) len() int {
	m := s.snap.Load()
	if m == nil {
		return 0
	}
	n := 0
	for _, locs := range *m {
		n += len(locs)
	}
	return n
}

func resolveFrame(pc uintptr, tag string) *Location {
	frames := runtime.CallersFrames([]uintptr{pc})
	fr, _ := frames.Next()
	loc := &Location{Tag: tag, File: fr.File, Line: fr.Line, ModulePath: packagePath(fr.Function)}
	if loc.File == "" {
		loc.File = "?"
	}
	return loc
}

// packagePath extracts the import path from a fully-qualified function name
// such as "github.com/x/y.(*T).Method" or "github.com/x/y.fn.func1".
func packagePath(fn string) string {
	if fn == "" {
		return "?"
	}
	// The package path ends at the first '.' after the last '/'.
	slash := strings.LastIndexByte(fn, '/')
	dot := strings.IndexByte(fn[slash+1:], '.')
	if dot < 0 {
		return fn
	}
	return fn[:slash+1+dot]
}
