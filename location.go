package pagecam

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/teranos/pagecam/trip"
)

var libraryDir = func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Dir(file)
}()

// callSite returns the first stack frame outside this package's non-test
// sources, which is where the test issued the step.
func callSite() trip.Location {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && !isLibraryFile(frame.File) {
			return trip.Location{File: frame.File, Line: frame.Line}
		}
		if !more {
			return trip.Location{}
		}
	}
}

func isLibraryFile(file string) bool {
	if strings.HasSuffix(file, "_test.go") {
		return false
	}
	return filepath.Dir(file) == libraryDir
}
