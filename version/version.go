// Package version reports the svmfuzz release and the VCS metadata the Go toolchain embeds at build time.
package version

import (
	"io"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// These variables can be set via ldflags at build time. Empty values are filled from the embedded build info.
var (
	// Version is the release version of the build.
	Version = "0.1.0"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = ""
	// GitCommitTime is the RFC 3339 timestamp of that commit.
	GitCommitTime = ""
	// GitTreeDirty is "true" if the working tree had uncommitted changes.
	GitTreeDirty = ""
)

// Info describes a build.
type Info struct {
	Version       string
	GitCommit     string
	GitCommitTime string
	GitTreeDirty  bool
	GoVersion     string
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if GitCommit == "" {
				GitCommit = setting.Value
			}
		case "vcs.time":
			if GitCommitTime == "" {
				GitCommitTime = setting.Value
			}
		case "vcs.modified":
			if GitTreeDirty == "" {
				GitTreeDirty = setting.Value
			}
		}
	}
}

// GetInfo returns the build information of the running binary.
func GetInfo() Info {
	return Info{
		Version:       Version,
		GitCommit:     GitCommit,
		GitCommitTime: GitCommitTime,
		GitTreeDirty:  GitTreeDirty == "true",
		GoVersion:     runtime.Version(),
	}
}

// ShortCommit returns the abbreviated commit hash.
func (i Info) ShortCommit() string {
	if len(i.GitCommit) > 7 {
		return i.GitCommit[:7]
	}
	return i.GitCommit
}

// commit returns the abbreviated commit hash, marked if the tree was dirty.
func (i Info) commit() string {
	commit := i.ShortCommit()
	if commit != "" && i.GitTreeDirty {
		commit += "-dirty"
	}
	return commit
}

// Short returns a single-line version, such as 0.1.0+abcdef1-dirty.
func (i Info) Short() string {
	if commit := i.commit(); commit != "" {
		return i.Version + "+" + commit
	}
	return i.Version
}

// Render writes the build information to w as a table. Fields which are unknown are omitted.
func (i Info) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("svmfuzz " + i.Version)
	if commit := i.commit(); commit != "" {
		t.AppendRow(table.Row{"Commit", commit})
	}
	if i.GitCommitTime != "" {
		built := i.GitCommitTime
		if parsed, err := time.Parse(time.RFC3339, i.GitCommitTime); err == nil {
			built = parsed.UTC().Format("2006-01-02 15:04:05 MST")
		}
		t.AppendRow(table.Row{"Built", built})
	}
	t.AppendRow(table.Row{"Go version", i.GoVersion})
	t.Render()
}
