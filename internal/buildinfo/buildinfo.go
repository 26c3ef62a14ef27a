// Package buildinfo reports what binary is running. Version fields live in
// prometheus/common/version and are set with ldflags, for example
// -X github.com/prometheus/common/version.Version=v0.1.0.
package buildinfo

import (
	"fmt"
	"io"

	"github.com/prometheus/common/version"
)

const Graffiti = "       _                        _   \n" +
	" _ __ (_)_ __   ___  ___ __ _ ___| |_ \n" +
	"| '_ \\| | '_ \\ / _ \\/ __/ _` / __| __|\n" +
	"| |_) | | |_) |  __/ (_| (_| \\__ \\ |_ \n" +
	"| .__/|_| .__/ \\___|\\___\\__,_|___/\\__|\n" +
	"|_|     |_|                           \n\n"

const Name = "pipecast"

type buildinfo struct{}

func (buildinfo) Tag() string {
	if version.Version == "" {
		return "v0.0.0"
	}
	return version.Version
}

func (buildinfo) Name() string {
	return Name
}

func (buildinfo) Time() string {
	return version.BuildDate
}

func (buildinfo) Revision() string {
	return version.Revision
}

// Print writes the one-line build summary.
func (b buildinfo) Print(w io.Writer) {
	_, _ = fmt.Fprintln(w, version.Print(b.Name()))
}

var Info buildinfo
