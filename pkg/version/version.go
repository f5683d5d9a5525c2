package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
// go build -ldflags "-X github.com/VeltarosLabs/blockforge/pkg/version.Version=0.2.0 -X github.com/VeltarosLabs/blockforge/pkg/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "0.1.0"
	Commit  = "dev"
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String is the multi-line form printed by the binaries' version commands.
func (i Info) String() string {
	return fmt.Sprintf("Version: %s\nCommit:  %s\nGo:      %s\nTarget:  %s", i.Version, i.Commit, i.GoVersion, i.Platform)
}
