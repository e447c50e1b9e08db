package obs

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerBuild sync.Once

	findocsBuild = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "findocs_build_info",
		Help: "Always 1; labels identify the running FinDocs API binary.",
	}, []string{"version", "commit", "go_version"})
)

// InitBuildInfo publishes the binary's version and commit. Repeated calls add label sets.
func InitBuildInfo(version, commit string) {
	registerBuild.Do(func() { prometheus.MustRegister(findocsBuild) })
	if commit == "" {
		commit = "unknown"
	}
	findocsBuild.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
