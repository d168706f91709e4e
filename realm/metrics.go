package realm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realms",
		Name:      "resolutions_total",
		Help:      "Symbol and resource lookups by kind and the step that satisfied them.",
	}, []string{"kind", "outcome"})

	materializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realms",
		Name:      "materializations_total",
		Help:      "Symbol definitions by result.",
	}, []string{"result"})

	realmsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "realms",
		Name:      "live",
		Help:      "Realms currently registered across all worlds.",
	})
)

// outcome names the resolution step that produced a result.
type outcome int

const (
	outcomeMiss outcome = iota
	outcomeForeign
	outcomeImport
	outcomeSelf
	outcomeParent
)

func (o outcome) String() string {
	switch o {
	case outcomeForeign:
		return "foreign"
	case outcomeImport:
		return "import"
	case outcomeSelf:
		return "self"
	case outcomeParent:
		return "parent"
	default:
		return "miss"
	}
}

func observe(kind string, o outcome) {
	resolutions.WithLabelValues(kind, o.String()).Inc()
}
