package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Session-core Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the core flows and HTTP packages.

var (
	SignIns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionkit_sign_ins_total",
		Help: "Successful sign-ins by provider slug",
	}, []string{"provider"})

	StateRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessionkit_oauth_state_rejections_total",
		Help: "External OAuth callbacks rejected by state-token validation",
	})

	PhaseTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionkit_session_phase_transitions_total",
		Help: "Session state publishes by resulting phase",
	}, []string{"phase"})
)

// Register registers the session metrics on the given registry (or the
// default registry if nil). Double registration is tolerated.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{SignIns, StateRejections, PhaseTransitions} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
