package resilience

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// tripKinds are failures that repeat until an operator acts, or that risk
// locking the brokerage account if the login is retried blindly.
var tripKinds = map[model.ErrorKind]bool{
	model.KindAuthenticationRejected: true,
	model.KindLoginFormMissing:       true,
	model.KindDeviceAuthTimeout:      true,
	model.KindInvalidCredentials:     true,
}

// IsLoginFailure reports whether err is an authentication failure that
// should count against the login circuit.
func IsLoginFailure(err error) bool {
	kind, ok := model.KindOf(err)
	return ok && tripKinds[kind]
}

// LoginBreakerConfig builds the breaker that guards unattended logins.
// Unreachable-site errors do not trip it; they are retried per navigation.
func LoginBreakerConfig(failureThreshold int, resetTimeout time.Duration) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeout > 0 {
		cfg.ResetTimeout = resetTimeout
	}
	cfg.ShouldTrip = IsLoginFailure
	cfg.OnStateChange = func(from, to CircuitState) {
		zap.L().Warn("resilience: login circuit changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return cfg
}
