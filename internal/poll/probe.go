package poll

import (
	"context"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Prober distinguishes a device that dropped off the network from one
// that answers ICMP but not SNMP. Timeout failures are re-classified as
// unreachable only when the probe also fails.
type Prober struct {
	timeout time.Duration
	count   int
	logger  *zap.Logger
}

// NewProber creates an ICMP prober.
func NewProber(timeout time.Duration, logger *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Prober{
		timeout: timeout,
		count:   1,
		logger:  logger.Named("probe"),
	}
}

// Alive pings the host once and reports whether it answered.
func (p *Prober) Alive(ctx context.Context, host string) bool {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("host", host), zap.Error(err))
		return false
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("host", host), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		<-done
	}

	return pinger.Statistics().PacketsRecv > 0
}
