package ws

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// HeartbeatConfig holds heartbeat tuning parameters.
type HeartbeatConfig struct {
	Interval time.Duration // ping period
	Timeout  time.Duration // grace after Interval before a silent player is dropped
}

func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{Interval: 30 * time.Second, Timeout: 10 * time.Second}
}

// StartHeartbeat pings every connection each Interval, drops the ones that
// stayed silent longer than Interval+Timeout and refreshes the presence
// TTL of the rest. It stops when the server shuts down.
func StartHeartbeat(s *Server, config HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.sweep(config, time.Now())
			}
		}
	}()
}

func (s *Server) sweep(config HeartbeatConfig, now time.Time) {
	deadline := config.Interval + config.Timeout
	for _, c := range s.conns.All() {
		if idle := now.Sub(c.LastSeen()); idle > deadline {
			s.logger.Info("heartbeat timeout", zap.String("player", c.Name), zap.Duration("idle", idle.Round(time.Second)))
			s.RemoveConnection(c)
			continue
		}
		if err := c.WritePing(); err != nil {
			s.logger.Debug("heartbeat ping failed", zap.String("player", c.Name), zap.Error(err))
			s.RemoveConnection(c)
			continue
		}
		if s.sessions != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			if err := s.sessions.Touch(ctx, c.ID.String(), c.Name); err != nil {
				s.logger.Warn("refresh session", zap.String("player", c.Name), zap.Error(err))
			}
			cancel()
		}
	}
}
