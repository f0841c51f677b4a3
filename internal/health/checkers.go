package health

import (
	"context"
	"fmt"
	"net/http"
)

// PingChecker wraps any dependency that exposes a ping. The state store
// and run history database are non-critical: research runs work without
// external snapshots or history rows.
type PingChecker struct {
	Component  string
	IsCritical bool
	Ping       func(ctx context.Context) error
}

func (c *PingChecker) Name() string   { return c.Component }
func (c *PingChecker) Critical() bool { return c.IsCritical }

func (c *PingChecker) Check(ctx context.Context) error {
	return c.Ping(ctx)
}

// AgentServiceChecker probes the hosted agent service. Critical: no
// agents, no research.
type AgentServiceChecker struct {
	BaseURL string
	Client  *http.Client
}

func (c *AgentServiceChecker) Name() string   { return "agent_service" }
func (c *AgentServiceChecker) Critical() bool { return true }

func (c *AgentServiceChecker) Check(ctx context.Context) error {
	httpClient := c.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agent service returned status %d", resp.StatusCode)
	}
	return nil
}
