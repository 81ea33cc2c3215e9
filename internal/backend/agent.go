package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// UpdateAgentProfile updates an agent's editable fields. Newer backend
// deployments accept a combined PUT; older ones answer 404 or 405 and only
// expose per-section PATCH endpoints, in which case the update degrades to
// three sequential PATCH calls. A failure mid-sequence leaves the earlier
// sections updated: the backend offers no way to roll them back, and the
// partial state is reported to the caller instead of being hidden.
func (c *Client) UpdateAgentProfile(ctx context.Context, token, agentID string, in AgentProfileUpdate) error {
	base := "/api/agents/" + url.PathEscape(agentID)
	err := c.do(ctx, "update_agent", http.MethodPut, base, token, in, nil)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || (apiErr.StatusCode != http.StatusMethodNotAllowed && apiErr.StatusCode != http.StatusNotFound) {
		return err
	}

	steps := []struct {
		op   string
		path string
		body any
	}{
		{"update_agent_profile", base + "/profile", map[string]string{"name": in.Name, "phone": in.Phone}},
		{"update_agent_territory", base + "/territory", map[string]string{"territory": in.Territory}},
		{"update_agent_status", base + "/status", map[string]string{"status": in.Status}},
	}
	for i, step := range steps {
		if err := c.do(ctx, step.op, http.MethodPatch, step.path, token, step.body, nil); err != nil {
			if i > 0 {
				return fmt.Errorf("agent update partially applied (%d of %d sections): %w", i, len(steps), err)
			}
			return err
		}
	}
	return nil
}
