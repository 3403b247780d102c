package pollagent

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/skosovsky/pollagent/coordinator"
	"github.com/skosovsky/pollagent/internal/logging"
)

// SecretPrefix is the required prefix of an API secret.
const SecretPrefix = "sk_"

// Client is the entry point for an embedding application: it collects tools, then listens for jobs
// addressed to them through a single Agent.
//
// At most one Agent listens per Client. Tools can only be registered while the Client is not listening.
type Client struct {
	api       coordinator.API
	machineID string
	opts      options
	logger    *slog.Logger
	registry  *Registry

	mu       sync.Mutex
	agents   []*Agent
	starting *Agent
}

// NewClient validates secret and builds a Client. Without WithCoordinator, calls go over HTTP to the
// configured endpoint.
func NewClient(secret string, opts ...Option) (*Client, error) {
	if !strings.HasPrefix(secret, SecretPrefix) || len(secret) == len(SecretPrefix) {
		return nil, configError(ErrInvalidSecret, "api secret must start with %q", SecretPrefix)
	}
	o := buildOptions(opts)
	machineID := o.machineID
	if machineID == "" {
		machineID = uuid.NewString()
	}
	api := o.api
	if api == nil {
		u, err := url.Parse(o.endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, configError(ErrInvalidEndpoint, "%q", o.endpoint)
		}
		httpOpts := []coordinator.HTTPOption{coordinator.WithSDKVersion(Version)}
		if o.httpClient != nil {
			httpOpts = append(httpOpts, coordinator.WithHTTPClient(o.httpClient))
		}
		api = coordinator.NewHTTPClient(o.endpoint, secret, machineID, httpOpts...)
	}
	return &Client{
		api:       api,
		machineID: machineID,
		opts:      o,
		logger:    logging.Component(o.logger, "client"),
		registry:  NewRegistry(),
	}, nil
}

// MachineID returns the identity sent with every coordinator call.
func (c *Client) MachineID() string { return c.machineID }

// Register adds tools. It fails without touching existing registrations when a name is already taken
// or the Client is listening.
func (c *Client) Register(tools ...*Tool) error {
	if err := c.registry.Register(tools...); err != nil {
		return err
	}
	for _, t := range tools {
		c.logger.Debug("tool registered", "tool", t.Name())
	}
	return nil
}

// Tools returns the registered tools sorted by name.
func (c *Client) Tools() []*Tool { return c.registry.Tools() }

// Listening reports whether an Agent is running. It turns false once Unlisten has stopped every Agent.
func (c *Client) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.agents) > 0
}

// ClusterID returns the cluster of the listening Agent, or the configured cluster id.
func (c *Client) ClusterID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.agents {
		if id := a.ClusterID(); id != "" {
			return id
		}
	}
	return c.opts.clusterID
}

// Listen registers the machine and starts polling for jobs in the background. It returns once
// registration completed. c's lock is not held across the registration call.
func (c *Client) Listen(ctx context.Context) error {
	c.mu.Lock()
	if len(c.agents) > 0 || c.starting != nil {
		c.mu.Unlock()
		return configError(ErrAlreadyListening, "")
	}
	c.registry.seal()
	tools := c.registry.Tools()
	if len(tools) == 0 {
		c.registry.unseal()
		c.mu.Unlock()
		return configError(ErrNoTools, "")
	}
	agent := newAgent(c.api, tools, c.opts)
	c.starting = agent
	c.mu.Unlock()

	err := agent.Start(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = nil
	if err == nil && agent.State() == StateStopped {
		err = configError(ErrAgentStopped, "stopped by Unlisten during registration")
	}
	if err != nil {
		c.registry.unseal()
		return err
	}
	c.agents = append(c.agents, agent)
	c.logger.InfoContext(ctx, "listening", "tools", len(tools), "cluster_id", agent.ClusterID())
	return nil
}

// Unlisten stops every Agent and waits for their loops to exit, or for ctx to end. It is a no-op when
// the Client is not listening. Afterwards tools may be registered and Listen called again.
//
// In-flight handlers may keep using the Client while Unlisten waits for them. Until the agents have
// stopped, Listen reports ErrAlreadyListening and Register reports ErrRegisterWhileListening.
func (c *Client) Unlisten(ctx context.Context) error {
	c.mu.Lock()
	stopping := slices.Clone(c.agents)
	if c.starting != nil {
		stopping = append(stopping, c.starting)
	}
	c.mu.Unlock()
	if len(stopping) == 0 {
		return nil
	}

	var errs []error
	for _, a := range stopping {
		if err := a.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents = slices.DeleteFunc(c.agents, func(a *Agent) bool { return slices.Contains(stopping, a) })
	if len(c.agents) == 0 && c.starting == nil {
		c.registry.unseal()
	}
	c.logger.InfoContext(ctx, "stopped listening")
	return nil
}
