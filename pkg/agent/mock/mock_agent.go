// Package mock provides an in-memory Consul agent registry for services and
// checks. It satisfies agent.Backend.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/consulvault/consul_sdk_go/pkg/agent"
)

// Mock stores registered services and checks.
type Mock struct {
	mu         sync.RWMutex
	node       string
	datacenter string
	services   map[string]agent.Service
	checks     map[string]agent.CheckStatus
}

var _ agent.Backend = (*Mock)(nil)

// Option configures the mock instance.
type Option func(*Mock)

// WithNode sets the node name reported on checks.
func WithNode(name string) Option {
	return func(m *Mock) {
		if name != "" {
			m.node = name
		}
	}
}

// WithDatacenter sets the datacenter reported on services.
func WithDatacenter(dc string) Option {
	return func(m *Mock) {
		if dc != "" {
			m.datacenter = dc
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Mock {
	m := &Mock{
		node:       "sandbox",
		datacenter: "dc1",
		services:   make(map[string]agent.Service),
		checks:     make(map[string]agent.CheckStatus),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterService stores def. The ID defaults to the name; embedded checks
// are registered as service:<id> (or service:<id>:<n> for several).
func (m *Mock) RegisterService(ctx context.Context, def agent.ServiceDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return agent.ErrNameRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	id := def.ID
	if id == "" {
		id = def.Name
	}
	svc := agent.Service{
		Kind:              def.Kind,
		ID:                id,
		Service:           def.Name,
		Tags:              append([]string(nil), def.Tags...),
		Meta:              copyMeta(def.Meta),
		Port:              def.Port,
		Address:           def.Address,
		Weights:           agent.Weights{Passing: 1, Warning: 1},
		EnableTagOverride: def.EnableTagOverride,
		Datacenter:        m.datacenter,
	}
	if def.Weights != nil {
		svc.Weights = *def.Weights
	}

	var embedded []agent.Check
	if def.Check != nil {
		embedded = append(embedded, *def.Check)
	}
	embedded = append(embedded, def.Checks...)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeServiceChecksLocked(id)
	m.services[id] = svc
	for i, chk := range embedded {
		chk.ServiceID = id
		if chk.ID == "" {
			chk.ID = "service:" + id
			if len(embedded) > 1 {
				chk.ID = fmt.Sprintf("service:%s:%d", id, i+1)
			}
		}
		m.checks[chk.ID] = m.statusLocked(chk)
	}
	return nil
}

// DeregisterService removes a service and its checks.
func (m *Mock) DeregisterService(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.services[id]; !ok {
		return fmt.Errorf("%w: unknown service ID %q", agent.ErrNotFound, id)
	}
	delete(m.services, id)
	m.removeServiceChecksLocked(id)
	return nil
}

// Services returns a copy of the registered services.
func (m *Mock) Services(ctx context.Context) (map[string]agent.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]agent.Service, len(m.services))
	for id, svc := range m.services {
		out[id] = svc
	}
	return out, nil
}

// RegisterCheck stores a standalone or service-bound check.
func (m *Mock) RegisterCheck(ctx context.Context, chk agent.Check) error {
	if strings.TrimSpace(chk.Name) == "" {
		return agent.ErrNameRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if chk.ServiceID != "" {
		if _, ok := m.services[chk.ServiceID]; !ok {
			return fmt.Errorf("%w: ServiceID %q does not exist", agent.ErrNotFound, chk.ServiceID)
		}
	}
	if chk.ID == "" {
		chk.ID = chk.Name
	}
	m.checks[chk.ID] = m.statusLocked(chk)
	return nil
}

// DeregisterCheck removes a check.
func (m *Mock) DeregisterCheck(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.checks[id]; !ok {
		return fmt.Errorf("%w: unknown check ID %q", agent.ErrNotFound, id)
	}
	delete(m.checks, id)
	return nil
}

// Checks returns a copy of the registered checks.
func (m *Mock) Checks(ctx context.Context) (map[string]agent.CheckStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]agent.CheckStatus, len(m.checks))
	for id, chk := range m.checks {
		out[id] = chk
	}
	return out, nil
}

// statusLocked derives the reported state of a new check. Checks start
// critical unless an initial Status is supplied.
func (m *Mock) statusLocked(chk agent.Check) agent.CheckStatus {
	status := chk.Status
	if status == "" {
		status = agent.StatusCritical
	}
	st := agent.CheckStatus{
		Node:      m.node,
		CheckID:   chk.ID,
		Name:      chk.Name,
		Status:    status,
		Notes:     chk.Notes,
		ServiceID: chk.ServiceID,
		Type:      checkType(chk),
		Namespace: chk.Namespace,
	}
	if svc, ok := m.services[chk.ServiceID]; ok {
		st.ServiceName = svc.Service
		st.ServiceTags = append([]string(nil), svc.Tags...)
	}
	return st
}

func (m *Mock) removeServiceChecksLocked(serviceID string) {
	for id, chk := range m.checks {
		if chk.ServiceID == serviceID {
			delete(m.checks, id)
		}
	}
}

func checkType(chk agent.Check) string {
	switch {
	case chk.TTL != "":
		return "ttl"
	case chk.HTTP != "":
		return "http"
	case chk.TCP != "":
		return "tcp"
	case chk.GRPC != "":
		return "grpc"
	case chk.H2PING != "":
		return "h2ping"
	case len(chk.Args) > 0:
		return "script"
	case chk.DockerContainerID != "":
		return "docker"
	case chk.AliasService != "" || chk.AliasNode != "":
		return "alias"
	default:
		return ""
	}
}

func copyMeta(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
