package agent

import "errors"

// ServiceDefinition is the payload of PUT /v1/agent/service/register.
// See https://developer.hashicorp.com/consul/api-docs/agent/service#parameters-2
type ServiceDefinition struct {
	Name              string                    `json:"Name"`
	ID                string                    `json:"ID,omitempty"`
	Tags              []string                  `json:"Tags,omitempty"`
	Address           string                    `json:"Address,omitempty"`
	TaggedAddresses   map[string]ServiceAddress `json:"TaggedAddresses,omitempty"`
	Meta              map[string]string         `json:"Meta,omitempty"`
	Port              int                       `json:"Port,omitempty"`
	Kind              string                    `json:"Kind,omitempty"`
	Proxy             *Proxy                    `json:"Proxy,omitempty"`
	Connect           *Connect                  `json:"Connect,omitempty"`
	Check             *Check                    `json:"Check,omitempty"`
	Checks            []Check                   `json:"Checks,omitempty"`
	EnableTagOverride bool                      `json:"EnableTagOverride,omitempty"`
	Weights           *Weights                  `json:"Weights,omitempty"`
}

// ServiceAddress is one entry of TaggedAddresses.
type ServiceAddress struct {
	Address string `json:"Address"`
	Port    int    `json:"Port,omitempty"`
}

// Weights influence DNS SRV responses per health state.
type Weights struct {
	Passing int `json:"Passing"`
	Warning int `json:"Warning"`
}

// Connect configures service mesh participation.
type Connect struct {
	Native         bool               `json:"Native,omitempty"`
	Proxy          *Proxy             `json:"Proxy,omitempty"`
	SidecarService *ServiceDefinition `json:"SidecarService,omitempty"`
}

// Proxy configures a connect proxy service.
type Proxy struct {
	DestinationServiceName string         `json:"DestinationServiceName,omitempty"`
	DestinationServiceID   string         `json:"DestinationServiceID,omitempty"`
	LocalServiceAddress    string         `json:"LocalServiceAddress,omitempty"`
	LocalServicePort       int            `json:"LocalServicePort,omitempty"`
	Mode                   string         `json:"Mode,omitempty"`
	Config                 map[string]any `json:"Config,omitempty"`
	Upstreams              []Upstream     `json:"Upstreams,omitempty"`
}

// Upstream is a service a proxy routes to.
type Upstream struct {
	DestinationType      string `json:"DestinationType,omitempty"`
	DestinationNamespace string `json:"DestinationNamespace,omitempty"`
	DestinationName      string `json:"DestinationName"`
	Datacenter           string `json:"Datacenter,omitempty"`
	LocalBindAddress     string `json:"LocalBindAddress,omitempty"`
	LocalBindPort        int    `json:"LocalBindPort,omitempty"`
}

// Check is the payload of PUT /v1/agent/check/register and the embedded
// check of a service definition.
// See https://developer.hashicorp.com/consul/api-docs/agent/check#parameters-1
type Check struct {
	Name                           string              `json:"Name"`
	ID                             string              `json:"ID,omitempty"`
	Namespace                      string              `json:"Namespace,omitempty"`
	Interval                       string              `json:"Interval,omitempty"`
	Notes                          string              `json:"Notes,omitempty"`
	DeregisterCriticalServiceAfter string              `json:"DeregisterCriticalServiceAfter,omitempty"`
	Args                           []string            `json:"Args,omitempty"`
	AliasNode                      string              `json:"AliasNode,omitempty"`
	AliasService                   string              `json:"AliasService,omitempty"`
	DockerContainerID              string              `json:"DockerContainerID,omitempty"`
	GRPC                           string              `json:"GRPC,omitempty"`
	GRPCUseTLS                     bool                `json:"GRPCUseTLS,omitempty"`
	H2PING                         string              `json:"H2PING,omitempty"`
	H2PingUseTLS                   *bool               `json:"H2PingUseTLS,omitempty"`
	HTTP                           string              `json:"HTTP,omitempty"`
	Method                         string              `json:"Method,omitempty"`
	Body                           string              `json:"Body,omitempty"`
	Header                         map[string][]string `json:"Header,omitempty"`
	Timeout                        string              `json:"Timeout,omitempty"`
	OutputMaxSize                  int                 `json:"OutputMaxSize,omitempty"`
	TLSServerName                  string              `json:"TLSServerName,omitempty"`
	TLSSkipVerify                  bool                `json:"TLSSkipVerify,omitempty"`
	TCP                            string              `json:"TCP,omitempty"`
	TTL                            string              `json:"TTL,omitempty"`
	ServiceID                      string              `json:"ServiceID,omitempty"`
	Status                         string              `json:"Status,omitempty"`
	SuccessBeforePassing           int                 `json:"SuccessBeforePassing,omitempty"`
	FailuresBeforeWarning          int                 `json:"FailuresBeforeWarning,omitempty"`
	FailuresBeforeCritical         int                 `json:"FailuresBeforeCritical,omitempty"`
}

// Service is one value of the GET /v1/agent/services map.
type Service struct {
	Kind              string            `json:"Kind,omitempty"`
	ID                string            `json:"ID"`
	Service           string            `json:"Service"`
	Tags              []string          `json:"Tags"`
	Meta              map[string]string `json:"Meta"`
	Port              int               `json:"Port"`
	Address           string            `json:"Address"`
	Weights           Weights           `json:"Weights"`
	EnableTagOverride bool              `json:"EnableTagOverride"`
	Datacenter        string            `json:"Datacenter,omitempty"`
	Namespace         string            `json:"Namespace,omitempty"`
}

// CheckStatus is one value of the GET /v1/agent/checks map.
type CheckStatus struct {
	Node        string   `json:"Node"`
	CheckID     string   `json:"CheckID"`
	Name        string   `json:"Name"`
	Status      string   `json:"Status"`
	Notes       string   `json:"Notes"`
	Output      string   `json:"Output"`
	ServiceID   string   `json:"ServiceID"`
	ServiceName string   `json:"ServiceName"`
	ServiceTags []string `json:"ServiceTags"`
	Type        string   `json:"Type"`
	Namespace   string   `json:"Namespace,omitempty"`
}

// Health states reported by checks.
const (
	StatusPassing  = "passing"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

var (
	// ErrNotFound indicates an unknown service or check ID.
	ErrNotFound = errors.New("agent: not found")
	// ErrNameRequired is returned when a definition has no Name.
	ErrNameRequired = errors.New("agent: name is required")
)
