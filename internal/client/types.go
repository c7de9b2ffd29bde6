package client

// Jolokia request types.
const (
	typeRead    = "read"
	typeSearch  = "search"
	typeExec    = "exec"
	typeVersion = "version"
)

// request is the JSON body of a single Jolokia request. Attribute is a
// string for one attribute, a list for several, and omitted for all.
type request struct {
	Type      string   `json:"type"`
	MBean     string   `json:"mbean,omitempty"`
	Attribute any      `json:"attribute,omitempty"`
	Operation string   `json:"operation,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
}

// AgentInfo describes the Jolokia agent answering requests.
type AgentInfo struct {
	Agent    string
	Protocol string
	Product  string
}
