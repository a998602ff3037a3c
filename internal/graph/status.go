package graph

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileStatus is the porting state of a module as described by a port
// status file. A status matches a comment when the lowercased comment
// contains every string of Match. Colors are X11 color names.
type FileStatus struct {
	Name  string
	Match []string
	Color string
}

var (
	StatusYes     = &FileStatus{Name: "yes", Match: []string{"yes"}, Color: "green"}
	StatusPR      = &FileStatus{Name: "pr", Match: []string{"no", "pr"}, Color: "lightskyblue"}
	StatusWIP     = &FileStatus{Name: "wip", Match: []string{"no", "wip"}, Color: "lightpink"}
	StatusNo      = &FileStatus{Name: "no", Match: []string{"no"}, Color: "orange"}
	StatusMissing = &FileStatus{Name: "missing", Color: "orchid1"}
	// StatusReady marks unported modules whose imports are all ported.
	StatusReady = &FileStatus{Name: "ready", Color: "turquoise1"}
)

// Matches reports whether comment describes s.
func (s *FileStatus) Matches(comment string) bool {
	comment = strings.ToLower(comment)
	for _, m := range s.Match {
		if !strings.Contains(comment, strings.ToLower(m)) {
			return false
		}
	}
	return true
}

// AssignStatus picks the status described by comment, or nil. A bare "no"
// carries no information and is not assigned.
func AssignStatus(comment string) *FileStatus {
	for _, status := range []*FileStatus{StatusYes, StatusPR, StatusWIP} {
		if status.Matches(comment) {
			return status
		}
	}
	if StatusNo.Matches(comment) && len(comment) > 2 {
		return StatusNo
	}
	return nil
}

// ParsePortStatus reads a YAML mapping from module names to comments.
func ParsePortStatus(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse port status: %w", err)
	}
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case nil:
			out[name] = ""
		case string:
			out[name] = v
		default:
			out[name] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// ApplyPortStatus sets the status of every module from comments. Modules
// without an entry become StatusMissing. Afterwards, modules still to port
// whose imports all have StatusYes become StatusReady.
func (g *Graph) ApplyPortStatus(comments map[string]string) {
	for id, node := range g.Nodes {
		comment, ok := comments[id]
		if !ok {
			node.Status = StatusMissing
			continue
		}
		node.Status = AssignStatus(comment)
	}

	var ready []*Node
	for _, node := range g.Nodes {
		if node.Status != nil && node.Status != StatusNo {
			continue
		}
		allPorted := true
		for _, parent := range node.InEdges {
			if p := g.Nodes[parent]; p == nil || p.Status != StatusYes {
				allPorted = false
				break
			}
		}
		if allPorted {
			ready = append(ready, node)
		}
	}
	for _, node := range ready {
		node.Status = StatusReady
	}
}
