package swarm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Village describes one node in the swarm network
type Village struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Neighbors []string `yaml:"neighbors"`
}

// Topology describes the village network the agents coordinate over
type Topology struct {
	Villages []Village `yaml:"villages"`
}

// DefaultTopology returns the built-in pilot network
func DefaultTopology() Topology {
	return Topology{
		Villages: []Village{
			{ID: "v1", Name: "Dharavi", Neighbors: []string{"v2", "v3"}},
			{ID: "v2", Name: "Kalyan", Neighbors: []string{"v1", "v3"}},
			{ID: "v3", Name: "Thane", Neighbors: []string{"v1", "v2", "v4"}},
			{ID: "v4", Name: "Navi Mumbai", Neighbors: []string{"v3"}},
		},
	}
}

// LoadTopology reads a village topology from a YAML file
func LoadTopology(path string) (Topology, error) {
	var topo Topology

	data, err := os.ReadFile(path)
	if err != nil {
		return topo, fmt.Errorf("failed to read topology file: %w", err)
	}

	if err := yaml.Unmarshal(data, &topo); err != nil {
		return topo, fmt.Errorf("failed to parse topology file: %w", err)
	}

	if len(topo.Villages) == 0 {
		return topo, fmt.Errorf("topology file defines no villages")
	}

	for _, v := range topo.Villages {
		if v.ID == "" || v.Name == "" {
			return topo, fmt.Errorf("topology village entries require both id and name")
		}
	}

	return topo, nil
}
