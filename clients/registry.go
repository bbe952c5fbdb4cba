package clients

import (
	"fmt"

	"github.com/crowdmind/crowdmind/types"
)

// Registry maps chain tags to their configured clients.
type Registry struct {
	clients map[types.ChainType]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[types.ChainType]Client)}
}

// Add registers the client under the given chain tag.
func (r *Registry) Add(chain types.ChainType, client Client) error {
	if !chain.Valid() {
		return types.NewAgentError(types.ErrUnsupportedChain,
			fmt.Sprintf("%s: %s", ErrUnsupportedChain, chain))
	}
	r.clients[chain] = client
	return nil
}

// Get resolves the client for a chain tag.
func (r *Registry) Get(chain types.ChainType) (Client, error) {
	client, ok := r.clients[chain]
	if !ok {
		return nil, types.NewAgentError(types.ErrUnsupportedChain,
			fmt.Sprintf("%s: %s", ErrNoClientForChain, chain))
	}
	return client, nil
}

// Chains lists the chain tags with a configured client.
func (r *Registry) Chains() []types.ChainType {
	chains := make([]types.ChainType, 0, len(r.clients))
	for chain := range r.clients {
		chains = append(chains, chain)
	}
	return chains
}

// Close closes every registered client.
func (r *Registry) Close() {
	for _, client := range r.clients {
		client.Close()
	}
}
