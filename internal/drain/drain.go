// Package drain implements an online Drain-style template miner: a
// fixed-depth tree that learns recurring log message skeletons and emits a
// stable template id plus wildcard positions for each learned cluster.
//
// Grounded on the Drain tree/cluster shape in
// fiddeb/otlp_cardinality_checker's internal/analyzer/autotemplate miner
// (token-count routing, per-leaf cluster bag, token-disagreement
// generalization), generalized to the spec's four-level tree and
// count-based similarity threshold.
package drain

import "github.com/fenilsonani/logdb/internal/tokenize"

// Wildcard is the distinguished token standing for a variable position.
const Wildcard = "*"

const (
	DefaultMaxDepth            = 4
	DefaultMaxChildrenPerNode  = 100
	DefaultMaxClustersPerLeaf  = 1024
)

// Template is an ordered sequence of tokens where literals are shared
// across messages and Wildcard stands for a variable token.
//
// OriginTokens is the cluster's first-seen token sequence, frozen forever at
// creation: Drain's invariant is that a literal position's value never
// changes while it stays literal, so any record that matched this cluster
// while a position was still literal necessarily held OriginTokens' value
// there. Decode uses OriginTokens rather than the evolving Tokens so that a
// record encoded before a later disagreement generalizes that position to
// a wildcard still reconstructs its own original value instead of the
// generalized "*".
type Template struct {
	ID           int64
	Tokens       []string
	OriginTokens []string
}

// WildcardPositions returns the indices of t's wildcard slots.
func (t *Template) WildcardPositions() []int {
	var out []int
	for i, tok := range t.Tokens {
		if tok == Wildcard {
			out = append(out, i)
		}
	}
	return out
}

// Cluster is a template plus usage statistics.
type Cluster struct {
	Template *Template
	Seen     int64
}

// threshold returns floor(0.6 * tokenCount).
func threshold(tokenCount int) int {
	return (6 * tokenCount) / 10
}

type node struct {
	children map[string]*node
	clusters []*Cluster
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Config tunes the miner's tree shape and eviction policy.
type Config struct {
	MaxDepth           int
	MaxChildrenPerNode int
	MaxClustersPerLeaf int
}

// DefaultConfig returns the canonical Drain3-style defaults; nothing in the
// retrieved pack pins specific values for these, so the original paper's
// and Drain3's defaults are used (see DESIGN.md).
func DefaultConfig() Config {
	return Config{
		MaxDepth:           DefaultMaxDepth,
		MaxChildrenPerNode: DefaultMaxChildrenPerNode,
		MaxClustersPerLeaf: DefaultMaxClustersPerLeaf,
	}
}

// Miner is a single-writer online template tree. IDs are assigned from a
// caller-supplied allocator so OPEN-phase and seal-phase miners can share
// one monotonic counter and never reuse an id (see store.Store).
type Miner struct {
	cfg     Config
	root    *node
	allocID func() int64

	clusters []*Cluster
}

// New creates an empty miner. allocID must return a fresh, never-repeated
// template id on each call.
func New(cfg Config, allocID func() int64) *Miner {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxChildrenPerNode <= 0 {
		cfg.MaxChildrenPerNode = DefaultMaxChildrenPerNode
	}
	if cfg.MaxClustersPerLeaf <= 0 {
		cfg.MaxClustersPerLeaf = DefaultMaxClustersPerLeaf
	}
	return &Miner{cfg: cfg, root: newNode(), allocID: allocID}
}

// messageTokens is the full delimiter- and whitespace-preserving token
// stream: clustering and variable extraction both operate on it directly,
// so that substituting a message's tokens back into its matched template
// and rejoining with tokenize.Join reproduces the original text exactly
// (space and delimiter tokens are themselves stable literal tokens that
// never look variable-shaped).
func messageTokens(message string) []string {
	return tokenize.Tokenize(message)
}

// Learn routes message through the tree, updates or creates its cluster,
// and returns that cluster (its current wildcard slots are available from
// Template.WildcardPositions). Empty messages yield a single-cluster leaf
// with an empty template.
func (m *Miner) Learn(message string) *Cluster {
	tokens := messageTokens(message)
	leaf := m.descend(tokens, true)

	best := bestMatch(leaf.clusters, tokens)
	if best != nil {
		best.Seen++
		generalize(best.Template, tokens)
		return best
	}

	c := &Cluster{
		Template: &Template{
			ID:           m.allocID(),
			Tokens:       append([]string(nil), tokens...),
			OriginTokens: append([]string(nil), tokens...),
		},
		Seen: 1,
	}
	leaf.clusters = append(leaf.clusters, c)
	m.clusters = append(m.clusters, c)
	if len(leaf.clusters) > m.cfg.MaxClustersPerLeaf {
		m.removeCluster(evictSmallest(leaf))
	}
	return c
}

// Match routes message to its best cluster without mutating the tree; it
// returns nil if no existing cluster matches (training-less lookup).
func (m *Miner) Match(message string) *Cluster {
	tokens := messageTokens(message)
	leaf := m.descend(tokens, false)
	if leaf == nil {
		return nil
	}
	return bestMatch(leaf.clusters, tokens)
}

// descend routes tokens through the tree: level 1 by token count, levels
// 2..min(maxDepth, tokenCount) by routing_key(token). When create is false
// and a required branch doesn't exist, it returns nil.
func (m *Miner) descend(tokens []string, create bool) *node {
	cur := m.root

	lenKey := lengthKey(len(tokens))
	cur = step(cur, lenKey, create, m.cfg.MaxChildrenPerNode)
	if cur == nil {
		return nil
	}

	depthBound := m.cfg.MaxDepth
	if len(tokens) < depthBound {
		depthBound = len(tokens)
	}
	for d := 0; d < depthBound-1; d++ {
		key := routingKey(tokens[d])
		cur = step(cur, key, create, m.cfg.MaxChildrenPerNode)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func step(n *node, key string, create bool, maxChildren int) *node {
	if next, ok := n.children[key]; ok {
		return next
	}
	if !create {
		if next, ok := n.children[Wildcard]; ok {
			return next
		}
		return nil
	}
	if next, ok := n.children[Wildcard]; ok {
		return next
	}
	if len(n.children) >= maxChildren {
		next := newNode()
		n.children[Wildcard] = next
		return next
	}
	next := newNode()
	n.children[key] = next
	return next
}

func lengthKey(n int) string {
	return "len:" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// routingKey returns "*" for variable-shaped tokens, else the token
// itself.
func routingKey(token string) string {
	if tokenize.IsVariableShaped(token) {
		return Wildcard
	}
	return token
}

// bestMatch scores every cluster at a leaf and returns the one with the
// highest score meeting the 0.6*tokenCount threshold.
func bestMatch(clusters []*Cluster, tokens []string) *Cluster {
	var best *Cluster
	bestScore := -1
	th := threshold(len(tokens))
	for _, c := range clusters {
		if len(c.Template.Tokens) != len(tokens) {
			continue
		}
		score := 0
		for i, tok := range c.Template.Tokens {
			if tok != Wildcard && tok == tokens[i] {
				score++
			}
		}
		if score >= th && score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// generalize overwrites template tokens that disagree with the message
// with Wildcard.
func generalize(t *Template, tokens []string) {
	for i := range t.Tokens {
		if t.Tokens[i] != Wildcard && t.Tokens[i] != tokens[i] {
			t.Tokens[i] = Wildcard
		}
	}
}

// evictSmallest drops the least-seen cluster from leaf n and returns it so
// the caller can also remove it from the miner's flat cluster list.
func evictSmallest(n *node) *Cluster {
	minIdx, minSeen := 0, n.clusters[0].Seen
	for i, c := range n.clusters {
		if c.Seen < minSeen {
			minSeen = c.Seen
			minIdx = i
		}
	}
	evicted := n.clusters[minIdx]
	n.clusters = append(n.clusters[:minIdx], n.clusters[minIdx+1:]...)
	return evicted
}

// removeCluster deletes c from m.clusters, keeping Clusters() from reporting
// a cluster that evictSmallest already dropped from its leaf.
func (m *Miner) removeCluster(c *Cluster) {
	for i, existing := range m.clusters {
		if existing == c {
			m.clusters = append(m.clusters[:i], m.clusters[i+1:]...)
			return
		}
	}
}

// Clusters returns every cluster the miner currently holds.
func (m *Miner) Clusters() []*Cluster {
	return m.clusters
}
