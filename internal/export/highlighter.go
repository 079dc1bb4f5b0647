package export

import (
	"html"
	"strings"
	"sync"
)

// DOMHighlighter tracks which flowchart node is highlighted. A node exists
// when the markup contains a group with its id.
type DOMHighlighter struct {
	mu      sync.Mutex
	current string
	onMove  func(nodeID string)
}

// NewDOMHighlighter calls onMove, if set, with every new highlighted id and
// with "" when the highlight is cleared.
func NewDOMHighlighter(onMove func(nodeID string)) *DOMHighlighter {
	return &DOMHighlighter{onMove: onMove}
}

func HasNode(flowchart, nodeID string) bool {
	if nodeID == "" {
		return false
	}
	return strings.Contains(flowchart, `<g id="`+html.EscapeString(nodeID)+`"`)
}

func (h *DOMHighlighter) Highlight(flowchart, nodeID string) bool {
	if !HasNode(flowchart, nodeID) {
		return false
	}
	h.mu.Lock()
	h.current = nodeID
	h.mu.Unlock()

	if h.onMove != nil {
		h.onMove(nodeID)
	}
	return true
}

func (h *DOMHighlighter) ClearHighlight() {
	h.mu.Lock()
	h.current = ""
	h.mu.Unlock()

	if h.onMove != nil {
		h.onMove("")
	}
}

// Current is the highlighted node id, or "".
func (h *DOMHighlighter) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}
