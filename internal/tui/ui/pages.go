package ui

import (
	"strconv"

	"github.com/rivo/tview"
)

// Pages is a stack of components over tview.Pages. Each component is added
// once, on first push, under a stable key since names may change.
type Pages struct {
	*tview.Pages
	stack    []Component
	added    map[Component]string
	onChange func(top Component, crumbs []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages: tview.NewPages(),
		added: make(map[Component]string),
	}
}

// SetOnChange sets a callback that fires whenever the stack changes.
func (p *Pages) SetOnChange(fn func(top Component, crumbs []string)) {
	p.onChange = fn
}

// Push shows c on top of the stack. Pushing the current top again only
// refreshes the crumbs.
func (p *Pages) Push(c Component) {
	if top := p.Current(); top == c {
		p.notify()
		return
	}
	if _, ok := p.added[c]; !ok {
		key := "page-" + strconv.Itoa(len(p.added))
		p.AddPage(key, c, true, false)
		p.added[c] = key
	}
	p.stack = append(p.stack, c)
	p.show(c)
	p.notify()
}

// Pop removes the top component unless it is the last one, and returns it.
func (p *Pages) Pop() Component {
	if len(p.stack) <= 1 {
		return nil
	}
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.stack[len(p.stack)-1])
	p.notify()
	return top
}

// Reset replaces the whole stack with c.
func (p *Pages) Reset(c Component) {
	p.stack = nil
	p.Push(c)
}

// Current returns the top component, or nil when empty.
func (p *Pages) Current() Component {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// Crumbs returns the names along the stack, bottom first.
func (p *Pages) Crumbs() []string {
	names := make([]string, len(p.stack))
	for i, c := range p.stack {
		names[i] = c.Name()
	}
	return names
}

func (p *Pages) show(c Component) {
	for added, key := range p.added {
		if added != c {
			p.HidePage(key)
		}
	}
	key := p.added[c]
	p.ShowPage(key)
	p.SendToFront(key)
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Current(), p.Crumbs())
	}
}
