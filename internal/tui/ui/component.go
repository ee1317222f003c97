package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu.
type MenuHint struct {
	Key         string
	Description string
}

// Component is a page the app can push onto the stack.
type Component interface {
	tview.Primitive
	// Name is the breadcrumb label.
	Name() string
	// FocusTarget is the primitive that receives focus when the page shows.
	FocusTarget() tview.Primitive
}
