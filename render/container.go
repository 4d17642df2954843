package render

import (
	"maps"
	"slices"
)

// Element is one node of the retained view tree renderers draw into.
type Element struct {
	ID       string            `json:"id,omitempty"`
	Tag      string            `json:"tag"`
	Text     string            `json:"text,omitempty"`
	Colour   string            `json:"colour,omitempty"`
	Href     string            `json:"href,omitempty"`
	Classes  []string          `json:"classes,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Children []*Element        `json:"children,omitempty"`
}

// NewElement creates an element with the given tag.
func NewElement(tag string) *Element {
	return &Element{Tag: tag}
}

// WithID sets the element ID and returns the element.
func (e *Element) WithID(id string) *Element {
	e.ID = id
	return e
}

// WithText sets the element text and returns the element.
func (e *Element) WithText(text string) *Element {
	e.Text = text
	return e
}

// Append adds children and returns the element.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// SetStyle sets one style property and returns the element.
func (e *Element) SetStyle(key, value string) *Element {
	if e.Style == nil {
		e.Style = make(map[string]string)
	}
	e.Style[key] = value
	return e
}

// AddClass adds a class unless already present.
func (e *Element) AddClass(class string) *Element {
	if !e.HasClass(class) {
		e.Classes = append(e.Classes, class)
	}
	return e
}

// RemoveClass removes a class if present.
func (e *Element) RemoveClass(class string) {
	e.Classes = slices.DeleteFunc(e.Classes, func(c string) bool { return c == class })
}

// HasClass reports whether the element has the class.
func (e *Element) HasClass(class string) bool {
	return slices.Contains(e.Classes, class)
}

// Clone returns a deep copy of the element tree.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{
		ID:      e.ID,
		Tag:     e.Tag,
		Text:    e.Text,
		Colour:  e.Colour,
		Href:    e.Href,
		Classes: slices.Clone(e.Classes),
		Style:   maps.Clone(e.Style),
	}
	if len(e.Children) > 0 {
		out.Children = make([]*Element, len(e.Children))
		for i, child := range e.Children {
			out.Children[i] = child.Clone()
		}
	}
	return out
}

// Walk calls fn for the element and each descendant, depth first. Returning
// false stops the walk.
func (e *Element) Walk(fn func(*Element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, child := range e.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// Container is the caller-supplied surface a renderer draws into.
//
// A Container is not safe for concurrent use; Snapshot hands out copies for
// readers on other goroutines.
type Container struct {
	root  *Element
	index map[string]*Element
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		root:  NewElement("div").WithID("game-display"),
		index: make(map[string]*Element),
	}
}

// Root returns the root element.
func (c *Container) Root() *Element {
	return c.root
}

// Append adds elements under the root.
func (c *Container) Append(children ...*Element) {
	c.root.Append(children...)
	for _, child := range children {
		c.indexTree(child)
	}
}

// ByID finds an element by ID, or nil.
func (c *Container) ByID(id string) *Element {
	if el, ok := c.index[id]; ok {
		return el
	}

	// Elements appended below an already attached node are not indexed yet.
	var found *Element
	c.root.Walk(func(e *Element) bool {
		if e.ID == id {
			found = e
			return false
		}
		return true
	})
	if found != nil {
		c.index[id] = found
	}
	return found
}

// Clear removes every element below the root.
func (c *Container) Clear() {
	c.root.Children = nil
	c.root.Classes = nil
	clear(c.index)
}

// Reindex rebuilds the ID index after a renderer replaced part of the tree.
func (c *Container) Reindex() {
	clear(c.index)
	c.indexTree(c.root)
}

// Snapshot returns a deep copy of the tree.
func (c *Container) Snapshot() *Element {
	return c.root.Clone()
}

func (c *Container) indexTree(el *Element) {
	el.Walk(func(e *Element) bool {
		if e.ID != "" {
			c.index[e.ID] = e
		}
		return true
	})
}
