package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/youssefsiam38/arenawatch/render"
)

// Tags a renderer may use. Any other tag is drawn as a div.
var allowedTags = map[string]atom.Atom{
	"div":    atom.Div,
	"span":   atom.Span,
	"p":      atom.P,
	"ul":     atom.Ul,
	"ol":     atom.Ol,
	"li":     atom.Li,
	"a":      atom.A,
	"h1":     atom.H1,
	"h2":     atom.H2,
	"h3":     atom.H3,
	"table":  atom.Table,
	"tbody":  atom.Tbody,
	"tr":     atom.Tr,
	"td":     atom.Td,
	"th":     atom.Th,
	"strong": atom.Strong,
	"em":     atom.Em,
	"pre":    atom.Pre,
	"code":   atom.Code,
}

// Inline style properties renderers use for layout and colour.
var styleProperties = []string{
	"color", "background-color", "opacity",
	"display", "flex-direction", "justify-content", "align-items", "gap",
	"grid-template-columns", "grid-template-rows",
	"width", "height", "margin", "padding", "border",
	"text-align", "font-size", "font-weight", "line-height",
}

var styleValue = regexp.MustCompile(`^[#\w\s.,%()-]+$`)

// summaryClass marks elements whose text is markdown.
const summaryClass = "game-summary"

// View turns element trees into sanitized HTML.
type View struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewView creates a View. Summary text is rendered from markdown; all
// output passes through a bluemonday policy that keeps ids, classes and
// the layout styles renderers set.
func NewView() *View {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id", "class").Globally()
	policy.AllowStyles(styleProperties...).Matching(styleValue).Globally()

	return &View{
		md:     goldmark.New(),
		policy: policy,
	}
}

// HTML renders el and its descendants.
func (v *View) HTML(el *render.Element) (template.HTML, error) {
	if el == nil {
		return "", nil
	}
	node, err := v.node(el)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return template.HTML(v.policy.SanitizeReader(&buf).String()), nil
}

func (v *View) node(el *render.Element) (*html.Node, error) {
	tag, a := el.Tag, allowedTags[el.Tag]
	if a == 0 {
		tag, a = "div", atom.Div
	}
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: a}

	if el.ID != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "id", Val: el.ID})
	}
	if len(el.Classes) > 0 {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: strings.Join(el.Classes, " ")})
	}
	if style := styleAttr(el); style != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: style})
	}
	if a == atom.A && el.Href != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "href", Val: el.Href})
	}

	if el.Text != "" {
		if el.HasClass(summaryClass) {
			nodes, err := v.markdown(el.Text)
			if err != nil {
				return nil, err
			}
			for _, c := range nodes {
				n.AppendChild(c)
			}
		} else {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: el.Text})
		}
	}

	for _, child := range el.Children {
		c, err := v.node(child)
		if err != nil {
			return nil, err
		}
		n.AppendChild(c)
	}
	return n, nil
}

func (v *View) markdown(text string) ([]*html.Node, error) {
	var buf bytes.Buffer
	if err := v.md.Convert([]byte(text), &buf); err != nil {
		return nil, fmt.Errorf("markdown: %w", err)
	}
	nodes, err := html.ParseFragment(&buf, &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div})
	if err != nil {
		return nil, fmt.Errorf("parse markdown html: %w", err)
	}
	return nodes, nil
}

// styleAttr serialises an element's style in key order, with Colour as the
// text colour.
func styleAttr(el *render.Element) string {
	var parts []string
	if el.Colour != "" {
		parts = append(parts, "color: "+el.Colour)
	}
	for _, k := range slices.Sorted(maps.Keys(el.Style)) {
		if k == "color" && el.Colour != "" {
			continue
		}
		parts = append(parts, k+": "+el.Style[k])
	}
	return strings.Join(parts, "; ")
}
