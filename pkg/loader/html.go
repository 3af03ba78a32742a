package loader

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// markupState is the JSON carried by a data-jstree attribute.
type markupState struct {
	Opened   bool   `json:"opened"`
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`
	Icon     string `json:"icon"`
}

// ParseHTML converts the first <ul> of a document into nested records.
// Each <li> becomes a record: its id attribute is the node id, its label is
// the text of its <a> (or its own text), a data-jstree attribute sets state
// and icon, and the remaining <li> and <a> attributes become the attribute
// bags. A nested <ul> holds the children.
func ParseHTML(r io.Reader) (model.NestedPayload, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedPayload, err)
	}
	ul := findElement(doc, atom.Ul)
	if ul == nil {
		return model.NestedPayload{}, nil
	}
	return parseList(ul)
}

// HTML parses markup once and serves it for the root.
func HTML(markup string) (*Static, error) {
	p, err := ParseHTML(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return &Static{Root: p}, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func parseList(ul *html.Node) (model.NestedPayload, error) {
	out := model.NestedPayload{}
	for c := ul.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		rec, err := parseItem(c)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseItem(li *html.Node) (model.Record, error) {
	var rec model.Record
	for _, attr := range li.Attr {
		switch attr.Key {
		case "id":
			rec.ID = attr.Val
		case "data-jstree":
			var st markupState
			if err := json.Unmarshal([]byte(attr.Val), &st); err != nil {
				return rec, fmt.Errorf("%w: data-jstree on %q: %v", model.ErrMalformedPayload, rec.ID, err)
			}
			rec.Icon = st.Icon
			rec.State = stateMap(st)
		default:
			if rec.LiAttr == nil {
				rec.LiAttr = map[string]string{}
			}
			rec.LiAttr[attr.Key] = attr.Val
		}
	}

	var label strings.Builder
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			label.WriteString(c.Data)
		case c.Type == html.ElementNode && c.DataAtom == atom.A:
			label.WriteString(textContent(c))
			for _, attr := range c.Attr {
				if rec.AAttr == nil {
					rec.AAttr = map[string]string{}
				}
				rec.AAttr[attr.Key] = attr.Val
			}
		case c.Type == html.ElementNode && c.DataAtom == atom.Ul:
			kids, err := parseList(c)
			if err != nil {
				return rec, err
			}
			rec.Children = model.Items(kids...)
		}
	}
	rec.Text = strings.Join(strings.Fields(label.String()), " ")
	return rec, nil
}

func stateMap(st markupState) map[string]bool {
	m := map[string]bool{}
	if st.Opened {
		m[model.FlagOpened] = true
	}
	if st.Selected {
		m[model.FlagSelected] = true
	}
	if st.Disabled {
		m[model.FlagDisabled] = true
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
