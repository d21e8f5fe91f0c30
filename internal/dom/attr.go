package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GetAttr retrieves an attribute value from an HTML node. Returns the
// empty string when the attribute is absent.
func GetAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// HasAttr reports whether the node carries the attribute, even with an
// empty value. An anchor with href="" is still an anchor with an href.
func HasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets an attribute value, replacing an existing attribute of
// the same key. Callers must hold the document's write lock (use
// Document.Mutate) when the node belongs to a shared document.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// IsAnchor reports whether the node is an anchor-like element: <a> or
// <area>. Both navigate on click and both honor target and rel.
func IsAnchor(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	return n.DataAtom == atom.A || n.DataAtom == atom.Area
}

// ContainsAnchor reports whether the node is itself an anchor-like
// element or has one anywhere in its subtree. Used by the change watcher
// to decide whether an inserted subtree warrants a re-scan.
func ContainsAnchor(n *html.Node) bool {
	if IsAnchor(n) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if ContainsAnchor(c) {
			return true
		}
	}
	return false
}
