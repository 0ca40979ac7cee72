package storable

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ============================================================
// YAML Bridge
// ============================================================
//
// Unlike JSON, YAML can express the graph exactly: a node reached more than
// once gets an anchor (&id001) at its first position and aliases (*id001)
// everywhere else, cycles included. Perl classes become local tags:
//
//	!perl/hash:Foo     blessed map
//	!perl/array:Foo    blessed list
//	!perl/scalar:Foo   blessed scalar
//	!perl/code         code value (source text)
//	!perl/tied         tied value (one-element sequence holding the tie object)

const perlTagPrefix = "!perl/"

// ToYAML converts a value to a YAML document.
func ToYAML(v *Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ToYAMLNode(v)); err != nil {
		return nil, fmt.Errorf("storable: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("storable: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// ToYAMLNode converts a value to a yaml.Node tree with anchors for shared
// and cyclic nodes.
func ToYAMLNode(v *Value) *yaml.Node {
	b := yamlBuilder{
		refs:  make(map[*Value]int),
		built: make(map[*Value]*yaml.Node),
	}
	b.count(v)
	return b.build(v)
}

type yamlBuilder struct {
	refs    map[*Value]int // Number of positions holding each node
	built   map[*Value]*yaml.Node
	anchors int
}

// count records how many positions hold each node. Shared singletons are
// plain scalars and never need an anchor.
func (b *yamlBuilder) count(v *Value) {
	if v == nil || v.isShared() {
		return
	}
	b.refs[v]++
	if b.refs[v] > 1 {
		return
	}
	switch v.kind {
	case KindList:
		for _, elem := range v.listVal {
			b.count(elem)
		}
	case KindMap:
		for _, e := range v.mapVal.Entries {
			b.count(e.Value)
		}
	case KindTied:
		b.count(v.inner)
	}
}

func (b *yamlBuilder) build(v *Value) *yaml.Node {
	if v == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	if n, ok := b.built[v]; ok {
		return &yaml.Node{Kind: yaml.AliasNode, Value: n.Anchor, Alias: n}
	}

	n := &yaml.Node{}
	if b.refs[v] > 1 {
		b.anchors++
		n.Anchor = fmt.Sprintf("id%03d", b.anchors)
		// Registered before the children so a cycle finds it.
		b.built[v] = n
	}

	class, blessed := v.Class()
	switch v.kind {
	case KindList:
		n.Kind = yaml.SequenceNode
		n.Tag = "!!seq"
		if blessed {
			n.Tag = perlTagPrefix + "array:" + class
		}
		for _, elem := range v.listVal {
			n.Content = append(n.Content, b.build(elem))
		}

	case KindMap:
		n.Kind = yaml.MappingNode
		n.Tag = "!!map"
		if blessed {
			n.Tag = perlTagPrefix + "hash:" + class
		}
		for _, e := range v.mapVal.Entries {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key.String()}
			n.Content = append(n.Content, key, b.build(e.Value))
		}

	case KindTied:
		n.Kind = yaml.SequenceNode
		n.Tag = perlTagPrefix + "tied"
		n.Content = []*yaml.Node{b.build(v.inner)}

	case KindCode:
		n.Kind = yaml.ScalarNode
		n.Tag = perlTagPrefix + "code"
		if blessed {
			n.Tag += ":" + class
		}
		n.Value = string(v.bytesVal)

	default:
		n.Kind = yaml.ScalarNode
		n.Tag, n.Value = yamlScalar(v)
		if blessed {
			n.Tag = perlTagPrefix + "scalar:" + class
		}
	}
	return n
}

func yamlScalar(v *Value) (tag, value string) {
	switch v.kind {
	case KindBool:
		return "!!bool", strconv.FormatBool(v.boolVal)
	case KindInteger:
		return "!!int", strconv.Itoa(int(v.intVal))
	case KindText:
		return "!!str", v.strVal
	case KindBytes:
		if utf8.Valid(v.bytesVal) {
			return "!!str", string(v.bytesVal)
		}
		return "!!binary", base64.StdEncoding.EncodeToString(v.bytesVal)
	default:
		return "!!null", "null"
	}
}
