package nmtran

import (
	"strconv"
	"strings"
)

// Option is one KEY or KEY=VALUE item of an option record.
type Option struct {
	Key   string
	Value string
}

// OptionRecord is the generic accessor for records whose body is a list of
// options: $SUBROUTINES, $ESTIMATION, $TABLE, $ETAS, $ABBREVIATED and the
// specialized $MODEL/$INPUT/$DATA records built on top of it.
type OptionRecord struct {
	baseRecord
}

// parseOptionContent tokenizes an option list, keeping every character.
func parseOptionContent(base baseRecord, content string) (*OptionRecord, error) {
	root := Tree("root")
	i := 0
	for i < len(content) {
		ch := content[i]
		switch {
		case ch == '\n':
			root.AddChildren(Leaf("NEWLINE", "\n"))
			i++
		case ch == '\r' && i+1 < len(content) && content[i+1] == '\n':
			root.AddChildren(Leaf("NEWLINE", "\r\n"))
			i += 2
		case ch == ' ' || ch == '\t':
			j := i
			for j < len(content) && (content[j] == ' ' || content[j] == '\t') {
				j++
			}
			root.AddChildren(Leaf("WS", content[i:j]))
			i = j
		case ch == ';':
			j := i
			for j < len(content) && content[j] != '\n' && content[j] != '\r' {
				j++
			}
			root.AddChildren(Leaf("COMMENT", content[i:j]))
			i = j
		case ch == '&':
			root.AddChildren(Leaf("CONT", "&"))
			i++
		default:
			node, next := scanOption(content, i)
			root.AddChildren(node)
			i = next
		}
	}
	return &OptionRecord{baseRecord: withRoot(base, root)}, nil
}

// scanOption reads one KEY, KEY=VALUE or KEY=(...) item starting at i.
func scanOption(content string, i int) (*Node, int) {
	start := i
	for i < len(content) && !strings.ContainsRune(" \t\r\n;=(", rune(content[i])) {
		i++
	}
	key := content[start:i]
	node := Tree("option", Leaf("KEY", key))
	if i < len(content) && content[i] == '=' {
		node.AddChildren(Leaf("EQ", "="))
		i++
		vstart := i
		if i < len(content) && content[i] == '(' {
			depth := 0
			for i < len(content) {
				if content[i] == '(' {
					depth++
				} else if content[i] == ')' {
					depth--
					if depth == 0 {
						i++
						break
					}
				}
				i++
			}
		} else {
			for i < len(content) && !strings.ContainsRune(" \t\r\n;", rune(content[i])) {
				i++
			}
		}
		node.AddChildren(Leaf("VALUE", content[vstart:i]))
	} else if i < len(content) && content[i] == '(' {
		// Parenthesized value directly after the key: COMP(CENTRAL).
		vstart := i
		depth := 0
		for i < len(content) {
			if content[i] == '(' {
				depth++
			} else if content[i] == ')' {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
			i++
		}
		node.AddChildren(Leaf("VALUE", content[vstart:i]))
	}
	return node, i
}

// AllOptions returns the options in declaration order.
func (r *OptionRecord) AllOptions() []Option {
	var out []Option
	for _, c := range r.root.Children {
		if c.Rule != "option" {
			continue
		}
		out = append(out, nodeOption(c))
	}
	return out
}

func nodeOption(c *Node) Option {
	opt := Option{}
	if k := c.Find("KEY"); k != nil {
		opt.Key = k.Value
	}
	if v := c.Find("VALUE"); v != nil {
		opt.Value = v.Value
	}
	return opt
}

// OptionNodes returns the raw option nodes in order.
func (r *OptionRecord) OptionNodes() []*Node {
	return r.root.All("option")
}

// GetOption returns the value of the first option with the given key.
// A key-only option returns ok=true with an empty value.
func (r *OptionRecord) GetOption(key string) (string, bool) {
	for _, opt := range r.AllOptions() {
		if strings.EqualFold(opt.Key, key) {
			return opt.Value, true
		}
	}
	return "", false
}

// HasOption reports whether an option with the given key exists.
func (r *OptionRecord) HasOption(key string) bool {
	_, ok := r.GetOption(key)
	return ok
}

// OptionPairs returns the options as a map; later duplicates win.
func (r *OptionRecord) OptionPairs() map[string]string {
	out := make(map[string]string)
	for _, opt := range r.AllOptions() {
		out[opt.Key] = opt.Value
	}
	return out
}

// SetOption sets the value of an existing option or appends a new one.
func (r *OptionRecord) SetOption(key, value string) {
	for _, c := range r.root.Children {
		if c.Rule != "option" {
			continue
		}
		k := c.Find("KEY")
		if k == nil || !strings.EqualFold(k.Value, key) {
			continue
		}
		if v := c.Find("VALUE"); v != nil {
			v.Value = value
		} else {
			c.AddChildren(Leaf("EQ", "="), Leaf("VALUE", value))
		}
		return
	}
	r.AppendOption(key, value)
}

// AppendOption appends a new option at the end of the record, before any
// trailing newline so the record keeps ending in a line break.
func (r *OptionRecord) AppendOption(key, value string) {
	node := NewOptionNode(key, value)
	children := r.root.Children
	insert := len(children)
	if insert > 0 && children[insert-1].Rule == "NEWLINE" {
		insert--
	}
	rest := append([]*Node{Leaf("WS", " "), node}, children[insert:]...)
	r.root.Children = append(children[:insert:insert], rest...)
}

// NewOptionNode builds a detached option node.
func NewOptionNode(key, value string) *Node {
	node := Tree("option", Leaf("KEY", key))
	if value != "" {
		node.AddChildren(Leaf("EQ", "="), Leaf("VALUE", value))
	}
	return node
}

// RemoveOption removes every option with the given key along with the
// whitespace before it.
func (r *OptionRecord) RemoveOption(key string) {
	r.removeOptions(func(opt Option) bool { return strings.EqualFold(opt.Key, key) })
}

// removeOptions removes options matching the predicate.
func (r *OptionRecord) removeOptions(match func(Option) bool) {
	var keep []*Node
	for _, c := range r.root.Children {
		if c.Rule == "option" && match(nodeOption(c)) {
			// Drop the whitespace that preceded the removed option.
			if len(keep) > 0 && keep[len(keep)-1].Rule == "WS" {
				keep = keep[:len(keep)-1]
			}
			continue
		}
		keep = append(keep, c)
	}
	r.root.Children = keep
}

// MatchOption resolves an abbreviated option token against a list of full
// option names: a token matches the unique name it prefixes with at least
// three characters, or equals exactly. Returns "" when nothing matches.
func MatchOption(names []string, token string) string {
	up := strings.ToUpper(token)
	for _, name := range names {
		if up == name {
			return name
		}
	}
	if len(up) < 3 {
		return ""
	}
	match := ""
	for _, name := range names {
		if strings.HasPrefix(name, up) {
			if match != "" {
				return ""
			}
			match = name
		}
	}
	return match
}

// OptionLists returns, for every option whose key abbreviates fullKey, its
// value split into fields (parentheses stripped). Used for the repeated
// COMPARTMENT options of $MODEL.
func (r *OptionRecord) OptionLists(fullKey string) [][]string {
	var out [][]string
	for _, opt := range r.AllOptions() {
		if MatchOption([]string{fullKey}, opt.Key) != fullKey {
			continue
		}
		out = append(out, splitOptionList(opt.Value))
	}
	return out
}

func splitOptionList(value string) []string {
	v := strings.TrimSpace(value)
	v = strings.TrimPrefix(v, "(")
	v = strings.TrimSuffix(v, ")")
	return strings.Fields(v)
}

// intOption parses an integer option value.
func intOption(value string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return v, true
}
