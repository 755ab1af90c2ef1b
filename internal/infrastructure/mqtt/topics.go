package mqtt

import "strings"

// DefaultTopicPrefix is the root of every broker topic.
const DefaultTopicPrefix = "croquetia"

// Topics builds broker topic names under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "croquetia"}
//	topics.Source("colorpicker") // "croquetia/source/colorpicker"
//	topics.State("game")         // "croquetia/state/game"
type Topics struct {
	Prefix string
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimRight(t.Prefix, "/")
}

// Source is where a producer publishes frames for the named source.
func (t Topics) Source(name string) string {
	return t.root() + "/source/" + name
}

// AllSources matches every producer topic.
func (t Topics) AllSources() string {
	return t.root() + "/source/#"
}

// State is the retained topic for a named piece of broker state
// ("game", "devices").
func (t Topics) State(name string) string {
	return t.root() + "/state/" + name
}

// SystemStatus carries the retained online/offline status and the LWT.
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// SourceName extracts the source name from a producer topic.
func (t Topics) SourceName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, t.root()+"/source/")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
