package network

// ConnectionType names the rule that produced an edge.
type ConnectionType string

const (
	ConnectionEmotion ConnectionType = "emotion"
	ConnectionNotes   ConnectionType = "notes"
	ConnectionFamily  ConnectionType = "family"
)

// DefaultNodeColor is used when a node has no usable scent color.
const DefaultNodeColor = "#B8C5D4"

// Style is the rendering weight of an edge.
type Style struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

var connectionStyles = map[ConnectionType]Style{
	ConnectionEmotion: {Color: "#E8B4B8", Opacity: 0.6},
	ConnectionNotes:   {Color: "#A8C5C1", Opacity: 0.45},
	ConnectionFamily:  {Color: "#C5A8D4", Opacity: 0.3},
}

// ConnectionTypes lists the rules in priority order.
var ConnectionTypes = []ConnectionType{ConnectionEmotion, ConnectionNotes, ConnectionFamily}

// IsValid checks if the connection type is known
func (c ConnectionType) IsValid() bool {
	_, ok := connectionStyles[c]
	return ok
}

// Style returns the color and opacity for this connection type.
func (c ConnectionType) Style() Style {
	return connectionStyles[c]
}

// Label is the legend text for the connection type.
func (c ConnectionType) Label() string {
	switch c {
	case ConnectionEmotion:
		return "Shared emotion"
	case ConnectionNotes:
		return "Shared notes"
	case ConnectionFamily:
		return "Same fragrance family"
	}
	return string(c)
}

func (c ConnectionType) String() string {
	return string(c)
}
