package reviewdto

// Frame types exchanged on the live analysis websocket.
const (
	FramePosition       = "position"
	FrameMove           = "move"
	FrameStop           = "stop"
	FrameUpdate         = "update"
	FrameClassification = "classification"
	FrameFailure        = "failure"
	FrameError          = "error"
	FrameReady          = "ready"
)

// ClientFrame is sent by the board. For "move" FEN is the position the move
// was played in.
type ClientFrame struct {
	Type string `json:"type"`
	FEN  string `json:"fen,omitempty"`
	Move string `json:"move,omitempty"`
}

type ServerFrame struct {
	Type       string `json:"type"`
	Generation uint64 `json:"generation"`

	// ready
	Connection string `json:"connection,omitempty"`
	Profile    string `json:"profile,omitempty"`

	// update
	FEN   string   `json:"fen,omitempty"`
	Depth int      `json:"depth,omitempty"`
	Eval  string   `json:"eval,omitempty"`
	PV    []string `json:"pv,omitempty"`
	PVSAN []string `json:"pv_san,omitempty"`

	// classification
	Move    string `json:"move,omitempty"`
	SAN     string `json:"san,omitempty"`
	Quality string `json:"quality,omitempty"`
	BestSAN string `json:"best_san,omitempty"`
	Delta   int    `json:"delta,omitempty"`

	// failure, error
	Message string       `json:"message,omitempty"`
	Error   *DomainError `json:"error,omitempty"`
}
