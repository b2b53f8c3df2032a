package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const TypeFrame = "FRAME"

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	RunID           string       `json:"run_id"`
	Tick            uint64       `json:"tick"`
	Grid            GridParams   `json:"grid"`
	Agents          int          `json:"agents"`
	Markers         []string     `json:"markers"`
	Buckets         []BucketInfo `json:"buckets"`
}

type GridParams struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Seed   int64 `json:"seed"`
}

// BucketInfo describes one trail decay class. MaxAge is omitted for the open-ended last bucket.
type BucketInfo struct {
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	MinAge uint64  `json:"min_age"`
	MaxAge *uint64 `json:"max_age,omitempty"`
}

// Server -> Client. Sent once per rendered tick.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Agents      []AgentState `json:"agents"`
	Trail       []TrailCell  `json:"trail"`
	Unsupported []int        `json:"unsupported,omitempty"`
}

type AgentState struct {
	ID     int    `json:"id"`
	Marker string `json:"marker,omitempty"`
	Pos    [2]int `json:"pos"`
}

type TrailCell struct {
	Pos    [2]int `json:"pos"`
	Age    uint64 `json:"age"`
	Bucket string `json:"bucket"`
}
