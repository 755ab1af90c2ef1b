package firestorm

// Program is one pattern installed on a controller.
type Program struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Controller is one Pixelblaze as reported by GET /discover.
type Controller struct {
	ID              int64     `json:"id"`
	Address         string    `json:"address"`
	Name            string    `json:"name"`
	PixelCount      int       `json:"pixelCount"`
	LastSeen        int64     `json:"lastSeen"`
	Version         string    `json:"ver"`
	Brightness      float64   `json:"brightness"`
	LEDType         int       `json:"ledType"`
	DataSpeed       int       `json:"dataSpeed"`
	ColorOrder      string    `json:"colorOrder"`
	SequenceTimer   float64   `json:"sequenceTimer"`
	SequencerEnable bool      `json:"sequencerEnable"`
	Expander        int       `json:"exp"`
	Programs        []Program `json:"programList"`
}

// Command is the body of POST /command.
type Command struct {
	Command map[string]any `json:"command"`
	IDs     []int64        `json:"ids"`
}
