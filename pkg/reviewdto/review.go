package reviewdto

import "time"

type SubmitReviewRequest struct {
	PGN     string `json:"pgn"`
	Profile string `json:"profile,omitempty"`
}

type SubmitReviewResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type MoveRecord struct {
	Ply        int      `json:"ply"`
	MoveNumber int      `json:"move_number"`
	Label      string   `json:"label"`
	Mover      string   `json:"mover"`
	FEN        string   `json:"fen"`
	Move       string   `json:"move"`
	SAN        string   `json:"san"`
	Quality    string   `json:"quality"`
	Eval       string   `json:"eval"`
	Delta      int      `json:"delta"`
	BestMove   string   `json:"best_move,omitempty"`
	BestSAN    string   `json:"best_san,omitempty"`
	BestPV     []string `json:"best_pv,omitempty"`
}

type SideSummary struct {
	Moves       int            `json:"moves"`
	Counts      map[string]int `json:"counts"`
	AverageLoss float64        `json:"average_loss"`
}

type Summary struct {
	OpeningECO  string      `json:"opening_eco,omitempty"`
	OpeningName string      `json:"opening_name,omitempty"`
	White       SideSummary `json:"white"`
	Black       SideSummary `json:"black"`
}

type ReviewJob struct {
	ID          string            `json:"id"`
	Profile     string            `json:"profile"`
	Status      string            `json:"status"`
	Plies       int               `json:"plies"`
	Graded      int               `json:"graded"`
	Complete    bool              `json:"complete"`
	Error       string            `json:"error,omitempty"`
	StartFEN    string            `json:"start_fen"`
	Tags        map[string]string `json:"tags,omitempty"`
	Records     []MoveRecord      `json:"records"`
	Summary     *Summary          `json:"summary,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}
