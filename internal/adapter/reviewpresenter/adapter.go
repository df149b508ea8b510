package reviewpresenter

import (
	"time"

	"github.com/park285/chess-review/internal/review"
	reviewsvc "github.com/park285/chess-review/internal/service/review"
	"github.com/park285/chess-review/pkg/reviewdto"
)

func ToDTOJob(j *reviewsvc.Job) *reviewdto.ReviewJob {
	if j == nil {
		return nil
	}
	out := &reviewdto.ReviewJob{
		ID:          j.ID,
		Profile:     j.Profile,
		Status:      string(j.Status),
		Plies:       j.Plies,
		Graded:      j.Graded,
		Complete:    j.Report.Complete,
		Error:       j.Error,
		StartFEN:    j.Game.Start.FEN(),
		Tags:        copyTags(j.Game.Tags),
		Records:     ToDTORecords(j.Report.Records),
		SubmittedAt: j.SubmittedAt,
		StartedAt:   optionalTime(j.StartedAt),
		FinishedAt:  optionalTime(j.FinishedAt),
	}
	if j.Status.Finished() {
		summary := reviewsvc.SummaryDTO(j.Report.Summary)
		out.Summary = &summary
	}
	return out
}

func ToDTORecords(list []review.MoveRecord) []reviewdto.MoveRecord {
	out := make([]reviewdto.MoveRecord, 0, len(list))
	for _, r := range list {
		out = append(out, ToDTORecord(r))
	}
	return out
}

func ToDTORecord(r review.MoveRecord) reviewdto.MoveRecord {
	return reviewdto.MoveRecord{
		Ply:        r.Ply,
		MoveNumber: r.MoveNumber,
		Label:      r.MoveLabel(),
		Mover:      r.Mover.String(),
		FEN:        r.PositionBefore.FEN(),
		Move:       r.Move.String(),
		SAN:        r.SAN,
		Quality:    r.Quality.String(),
		Eval:       r.DisplayEval,
		Delta:      r.Delta,
		BestMove:   r.BestMove.String(),
		BestSAN:    r.BestSAN,
		BestPV:     append([]string(nil), r.BestPV...),
	}
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
