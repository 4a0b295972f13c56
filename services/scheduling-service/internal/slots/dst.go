package slots

import (
	"log/slog"
	"time"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// Localize drops slots that straddle a DST transition in the organizer's
// zone and attaches invitee-localized times to the survivors. A slot whose
// start and end sit on different UTC offsets has no unambiguous local
// rendering, so it is removed rather than shifted.
func Localize(in []model.Slot, orgZone, inviteeZone *time.Location, logger *slog.Logger) []model.Slot {
	out := make([]model.Slot, 0, len(in))
	for _, s := range in {
		if !timeutil.SameUTCOffset(s.Start, s.End, orgZone) {
			if logger != nil {
				logger.Warn("dropping slot across DST transition",
					"start", s.Start.Format(time.RFC3339),
					"end", s.End.Format(time.RFC3339),
				)
			}
			continue
		}
		s.LocalStart = s.Start.In(inviteeZone)
		s.LocalEnd = s.End.In(inviteeZone)
		out = append(out, s)
	}
	return out
}
