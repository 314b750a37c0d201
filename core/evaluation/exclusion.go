package evaluation

import "github.com/rkabuya/evaldesk/core/participant"

// excludedParticipants returns the phones left out of cross-participant
// averages: participants with no recorded score at all, and participants
// whose recorded scores sum to exactly zero.
func excludedParticipants(participants []participant.Participant, scores []participant.Score) map[string]bool {
	sums := make(map[string]float64, len(participants))
	for _, s := range scores {
		sums[s.ParticipantPhone] += s.Value
	}
	excluded := make(map[string]bool)
	for _, p := range participants {
		if sums[p.Phone] == 0.0 {
			excluded[p.Phone] = true
		}
	}
	return excluded
}
