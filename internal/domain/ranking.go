package domain

import "sort"

// DefaultRankSize is the number of regions reported at each end of the ranking.
const DefaultRankSize = 5

// RankEntry is one region's position in the ranking.
type RankEntry struct {
	RegionID     string  `json:"region_id"`
	Name         string  `json:"name"`
	DoublingTime float64 `json:"doubling_time"`
	Day          int     `json:"day"`
	Label        string  `json:"label"`
}

// Ranking lists the regions with the lowest doubling times (most concerning,
// ascending) and the highest (least concerning, descending).
type Ranking struct {
	Lowest  []RankEntry `json:"lowest"`
	Highest []RankEntry `json:"highest"`
}

// Rank orders regions by their latest doubling time. Regions without a
// fitted window or with an undefined latest doubling time are left out.
// Equal doubling times keep the order of summaries.
func Rank(summaries []RegionSummary, n int, cal *Calendar) Ranking {
	entries := make([]RankEntry, 0, len(summaries))
	for _, s := range summaries {
		ind, ok := s.LatestIndicator()
		if !ok || ind.DoublingTime == nil {
			continue
		}
		entries = append(entries, RankEntry{
			RegionID:     s.RegionID,
			Name:         s.Name,
			DoublingTime: *ind.DoublingTime,
			Day:          ind.Day,
			Label:        cal.Label(ind.Day),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DoublingTime < entries[j].DoublingTime
	})

	k := min(n, len(entries))
	lowest := append([]RankEntry(nil), entries[:k]...)
	highest := make([]RankEntry, 0, k)
	for i := len(entries) - 1; i >= len(entries)-k; i-- {
		highest = append(highest, entries[i])
	}
	return Ranking{Lowest: lowest, Highest: highest}
}
