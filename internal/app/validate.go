package app

import (
	"fmt"
	"math"

	"tripsmith/internal/domain"
)

// ValidationReport is data, not an error: generation succeeds regardless of
// how many notices it carries.
type ValidationReport struct {
	Valid   bool     `json:"valid"`
	Notices []string `json:"notices"`
	Hints   []string `json:"hints"`
	Summary string   `json:"summary"`
}

const (
	maxItemMinutes = 480 // any single stop above this is suspect
	maxDayMinutes  = 960 // 16 hours
	maxTransferMin = 60
)

// Validate runs the deterministic rule checks over a fully-populated trip.
// No external calls; day rules run in day order.
func Validate(t *domain.Trip) ValidationReport {
	var notices, hints []string

	for _, day := range t.Days {
		notices = append(notices, dayTimingNotices(day)...)
	}

	for _, day := range t.Days {
		meals := 0
		for _, it := range day.Items {
			if it.Kind == domain.KindMeal {
				meals++
			}
		}
		if meals < 2 {
			notices = append(notices, fmt.Sprintf("Dia %d: poucas refeições planejadas (%d)", day.DayNumber, meals))
		}
	}

	for _, day := range t.Days {
		for _, it := range day.Items {
			if it.Kind == domain.KindActivity && it.PlaceID == nil {
				notices = append(notices, fmt.Sprintf("Dia %d: %s sem place_id", day.DayNumber, it.PlaceName))
			}
		}
	}

	selected := false
	for _, h := range t.Hotels {
		if h.IsSelected {
			selected = true
			break
		}
	}
	if !selected {
		hints = append(hints, "Nenhum hotel selecionado")
	}

	rep := ValidationReport{
		Valid:   len(notices) == 0,
		Notices: notices,
		Hints:   hints,
	}
	if rep.Valid {
		rep.Summary = "Itinerário validado com sucesso"
	} else {
		rep.Summary = fmt.Sprintf("%d avisos encontrados", len(notices))
	}
	return rep
}

func dayTimingNotices(day domain.TripDay) []string {
	var issues []string
	total := 0

	for i, it := range day.Items {
		upper := it.Duration[1]
		if upper == 0 {
			upper = 120
		}
		if upper > maxItemMinutes {
			issues = append(issues, fmt.Sprintf("Dia %d: %s: duração muito longa (%dh)", day.DayNumber, it.PlaceName, roundHours(upper)))
		}

		if i+1 < len(day.Items) {
			next := day.Items[i+1]
			var tr *domain.Transfer
			if it.PlaceID != nil && next.PlaceID != nil {
				tr = findTransfer(day.Transfers, *it.PlaceID, *next.PlaceID)
			}
			// an unresolved place still leaves a transfer gap worth noticing
			if tr == nil {
				issues = append(issues, fmt.Sprintf("Dia %d: Falta tempo de deslocamento entre %s e %s", day.DayNumber, it.PlaceName, next.PlaceName))
			} else if tr.EtaMin > maxTransferMin {
				issues = append(issues, fmt.Sprintf("Dia %d: Deslocamento longo (%dmin) entre %s e %s", day.DayNumber, tr.EtaMin, it.PlaceName, next.PlaceName))
			}
		}

		// transfer time is deliberately excluded from the running total
		total += upper
	}

	if total > maxDayMinutes {
		issues = append(issues, fmt.Sprintf("Dia %d: Dia muito longo (%dh total) - considere reduzir atividades", day.DayNumber, roundHours(total)))
	}
	return issues
}

func findTransfer(ts []domain.Transfer, from, to string) *domain.Transfer {
	for i := range ts {
		if ts[i].FromPlaceID == from && ts[i].ToPlaceID == to {
			return &ts[i]
		}
	}
	return nil
}

func roundHours(minutes int) int {
	return int(math.Round(float64(minutes) / 60))
}
