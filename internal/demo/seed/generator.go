package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Row is one demo event. Its columns cover every filter family.
type Row struct {
	ID         uuid.UUID
	EventID    int64
	UserID     string
	EventType  string
	Amount     float64
	Paid       bool
	Country    string
	OccurredAt time.Time
	Note       *string
}

var columnNames = []string{"id", "event_id", "user_id", "event_type", "amount", "paid", "country", "occurred_at", "note"}

func (r Row) values() []any {
	var note any
	if r.Note != nil {
		note = *r.Note
	}
	return []any{r.ID.String(), r.EventID, r.UserID, r.EventType, r.Amount, r.Paid, r.Country, r.OccurredAt, note}
}

type Generator struct {
	rnd             *rand.Rand
	userCardinality int
	sequence        int64
	start           time.Time
}

// NewGenerator returns a generator whose output depends only on seed and
// start, so repeated runs produce identical tables.
func NewGenerator(seed int64, userCardinality int, start time.Time) *Generator {
	return &Generator{
		rnd:             rand.New(rand.NewSource(seed)),
		userCardinality: userCardinality,
		start:           start.UTC().Truncate(time.Minute),
	}
}

func (g *Generator) NextRow() Row {
	g.sequence++
	eventType := g.pickEventType()

	var id uuid.UUID
	_, _ = g.rnd.Read(id[:])
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80

	row := Row{
		ID:         id,
		EventID:    g.sequence,
		UserID:     fmt.Sprintf("user-%04d", g.rnd.Intn(g.userCardinality)+1),
		EventType:  eventType,
		Amount:     g.pickAmount(eventType),
		Paid:       eventType == "purchase",
		Country:    pickOne(g.rnd, []string{"US", "DE", "GB", "IN", "JP", "BR"}),
		OccurredAt: g.start.Add(-time.Duration(g.sequence) * time.Minute),
	}
	if g.rnd.Intn(4) == 0 {
		note := pickOne(g.rnd, []string{"gift wrap", "priority", "returning customer", "coupon SPRING"})
		row.Note = &note
	}
	return row
}

func (g *Generator) pickEventType() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 55:
		return "page_view"
	case p < 75:
		return "search"
	case p < 88:
		return "add_to_cart"
	case p < 97:
		return "checkout"
	default:
		return "purchase"
	}
}

func (g *Generator) pickAmount(eventType string) float64 {
	switch eventType {
	case "purchase":
		return round2(20 + g.rnd.Float64()*280)
	case "checkout":
		return round2(15 + g.rnd.Float64()*240)
	case "add_to_cart":
		return round2(5 + g.rnd.Float64()*120)
	default:
		return 0
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
