package scheduler

import (
	"sort"

	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

type cell struct {
	day  int
	slot int64
}

// repair restores every hard rule on a chromosome. Per (day, slot) it keeps one session per
// teacher and re-allocates classrooms by maximum matching; genes that still collide or break a
// load limit move to the nearest free slot, and unplaced genes get one more placement attempt.
func (e *evolution) repair(c *chromosome) {
	groups := make(map[cell][]int)
	for gi, a := range c.genes {
		if !a.Placed() {
			continue
		}
		if !e.cat.snapshot.HasDay(a.Day) || e.cat.snapshot.SlotPosition(a.TimeSlotID) < 0 {
			c.genes[gi] = models.SlotAssignment{}
			continue
		}
		key := cell{a.Day, a.TimeSlotID}
		groups[key] = append(groups[key], gi)
	}

	cells := lo.Keys(groups)
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].day != cells[j].day {
			return cells[i].day < cells[j].day
		}
		return e.cat.snapshot.SlotPosition(cells[i].slot) < e.cat.snapshot.SlotPosition(cells[j].slot)
	})

	displaced := make(map[int]bool)
	for _, key := range cells {
		members := groups[key]
		sort.Ints(members)

		teachers := make(map[int64]bool, len(members))
		kept := make([]int, 0, len(members))
		for _, gi := range members {
			teacherID := e.cat.constraints[e.layout[gi]].Teacher.ID
			if teachers[teacherID] {
				displaced[gi] = true
				continue
			}
			teachers[teacherID] = true
			kept = append(kept, gi)
		}

		for _, gi := range e.reallocateRooms(c, kept) {
			displaced[gi] = true
		}
	}

	occ := NewOccupancy()
	for gi, a := range c.genes {
		if !a.Placed() || displaced[gi] {
			continue
		}
		idx := e.layout[gi]
		if !e.cat.allows(idx, a, occ) {
			displaced[gi] = true
			continue
		}
		occ.Add(e.cat.placement(idx, a))
	}

	moved := lo.Keys(displaced)
	sort.Ints(moved)
	for _, gi := range moved {
		idx := e.layout[gi]
		origin := c.genes[gi]
		c.genes[gi] = models.SlotAssignment{}
		if a, ok := e.nearest(idx, origin, occ); ok {
			c.genes[gi] = a
			occ.Add(e.cat.placement(idx, a))
		}
	}

	for gi, a := range c.genes {
		if a.Placed() {
			continue
		}
		idx := e.layout[gi]
		if next, ok := e.randomCandidate(idx, occ); ok {
			c.genes[gi] = next
			occ.Add(e.cat.placement(idx, next))
		}
	}
}

// reallocateRooms fixes classroom collisions inside one (day, slot). Genes whose room is suitable
// and unclaimed keep it; the rest are matched to free suitable rooms. When that strands a gene, the
// whole cell is re-matched from scratch. Unmatched genes are returned.
func (e *evolution) reallocateRooms(c *chromosome, members []int) []int {
	claimed := make(map[int64]bool, len(members))
	pending := make([]int, 0)
	for _, gi := range members {
		roomID := c.genes[gi].ClassroomID
		room, ok := e.cat.snapshot.Classroom(roomID)
		if ok && !claimed[roomID] && room.Suits(e.cat.constraints[e.layout[gi]].Course) {
			claimed[roomID] = true
			continue
		}
		pending = append(pending, gi)
	}
	if len(pending) == 0 {
		return nil
	}

	free := lo.Filter(e.cat.classrooms, func(room models.Classroom, _ int) bool { return !claimed[room.ID] })
	rooms := e.matchRooms(pending, free)
	if len(rooms) < len(pending) {
		if full := e.matchRooms(members, e.cat.classrooms); len(full) > len(members)-len(pending)+len(rooms) {
			pending, rooms = members, full
		}
	}

	for gi, roomID := range rooms {
		c.genes[gi].ClassroomID = roomID
	}
	return lo.Reject(pending, func(gi int, _ int) bool {
		_, ok := rooms[gi]
		return ok
	})
}

// matchRooms computes a maximum matching of genes onto suitable rooms.
func (e *evolution) matchRooms(genes []int, rooms []models.Classroom) map[int]int64 {
	out := make(map[int]int64, len(genes))
	if len(genes) == 0 || len(rooms) == 0 {
		return out
	}
	neighbours := func(geneAny any, roomAny any) (bool, error) {
		gi := geneAny.(int)
		room := roomAny.(models.Classroom)
		return room.Suits(e.cat.constraints[e.layout[gi]].Course), nil
	}
	genesAny := lo.Map(genes, func(gi int, _ int) any { return gi })
	roomsAny := lo.Map(rooms, func(room models.Classroom, _ int) any { return room })

	graph, err := bipartitegraph.NewBipartiteGraph(genesAny, roomsAny, neighbours)
	if err != nil {
		return out
	}
	for _, edge := range graph.LargestMatching() {
		out[genes[edge.Node1]] = rooms[edge.Node2-len(genes)].ID
	}
	return out
}

// nearest finds the feasible candidate closest to origin on the (day, slot) grid. Ties prefer
// the original classroom, then the usual candidate order.
func (e *evolution) nearest(idx int, origin models.SlotAssignment, occ *Occupancy) (models.SlotAssignment, bool) {
	width := len(e.cat.slots)
	position := func(a models.SlotAssignment) int {
		return lo.IndexOf(e.cat.days, a.Day)*width + e.cat.snapshot.SlotPosition(a.TimeSlotID)
	}
	from := position(origin)

	var (
		best     models.SlotAssignment
		bestDist int
		found    bool
	)
	for _, a := range e.cat.candidates(idx, occ) {
		dist := position(a) - from
		if dist < 0 {
			dist = -dist
		}
		switch {
		case !found, dist < bestDist:
		case dist > bestDist:
			continue
		case (a.ClassroomID == origin.ClassroomID) != (best.ClassroomID == origin.ClassroomID):
			if a.ClassroomID != origin.ClassroomID {
				continue
			}
		case !e.cat.lessCandidate(a, best):
			continue
		}
		best, bestDist, found = a, dist, true
	}
	return best, found
}
