package wizard

import (
	"fmt"
	"math/rand"
	"testing"
)

// randomPick returns one of ids, or a made-up id now and then to exercise invalid input.
func randomPick(rng *rand.Rand, ids []string) string {
	if len(ids) == 0 || rng.Intn(10) == 0 {
		return fmt.Sprintf("x%d", rng.Intn(3))
	}
	return ids[rng.Intn(len(ids))]
}

func checkNoDuplicates(t *testing.T, ids []string, what string) {
	t.Helper()
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("%s contains %q twice: %v", what, id, ids)
		}
		seen[id] = true
	}
}

func TestPropertyNoDuplicateSelection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := []string{"r1", "r2", "r3", "r4", "r5"}
	s := loaded(5)

	for i := 0; i < 2000; i++ {
		switch rng.Intn(6) {
		case 0:
			s = Reduce(s, SelectAllRecipients{})
		case 1:
			s = Reduce(s, DeselectAllRecipients{})
		default:
			s = Reduce(s, ToggleRecipient{RecipientID: randomPick(rng, pool)})
		}
		checkNoDuplicates(t, s.SelectedRecipientIDs, "selection")
	}
}

// Every grouped recipient is selected and sits in exactly one group; once the
// unassigned column is empty the groups partition the selection.
func checkManualPartition(t *testing.T, s State) {
	t.Helper()
	owner := map[string]string{}
	for _, g := range s.ManualGroups {
		for _, id := range g.RecipientIDs {
			if prev, ok := owner[id]; ok {
				t.Fatalf("%s in groups %s and %s", id, prev, g.ID)
			}
			if !s.isSelected(id) {
				t.Fatalf("%s grouped but not selected", id)
			}
			owner[id] = g.ID
		}
	}
	if len(owner)+len(UnassignedRecipientIDs(s)) != len(s.SelectedRecipientIDs) {
		t.Fatalf("grouped %d + unassigned %d != selected %d",
			len(owner), len(UnassignedRecipientIDs(s)), len(s.SelectedRecipientIDs))
	}
}

func TestPropertyManualGroupsPartitionSelection(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pool := []string{"r1", "r2", "r3", "r4", "r5", "r6"}
	s := apply(loaded(6), SetAssignmentMode{Mode: ModeManual}, SelectAllRecipients{}, NextStep{})
	if s.CurrentStep != StepGroupCouriers {
		t.Fatalf("setup: step %d", s.CurrentStep)
	}

	nextGroup := 0
	groupIDs := func() []string {
		ids := []string{UnassignedColumnID}
		for _, g := range s.ManualGroups {
			ids = append(ids, g.ID)
		}
		return ids
	}

	for i := 0; i < 3000; i++ {
		switch rng.Intn(8) {
		case 0:
			nextGroup++
			s = Reduce(s, AddManualGroup{Group: ManualGroup{ID: fmt.Sprintf("g%d", nextGroup)}})
		case 1:
			s = Reduce(s, RemoveManualGroup{GroupID: randomPick(rng, groupIDs())})
		case 2:
			s = Reduce(s, ToggleRecipient{RecipientID: randomPick(rng, pool)})
		case 3, 4:
			id := randomPick(rng, pool)
			s = Reduce(s, MoveRecipientToGroup{
				RecipientID: id,
				FromGroupID: s.columnOf(id),
				ToGroupID:   randomPick(rng, groupIDs()),
				Index:       func() *int { v := rng.Intn(4) - 1; return &v }(),
			})
		case 5:
			s = Reduce(s, MoveRecipientToGroup{
				RecipientID: randomPick(rng, pool),
				FromGroupID: randomPick(rng, groupIDs()),
				ToGroupID:   randomPick(rng, groupIDs()),
			})
		default:
			over := randomPick(rng, groupIDs())
			if rng.Intn(2) == 0 {
				over = randomPick(rng, pool)
			}
			s = Reduce(s, DropRecipient{RecipientID: randomPick(rng, pool), OverID: over})
		}
		checkNoDuplicates(t, s.SelectedRecipientIDs, "selection")
		checkManualPartition(t, s)
	}
}

// Each selected recipient is in exactly one route or in the removed list.
func checkRoutePartition(t *testing.T, s State) {
	t.Helper()
	count := map[string]int{}
	for _, a := range s.Assignments {
		for _, id := range a.RecipientIDs {
			count[id]++
		}
	}
	for _, id := range s.RemovedRecipientIDs {
		count[id]++
	}
	for _, id := range s.SelectedRecipientIDs {
		if count[id] != 1 {
			t.Fatalf("%s appears %d times across routes and removed", id, count[id])
		}
		delete(count, id)
	}
	if len(count) != 0 {
		t.Fatalf("unselected ids placed: %v", count)
	}
}

func TestPropertyRoutesPartitionSelection(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	pool := []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"}
	s := apply(loaded(7), SelectAllRecipients{})
	s = Reduce(s, SetAssignments{Assignments: []PreviewAssignment{
		{ID: "a1", CourierID: "c1", RecipientIDs: []string{"r1", "r2", "r3", "r1"}},
		{ID: "a2", CourierID: "c2", RecipientIDs: []string{"r4", "r5", "ghost"}},
		{ID: "a3", CourierID: "c1", RecipientIDs: []string{}},
	}})
	checkRoutePartition(t, s)

	routes := []string{"a1", "a2", "a3", "missing"}
	pickRoute := func() string { return routes[rng.Intn(len(routes))] }
	index := func() *int {
		if rng.Intn(3) == 0 {
			return nil
		}
		v := rng.Intn(6) - 1
		return &v
	}

	for i := 0; i < 3000; i++ {
		switch rng.Intn(4) {
		case 0:
			s = Reduce(s, RemoveRecipientFromAssignment{AssignmentID: pickRoute(), RecipientID: randomPick(rng, pool)})
		case 1:
			s = Reduce(s, AddRecipientToAssignment{AssignmentID: pickRoute(), RecipientID: randomPick(rng, pool), Index: index()})
		case 2:
			s = Reduce(s, MoveRecipientBetweenAssignments{
				RecipientID:      randomPick(rng, pool),
				FromAssignmentID: pickRoute(),
				ToAssignmentID:   pickRoute(),
				Index:            index(),
			})
		default:
			i := s.assignmentIndex(pickRoute())
			if i < 0 {
				continue
			}
			ids := cloneIDs(s.Assignments[i].RecipientIDs)
			rng.Shuffle(len(ids), func(a, b int) { ids[a], ids[b] = ids[b], ids[a] })
			s = Reduce(s, ReorderRecipientsInAssignment{AssignmentID: s.Assignments[i].ID, RecipientIDs: ids})
		}
		checkRoutePartition(t, s)
	}
}
