package matching

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnumerateDepthZero(t *testing.T) {
	f := newFixture()
	root := f.dir.add(nil, "Gold")
	f.dir.add(&root, "Associate")

	got, err := f.engine().Enumerate(context.Background(), root, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty downline, got %v", got)
	}
	if f.dir.childrenCalls != 0 {
		t.Errorf("depth zero should not read the directory, got %d reads", f.dir.childrenCalls)
	}
}

func TestEnumerateBoundsDepth(t *testing.T) {
	f := newFixture()
	root := f.dir.add(nil, "Gold")
	l1a := f.dir.add(&root, "")
	l1b := f.dir.add(&root, "")
	l2 := f.dir.add(&l1a, "")
	l3 := f.dir.add(&l2, "")
	f.dir.add(&l3, "")

	got, err := f.engine().Enumerate(context.Background(), root, 2)
	if err != nil {
		t.Fatal(err)
	}

	want := map[primitive.ObjectID]int{l1a: 1, l1b: 1, l2: 2}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(got), len(want), got)
	}
	for _, entry := range got {
		if want[entry.UserID] != entry.Level {
			t.Errorf("%s at level %d, want %d", entry.UserID.Hex(), entry.Level, want[entry.UserID])
		}
		if entry.Level > 2 {
			t.Errorf("entry beyond depth: %+v", entry)
		}
	}
	if f.dir.childrenCalls != 2 {
		t.Errorf("expected one batched read per level, got %d", f.dir.childrenCalls)
	}
}

func TestEnumerateCyclicDirectory(t *testing.T) {
	f := newFixture()
	a := f.dir.add(nil, "Gold")
	b := f.dir.add(&a, "")
	c := f.dir.add(&b, "")
	d := f.dir.add(&c, "")
	// corrupted edges: c points back at a, d points back at b
	f.dir.extra[c] = []primitive.ObjectID{a, b}
	f.dir.extra[d] = []primitive.ObjectID{a}

	got, err := f.engine().Enumerate(context.Background(), a, 10)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[primitive.ObjectID]int{}
	for _, entry := range got {
		if _, dup := seen[entry.UserID]; dup {
			t.Fatalf("duplicate entry for %s", entry.UserID.Hex())
		}
		seen[entry.UserID] = entry.Level
		if entry.Level < 1 || entry.Level > 10 {
			t.Errorf("level out of range: %+v", entry)
		}
	}
	if _, ok := seen[a]; ok {
		t.Error("root must not appear in its own downline")
	}
	want := map[primitive.ObjectID]int{b: 1, c: 2, d: 3}
	for id, level := range want {
		if seen[id] != level {
			t.Errorf("%s at level %d, want %d", id.Hex(), seen[id], level)
		}
	}
}

func TestEnumerateFirstDiscoveryWins(t *testing.T) {
	f := newFixture()
	root := f.dir.add(nil, "Gold")
	x := f.dir.add(&root, "")
	y := f.dir.add(&x, "")
	// y is also reported as a direct child of root
	f.dir.extra[root] = []primitive.ObjectID{y}

	got, err := f.engine().Enumerate(context.Background(), root, 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range got {
		if entry.UserID == y && entry.Level != 1 {
			t.Errorf("y discovered at level %d, want 1", entry.Level)
		}
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}
}

func TestEnumerateDirectoryFailure(t *testing.T) {
	f := newFixture()
	f.dir.err = errors.New("timeout")
	_, err := f.engine().Enumerate(context.Background(), primitive.NewObjectID(), 3)
	if !errors.Is(err, ErrComputationFailed) {
		t.Fatalf("expected computation failure, got %v", err)
	}
}
