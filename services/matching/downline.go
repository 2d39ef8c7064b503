package matching

import (
	"bytes"
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DownlineEntry is a member of the downline and its distance from the root.
type DownlineEntry struct {
	UserID primitive.ObjectID `json:"userId"`
	Level  int                `json:"level"`
}

// Enumerate walks the sponsorship tree breadth first from rootID and returns
// every member within depth levels. Each member appears once, at the level it
// was first reached; members at the last level are not expanded. One directory
// read is issued per level.
func (e *Engine) Enumerate(ctx context.Context, rootID primitive.ObjectID, depth int) ([]DownlineEntry, error) {
	if depth <= 0 {
		return []DownlineEntry{}, nil
	}

	seen := map[primitive.ObjectID]struct{}{rootID: {}}
	frontier := []primitive.ObjectID{rootID}
	downline := []DownlineEntry{}

	for level := 1; level <= depth && len(frontier) > 0; level++ {
		children, err := e.directory.ChildrenOf(ctx, frontier)
		if err != nil {
			return nil, computationFailed("list children", err)
		}
		sort.Slice(children, func(i, j int) bool {
			return bytes.Compare(children[i].ID[:], children[j].ID[:]) < 0
		})

		next := make([]primitive.ObjectID, 0, len(children))
		for _, child := range children {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			downline = append(downline, DownlineEntry{UserID: child.ID, Level: level})
			next = append(next, child.ID)
		}
		frontier = next
	}

	return downline, nil
}
