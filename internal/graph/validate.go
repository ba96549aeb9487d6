package graph

import (
	"fmt"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// Validate checks that no two stages which may run concurrently write the
// same location: for every parallel node, outputs of stages under different
// children must be pairwise disjoint.
func Validate(root *Node) error {
	return Walk(root, func(n *Node, _ int) error {
		if n.kind != KindParallel {
			return nil
		}
		for i := 0; i < len(n.children); i++ {
			for j := i + 1; j < len(n.children); j++ {
				if err := disjoint(n, n.children[i], n.children[j]); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func disjoint(parent, a, b *Node) error {
	for _, sa := range a.Stages() {
		for _, sb := range b.Stages() {
			for _, oa := range sa.Outputs() {
				for _, ob := range sb.Outputs() {
					if oa.Overlaps(ob) {
						return errors.NewValidationError(errors.ErrCodeOutputOverlap,
							fmt.Sprintf("%s: stages %s (%s) and %s (%s) may write the same files",
								parent.describe(), sa.Name(), oa, sb.Name(), ob))
					}
				}
			}
		}
	}
	return nil
}
