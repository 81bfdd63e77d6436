package layout

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidBudget = errors.New("page budget must be positive")
	ErrInvalidHeight = errors.New("block height must be non-negative")
)

// Paginate packs blocks into pages of at most budget height, in order, in a
// single greedy pass:
//   - a block is never split;
//   - consecutive blocks sharing a non-zero Group move together; a group
//     taller than the budget starts a fresh page and is packed block by block;
//   - a block taller than the budget sits alone on its own page;
//   - BreakBefore starts a new page before the block and ends any group.
//
// Concatenating the pages' blocks yields the input sequence, and paginating
// that sequence again yields the same pages.
func Paginate(blocks []*Block, budget float64) ([]Page, error) {
	if !(budget > 0) || math.IsInf(budget, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBudget, budget)
	}
	for i, b := range blocks {
		if b == nil {
			return nil, fmt.Errorf("block %d is nil", i)
		}
		if !(b.Height >= 0) || math.IsInf(b.Height, 1) {
			return nil, fmt.Errorf("%w: block %d has height %v", ErrInvalidHeight, i, b.Height)
		}
	}

	var (
		pages []Page
		cur   Page
	)
	flush := func() {
		if len(cur.Blocks) > 0 {
			pages = append(pages, cur)
			cur = Page{}
		}
	}
	add := func(b *Block) {
		cur.Blocks = append(cur.Blocks, b)
		cur.Height += b.Height
	}

	for i := 0; i < len(blocks); {
		j := unitEnd(blocks, i)
		unit := blocks[i:j]
		i = j

		if unit[0].BreakBefore {
			flush()
		}

		h := unitHeight(unit)
		switch {
		case cur.Height+h <= budget:
		case h <= budget:
			flush()
		default:
			flush()
			for _, b := range unit {
				if len(cur.Blocks) > 0 && cur.Height+b.Height > budget {
					flush()
				}
				add(b)
			}
			continue
		}
		for _, b := range unit {
			add(b)
		}
	}
	flush()

	return pages, nil
}

// unitEnd returns the index just past the atomic unit starting at i.
func unitEnd(blocks []*Block, i int) int {
	g := blocks[i].Group
	j := i + 1
	if g == 0 {
		return j
	}
	for j < len(blocks) && blocks[j].Group == g && !blocks[j].BreakBefore {
		j++
	}
	return j
}

func unitHeight(unit []*Block) float64 {
	var h float64
	for _, b := range unit {
		h += b.Height
	}
	return h
}

// Flatten concatenates the blocks of pages in order.
func Flatten(pages []Page) []*Block {
	var out []*Block
	for _, p := range pages {
		out = append(out, p.Blocks...)
	}
	return out
}
