package tsm

// ColumnGroup is a row-aligned set of pages covering every column of one
// series for a contiguous time slice: exactly one page carries the Time
// column, and every page shares the group's row count.
type ColumnGroup struct {
	ID          uint32
	PagesOffset uint64
	Size        uint64
	TimeRange   TimeRange

	Pages []*Page
}

// NewColumnGroup starts an empty group anchored at the given file
// offset; Push appends pages in physical order.
func NewColumnGroup(id uint32, offset uint64) *ColumnGroup {
	return &ColumnGroup{ID: id, PagesOffset: offset}
}

// Push appends a page, enforcing that pages are physically contiguous:
// each page's offset must equal the running end of the previous one.
func (g *ColumnGroup) Push(p *Page, offset uint64) error {
	if len(g.Pages) == 0 {
		if offset != g.PagesOffset {
			return &TsmColumnGroupError{Reason: "first page offset does not match pages_offset"}
		}
	} else {
		if g.PagesOffset+g.Size != offset {
			return &TsmColumnGroupError{Reason: "pages are not physically contiguous"}
		}
		if p.Meta.NumValues != g.Pages[0].Meta.NumValues {
			return &TsmColumnGroupError{Reason: "page row count does not match column group"}
		}
	}

	g.Pages = append(g.Pages, p)
	g.Size += uint64(len(p.Bytes))

	if p.Meta.Column.Type.Kind == ColumnKindTime {
		tr, err := timeRangeOf(p)
		if err != nil {
			return err
		}
		if len(g.Pages) == 1 {
			g.TimeRange = tr
		} else {
			g.TimeRange = g.TimeRange.Merge(tr)
		}
	}

	return nil
}

// MergeTimeRange widens the group's time range to the commutative span
// union of its current range and tr.
func (g *ColumnGroup) MergeTimeRange(tr TimeRange) {
	g.TimeRange = g.TimeRange.Merge(tr)
}

// RowLen returns the group's row count (invariant: identical across all
// pages); it reads the first page since none exist before the first
// Push succeeds.
func (g *ColumnGroup) RowLen() uint64 {
	if len(g.Pages) == 0 {
		return 0
	}
	return g.Pages[0].Meta.NumValues
}

// TimePage returns the group's unique Time-typed page, or
// ErrNoTimePage if none has been pushed yet.
func (g *ColumnGroup) TimePage() (*Page, error) {
	for _, p := range g.Pages {
		if p.Meta.Column.Type.Kind == ColumnKindTime {
			return p, nil
		}
	}
	return nil, ErrNoTimePage
}

func timeRangeOf(p *Page) (TimeRange, error) {
	values, err := p.DecodeColumn(Time)
	if err != nil {
		return TimeRange{}, err
	}
	if len(values) == 0 {
		return TimeRange{}, nil
	}
	tr := TimeRange{Min: values[0].I, Max: values[0].I}
	for _, v := range values[1:] {
		if v.I < tr.Min {
			tr.Min = v.I
		}
		if v.I > tr.Max {
			tr.Max = v.I
		}
	}
	return tr, nil
}
