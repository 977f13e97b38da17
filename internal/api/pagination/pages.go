package pagination

// Page describes one page of a numbered listing.
type Page struct {
	Number   int
	NumPages int
	Offset   int
	Limit    int
	Total    int
}

func (p Page) HasPrev() bool { return p.Number > 1 }

func (p Page) HasNext() bool { return p.Number < p.NumPages }

func (p Page) PrevNumber() int { return p.Number - 1 }

func (p Page) NextNumber() int { return p.Number + 1 }

// Paginate resolves the requested page number against total items.
// An empty listing still has one page, and a request outside [1, NumPages]
// resolves to the last page.
func Paginate(total, perPage, requested int) Page {
	if perPage < 1 {
		perPage = 1
	}
	if total < 0 {
		total = 0
	}

	numPages := (total + perPage - 1) / perPage
	if numPages < 1 {
		numPages = 1
	}

	number := requested
	if number < 1 || number > numPages {
		number = numPages
	}

	return Page{
		Number:   number,
		NumPages: numPages,
		Offset:   (number - 1) * perPage,
		Limit:    perPage,
		Total:    total,
	}
}

// PageRange returns the page numbers to render as navigation links.
//
// Near the start of the listing the first maxLinks pages are shown. Past page
// three the window covers maxLinks/2-1 pages before current and maxLinks/2
// pages from current onwards; the trailing entry is dropped only when the
// window is wider than maxLinks and current is past page five. Existing
// templates depend on this exact shape.
func PageRange(totalPages, current, maxLinks int) []int {
	pages := make([]int, 0, maxLinks)

	if current < 4 {
		last := totalPages
		if totalPages > maxLinks {
			last = maxLinks
		}
		for p := 1; p <= last; p++ {
			pages = append(pages, p)
		}
		return pages
	}

	half := maxLinks / 2
	for p := 1; p <= totalPages; p++ {
		if p < current && current-p < half {
			pages = append(pages, p)
		}
		if p >= current && p-current < half {
			pages = append(pages, p)
		}
	}

	if len(pages) > maxLinks && current > 5 {
		pages = pages[:len(pages)-1]
	}
	return pages
}
