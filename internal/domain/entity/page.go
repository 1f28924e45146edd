package entity

type PageContent struct {
	URL   string
	Title string
	HTML  string
}

// ReadableText is the article-like text of a page.
type ReadableText struct {
	Title   string
	Text    string
	Excerpt string
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}
