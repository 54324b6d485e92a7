package fiscalpdf

import (
	"math"
	"sort"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/enums"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// Extractor reads positioned text and ruling lines out of PDF pages using a
// pdfium instance. It owns no document state; callers open a document once
// and extract pages from it.
type Extractor struct {
	instance pdfium.Pdfium
}

// NewExtractor creates a geometry extractor backed by the given pdfium
// instance.
func NewExtractor(instance pdfium.Pdfium) *Extractor {
	return &Extractor{instance: instance}
}

// OpenDocument opens a PDF from raw bytes and returns its reference and page
// count. The caller must Close the document when done.
func (e *Extractor) OpenDocument(pdfBytes []byte) (references.FPDF_DOCUMENT, int, error) {
	doc, err := e.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to open PDF document")
	}

	pageCount, err := e.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		e.Close(doc.Document)
		return "", 0, errors.Wrap(err, "failed to get page count")
	}

	return doc.Document, pageCount.PageCount, nil
}

// Close releases a document opened with OpenDocument.
func (e *Extractor) Close(doc references.FPDF_DOCUMENT) {
	e.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{ //nolint:errcheck
		Document: doc,
	})
}

// ExtractPage extracts the geometry of one page (0-indexed). A page without
// an extractable text layer (for example a pure image scan) yields an
// *ExtractionError; the document's other pages are unaffected.
func (e *Extractor) ExtractPage(doc references.FPDF_DOCUMENT, pageIndex int) (*PageGeometry, error) {
	pageResp, err := e.instance.FPDF_LoadPage(&requests.FPDF_LoadPage{
		Document: doc,
		Index:    pageIndex,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load page %d", pageIndex+1)
	}
	defer e.instance.FPDF_ClosePage(&requests.FPDF_ClosePage{ //nolint:errcheck
		Page: pageResp.Page,
	})

	page := pageResp.Page

	widthResp, err := e.instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page width")
	}
	heightResp, err := e.instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page height")
	}

	pageWidth := float64(widthResp.PageWidth)
	pageHeight := float64(heightResp.PageHeight)

	textPage, err := e.instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load text page")
	}
	defer e.instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{ //nolint:errcheck
		TextPage: textPage.TextPage,
	})

	charCount, err := e.instance.FPDFText_CountChars(&requests.FPDFText_CountChars{
		TextPage: textPage.TextPage,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count characters")
	}

	if charCount.Count == 0 {
		return nil, &ExtractionError{Page: pageIndex + 1, Reason: "no extractable text layer"}
	}

	chars, err := e.extractChars(textPage.TextPage, charCount.Count, pageHeight)
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract characters")
	}
	if len(chars) == 0 {
		return nil, &ExtractionError{Page: pageIndex + 1, Reason: "no extractable text layer"}
	}

	tokens := groupCharsIntoTokens(chars)
	sortTokensReadingOrder(tokens)

	rules, err := e.extractRules(page, pageWidth, pageHeight)
	if err != nil {
		// Non-fatal: the locator falls back to whitespace inference.
		rules = nil
	}

	return &PageGeometry{
		Page:   pageIndex + 1,
		Width:  pageWidth,
		Height: pageHeight,
		Tokens: tokens,
		Rules:  rules,
	}, nil
}

type pageChar struct {
	text     rune
	box      Rect
	fontSize float64
}

// extractChars pulls every character with its box and font size.
func (e *Extractor) extractChars(textPage references.FPDF_TEXTPAGE, count int, pageHeight float64) ([]pageChar, error) {
	chars := make([]pageChar, 0, count)

	for i := range count {
		unicodeRes, err := e.instance.FPDFText_GetUnicode(&requests.FPDFText_GetUnicode{
			TextPage: textPage,
			Index:    i,
		})
		if err != nil || unicodeRes.Unicode == 0 {
			continue
		}

		charBox, err := e.instance.FPDFText_GetCharBox(&requests.FPDFText_GetCharBox{
			TextPage: textPage,
			Index:    i,
		})
		if err != nil {
			continue
		}

		fontSizeVal := 12.0
		if fontSize, err := e.instance.FPDFText_GetFontSize(&requests.FPDFText_GetFontSize{
			TextPage: textPage,
			Index:    i,
		}); err == nil {
			fontSizeVal = fontSize.FontSize
		}

		// Convert PDF coordinates (origin bottom-left) to standard (origin top-left)
		chars = append(chars, pageChar{
			text: rune(unicodeRes.Unicode),
			box: Rect{
				X0: charBox.Left,
				Y0: pageHeight - charBox.Top,
				X1: charBox.Right,
				Y1: pageHeight - charBox.Bottom,
			},
			fontSize: fontSizeVal,
		})
	}

	return chars, nil
}

// ligatureMap maps ligature unicode codepoints to their expanded forms.
var ligatureMap = map[rune]string{
	0xFB00: "ff",
	0xFB01: "fi",
	0xFB02: "fl",
	0xFB03: "ffi",
	0xFB04: "ffl",
	0xFB05: "ft",
	0xFB06: "st",
}

func isWhitespaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// groupCharsIntoTokens splits the character stream into tokens on whitespace,
// expanding ligatures and accumulating each token's bounding box.
func groupCharsIntoTokens(chars []pageChar) []TextToken {
	var tokens []TextToken
	var current []rune
	var box Rect
	var sizeSum float64
	started := false

	flush := func() {
		if len(current) == 0 {
			return
		}
		tokens = append(tokens, TextToken{
			Text:     string(current),
			Box:      box,
			FontSize: sizeSum / float64(len(current)),
		})
		current = nil
		sizeSum = 0
		started = false
	}

	for _, ch := range chars {
		if isWhitespaceRune(ch.text) {
			flush()
			continue
		}

		if !started {
			box = ch.box
			started = true
		} else {
			box.X0 = math.Min(box.X0, ch.box.X0)
			box.Y0 = math.Min(box.Y0, ch.box.Y0)
			box.X1 = math.Max(box.X1, ch.box.X1)
			box.Y1 = math.Max(box.Y1, ch.box.Y1)
		}

		if expansion, ok := ligatureMap[ch.text]; ok {
			current = append(current, []rune(expansion)...)
		} else {
			current = append(current, ch.text)
		}
		sizeSum += ch.fontSize
	}
	flush()

	return tokens
}

// sortTokensReadingOrder orders tokens top-to-bottom, left-to-right. Later
// stages rely on this positional order, not on the document's internal
// character ordering.
func sortTokensReadingOrder(tokens []TextToken) {
	sort.SliceStable(tokens, func(i, j int) bool {
		if math.Abs(tokens[i].Box.Y0-tokens[j].Box.Y0) < 2.0 {
			return tokens[i].Box.X0 < tokens[j].Box.X0
		}
		return tokens[i].Box.Y0 < tokens[j].Box.Y0
	})
}

// extractRules extracts explicit line objects from a page's path objects.
// Page borders are filtered out so a framed page is not mistaken for a table.
func (e *Extractor) extractRules(page references.FPDF_PAGE, pageWidth, pageHeight float64) ([]Edge, error) {
	countResp, err := e.instance.FPDFPage_CountObjects(&requests.FPDFPage_CountObjects{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, err
	}

	var edges []Edge

	for i := 0; i < countResp.Count; i++ {
		objResp, err := e.instance.FPDFPage_GetObject(&requests.FPDFPage_GetObject{
			Page:  requests.Page{ByReference: &page},
			Index: i,
		})
		if err != nil {
			continue
		}

		typeResp, err := e.instance.FPDFPageObj_GetType(&requests.FPDFPageObj_GetType{
			PageObject: objResp.PageObject,
		})
		if err != nil || typeResp.Type != enums.FPDF_PAGEOBJ_PATH {
			continue
		}

		boundsResp, err := e.instance.FPDFPageObj_GetBounds(&requests.FPDFPageObj_GetBounds{
			PageObject: objResp.PageObject,
		})
		if err != nil {
			continue
		}

		x0 := float64(boundsResp.Left)
		y0 := pageHeight - float64(boundsResp.Top)
		x1 := float64(boundsResp.Right)
		y1 := pageHeight - float64(boundsResp.Bottom)

		segCountResp, err := e.instance.FPDFPath_CountSegments(&requests.FPDFPath_CountSegments{
			PageObject: objResp.PageObject,
		})
		if err != nil || segCountResp.Count < 2 {
			continue
		}

		if segCountResp.Count == 2 {
			if edge := pathToEdge(x0, y0, x1, y1); edge != nil && !isPageBorder(*edge, pageWidth, pageHeight) {
				edges = append(edges, *edge)
			}
		} else if segCountResp.Count >= 4 {
			for _, edge := range boundsToEdges(x0, y0, x1, y1) {
				if !isPageBorder(edge, pageWidth, pageHeight) {
					edges = append(edges, edge)
				}
			}
		}
	}

	return edges, nil
}

// isPageBorder reports whether an edge is at the page boundary or spans
// nearly the full page, which marks it as a border rather than a table rule.
func isPageBorder(edge Edge, pageWidth, pageHeight float64) bool {
	const borderTolerance = 20.0
	const fullSpanThreshold = 0.90

	if edge.Orientation == "h" {
		if edge.Top < borderTolerance || edge.Top > pageHeight-borderTolerance {
			return true
		}
		if edge.Width > pageWidth*fullSpanThreshold {
			return true
		}
	}

	if edge.Orientation == "v" {
		if edge.X0 < borderTolerance || edge.X0 > pageWidth-borderTolerance {
			return true
		}
		if edge.Height > pageHeight*fullSpanThreshold {
			return true
		}
	}

	return false
}

// pathToEdge converts a simple path to an edge if it's horizontal or vertical.
func pathToEdge(x0, y0, x1, y1 float64) *Edge {
	width := x1 - x0
	height := y1 - y0

	if height < 2.0 && width > 1.0 {
		return &Edge{
			X0: x0, X1: x1, Top: y0, Bottom: y1,
			Width: width, Height: height, Orientation: "h",
		}
	}
	if width < 2.0 && height > 1.0 {
		return &Edge{
			X0: x0, X1: x1, Top: y0, Bottom: y1,
			Width: width, Height: height, Orientation: "v",
		}
	}
	return nil
}

// boundsToEdges converts a bounding box to its four edges (for rectangles).
func boundsToEdges(x0, y0, x1, y1 float64) []Edge {
	return []Edge{
		{X0: x0, X1: x1, Top: y0, Bottom: y0, Width: x1 - x0, Orientation: "h"},
		{X0: x0, X1: x1, Top: y1, Bottom: y1, Width: x1 - x0, Orientation: "h"},
		{X0: x0, X1: x0, Top: y0, Bottom: y1, Height: y1 - y0, Orientation: "v"},
		{X0: x1, X1: x1, Top: y0, Bottom: y1, Height: y1 - y0, Orientation: "v"},
	}
}
