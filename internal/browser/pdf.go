package browser

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PDFOptions are the page-layout knobs for printing. Dimensions are in
// millimeters; the protocol wants inches, converted at print time.
type PDFOptions struct {
	PaperWidthMM    float64
	PaperHeightMM   float64
	MarginTopMM     float64
	MarginBottomMM  float64
	MarginLeftMM    float64
	MarginRightMM   float64
	PrintBackground bool
}

// A4Invoice is the layout used for invoice documents: A4 paper, 20mm
// top/bottom and 15mm left/right margins, backgrounds rendered.
func A4Invoice() PDFOptions {
	return PDFOptions{
		PaperWidthMM:    210,
		PaperHeightMM:   297,
		MarginTopMM:     20,
		MarginBottomMM:  20,
		MarginLeftMM:    15,
		MarginRightMM:   15,
		PrintBackground: true,
	}
}

const mmPerInch = 25.4

func mmToInches(mm float64) float64 { return mm / mmPerInch }

// setDocumentContent injects html into the tab's main frame. Unlike a
// data: navigation this keeps relative sub-resource loads observable to
// the network-idle tracker.
func setDocumentContent(html string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	}
}

func printToPDF(opts PDFOptions, out *[]byte) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPrintBackground(opts.PrintBackground).
			WithPaperWidth(mmToInches(opts.PaperWidthMM)).
			WithPaperHeight(mmToInches(opts.PaperHeightMM)).
			WithMarginTop(mmToInches(opts.MarginTopMM)).
			WithMarginBottom(mmToInches(opts.MarginBottomMM)).
			WithMarginLeft(mmToInches(opts.MarginLeftMM)).
			WithMarginRight(mmToInches(opts.MarginRightMM)).
			Do(ctx)
		if err != nil {
			return err
		}
		*out = buf
		return nil
	}
}
