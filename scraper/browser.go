package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"bolig_scrooper/extract"
	"bolig_scrooper/httputil"
	"bolig_scrooper/logging"
)

const (
	navigationTimeoutMS = 60000
	modalTimeoutMS      = 5000
)

var (
	consentSelectors = []string{
		"#didomi-notice-agree-button",
		"button:has-text('Accepter alle')",
		"button:has-text('Accepter')",
		"button:has-text('Tillad alle')",
		"button:has-text('Accept')",
		"button[id*='accept']",
		"button[class*='consent']",
		"button:has-text('OK')",
	}

	modalButtonSelectors = []string{
		"xpath=//button[contains(., 'Se flere detaljer')]",
		"xpath=//a[contains(., 'Se flere detaljer')]",
		"xpath=//button[contains(., 'Se alle detaljer')]",
		"xpath=//button[contains(., 'detaljer')]",
	}

	modalSelector = "xpath=//div[@id='modal-root']//div[contains(@class,'divide-y')] | //div[contains(@class,'modal')] | //div[contains(@role,'dialog')]"

	modalRowSelectors = []string{
		"xpath=//div[@id='modal-root']//div[contains(@class,'divide-y')]/div",
		"xpath=//div[@id='modal-root']//div[contains(@class,'flex')]",
		"xpath=//div[contains(@class,'modal')]//div[contains(@class,'divide-y')]/div",
		"xpath=//div[contains(@role,'dialog')]//div[contains(@class,'divide-y')]/div",
		"xpath=//div[contains(@role,'dialog')]//div[contains(@class,'grid')]/div",
		"xpath=//div[contains(@role,'dialog')]//tbody/tr",
		"xpath=//div[contains(@role,'dialog')]//div[contains(@class,'justify-between')]",
	}

	modalCloseSelectors = []string{
		"xpath=//button[contains(., 'Luk')]",
		"xpath=//button[contains(., 'Ok')]",
		"xpath=//button[contains(., 'Lukk')]",
		"xpath=//button[contains(@class, 'float-right')]",
		"button[aria-label='Luk']",
	}
)

type BrowserOptions struct {
	Headless    bool
	WaitSeconds int
	DebugDir    string
	OpenModal   bool
}

// BrowserFetcher renders pages in a headless Chromium. One instance owns
// one browser and one page and must not be shared between workers.
type BrowserFetcher struct {
	opts BrowserOptions

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
	initialized bool
	consentDone bool
}

func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	return &BrowserFetcher{opts: opts}
}

func (b *BrowserFetcher) ensureBrowser() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	var err error
	b.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	b.browser, err = b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		b.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.context, err = b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(httputil.UserAgent),
		Locale:    playwright.String("da-DK"),
		Viewport:  &playwright.Size{Width: 1366, Height: 900},
	})
	if err != nil {
		b.browser.Close()
		b.pw.Stop()
		return fmt.Errorf("failed to create context: %w", err)
	}

	b.page, err = b.context.NewPage()
	if err != nil {
		b.context.Close()
		b.browser.Close()
		b.pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}

	b.initialized = true
	b.consentDone = false
	return nil
}

func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page != nil {
		b.page.Close()
		b.page = nil
	}
	if b.context != nil {
		b.context.Close()
		b.context = nil
	}
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	var err error
	if b.pw != nil {
		err = b.pw.Stop()
		b.pw = nil
	}
	b.initialized = false
	return err
}

func (b *BrowserFetcher) Restart() error {
	b.Close()
	return b.ensureBrowser()
}

// Alive runs a trivial script in the page.
func (b *BrowserFetcher) Alive(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized || b.page == nil {
		return false
	}
	_, err := b.page.Evaluate("1 + 1")
	return err == nil
}

func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.ensureBrowser(); err != nil {
		return nil, err
	}

	page := b.page
	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(navigationTimeoutMS),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		b.saveDebug(page, "navigation")
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	if resp != nil {
		if err := checkStatus(url, resp.Status()); err != nil {
			b.saveDebug(page, "status")
			return nil, err
		}
	}

	finalURL := page.URL()
	if strings.HasPrefix(finalURL, "data:") || finalURL == "about:blank" {
		b.saveDebug(page, "redirect")
		return nil, fmt.Errorf("%w: %s ended on %.40s", ErrNavigation, url, finalURL)
	}

	b.handleConsent(page)

	if b.opts.WaitSeconds > 0 {
		page.WaitForTimeout(float64(b.opts.WaitSeconds * 1000))
	}
	page.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`)
	humanDelay(300, 800)

	html, err := page.Content()
	if err != nil {
		b.saveDebug(page, "content")
		return nil, fmt.Errorf("%w: read content of %s: %v", ErrNavigation, url, err)
	}
	if err := checkContent(url, html); err != nil {
		b.saveDebug(page, "blocked")
		return nil, err
	}

	result := &Page{URL: url, FinalURL: finalURL, HTML: html}
	if b.opts.OpenModal {
		result.ModalRows, result.ModalOpened = b.extractModal(page)
	}
	return result, nil
}

// handleConsent dismisses the Didomi banner, first through its JS API and
// then by clicking the first visible accept button.
func (b *BrowserFetcher) handleConsent(page playwright.Page) {
	if b.consentDone {
		return
	}

	accepted, err := page.Evaluate(`() => {
		if (window.Didomi && typeof window.Didomi.setUserAgreeToAll === 'function') {
			window.Didomi.setUserAgreeToAll();
			return true;
		}
		return false;
	}`)
	if err == nil {
		if ok, _ := accepted.(bool); ok {
			logging.Debugf("Consent accepted via Didomi API")
			b.consentDone = true
			page.WaitForTimeout(1000)
			return
		}
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("Clicking consent button: %s", selector)
			btn.Click()
			page.WaitForTimeout(2000)
			b.consentDone = true
			return
		}
	}
}

// extractModal opens the "Se flere detaljer" panel and returns its rows.
// Every failure means no rows.
func (b *BrowserFetcher) extractModal(page playwright.Page) ([]extract.ModalRow, bool) {
	clicked := false
	for _, selector := range modalButtonSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			if err := btn.Click(); err != nil {
				logging.Debugf("Modal button %s click failed: %v", selector, err)
				continue
			}
			clicked = true
			break
		}
	}
	if !clicked {
		logging.Debugf("No details button found")
		return nil, false
	}

	err := page.Locator(modalSelector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(modalTimeoutMS),
	})
	if err != nil {
		log.Printf("Details modal did not appear: %v", err)
		b.closeModal(page)
		return nil, false
	}
	page.WaitForTimeout(500)

	var rows []extract.ModalRow
	for _, selector := range modalRowSelectors {
		items := page.Locator(selector)
		count, err := items.Count()
		if err != nil || count == 0 {
			continue
		}
		for i := 0; i < count; i++ {
			rows = append(rows, readModalRow(items.Nth(i)))
		}
		logging.Debugf("Modal rows from %s: %d", selector, count)
		break
	}

	if b.opts.DebugDir != "" {
		path := filepath.Join(b.opts.DebugDir, fmt.Sprintf("modal_%s.png", time.Now().Format("20060102_150405")))
		if err := os.MkdirAll(b.opts.DebugDir, 0755); err == nil {
			page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)})
		}
	}

	b.closeModal(page)
	return rows, true
}

func readModalRow(item playwright.Locator) extract.ModalRow {
	var row extract.ModalRow
	row.Text, _ = item.InnerText()

	cells := item.Locator(":scope > *")
	n, err := cells.Count()
	if err != nil || n < 2 {
		return row
	}
	row.Label, _ = cells.Nth(0).InnerText()
	row.Value, _ = cells.Nth(n - 1).InnerText()
	return row
}

func (b *BrowserFetcher) closeModal(page playwright.Page) {
	for _, selector := range modalCloseSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			if err := btn.Click(); err == nil {
				page.WaitForTimeout(300)
				return
			}
		}
	}
	page.Keyboard().Press("Escape")
	page.WaitForTimeout(300)
}

// saveDebug writes a screenshot and the page HTML for a failed load.
func (b *BrowserFetcher) saveDebug(page playwright.Page, reason string) {
	if b.opts.DebugDir == "" || page == nil {
		return
	}
	if err := os.MkdirAll(b.opts.DebugDir, 0755); err != nil {
		return
	}

	base := filepath.Join(b.opts.DebugDir, fmt.Sprintf("%s_%s", reason, uuid.NewString()[:8]))
	page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(base + ".png")})
	if content, err := page.Content(); err == nil {
		os.WriteFile(base+".html", []byte(content), 0644)
	}
	log.Printf("Saved debug files %s.{png,html}", base)
}

func humanDelay(minMs, maxMs int) {
	delay := minMs
	if maxMs > minMs {
		delay += rand.Intn(maxMs - minMs)
	}
	time.Sleep(time.Duration(delay) * time.Millisecond)
}
