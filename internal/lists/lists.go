// Package lists implements the offline refresh path for the auxiliary
// data every detector/extractor reads from storage_path (§6): the two
// cookie-banner filter lists and the tracker catalogue. It is exercised by
// the "lists refresh" CLI subcommand, not by the scan controller itself -
// refreshing is an explicit, operator-triggered action independent of any
// one scan.
//
// Grounded on original_source/.../update_dependencies hooks on the
// filter-list detector and tracker extractor (§4.4's "optional
// update_dependencies(options) hook used by the offline refresh path").
package lists

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Upstream source URLs for the two cosmetic filter lists and the tracker
// catalogue (§6). Variables, not constants, so tests can point them at a
// local fixture server.
var (
	EasylistCookieURL        = "https://secure.fanboy.co.nz/fanboy-cookiemonster.txt"
	IDontCareAboutCookiesURL = "https://www.i-dont-care-about-cookies.eu/abp/"
	DisconnectServicesURL    = "https://raw.githubusercontent.com/disconnectme/disconnect-tracking-protection/master/services.json"
)

const fetchTimeout = 30 * time.Second

// RefreshFilterLists downloads both cosmetic filter lists into
// storagePath/cookie_lists/, overwriting any existing copies.
func RefreshFilterLists(ctx context.Context, storagePath string) error {
	dir := filepath.Join(storagePath, "cookie_lists")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("lists: create %q: %w", dir, err)
	}

	downloads := map[string]string{
		"easylist-cookie.txt":             EasylistCookieURL,
		"i-dont-care-about-cookies.txt": IDontCareAboutCookiesURL,
	}
	for filename, url := range downloads {
		if err := fetchToFile(ctx, url, filepath.Join(dir, filename)); err != nil {
			return fmt.Errorf("lists: refresh %q: %w", filename, err)
		}
	}
	return nil
}

// servicesDoc mirrors the upstream services.json shape well enough to
// strip the "Content" top-level category before writing disconnect.json.
// Each kept category's contents are copied through as raw JSON; top-level
// fields other than "categories" are not kept.
type servicesDoc struct {
	Categories map[string]json.RawMessage `json:"categories"`
}

// RefreshTrackerCatalogue downloads the upstream services.json, removes
// the "Content" top-level category, and writes the result to
// storagePath/disconnect/disconnect.json (§4.4, §6: "derived from an
// upstream services.json by removing the Content top-level category").
func RefreshTrackerCatalogue(ctx context.Context, storagePath string) error {
	dir := filepath.Join(storagePath, "disconnect")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("lists: create %q: %w", dir, err)
	}

	body, err := fetch(ctx, DisconnectServicesURL)
	if err != nil {
		return fmt.Errorf("lists: fetch tracker catalogue: %w", err)
	}

	var doc servicesDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("lists: parse tracker catalogue: %w", err)
	}
	delete(doc.Categories, "Content")

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("lists: marshal tracker catalogue: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, "disconnect.json"), out, 0o644)
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

func fetchToFile(ctx context.Context, url, dest string) error {
	body, err := fetch(ctx, url)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, body, 0o644)
}
