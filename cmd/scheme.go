package cmd

import (
	"fmt"
	"net/url"
	"strings"

	textUtils "github.com/shouni/go-utils/text"
)

// normalizeURL は、入力されたURLの空白を整え、スキームが無い場合は https:// を補完します。
// スキームが http/https 以外の場合は、そのまま返してフェッチ側で無効なURLとして扱わせます。
func normalizeURL(rawURL string) string {
	rawURL = strings.ReplaceAll(textUtils.NormalizeText(rawURL), " ", "")
	if rawURL == "" {
		return ""
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme != "" {
		return rawURL
	}
	return "https://" + rawURL
}

// collectURLs は引数とフラグのURLをまとめ、正規化して重複を取り除きます。
func collectURLs(args, flagURLs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var urls []string
	for _, raw := range append(append([]string{}, args...), flagURLs...) {
		u := normalizeURL(raw)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("処理対象のURLが一つも指定されていません")
	}
	return urls, nil
}
