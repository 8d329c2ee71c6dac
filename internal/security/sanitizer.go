// Package security はユーザー入力の無害化とURL検証を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は掲載情報のテキストを保存前に無害化する。
type TextSanitizer interface {
	// PlainText はタグをすべて除去した1行のテキストを返す。店舗名・メニュー名などに使用する。
	PlainText(s string) string
	// RichText は紹介文・メニュー説明向けに最小限の書式タグのみ残す。
	RichText(s string) string
}

// Sanitizer はbluemondayのポリシーによるTextSanitizerの実装。
// ポリシーはスレッドセーフに共有できる。
type Sanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
// RichTextの許可タグ: p, br, ul, ol, li, strong, em, a(href, httpsのみ)
func NewSanitizer() *Sanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowURLSchemes("https")
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// PlainText はタグを除去し、空白を1つにまとめる。
// StrictPolicyは&などをエスケープするため、保存用に元へ戻す。
func (s *Sanitizer) PlainText(in string) string {
	out := html.UnescapeString(s.strict.Sanitize(in))
	return strings.Join(strings.Fields(out), " ")
}

// RichText は許可タグ以外を除去する。同一入力に対して常に同一出力を返す。
func (s *Sanitizer) RichText(in string) string {
	return strings.TrimSpace(s.rich.Sanitize(in))
}

var _ TextSanitizer = (*Sanitizer)(nil)
