// Package convert はリッチテキスト文書からプラットフォーム投稿への変換を提供する。
// テキストのフラット化と、エンティティ抽出によるセグメント分割を含む。
package convert

import (
	"strings"

	"github.com/hitoshi/crosspost/internal/model"
)

// FlattenText は文書をプレーンテキストにフラット化する。
//
// paragraphノードのみを走査し、それ以外のトップレベルノードは空の寄与として
// 無視する（エラーにはしない）。段落内では、textノードはそのテキストを寄与し、
// linkマークを持つ場合は寄与全体がマークのhrefに置き換わる。このとき
// httpスキームはhttpsに正規化され、前後にスペース1つずつが付与される。
// 同一ノードの複数マークは最初のlinkマークのみが適用され、残りは無視される。
// hardBreakノードは改行を寄与する。
//
// 各段落の寄与は前後の空白をトリムし、空になった段落は除去し、残りを改行で
// 結合した後、全体をもう一度トリムする。不正な入力は空文字列になる。
func FlattenText(doc model.Document) string {
	if doc.IsEmpty() {
		return ""
	}

	paragraphs := make([]string, 0, len(doc.Content))
	for _, node := range doc.Content {
		if node.Type != model.NodeTypeParagraph {
			continue
		}

		var b strings.Builder
		for _, item := range node.Content {
			switch item.Type {
			case model.NodeTypeText:
				text := item.Text
				for _, mark := range item.Marks {
					if mark.Type == model.MarkTypeLink && mark.Attrs.Href != "" {
						url := mark.Attrs.Href
						// 正規化するのは先頭のスキームのみ。クエリ等に含まれる
						// http://は書き換えない。
						if strings.HasPrefix(url, "http://") {
							url = "https://" + strings.TrimPrefix(url, "http://")
						}
						text = " " + url + " "
						break
					}
				}
				b.WriteString(text)
			case model.NodeTypeHardBreak:
				b.WriteString("\n")
			}
		}

		p := strings.TrimSpace(b.String())
		if p == "" {
			continue
		}
		paragraphs = append(paragraphs, p)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n"))
}
